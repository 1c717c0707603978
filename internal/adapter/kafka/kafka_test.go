package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bayArea() domain.QueryParameters {
	return domain.QueryParameters{
		Bounds:        []float64{-122.5, 37.5, -122.0, 38.0},
		StartDate:     "2024-08-01",
		EndDate:       "2024-08-07",
		Satellite:     domain.SatelliteSentinel2,
		MaxCloudCover: 40,
	}
}

func TestMapMessageToRequest(t *testing.T) {
	now := time.Date(2024, 8, 8, 9, 30, 0, 0, time.UTC)
	msg := kafkago.Message{
		Key:       []byte("req-1"),
		Value:     []byte(`{"request_id":"req-1","params":{"bounds":[-122.5,37.5,-122.0,38.0],"start_date":"2024-08-01","end_date":"2024-08-07","satellite":"sentinel2","max_cloud_cover":40},"submitted_at":"2024-08-08T09:00:00Z"}`),
		Topic:     "fire-detection-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
	}

	req, err := mapMessageToRequest(msg)
	require.NoError(t, err)

	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, bayArea(), req.Params)
	assert.Equal(t, time.Date(2024, 8, 8, 9, 0, 0, 0, time.UTC), req.SubmittedAt)
}

func TestMapMessageToRequest_Fallbacks(t *testing.T) {
	now := time.Date(2024, 8, 8, 9, 30, 0, 0, time.UTC)
	msg := kafkago.Message{
		Key:   []byte("from-key"),
		Value: []byte(`{"params":{"satellite":"landsat"}}`),
		Time:  now,
	}

	req, err := mapMessageToRequest(msg)
	require.NoError(t, err)
	assert.Equal(t, "from-key", req.ID)
	assert.Equal(t, now, req.SubmittedAt)
}

func TestMapMessageToRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		msg  kafkago.Message
	}{
		{"not json", kafkago.Message{Key: []byte("k"), Value: []byte("not-json{{{")}},
		{"no id", kafkago.Message{Value: []byte(`{"params":{}}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mapMessageToRequest(tt.msg)
			assert.Error(t, err)
		})
	}
}

func TestSerializeRequest(t *testing.T) {
	submitted := time.Date(2024, 8, 8, 9, 0, 0, 0, time.UTC)
	req := job.Request{ID: "req-1", Params: bayArea(), SubmittedAt: submitted}

	msg, err := serializeRequest(req)
	require.NoError(t, err)

	assert.Equal(t, []byte("req-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"bounds":[-122.5,37.5,-122,38]`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "satellite", msg.Headers[0].Key)
	assert.Equal(t, []byte("sentinel2"), msg.Headers[0].Value)
	assert.Equal(t, "submitted_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(submitted.Format(time.RFC3339)), msg.Headers[1].Value)

	// What the writer produces, the reader accepts.
	back, err := mapMessageToRequest(msg)
	require.NoError(t, err)
	assert.Equal(t, req, back)
}

func TestSerializeJob(t *testing.T) {
	updated := time.Date(2024, 8, 8, 9, 0, 5, 0, time.UTC)
	j := job.Job{
		ID:        "req-1",
		Params:    bayArea(),
		Status:    job.StatusCompleted,
		Result:    &domain.Result{Metadata: domain.Metadata{Seed: 1952695623}},
		UpdatedAt: updated,
	}

	msg, err := serializeJob(j)
	require.NoError(t, err)

	assert.Equal(t, []byte("req-1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "status", msg.Headers[0].Key)
	assert.Equal(t, []byte("completed"), msg.Headers[0].Value)
	assert.Equal(t, []byte(updated.Format(time.RFC3339)), msg.Headers[1].Value)

	var payload struct {
		RequestID string `json:"request_id"`
		Result    struct {
			Metadata struct {
				Seed uint32 `json:"seed"`
			} `json:"metadata"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "req-1", payload.RequestID)
	assert.Equal(t, uint32(1952695623), payload.Result.Metadata.Seed)
}
