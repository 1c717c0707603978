package postgres

import (
	"testing"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJob() job.Job {
	created := time.Date(2024, 8, 8, 9, 0, 0, 0, time.UTC)
	return job.Job{
		ID: "req-1",
		Params: domain.QueryParameters{
			Bounds:        []float64{-122.5, 37.5, -122.0, 38.0},
			StartDate:     "2024-08-01",
			EndDate:       "2024-08-07",
			Satellite:     domain.SatelliteSentinel2,
			MaxCloudCover: 40,
		},
		Status:    job.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestRowConversion_Pending(t *testing.T) {
	j := sampleJob()

	row, err := toRow(j)
	require.NoError(t, err)
	assert.Equal(t, "pending", row.Status)
	assert.Nil(t, row.Result, "pending jobs store NULL result")
	assert.JSONEq(t,
		`{"bounds":[-122.5,37.5,-122,38],"start_date":"2024-08-01","end_date":"2024-08-07","satellite":"sentinel2","max_cloud_cover":40}`,
		string(row.Params))

	back, err := row.toJob()
	require.NoError(t, err)
	if diff := cmp.Diff(j, back); diff != "" {
		t.Errorf("job changed through row (-want +got):\n%s", diff)
	}
}

func TestRowConversion_Completed(t *testing.T) {
	j := sampleJob()
	j.Status = job.StatusCompleted
	j.Result = &domain.Result{
		Summary:    domain.Summary{TotalEvents: 1, TotalAreaHa: 12.5, MeanConfidence: 0.8},
		Detections: []domain.Detection{{ID: "fire-7463d9c7-1", AreaHa: 12.5, Confidence: 0.8}},
		Metadata:   domain.Metadata{Seed: 1952695623, AreaHash: 773, CombinedValue: 396},
	}

	row, err := toRow(j)
	require.NoError(t, err)
	require.NotNil(t, row.Result)

	back, err := row.toJob()
	require.NoError(t, err)
	require.NotNil(t, back.Result)
	assert.Equal(t, domain.Seed(1952695623), back.Result.Metadata.Seed)
	assert.Equal(t, j.Result.Detections[0].ID, back.Result.Detections[0].ID)
}

func TestRowConversion_CorruptParams(t *testing.T) {
	row := jobRow{ID: "req-1", Params: []byte("{"), Status: "pending"}
	_, err := row.toJob()
	assert.ErrorContains(t, err, "decode params of job req-1")
}

func TestAllowedFrom(t *testing.T) {
	assert.Equal(t, []string{"pending"}, allowedFrom(job.StatusProcessing))
	assert.Equal(t, []string{"pending", "processing"}, allowedFrom(job.StatusCompleted))
	assert.Equal(t, []string{"pending", "processing"}, allowedFrom(job.StatusFailed))
	assert.Empty(t, allowedFrom(job.StatusPending))
}
