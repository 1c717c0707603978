package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	requests []Request
	err      error
}

func (q *recordingQueue) Enqueue(_ context.Context, req Request) error {
	if q.err != nil {
		return q.err
	}
	q.requests = append(q.requests, req)
	return nil
}

func validParams() domain.QueryParameters {
	return domain.QueryParameters{
		Bounds:        []float64{-122.5, 37.5, -122.0, 38.0},
		StartDate:     "2024-08-01",
		EndDate:       "2024-08-07",
		Satellite:     domain.SatelliteSentinel2,
		MaxCloudCover: 40,
	}
}

func newTestService(queue Enqueuer) (*Service, *MemoryStore, *observability.Metrics) {
	clock := clockwork.NewFakeClockAt(testStart)
	store := NewMemoryStore(time.Hour, clock)
	metrics := observability.NewMetricsForTesting()
	svc := NewService(store, queue, clock, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)
	svc.newID = func() string { return "req-1" }
	return svc, store, metrics
}

func TestService_Submit(t *testing.T) {
	queue := &recordingQueue{}
	svc, _, metrics := newTestService(queue)

	id, err := svc.Submit(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, "req-1", id)

	require.Len(t, queue.requests, 1)
	assert.Equal(t, Request{ID: "req-1", Params: validParams(), SubmittedAt: testStart}, queue.requests[0])

	j, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, validParams(), j.Params)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.JobsSubmitted), 1e-9)
}

func TestService_SubmitInvalid(t *testing.T) {
	queue := &recordingQueue{}
	svc, store, metrics := newTestService(queue)

	p := validParams()
	p.MaxCloudCover = 150
	_, err := svc.Submit(context.Background(), p)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	assert.Empty(t, queue.requests)
	assert.Equal(t, 0, store.Len())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.InvalidRequests), 1e-9)
}

func TestService_SubmitEnqueueFailure(t *testing.T) {
	queue := &recordingQueue{err: ErrQueueFull}
	svc, _, metrics := newTestService(queue)

	_, err := svc.Submit(context.Background(), validParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)

	j, err := svc.Get(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, j.Status)
	assert.Contains(t, j.Error, "enqueue")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.JobsFailed), 1e-9)
}

func TestService_GetUnknown(t *testing.T) {
	svc, _, _ := newTestService(&recordingQueue{})

	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestService_DefaultIDsAreUnique(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	svc := NewService(store, &recordingQueue{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	a, err := svc.Submit(context.Background(), validParams())
	require.NoError(t, err)
	b, err := svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
