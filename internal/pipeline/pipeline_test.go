package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/adapter/memqueue"
	"github.com/couchcryptid/fire-detection-service/internal/detect"
	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	"github.com/couchcryptid/fire-detection-service/internal/observability"
	"github.com/couchcryptid/fire-detection-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type failingDetector struct {
	err error
}

func (f failingDetector) Detect(context.Context, domain.QueryParameters) (domain.Result, error) {
	return domain.Result{}, f.err
}

type flakyExtractor struct {
	failures atomic.Int64
	next     pipeline.BatchExtractor
}

func (f *flakyExtractor) ExtractBatch(ctx context.Context, n int) ([]job.Delivery, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("broker unavailable")
	}
	return f.next.ExtractBatch(ctx, n)
}

// flakyStore fails MarkProcessing until failures runs out.
type flakyStore struct {
	*job.MemoryStore
	failures atomic.Int64
}

func (s *flakyStore) MarkProcessing(ctx context.Context, id string) error {
	if s.failures.Add(-1) >= 0 {
		return errors.New("database unavailable")
	}
	return s.MemoryStore.MarkProcessing(ctx, id)
}

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []job.Job
}

func (r *recordingPublisher) PublishResult(_ context.Context, j job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
	return nil
}

func (r *recordingPublisher) published() []job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]job.Job(nil), r.jobs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bayArea() domain.QueryParameters {
	return domain.QueryParameters{
		Bounds:        []float64{-122.5, 37.5, -122.0, 38.0},
		StartDate:     "2024-08-01",
		EndDate:       "2024-08-07",
		Satellite:     domain.SatelliteSentinel2,
		MaxCloudCover: 40,
	}
}

type fixture struct {
	store   *job.MemoryStore
	queue   *memqueue.Queue
	metrics *observability.Metrics
	clock   *clockwork.FakeClock
}

func newFixture() fixture {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.August, 8, 12, 0, 0, 0, time.UTC))
	return fixture{
		store:   job.NewMemoryStore(time.Hour, clock),
		queue:   memqueue.New(16),
		metrics: observability.NewMetricsForTesting(),
		clock:   clock,
	}
}

func (f fixture) submit(t *testing.T, id string, params domain.QueryParameters) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, job.Job{ID: id, Params: params}))
	require.NoError(t, f.queue.Enqueue(ctx, job.Request{ID: id, Params: params, SubmittedAt: f.clock.Now()}))
}

// runUntil runs p until cond holds or the deadline passes.
func runUntil(t *testing.T, p *pipeline.Pipeline, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	assert.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
}

func statusOf(f fixture, id string) job.Status {
	j, err := f.store.Get(context.Background(), id)
	if err != nil {
		return ""
	}
	return j.Status
}

// --- tests ---

func TestPipeline_Run_CompletesJob(t *testing.T) {
	f := newFixture()
	f.submit(t, "req-1", bayArea())

	engine := detect.NewEngine(discardLogger(), detect.WithClock(f.clock))
	p := pipeline.New(f.queue, engine, f.store, discardLogger(), f.metrics, 10, pipeline.WithClock(f.clock))

	runUntil(t, p, func() bool { return statusOf(f, "req-1") == job.StatusCompleted })

	j, err := f.store.Get(context.Background(), "req-1")
	require.NoError(t, err)
	require.NotNil(t, j.Result)

	want, err := engine.Detect(context.Background(), bayArea())
	require.NoError(t, err)
	if diff := cmp.Diff(want, *j.Result); diff != "" {
		t.Errorf("stored result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.Seed(1952695623), j.Result.Metadata.Seed)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.JobsCompleted), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.JobsFailed), 0)
}

func TestPipeline_Run_DetectorErrorFailsJob(t *testing.T) {
	f := newFixture()
	f.submit(t, "req-1", bayArea())

	p := pipeline.New(f.queue, failingDetector{err: errors.New("backend exploded")}, f.store,
		discardLogger(), f.metrics, 10, pipeline.WithClock(f.clock))

	runUntil(t, p, func() bool { return statusOf(f, "req-1") == job.StatusFailed })

	j, err := f.store.Get(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "backend exploded", j.Error)
	assert.Nil(t, j.Result)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.JobsFailed), 0)
}

func TestPipeline_Run_SkipsUnknownAndFinishedJobs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Unknown to the store.
	require.NoError(t, f.queue.Enqueue(ctx, job.Request{ID: "ghost"}))

	// Already finished; a redelivery must not reprocess it.
	require.NoError(t, f.store.Create(ctx, job.Job{ID: "done", Params: bayArea()}))
	require.NoError(t, f.store.Fail(ctx, "done", "earlier failure"))
	require.NoError(t, f.queue.Enqueue(ctx, job.Request{ID: "done"}))

	f.submit(t, "req-1", bayArea())

	pub := &recordingPublisher{}
	engine := detect.NewEngine(discardLogger(), detect.WithClock(f.clock))
	p := pipeline.New(f.queue, engine, f.store, discardLogger(), f.metrics, 10,
		pipeline.WithClock(f.clock), pipeline.WithPublisher(pub))

	runUntil(t, p, func() bool { return statusOf(f, "req-1") == job.StatusCompleted })

	done, err := f.store.Get(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, done.Status)
	assert.Equal(t, "earlier failure", done.Error)

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	published := pub.published()[0]
	assert.Equal(t, "req-1", published.ID)
	assert.Equal(t, job.StatusCompleted, published.Status)
}

func TestPipeline_Run_AcksAfterOutcome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, job.Job{ID: "req-1", Params: bayArea()}))

	var acked atomic.Bool
	ext := &singleDelivery{d: job.Delivery{
		Request: job.Request{ID: "req-1"},
		Ack: func(context.Context) error {
			if statusOf(f, "req-1") != job.StatusCompleted {
				return errors.New("acked before completion")
			}
			acked.Store(true)
			return nil
		},
	}}

	engine := detect.NewEngine(discardLogger(), detect.WithClock(f.clock))
	p := pipeline.New(ext, engine, f.store, discardLogger(), f.metrics, 1, pipeline.WithClock(f.clock))

	runUntil(t, p, acked.Load)
}

func TestPipeline_Run_BacksOffOnExtractError(t *testing.T) {
	f := newFixture()
	f.submit(t, "req-1", bayArea())

	ext := &flakyExtractor{next: f.queue}
	ext.failures.Store(1)

	engine := detect.NewEngine(discardLogger(), detect.WithClock(f.clock))
	p := pipeline.New(ext, engine, f.store, discardLogger(), f.metrics, 10, pipeline.WithClock(f.clock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	// The pipeline is sleeping on the fake clock after the first failure.
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, job.StatusPending, statusOf(f, "req-1"))

	f.clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return statusOf(f, "req-1") == job.StatusCompleted },
		5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestPipeline_Run_RetriesStoreErrorWithoutDroppingBatch(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"a", "b", "c"} {
		f.submit(t, id, bayArea())
	}
	store := &flakyStore{MemoryStore: f.store}
	store.failures.Store(1)

	engine := detect.NewEngine(discardLogger(), detect.WithClock(f.clock))
	p := pipeline.New(f.queue, engine, store, discardLogger(), f.metrics, 10, pipeline.WithClock(f.clock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	// Backing off after the first MarkProcessing error; nothing recorded yet.
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, job.StatusPending, statusOf(f, id), id)
	}

	f.clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return statusOf(f, "a") == job.StatusCompleted &&
			statusOf(f, "b") == job.StatusCompleted &&
			statusOf(f, "c") == job.StatusCompleted
	}, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, f.queue.Len())
	assert.InDelta(t, 3, testutil.ToFloat64(f.metrics.JobsCompleted), 0)

	cancel()
	require.NoError(t, <-errCh)
}

func TestPipeline_Run_FailsJobThatCannotBeRecorded(t *testing.T) {
	f := newFixture()
	f.submit(t, "stuck", bayArea())
	f.submit(t, "next", bayArea())

	store := &flakyStore{MemoryStore: f.store}
	store.failures.Store(3)

	engine := detect.NewEngine(discardLogger(), detect.WithClock(f.clock))
	p := pipeline.New(f.queue, engine, store, discardLogger(), f.metrics, 10, pipeline.WithClock(f.clock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	// Two backoff sleeps separate the three attempts.
	for range 2 {
		require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
		f.clock.Advance(5 * time.Second)
	}

	require.Eventually(t, func() bool {
		return statusOf(f, "stuck") == job.StatusFailed && statusOf(f, "next") == job.StatusCompleted
	}, 5*time.Second, 5*time.Millisecond)

	stuck, err := f.store.Get(context.Background(), "stuck")
	require.NoError(t, err)
	assert.Contains(t, stuck.Error, "record outcome after 3 attempts")
	assert.Contains(t, stuck.Error, "database unavailable")

	cancel()
	require.NoError(t, <-errCh)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	f := newFixture()
	p := pipeline.New(f.queue, failingDetector{}, f.store, discardLogger(), f.metrics, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.PipelineRunning), 0)
}

func TestPipeline_CheckReadiness(t *testing.T) {
	f := newFixture()
	p := pipeline.New(f.queue, failingDetector{}, f.store, discardLogger(), f.metrics, 10)

	require.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return p.CheckReadiness(context.Background()) == nil },
		time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

// singleDelivery hands out one delivery, then blocks until cancelled.
type singleDelivery struct {
	once sync.Once
	d    job.Delivery
}

func (s *singleDelivery) ExtractBatch(ctx context.Context, _ int) ([]job.Delivery, error) {
	var batch []job.Delivery
	s.once.Do(func() { batch = []job.Delivery{s.d} })
	if batch != nil {
		return batch, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}
