package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	"github.com/couchcryptid/fire-detection-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// BatchExtractor reads up to batchSize queued requests.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]job.Delivery, error)
}

// Detector produces the result for a set of query parameters.
type Detector interface {
	Detect(ctx context.Context, params domain.QueryParameters) (domain.Result, error)
}

// ResultPublisher announces jobs that reached a terminal state.
type ResultPublisher interface {
	PublishResult(ctx context.Context, j job.Job) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// maxRecordAttempts bounds how often one request is retried before its
	// job is failed.
	maxRecordAttempts = 3
)

// Pipeline drains the job queue, runs detections and records the outcome.
type Pipeline struct {
	extractor BatchExtractor
	detector  Detector
	store     job.Store
	publisher ResultPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPublisher sends every finished job to p.
func WithPublisher(p ResultPublisher) Option {
	return func(pl *Pipeline) {
		pl.publisher = p
	}
}

// WithClock replaces the real clock used for backoff and wait metrics.
func WithClock(c clockwork.Clock) Option {
	return func(pl *Pipeline) {
		pl.clock = c
	}
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, d Detector, s job.Store, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: e,
		detector:  d,
		store:     s,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil while the processing loop is running.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline is not running")
	}
	return nil
}

// Run executes the processing loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	p.ready.Store(true)
	defer func() {
		p.ready.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-detect-record cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}
	*backoff = initialBackoff

	for _, d := range batch {
		if !p.handle(ctx, d, backoff) {
			return false
		}
	}
	return ctx.Err() == nil
}

// handle records the outcome of one delivery, retrying with backoff until it
// is recorded. After maxRecordAttempts the job is failed instead, so a broken
// request cannot hold up the rest of the queue. Returns false if the pipeline
// should stop; the delivery is then left unacknowledged.
func (p *Pipeline) handle(ctx context.Context, d job.Delivery, backoff *time.Duration) bool {
	for attempt := 1; ; attempt++ {
		err := p.process(ctx, d.Request)
		if err == nil {
			*backoff = initialBackoff
			p.ack(ctx, d)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("record job outcome failed", "request_id", d.Request.ID, "attempt", attempt, "error", err)

		if attempt >= maxRecordAttempts {
			cause := fmt.Errorf("record outcome after %d attempts: %w", attempt, err)
			ferr := p.fail(ctx, d.Request.ID, cause)
			if ferr == nil {
				p.publish(ctx, d.Request.ID)
				*backoff = initialBackoff
				p.ack(ctx, d)
				return true
			}
			p.logger.Error("fail job after retries failed", "request_id", d.Request.ID, "error", ferr)
		}
		if !p.backoffOrStop(ctx, backoff) {
			return false
		}
	}
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !p.sleep(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func (p *Pipeline) ack(ctx context.Context, d job.Delivery) {
	if d.Ack == nil {
		return
	}
	if err := d.Ack(ctx); err != nil {
		p.logger.Warn("ack request failed", "request_id", d.Request.ID, "error", err)
	}
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
