package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
)

// process moves one job to a terminal state. A returned error means the
// outcome could not be recorded and the request must not be acknowledged.
func (p *Pipeline) process(ctx context.Context, req job.Request) error {
	j, err := p.store.Get(ctx, req.ID)
	switch {
	case errors.Is(err, job.ErrNotFound):
		p.logger.Warn("dropping request for unknown job", "request_id", req.ID)
		return nil
	case err != nil:
		return err
	case j.Status.Terminal():
		p.logger.Debug("skipping finished job", "request_id", req.ID, "status", j.Status)
		return nil
	}

	if !req.SubmittedAt.IsZero() {
		p.metrics.QueueWaitDuration.Observe(p.clock.Since(req.SubmittedAt).Seconds())
	}

	if j.Status == job.StatusPending {
		if err := p.store.MarkProcessing(ctx, j.ID); err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
	}

	start := p.clock.Now()
	result, detectErr := p.detector.Detect(ctx, j.Params)
	if detectErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	p.metrics.ProcessingDuration.Observe(p.clock.Since(start).Seconds())

	if detectErr != nil {
		if err := p.fail(ctx, j.ID, detectErr); err != nil {
			return err
		}
	} else if err := p.complete(ctx, j.ID, result); err != nil {
		return err
	}

	p.publish(ctx, j.ID)
	return nil
}

func (p *Pipeline) complete(ctx context.Context, id string, result domain.Result) error {
	if err := p.store.Complete(ctx, id, result); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	p.metrics.JobsCompleted.Inc()
	p.metrics.DetectionsPerJob.Observe(float64(len(result.Detections)))
	p.logger.Info("detection job completed",
		"request_id", id,
		"seed", uint32(result.Metadata.Seed),
		"detections", len(result.Detections),
	)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, id string, cause error) error {
	if err := p.store.Fail(ctx, id, cause.Error()); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	p.metrics.JobsFailed.Inc()
	p.logger.Warn("detection job failed", "request_id", id, "error", cause)
	return nil
}

// publish is best effort; the store already holds the outcome.
func (p *Pipeline) publish(ctx context.Context, id string) {
	if p.publisher == nil {
		return
	}
	j, err := p.store.Get(ctx, id)
	if err != nil {
		p.logger.Warn("load job for publishing failed", "request_id", id, "error", err)
		return
	}
	if err := p.publisher.PublishResult(ctx, j); err != nil {
		p.logger.Warn("publish result failed", "request_id", id, "error", err)
	}
}
