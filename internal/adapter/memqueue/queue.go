// Package memqueue is the in-process job queue used when no broker is
// configured.
package memqueue

import (
	"context"
	"fmt"

	"github.com/couchcryptid/fire-detection-service/internal/job"
)

// Queue is a bounded FIFO of job requests.
// It implements job.Enqueuer and pipeline.BatchExtractor.
type Queue struct {
	ch chan job.Request
}

// New creates a Queue that holds up to capacity requests.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan job.Request, capacity)}
}

// Enqueue adds req without blocking. A full queue returns job.ErrQueueFull.
func (q *Queue) Enqueue(ctx context.Context, req job.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- req:
		return nil
	default:
		return fmt.Errorf("request %s: %w", req.ID, job.ErrQueueFull)
	}
}

// ExtractBatch waits for the first request, then drains up to batchSize
// without waiting further. Cancelling ctx while waiting returns ctx.Err().
func (q *Queue) ExtractBatch(ctx context.Context, batchSize int) ([]job.Delivery, error) {
	var first job.Request
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case first = <-q.ch:
	}

	batch := make([]job.Delivery, 0, batchSize)
	batch = append(batch, delivery(first))
	for len(batch) < batchSize {
		select {
		case req := <-q.ch:
			batch = append(batch, delivery(req))
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Len reports the number of queued requests.
func (q *Queue) Len() int {
	return len(q.ch)
}

func delivery(req job.Request) job.Delivery {
	return job.Delivery{
		Request: req,
		Ack:     func(context.Context) error { return nil },
	}
}
