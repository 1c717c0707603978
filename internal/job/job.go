// Package job tracks detection requests through the asynchronous
// submit/poll/fetch protocol.
package job

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
)

// Status is the lifecycle state of a detection job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrNotFound is returned for unknown or expired request IDs.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the job's current state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrQueueFull is returned when a request cannot be enqueued without blocking.
	ErrQueueFull = errors.New("job queue is full")
)

// Job is one detection request and, once processed, its outcome.
type Job struct {
	ID        string                 `json:"request_id"`
	Params    domain.QueryParameters `json:"params"`
	Status    Status                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Result    *domain.Result         `json:"result,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Request is the queue message for a submitted job.
type Request struct {
	ID          string                 `json:"request_id"`
	Params      domain.QueryParameters `json:"params"`
	SubmittedAt time.Time              `json:"submitted_at"`
}

// Delivery is a request taken off a queue. Ack must be called once the job
// reached a terminal state so the queue does not redeliver it.
type Delivery struct {
	Request Request
	Ack     func(ctx context.Context) error
}

// Store persists jobs and enforces status transitions.
type Store interface {
	Create(ctx context.Context, j Job) error
	Get(ctx context.Context, id string) (Job, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result domain.Result) error
	Fail(ctx context.Context, id string, reason string) error
}

// Enqueuer hands a request to the processing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, req Request) error
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusProcessing:
		return from == StatusPending
	case StatusCompleted:
		return from == StatusPending || from == StatusProcessing
	case StatusFailed:
		return !from.Terminal()
	default:
		return false
	}
}
