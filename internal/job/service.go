package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Service accepts detection requests and answers lookups.
type Service struct {
	store   Store
	queue   Enqueuer
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	newID   func() string
}

// NewService wires a store and a queue. A nil clock uses real time.
func NewService(store Store, queue Enqueuer, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		store:   store,
		queue:   queue,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		newID:   func() string { return uuid.NewString() },
	}
}

// Submit validates params, records a pending job and enqueues it. Invalid
// parameters return an error wrapping domain.ErrInvalidParameters before any
// state is created.
func (s *Service) Submit(ctx context.Context, params domain.QueryParameters) (string, error) {
	if err := params.Validate(); err != nil {
		s.metrics.InvalidRequests.Inc()
		return "", err
	}

	now := s.clock.Now()
	j := Job{
		ID:        s.newID(),
		Params:    params,
		Status:    StatusPending,
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, j); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	req := Request{ID: j.ID, Params: params, SubmittedAt: now}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		reason := fmt.Sprintf("enqueue: %v", err)
		if ferr := s.store.Fail(ctx, j.ID, reason); ferr != nil {
			s.logger.Error("mark job failed after enqueue error", "request_id", j.ID, "error", ferr)
		}
		s.metrics.JobsFailed.Inc()
		return "", fmt.Errorf("enqueue job %s: %w", j.ID, err)
	}

	s.metrics.JobsSubmitted.Inc()
	s.logger.Info("detection job submitted",
		"request_id", j.ID,
		"satellite", params.Satellite,
		"start_date", params.StartDate,
		"end_date", params.EndDate,
	)
	return j.ID, nil
}

// Get returns the job for id or an error wrapping ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Job{}, err
		}
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}
