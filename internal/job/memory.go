package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// MemoryStore keeps jobs in process memory. Jobs older than the TTL are
// dropped lazily on access.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]Job
	ttl   time.Duration
	clock clockwork.Clock
}

// NewMemoryStore creates an empty store. A nil clock uses real time.
func NewMemoryStore(ttl time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		jobs:  make(map[string]Job),
		ttl:   ttl,
		clock: clock,
	}
}

func (s *MemoryStore) Create(_ context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	now := s.clock.Now()
	if j.Status == "" {
		j.Status = StatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	s.jobs[j.ID] = j
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok || s.expired(j) {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}

func (s *MemoryStore) MarkProcessing(_ context.Context, id string) error {
	return s.transition(id, StatusProcessing, func(*Job) {})
}

func (s *MemoryStore) Complete(_ context.Context, id string, result domain.Result) error {
	return s.transition(id, StatusCompleted, func(j *Job) {
		j.Result = &result
		j.Error = ""
	})
}

func (s *MemoryStore) Fail(_ context.Context, id string, reason string) error {
	return s.transition(id, StatusFailed, func(j *Job) {
		j.Error = reason
	})
}

// Len returns the number of live jobs.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	return len(s.jobs)
}

func (s *MemoryStore) transition(id string, to Status, apply func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || s.expired(j) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = s.clock.Now()
	apply(&j)
	s.jobs[id] = j
	return nil
}

func (s *MemoryStore) expired(j Job) bool {
	return s.ttl > 0 && s.clock.Since(j.CreatedAt) > s.ttl
}

// evictExpired must be called with the write lock held.
func (s *MemoryStore) evictExpired() {
	for id, j := range s.jobs {
		if s.expired(j) {
			delete(s.jobs, id)
		}
	}
}
