// Package postgres persists detection jobs in PostgreSQL so status and
// results survive restarts and are shared between replicas.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS detection_jobs (
	id          TEXT PRIMARY KEY,
	params      JSONB       NOT NULL,
	status      TEXT        NOT NULL,
	error       TEXT        NOT NULL DEFAULT '',
	result      JSONB,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS detection_jobs_created_at_idx ON detection_jobs (created_at);`

var allStatuses = []job.Status{job.StatusPending, job.StatusProcessing, job.StatusCompleted, job.StatusFailed}

// Store implements job.Store on a detection_jobs table.
type Store struct {
	db    *sqlx.DB
	ttl   time.Duration
	clock clockwork.Clock
}

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewStore wraps db. Jobs older than ttl are treated as gone; a nil clock
// uses real time.
func NewStore(db *sqlx.DB, ttl time.Duration, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, ttl: ttl, clock: clock}
}

// Migrate creates the jobs table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate detection_jobs: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Create(ctx context.Context, j job.Job) error {
	now := s.clock.Now()
	if j.Status == "" {
		j.Status = job.StatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now

	row, err := toRow(j)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO detection_jobs (id, params, status, error, result, created_at, updated_at)
		VALUES (:id, :params, :status, :error, :result, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (job.Job, error) {
	const query = `
		SELECT id, params, status, error, result, created_at, updated_at
		FROM detection_jobs
		WHERE id = $1`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job.Job{}, fmt.Errorf("%w: %s", job.ErrNotFound, id)
		}
		return job.Job{}, fmt.Errorf("query job %s: %w", id, err)
	}
	if s.expired(row.CreatedAt) {
		return job.Job{}, fmt.Errorf("%w: %s", job.ErrNotFound, id)
	}
	return row.toJob()
}

func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id, job.StatusProcessing, "", nil)
}

func (s *Store) Complete(ctx context.Context, id string, result domain.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.transition(ctx, id, job.StatusCompleted, "", data)
}

func (s *Store) Fail(ctx context.Context, id string, reason string) error {
	return s.transition(ctx, id, job.StatusFailed, reason, nil)
}

// DeleteExpired removes jobs older than the TTL and returns how many were
// deleted.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM detection_jobs WHERE created_at < $1`,
		s.clock.Now().Add(-s.ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return res.RowsAffected()
}

// transition updates a job only if its current status may move to `to`, so
// concurrent workers cannot both claim or finish the same job.
func (s *Store) transition(ctx context.Context, id string, to job.Status, reason string, result []byte) error {
	const query = `
		UPDATE detection_jobs
		SET status = $2, error = $3, result = COALESCE($4::jsonb, result), updated_at = $5
		WHERE id = $1 AND status = ANY($6)`

	res, err := s.db.ExecContext(ctx, query,
		id, string(to), reason, result, s.clock.Now(), pq.Array(allowedFrom(to)),
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", job.ErrInvalidTransition, current.Status, to)
}

func (s *Store) expired(createdAt time.Time) bool {
	return s.ttl > 0 && s.clock.Since(createdAt) > s.ttl
}

// allowedFrom lists the statuses that may transition to `to`.
func allowedFrom(to job.Status) []string {
	var from []string
	for _, st := range allStatuses {
		if job.CanTransition(st, to) {
			from = append(from, string(st))
		}
	}
	return from
}
