// Package history records probe runs in a local SQLite file so results can
// be compared across service deployments.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPath is used when PROBE_HISTORY_PATH is unset.
const DefaultPath = "probe-history.sqlite3"

// Run is one completed probe request.
type Run struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Scenario       string `gorm:"index:idx_run_case,priority:1"`
	CaseName       string `gorm:"index:idx_run_case,priority:2"`
	Canonical      string `gorm:"index"`
	RequestID      string
	Seed           *uint32
	TotalEvents    int
	TotalAreaHa    float64
	MeanConfidence float64
	DetectionIDs   string // comma separated
	ProcessingTime float64
	CreatedAt      time.Time
}

// Store persists probe runs.
type Store struct {
	db *gorm.DB
}

// PathFromEnv returns PROBE_HISTORY_PATH or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("PROBE_HISTORY_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record saves runs in a single transaction.
func (s *Store) Record(runs ...Run) error {
	if len(runs) == 0 {
		return nil
	}
	if err := s.db.Create(&runs).Error; err != nil {
		return fmt.Errorf("record runs: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first. An empty canonical string
// matches every query.
func (s *Store) Recent(canonical string, limit int) ([]Run, error) {
	q := s.db.Order("created_at DESC").Order("id DESC").Limit(limit)
	if canonical != "" {
		q = q.Where("canonical = ?", canonical)
	}
	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

// ErrNoHistory is returned by Baseline when a query was never recorded.
var ErrNoHistory = errors.New("no recorded runs for query")

// Baseline returns the oldest recorded run for a canonical query. Later
// runs are expected to match it.
func (s *Store) Baseline(canonical string) (Run, error) {
	var run Run
	err := s.db.Where("canonical = ?", canonical).Order("created_at ASC").Order("id ASC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, fmt.Errorf("%w: %s", ErrNoHistory, canonical)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query baseline: %w", err)
	}
	return run, nil
}
