// Package persistence defines the storage-agnostic contract the
// scheduler writes through; internal/persistence/postgres provides the
// production implementation.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperalpha/traderscore/internal/domain"
)

// Error wraps a persistence failure after rollback, per the error
// handling design's PersistError taxonomy entry.
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persist: %s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Persister is the transactional writer plus typed read paths described
// in §4.4.
type Persister interface {
	// ReplacePeriod atomically replaces a period's ranked_entries and
	// pnl_points in one transaction: delete both tables for the period,
	// batch-insert the ranked entries, synthesize and batch-insert
	// PnlPoints from both the entries' embedded pnl lists and the
	// enrichment portfolio series, then commit.
	ReplacePeriod(ctx context.Context, periodDays int, ranked []domain.RankedEntry, portfolioByAddr map[string][]domain.WindowSeries) error

	// ReadRanked returns entries ordered by rank ascending.
	ReadRanked(ctx context.Context, periodDays, limit int) ([]domain.RankedEntry, error)

	// ReadSelected returns entries ordered by weight descending then
	// rank ascending.
	ReadSelected(ctx context.Context, periodDays, limit int) ([]domain.RankedEntry, error)
}

// Repository aggregates the persistence surface this core exposes.
type Repository struct {
	Scores Persister
}

// HealthCheck represents repository health status.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer.
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to database
	Ping(ctx context.Context) error

	// Stats returns connection pool and query statistics
	Stats(ctx context.Context) map[string]interface{}
}
