package storage

import (
	"context"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// RunArchive is everything persisted for one finished run. Successes are
// kept in report order.
type RunArchive struct {
	Repositories []domain.RepositoryMetrics
	Issues       []domain.IssueRecord
	Failures     []domain.Failure
}

// Storage is the abstract interface for the run archive
type Storage interface {
	// SaveRun stores the run header and replaces any rows previously saved
	// for the same run ID
	SaveRun(ctx context.Context, run *domain.HarvestRun, archive RunArchive) error

	// GetRun retrieves a run header
	GetRun(ctx context.Context, id string) (*domain.HarvestRun, error)

	// ListRuns lists runs newest first, optionally for one owner
	ListRuns(ctx context.Context, owner string, limit int) ([]*domain.HarvestRun, error)

	// Run contents, in report order
	GetRepositoryMetrics(ctx context.Context, runID string) ([]domain.RepositoryMetrics, error)
	GetIssueRecords(ctx context.Context, runID string) ([]domain.IssueRecord, error)
	GetFailures(ctx context.Context, runID string) ([]domain.Failure, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
