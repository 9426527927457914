package collector

import (
	"context"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// Collector defines the remote calls a harvest makes. Every method goes
// through the shared RateLimiter and returns *errors.AppError values on
// failure.
type Collector interface {
	// ListOrgRepositories returns active repositories pushed at or after
	// activeSince, newest push first. Archived and disabled ones are skipped.
	ListOrgRepositories(ctx context.Context, org string, activeSince time.Time) ([]*domain.Repository, error)

	// GetRepository retrieves repository details
	GetRepository(ctx context.Context, owner, repo string) (*domain.Repository, error)

	// CountRecentCommits counts commits since the given time, up to limit
	CountRecentCommits(ctx context.Context, owner, repo string, since time.Time, limit int) (int, error)

	// CountClosedPullRequests counts pull requests closed since the given time, up to limit
	CountClosedPullRequests(ctx context.Context, owner, repo string, since time.Time, limit int) (int, error)

	// CountContributors counts contributors, up to limit
	CountContributors(ctx context.Context, owner, repo string, limit int) (int, error)

	// ListOpenIssues returns up to limit open issues, newest first, without pull requests
	ListOpenIssues(ctx context.Context, owner, repo string, limit int) ([]domain.IssueSummary, error)

	// GetIssue retrieves a single issue without its comments
	GetIssue(ctx context.Context, owner, repo string, number int) (*domain.IssueRecord, error)

	// ListIssueComments retrieves every comment of an issue in API order
	ListIssueComments(ctx context.Context, owner, repo string, number int) ([]domain.Comment, error)
}
