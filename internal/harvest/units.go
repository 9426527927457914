package harvest

import (
	"context"
	"sort"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/collector"
	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

// RepositoryUnit computes RepositoryMetrics for repository targets
type RepositoryUnit struct {
	collector collector.Collector
	cfg       config.HarvestConfig
	since     time.Time
	now       func() time.Time
}

// NewRepositoryUnit creates the organization-mode unit. since is the start
// of the activity window.
func NewRepositoryUnit(c collector.Collector, cfg config.HarvestConfig, since time.Time) *RepositoryUnit {
	return &RepositoryUnit{collector: c, cfg: cfg, since: since, now: time.Now}
}

// Execute fetches details, commits, closed pull requests and contributors in turn
func (u *RepositoryUnit) Execute(ctx context.Context, t domain.Target) domain.UnitResult[domain.RepositoryMetrics] {
	repo, err := u.collector.GetRepository(ctx, t.Owner, t.Repo)
	if err != nil {
		return resultFromError[domain.RepositoryMetrics](t, err, u.now())
	}

	m := domain.RepositoryMetrics{
		Name:            repo.Name,
		FullName:        repo.FullName,
		StarCount:       repo.Stars,
		URL:             repo.URL,
		PrimaryLanguage: repo.Language,
		Description:     repo.Description,
		Forks:           repo.Forks,
		OpenIssues:      repo.OpenIssues,
		PushedAt:        repo.PushedAt,
	}

	steps := []struct {
		metric domain.Metric
		dst    *int
		fetch  func() (int, error)
	}{
		{domain.MetricCommits, &m.CommitsLast30d, func() (int, error) {
			return u.collector.CountRecentCommits(ctx, t.Owner, t.Repo, u.since, u.cfg.CommitCap)
		}},
		{domain.MetricPRs, &m.ClosedPRsLast30d, func() (int, error) {
			return u.collector.CountClosedPullRequests(ctx, t.Owner, t.Repo, u.since, u.cfg.PRCap)
		}},
		{domain.MetricContributors, &m.ContributorCount, func() (int, error) {
			return u.collector.CountContributors(ctx, t.Owner, t.Repo, u.cfg.ContributorCap)
		}},
	}

	for _, step := range steps {
		n, err := step.fetch()
		if err == nil {
			*step.dst = n
			continue
		}
		if apperrors.IsNotFound(err) && u.cfg.MetricPolicy.For(step.metric) == config.PolicyZero {
			*step.dst = 0
			m.Partial = true
			m.MissingMetrics = append(m.MissingMetrics, step.metric)
			continue
		}
		return resultFromError[domain.RepositoryMetrics](t, err, u.now())
	}

	m.HealthScore = domain.HealthScore(m.CommitsLast30d, m.ClosedPRsLast30d)
	return domain.Succeeded(t, m)
}

// IssueUnit collects an issue with its full comment thread
type IssueUnit struct {
	collector collector.Collector
	now       func() time.Time
}

// NewIssueUnit creates the issue-mode unit
func NewIssueUnit(c collector.Collector) *IssueUnit {
	return &IssueUnit{collector: c, now: time.Now}
}

// Execute fetches the issue and every page of its comments
func (u *IssueUnit) Execute(ctx context.Context, t domain.Target) domain.UnitResult[domain.IssueRecord] {
	issue, err := u.collector.GetIssue(ctx, t.Owner, t.Repo, t.Number)
	if err != nil {
		return resultFromError[domain.IssueRecord](t, err, u.now())
	}

	comments, err := u.collector.ListIssueComments(ctx, t.Owner, t.Repo, t.Number)
	switch {
	case apperrors.IsNotFound(err):
		comments = []domain.Comment{}
	case err != nil:
		return resultFromError[domain.IssueRecord](t, err, u.now())
	}

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	issue.Comments = comments
	return domain.Succeeded(t, *issue)
}

// resultFromError maps a collector error onto a unit result
func resultFromError[T any](t domain.Target, err error, now time.Time) domain.UnitResult[T] {
	if resetAt, ok := apperrors.ResetAt(err); ok {
		retryAfter := resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return domain.RateLimited[T](t, retryAfter, resetAt)
	}
	return domain.Failed[T](t, failureKind(apperrors.CodeOf(err)), err.Error())
}

func failureKind(code apperrors.ErrCode) domain.FailureKind {
	switch code {
	case apperrors.ErrCodeNotFound:
		return domain.FailureNotFound
	case apperrors.ErrCodeTransient:
		return domain.FailureTransient
	case apperrors.ErrCodeRateLimited:
		return domain.FailureRateLimited
	case apperrors.ErrCodeAborted:
		return domain.FailureAborted
	case apperrors.ErrCodeUnauthorized:
		return domain.FailureUnauthorized
	}
	return domain.FailureInternal
}
