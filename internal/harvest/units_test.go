package harvest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

func newRepoUnit(f *fakeCollector, policy config.MetricPolicy) *RepositoryUnit {
	cfg := config.DefaultHarvestConfig("octo")
	if policy != nil {
		cfg.MetricPolicy = policy
	}
	u := NewRepositoryUnit(f, cfg, cfg.Since(testNow))
	u.now = func() time.Time { return testNow }
	return u
}

func TestRepositoryUnitComputesHealth(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	f.addRepo("hello", 284, 156, 12)

	res := newRepoUnit(f, nil).Execute(context.Background(), domain.RepositoryTarget("octo", "hello"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)

	m := res.Payload
	assert.Equal(t, 220.0, m.HealthScore)
	assert.Equal(t, 284, m.CommitsLast30d)
	assert.Equal(t, 156, m.ClosedPRsLast30d)
	assert.Equal(t, 12, m.ContributorCount)
	assert.False(t, m.Partial)
	assert.Empty(t, m.MissingMetrics)
}

func TestRepositoryUnitZeroActivity(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	f.addRepo("quiet", 0, 0, 0)

	res := newRepoUnit(f, nil).Execute(context.Background(), domain.RepositoryTarget("octo", "quiet"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0.0, res.Payload.HealthScore)
}

func TestRepositoryUnitCommitsNotFoundCountsZero(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	f.addRepo("hello", 50, 10, 3)
	f.errs["commits octo/hello"] = apperrors.NewNotFoundError("commits")

	res := newRepoUnit(f, nil).Execute(context.Background(), domain.RepositoryTarget("octo", "hello"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)

	m := res.Payload
	assert.Equal(t, 0, m.CommitsLast30d)
	assert.Equal(t, 10, m.ClosedPRsLast30d)
	assert.Equal(t, 5.0, m.HealthScore)
	assert.True(t, m.Partial)
	assert.Equal(t, []domain.Metric{domain.MetricCommits}, m.MissingMetrics)
}

func TestRepositoryUnitFailPolicy(t *testing.T) {
	t.Parallel()

	policy, err := config.ParseMetricPolicy("prs=fail")
	require.NoError(t, err)

	f := newFakeCollector()
	f.addRepo("hello", 50, 10, 3)
	f.errs["prs octo/hello"] = apperrors.NewNotFoundError("pulls")

	res := newRepoUnit(f, policy).Execute(context.Background(), domain.RepositoryTarget("octo", "hello"))
	require.Equal(t, domain.OutcomeFailure, res.Outcome)
	assert.Equal(t, domain.FailureNotFound, res.Failure.Kind)
	assert.Zero(t, f.callCount("contributors", "octo/hello"))
}

func TestRepositoryUnitDetailNotFound(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	target := domain.RepositoryTarget("octo", "gone")

	res := newRepoUnit(f, nil).Execute(context.Background(), target)
	require.Equal(t, domain.OutcomeFailure, res.Outcome)
	assert.Equal(t, domain.FailureNotFound, res.Failure.Kind)
	assert.Equal(t, target, res.Failure.Target)
	assert.Zero(t, f.callCount("commits", "octo/gone"))
}

func TestRepositoryUnitOtherFailures(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	f.addRepo("flaky", 1, 1, 1)
	f.addRepo("limited", 1, 1, 1)
	f.errs["contributors octo/flaky"] = apperrors.NewTransientError("contributors", nil)
	reset := testNow.Add(3 * time.Minute)
	f.errs["prs octo/limited"] = apperrors.NewRateLimitedError("exhausted", reset)

	u := newRepoUnit(f, nil)

	res := u.Execute(context.Background(), domain.RepositoryTarget("octo", "flaky"))
	require.Equal(t, domain.OutcomeFailure, res.Outcome)
	assert.Equal(t, domain.FailureTransient, res.Failure.Kind)

	res = u.Execute(context.Background(), domain.RepositoryTarget("octo", "limited"))
	require.Equal(t, domain.OutcomeRateLimited, res.Outcome)
	assert.Equal(t, 3*time.Minute, res.RetryAfter)
	assert.Equal(t, reset, res.ResetAt)
}

func TestIssueUnitSortsComments(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	f.records[7] = &domain.IssueRecord{Owner: "octo", Repo: "hello", Number: 7, Title: "Crash", Labels: []string{"bug", "p1"}}
	f.comments[7] = []domain.Comment{
		{Author: "c", CreatedAt: testNow.Add(3 * time.Hour), Body: "third"},
		{Author: "a", CreatedAt: testNow.Add(time.Hour), Body: "first"},
		{Author: "b", CreatedAt: testNow.Add(2 * time.Hour), Body: "second"},
	}

	res := NewIssueUnit(f).Execute(context.Background(), domain.IssueTarget("octo", "hello", 7))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)

	var bodies []string
	for _, c := range res.Payload.Comments {
		bodies = append(bodies, c.Body)
	}
	assert.Equal(t, []string{"first", "second", "third"}, bodies)
	assert.Equal(t, []string{"bug", "p1"}, res.Payload.Labels)
}

func TestIssueUnitMissingComments(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	f.records[8] = &domain.IssueRecord{Number: 8}
	f.errs["comments octo/hello#8"] = apperrors.NewNotFoundError("comments")

	res := NewIssueUnit(f).Execute(context.Background(), domain.IssueTarget("octo", "hello", 8))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.NotNil(t, res.Payload.Comments)
	assert.Empty(t, res.Payload.Comments)
}

func TestIssueUnitNotFound(t *testing.T) {
	t.Parallel()

	res := NewIssueUnit(newFakeCollector()).Execute(context.Background(), domain.IssueTarget("octo", "hello", 9))
	require.Equal(t, domain.OutcomeFailure, res.Outcome)
	assert.Equal(t, domain.FailureNotFound, res.Failure.Kind)
}
