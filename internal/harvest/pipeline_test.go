package harvest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

func TestRunOrganization(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	f.addRepo("low", 2, 0, 1)
	f.addRepo("high", 284, 156, 10)
	f.addRepo("mid", 20, 20, 4)
	f.repos = append(f.repos, &domain.Repository{Owner: "octo", Name: "vanished", FullName: "octo/vanished"})

	p := &Pipeline{Collector: f, Budget: &fakeBudget{b: domain.RateBudget{Remaining: 100, Limit: 5000}}, Now: func() time.Time { return testNow }}
	cfg := config.DefaultHarvestConfig("octo")
	cfg.WorkerCount = 2

	res, err := p.RunOrganization(context.Background(), cfg)
	require.NoError(t, err)

	var order []string
	for _, m := range res.Report.Values() {
		order = append(order, m.Name)
	}
	assert.Equal(t, []string{"high", "mid", "low"}, order)
	require.Len(t, res.Report.Failures, 1)
	assert.Equal(t, "octo/vanished", res.Report.Failures[0].Target.ID())
	assert.Equal(t, domain.FailureNotFound, res.Report.Failures[0].Kind)

	assert.Len(t, res.Repositories, 4)
	assert.Equal(t, domain.StatusPartial, res.Run.Status)
	assert.Equal(t, 4, res.Run.Total)
	assert.Equal(t, 3, res.Run.Succeeded)
}

func TestRunOrganizationDiscoveryFailure(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	f.errs["repos octo"] = apperrors.NewUnauthorizedError("list repositories", nil)

	p := &Pipeline{Collector: f, Budget: &fakeBudget{}}
	_, err := p.RunOrganization(context.Background(), config.DefaultHarvestConfig("octo"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
}

func TestRunOrganizationRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	cfg := config.DefaultHarvestConfig("octo")
	cfg.WorkerCount = 0

	_, err := (&Pipeline{Collector: f, Budget: &fakeBudget{}}).RunOrganization(context.Background(), cfg)
	require.Error(t, err)
	assert.Zero(t, f.callCount("repos", "octo"))
}

func TestRunIssuesNewestFirst(t *testing.T) {
	t.Parallel()

	f := newFakeCollector()
	// Listing is already free of pull requests and newest first.
	for i := 0; i < 100; i++ {
		n := 200 - i
		created := testNow.Add(-time.Duration(i) * time.Hour)
		f.issues = append(f.issues, domain.IssueSummary{Number: n, CreatedAt: created})
		f.records[n] = &domain.IssueRecord{Owner: "octo", Repo: "hello", Number: n, Title: fmt.Sprintf("issue %d", n), CreatedAt: created}
	}

	p := &Pipeline{Collector: f, Budget: &fakeBudget{b: domain.RateBudget{Remaining: 5000, Limit: 5000}}}
	res, err := p.RunIssues(context.Background(), config.DefaultIssueConfig("octo", "hello"))
	require.NoError(t, err)

	records := res.Report.Values()
	require.Len(t, records, 100)
	for i := 1; i < len(records); i++ {
		assert.True(t, records[i-1].CreatedAt.After(records[i].CreatedAt))
	}
	assert.Equal(t, 200, records[0].Number)
	assert.Equal(t, domain.StatusCompleted, res.Run.Status)
	assert.Equal(t, domain.ModeIssues, res.Run.Mode)
}

func TestPartition(t *testing.T) {
	t.Parallel()

	repos := make([]*domain.Repository, 23)
	for i := range repos {
		repos[i] = &domain.Repository{Name: fmt.Sprintf("r%d", i)}
	}

	buckets := Partition(repos, 10)
	require.Len(t, buckets, 8)
	total := 0
	for i, b := range buckets {
		if i < len(buckets)-1 {
			assert.Len(t, b, 3)
		}
		total += len(b)
	}
	assert.Equal(t, 23, total)
	assert.Len(t, buckets[7], 2)
	assert.Equal(t, "r0", buckets[0][0].Name)

	assert.Len(t, Partition(repos, 1), 1)
	assert.Len(t, Partition(repos[:5], 10), 5)
	assert.Nil(t, Partition(nil, 3))
	assert.Nil(t, Partition(repos, 0))
}
