package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
	"github.com/kurihiro0119/bucket-harvest/internal/storage"
)

var stamp = time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

func newTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "harvest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func orgRun(owner string, startedAt time.Time) *domain.HarvestRun {
	run := domain.NewHarvestRun(domain.ModeOrganization, owner, "", startedAt)
	run.Finish(domain.Summary{Total: 3, Succeeded: 2, Failed: 1, Partial: 1,
		ByKind: map[domain.FailureKind]int{domain.FailureNotFound: 1}}, startedAt.Add(time.Minute))
	return run
}

func TestSaveAndLoadOrganizationRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	run := orgRun("octo", stamp)
	archive := storage.RunArchive{
		Repositories: []domain.RepositoryMetrics{
			{Name: "hello", FullName: "octo/hello", StarCount: 12, URL: "https://github.com/octo/hello",
				PrimaryLanguage: "Go", Description: "hi", CommitsLast30d: 10, ClosedPRsLast30d: 4, HealthScore: 7,
				PushedAt: stamp},
			{Name: "docs", FullName: "octo/docs", PrimaryLanguage: "Unknown", Description: "No description available",
				Partial: true, MissingMetrics: []domain.Metric{domain.MetricPRs}, PushedAt: stamp},
		},
		Failures: []domain.Failure{
			{Target: domain.RepositoryTarget("octo", "gone"), Kind: domain.FailureNotFound, Message: "not found"},
		},
	}
	require.NoError(t, s.SaveRun(ctx, run, archive))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeOrganization, got.Mode)
	assert.Equal(t, domain.StatusPartial, got.Status)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Partial)
	assert.True(t, got.StartedAt.Equal(stamp))

	metrics, err := s.GetRepositoryMetrics(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, "octo/hello", metrics[0].FullName)
	assert.Equal(t, 7.0, metrics[0].HealthScore)
	assert.True(t, metrics[0].PushedAt.Equal(stamp))
	assert.True(t, metrics[1].Partial)
	assert.Equal(t, []domain.Metric{domain.MetricPRs}, metrics[1].MissingMetrics)

	failures, err := s.GetFailures(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, archive.Failures, failures)
}

func TestSaveRunReplacesContents(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	run := orgRun("octo", stamp)
	require.NoError(t, s.SaveRun(ctx, run, storage.RunArchive{
		Repositories: []domain.RepositoryMetrics{{Name: "a", FullName: "octo/a", PushedAt: stamp}},
	}))
	require.NoError(t, s.SaveRun(ctx, run, storage.RunArchive{
		Repositories: []domain.RepositoryMetrics{{Name: "b", FullName: "octo/b", PushedAt: stamp}},
	}))

	metrics, err := s.GetRepositoryMetrics(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "octo/b", metrics[0].FullName)
}

func TestIssueRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	run := domain.NewHarvestRun(domain.ModeIssues, "octo", "hello", stamp)
	run.Finish(domain.Summary{Total: 1, Succeeded: 1}, stamp.Add(time.Second))
	rec := domain.IssueRecord{
		Owner: "octo", Repo: "hello", Number: 42, Title: "Crash", URL: "https://github.com/octo/hello/issues/42",
		CreatedAt: stamp, Author: "reporter", State: "open", Labels: []string{"bug"}, Body: "boom",
		Comments: []domain.Comment{{Author: "a", CreatedAt: stamp.Add(time.Hour), Body: "same"}},
	}
	require.NoError(t, s.SaveRun(ctx, run, storage.RunArchive{Issues: []domain.IssueRecord{rec}}))

	issues, err := s.GetIssueRecords(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Crash", issues[0].Title)
	assert.Equal(t, []string{"bug"}, issues[0].Labels)
	require.Len(t, issues[0].Comments, 1)
	assert.Equal(t, "same", issues[0].Comments[0].Body)
	assert.True(t, issues[0].CreatedAt.Equal(stamp))
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	older := orgRun("octo", stamp)
	newer := orgRun("octo", stamp.Add(time.Hour))
	other := orgRun("acme", stamp.Add(2*time.Hour))
	for _, r := range []*domain.HarvestRun{older, newer, other} {
		require.NoError(t, s.SaveRun(ctx, r, storage.RunArchive{}))
	}

	runs, err := s.ListRuns(ctx, "octo", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)

	runs, err = s.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, other.ID, runs[0].ID)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
