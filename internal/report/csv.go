package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

var analysisHeader = []string{
	"repo", "star_count", "contributor_count", "github_url", "primary_language",
	"description", "commits_last_30d", "closed_pr_last_30d", "repo_health_score", "partial",
}

var bucketHeader = []string{
	"repo_name", "full_name", "github_url", "stars", "language",
	"description", "open_issues", "forks", "pushed_at",
}

// AnalysisFileName returns the analysis CSV name for org
func AnalysisFileName(org string) string {
	return "." + org + "_analysis.csv"
}

// BucketFileName returns the CSV name of bucket n (1-based)
func BucketFileName(n int) string {
	return fmt.Sprintf("org_bucket_%d.csv", n)
}

// WriteAnalysisCSV writes one row per repository in the given order
func WriteAnalysisCSV(w io.Writer, metrics []domain.RepositoryMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(analysisHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, m := range metrics {
		row := []string{
			m.Name,
			strconv.Itoa(m.StarCount),
			strconv.Itoa(m.ContributorCount),
			m.URL,
			domain.NormalizeLanguage(m.PrimaryLanguage),
			domain.NormalizeDescription(m.Description),
			strconv.Itoa(m.CommitsLast30d),
			strconv.Itoa(m.ClosedPRsLast30d),
			strconv.FormatFloat(m.HealthScore, 'f', 1, 64),
			strconv.FormatBool(m.Partial),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", m.FullName, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteBucketCSV writes the repositories of one bucket
func WriteBucketCSV(w io.Writer, repos []*domain.Repository) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(bucketHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range repos {
		row := []string{
			r.Name,
			r.FullName,
			r.URL,
			strconv.Itoa(r.Stars),
			domain.NormalizeLanguage(r.Language),
			domain.NormalizeDescription(r.Description),
			strconv.Itoa(r.OpenIssues),
			strconv.Itoa(r.Forks),
			r.PushedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", r.FullName, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
