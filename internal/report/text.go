package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/aggregator"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

const (
	BucketSummaryFileName     = "org_bucket_summary.txt"
	ProcessingReportFileName  = "processing_report.txt"
	CollectionSummaryFileName = "collection_summary.txt"

	timestampLayout = "2006-01-02 15:04:05"
)

// BucketSummary describes a discovery run
type BucketSummary struct {
	Org       string
	CreatedAt time.Time
	Cutoff    time.Time
	Days      int
	Repos     []*domain.Repository
	Buckets   [][]*domain.Repository
}

// WriteBucketSummary writes org_bucket_summary.txt
func WriteBucketSummary(w io.Writer, s BucketSummary) error {
	bw := bufio.NewWriter(w)

	title := s.Org + " Organization Repository Buckets"
	fmt.Fprintln(bw, title)
	fmt.Fprintf(bw, "%s\n\n", strings.Repeat("=", len(title)))
	fmt.Fprintf(bw, "Created: %s\n", s.CreatedAt.Format(timestampLayout))
	fmt.Fprintf(bw, "Organization: %s\n", s.Org)
	fmt.Fprintf(bw, "Activity cutoff: %s (%d days ago)\n", s.Cutoff.Format("2006-01-02"), s.Days)
	fmt.Fprintf(bw, "Total active repositories: %d\n", len(s.Repos))
	fmt.Fprintf(bw, "Number of buckets: %d\n", len(s.Buckets))
	if len(s.Buckets) > 0 {
		fmt.Fprintf(bw, "Bucket size: up to %d repos each\n", len(s.Buckets[0]))
	}
	fmt.Fprintln(bw)

	if len(s.Repos) > 0 {
		stars := 0
		langs := make(map[string]int)
		for _, r := range s.Repos {
			stars += r.Stars
			langs[domain.NormalizeLanguage(r.Language)]++
		}
		fmt.Fprintln(bw, "Repository Statistics:")
		fmt.Fprintf(bw, "- Total stars across all repos: %d\n", stars)
		fmt.Fprintf(bw, "- Average stars per repo: %.1f\n", float64(stars)/float64(len(s.Repos)))
		fmt.Fprintln(bw, "- Most common languages:")
		for _, lc := range topCounts(langs, 5) {
			fmt.Fprintf(bw, "  * %s: %d repos\n", lc.Language, lc.Count)
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, "Bucket files created:")
	for i, b := range s.Buckets {
		fmt.Fprintf(bw, "  * %s: %d repositories\n", BucketFileName(i+1), len(b))
	}
	fmt.Fprintf(bw, "\nRun `bucket-harvest org %s` to collect metrics into %s\n", s.Org, AnalysisFileName(s.Org))

	return bw.Flush()
}

// ProcessingReport describes a finished organization run
type ProcessingReport struct {
	Org         string
	ProcessedAt time.Time
	Elapsed     time.Duration
	Workers     int
	Report      domain.HarvestReport[domain.RepositoryMetrics]
}

// WriteProcessingReport writes processing_report.txt
func WriteProcessingReport(w io.Writer, p ProcessingReport) error {
	bw := bufio.NewWriter(w)
	metrics := p.Report.Values()
	stats := aggregator.AggregateOrgStats(metrics)
	sum := p.Report.Summary

	title := p.Org + " Organization Analysis Report"
	fmt.Fprintln(bw, title)
	fmt.Fprintf(bw, "%s\n\n", strings.Repeat("=", len(title)))

	fmt.Fprintln(bw, "Processing Details:")
	fmt.Fprintf(bw, "- Processed: %s\n", p.ProcessedAt.Format(timestampLayout))
	fmt.Fprintf(bw, "- Organization: %s\n", p.Org)
	fmt.Fprintf(bw, "- Processing time: %.2f seconds\n", p.Elapsed.Seconds())
	fmt.Fprintf(bw, "- Max workers: %d\n\n", p.Workers)

	fmt.Fprintln(bw, "Repository Statistics:")
	fmt.Fprintf(bw, "- Total repositories: %d\n", sum.Total)
	fmt.Fprintf(bw, "- Successfully processed: %d\n", sum.Succeeded)
	fmt.Fprintf(bw, "- Partial records: %d\n", sum.Partial)
	fmt.Fprintf(bw, "- Failed to process: %d\n", sum.Failed)
	fmt.Fprintf(bw, "- Success rate: %.1f%%\n", sum.SuccessRate())
	writeFailureKinds(bw, sum)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Metrics Summary:")
	fmt.Fprintf(bw, "- Total stars: %d\n", stats.TotalStars)
	fmt.Fprintf(bw, "- Total commits (30d): %d\n", stats.TotalCommits)
	fmt.Fprintf(bw, "- Total closed PRs (30d): %d\n", stats.TotalClosed)
	fmt.Fprintf(bw, "- Average health score: %.2f\n\n", stats.AverageHealth)

	fmt.Fprintln(bw, "Top Programming Languages:")
	for _, lc := range stats.TopLanguages(10) {
		fmt.Fprintf(bw, "  * %s: %d repos (%.1f%%)\n", lc.Language, lc.Count, float64(lc.Count)/float64(stats.Repositories)*100)
	}

	fmt.Fprintln(bw, "\nTop 10 Repositories by Health Score:")
	for i, m := range metrics {
		if i == 10 {
			break
		}
		fmt.Fprintf(bw, "  %2d. %s (Health: %.1f, Stars: %d)\n", i+1, m.Name, m.HealthScore, m.StarCount)
	}

	if len(p.Report.Failures) > 0 {
		fmt.Fprintln(bw, "\nFailures:")
		for _, f := range p.Report.Failures {
			fmt.Fprintf(bw, "  - %s [%s] %s\n", f.Target.ID(), f.Kind, f.Message)
		}
	}

	return bw.Flush()
}

// CollectionSummary describes a finished issue run
type CollectionSummary struct {
	Repo      string
	CreatedAt time.Time
	Limit     int
	OutputDir string
	Summary   domain.Summary
}

// WriteCollectionSummary writes collection_summary.txt
func WriteCollectionSummary(w io.Writer, s CollectionSummary) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "GitHub Recent Issues Collection Summary")
	fmt.Fprintf(bw, "=======================================\n\n")
	fmt.Fprintf(bw, "Repository: %s\n", s.Repo)
	fmt.Fprintf(bw, "Created: %s\n", s.CreatedAt.Format(timestampLayout))
	fmt.Fprintf(bw, "Strategy: %d most recent open issues\n", s.Limit)
	fmt.Fprintf(bw, "Total processed: %d\n", s.Summary.Succeeded)
	fmt.Fprintf(bw, "Total failed: %d\n", s.Summary.Failed)
	fmt.Fprintf(bw, "Success rate: %.1f%%\n", s.Summary.SuccessRate())
	writeFailureKinds(bw, s.Summary)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Output:")
	fmt.Fprintf(bw, "- Directory: %s/\n", s.OutputDir)
	fmt.Fprintf(bw, "- Files: %d individual .md files\n", s.Summary.Total)
	fmt.Fprintln(bw, "- Format: <issue number>.md (e.g., 1234.md)")

	return bw.Flush()
}

func writeFailureKinds(w io.Writer, s domain.Summary) {
	if len(s.ByKind) == 0 {
		return
	}
	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	fmt.Fprintln(w, "- Failures by reason:")
	for _, k := range kinds {
		fmt.Fprintf(w, "  * %s: %d\n", k, s.ByKind[domain.FailureKind(k)])
	}
}

func topCounts(counts map[string]int, n int) []aggregator.LanguageCount {
	out := make([]aggregator.LanguageCount, 0, len(counts))
	for lang, c := range counts {
		out = append(out, aggregator.LanguageCount{Language: lang, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Language < out[j].Language
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
