package aggregator

import (
	"sort"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// Finalize merges unit results into the ordered report. less orders two
// payloads; ties are broken by target order. The output depends only on the
// set of results, never on the order they arrived in, and
// Finalize(report.Results()) reproduces report.
func Finalize[T any](results []domain.UnitResult[T], less func(a, b T) bool) domain.HarvestReport[T] {
	report := domain.HarvestReport[T]{
		Successes: []domain.Record[T]{},
		Failures:  []domain.Failure{},
		Summary: domain.Summary{
			Total:  len(results),
			ByKind: make(map[domain.FailureKind]int),
		},
	}

	for _, r := range results {
		switch r.Outcome {
		case domain.OutcomeSuccess:
			report.Successes = append(report.Successes, domain.Record[T]{Target: r.Target, Value: r.Payload})
			if p, ok := any(r.Payload).(domain.Partialer); ok && p.IsPartial() {
				report.Summary.Partial++
			}
		case domain.OutcomeFailure:
			f := domain.Failure{Target: r.Target, Kind: domain.FailureInternal}
			if r.Failure != nil {
				f = *r.Failure
				f.Target = r.Target
			}
			report.Failures = append(report.Failures, f)
		default:
			report.Failures = append(report.Failures, domain.Failure{
				Target:  r.Target,
				Kind:    domain.FailureRateLimited,
				Message: "rate limited until " + r.ResetAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
	}

	sort.SliceStable(report.Successes, func(i, j int) bool {
		a, b := report.Successes[i], report.Successes[j]
		if less != nil {
			if less(a.Value, b.Value) {
				return true
			}
			if less(b.Value, a.Value) {
				return false
			}
		}
		return domain.CompareTargets(a.Target, b.Target) < 0
	})
	sort.SliceStable(report.Failures, func(i, j int) bool {
		return domain.CompareTargets(report.Failures[i].Target, report.Failures[j].Target) < 0
	})

	report.Summary.Succeeded = len(report.Successes)
	report.Summary.Failed = len(report.Failures)
	for _, f := range report.Failures {
		report.Summary.ByKind[f.Kind]++
	}
	return report
}

// ByHealthDesc orders repository metrics by health score, highest first
func ByHealthDesc(a, b domain.RepositoryMetrics) bool {
	return a.HealthScore > b.HealthScore
}

// ByCreatedDesc orders issues newest first
func ByCreatedDesc(a, b domain.IssueRecord) bool {
	return a.CreatedAt.After(b.CreatedAt)
}
