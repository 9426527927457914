package aggregator

import (
	"sort"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// LanguageCount is the number of repositories using a primary language
type LanguageCount struct {
	Language string
	Count    int
}

// OrgStats holds organization-level totals over the harvested repositories
type OrgStats struct {
	Repositories  int
	TotalStars    int
	TotalCommits  int
	TotalClosed   int
	AverageHealth float64
	Languages     []LanguageCount // most used first
}

// AggregateOrgStats computes organization totals from metrics
func AggregateOrgStats(metrics []domain.RepositoryMetrics) OrgStats {
	stats := OrgStats{Repositories: len(metrics)}
	if len(metrics) == 0 {
		return stats
	}

	langs := make(map[string]int)
	var health float64
	for _, m := range metrics {
		stats.TotalStars += m.StarCount
		stats.TotalCommits += m.CommitsLast30d
		stats.TotalClosed += m.ClosedPRsLast30d
		health += m.HealthScore
		langs[domain.NormalizeLanguage(m.PrimaryLanguage)]++
	}
	stats.AverageHealth = health / float64(len(metrics))

	for lang, n := range langs {
		stats.Languages = append(stats.Languages, LanguageCount{Language: lang, Count: n})
	}
	sort.Slice(stats.Languages, func(i, j int) bool {
		if stats.Languages[i].Count != stats.Languages[j].Count {
			return stats.Languages[i].Count > stats.Languages[j].Count
		}
		return stats.Languages[i].Language < stats.Languages[j].Language
	})
	return stats
}

// TopLanguages returns at most n entries of s.Languages
func (s OrgStats) TopLanguages(n int) []LanguageCount {
	if len(s.Languages) <= n {
		return s.Languages
	}
	return s.Languages[:n]
}
