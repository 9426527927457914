package domain

import "time"

const (
	DefaultDescription = "No description available"
	DefaultLanguage    = "Unknown"
)

// Repository is an active repository found during discovery
type Repository struct {
	Owner       string
	Name        string
	FullName    string
	URL         string
	Stars       int
	Language    string
	Description string
	OpenIssues  int
	Forks       int
	PushedAt    time.Time
	Archived    bool
	Disabled    bool
}

// Metric names a sub-measurement of RepositoryMetrics
type Metric string

const (
	MetricCommits      Metric = "commits"
	MetricPRs          Metric = "prs"
	MetricContributors Metric = "contributors"
)

// RepositoryMetrics is the organization-mode payload for one repository
type RepositoryMetrics struct {
	Name             string
	FullName         string
	StarCount        int
	ContributorCount int
	URL              string
	PrimaryLanguage  string
	Description      string
	CommitsLast30d   int
	ClosedPRsLast30d int
	HealthScore      float64
	Partial          bool
	MissingMetrics   []Metric
	Forks            int
	OpenIssues       int
	PushedAt         time.Time
}

// IsPartial reports whether any metric was substituted
func (m RepositoryMetrics) IsPartial() bool {
	return m.Partial
}

// HealthScore is the mean of recent commits and recently closed pull requests.
func HealthScore(commits, closedPRs int) float64 {
	score := float64(commits+closedPRs) / 2
	if score < 0 {
		return 0
	}
	return score
}

// NormalizeDescription flattens newlines and fills in empty descriptions
func NormalizeDescription(desc string) string {
	out := make([]rune, 0, len(desc))
	for _, r := range desc {
		if r == '\n' || r == '\r' {
			r = ' '
		}
		out = append(out, r)
	}
	if s := string(out); s != "" {
		return s
	}
	return DefaultDescription
}

// NormalizeLanguage fills in an unknown primary language
func NormalizeLanguage(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}
