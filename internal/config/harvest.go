package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

const (
	DefaultOrgWorkers     = 5
	DefaultIssueWorkers   = 10
	DefaultBucketCount    = 10
	DefaultActivityDays   = 30
	DefaultIssueLimit     = 100
	DefaultCommitCap      = 1000
	DefaultPRCap          = 1000
	DefaultContributorCap = 100

	MaxWorkers = 50
	// WorkerWarningThreshold is the worker count above which secondary rate
	// limits become likely.
	WorkerWarningThreshold = 20
)

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)

// MissingPolicy decides what a 404 on a metric sub-call means
type MissingPolicy string

const (
	// PolicyZero substitutes zero and marks the record partial
	PolicyZero MissingPolicy = "zero"
	// PolicyFail fails the whole unit as not found
	PolicyFail MissingPolicy = "fail"
)

// MetricPolicy maps each sub-metric to its missing policy
type MetricPolicy map[domain.Metric]MissingPolicy

// DefaultMetricPolicy substitutes zero for every metric
func DefaultMetricPolicy() MetricPolicy {
	return MetricPolicy{
		domain.MetricCommits:      PolicyZero,
		domain.MetricPRs:          PolicyZero,
		domain.MetricContributors: PolicyZero,
	}
}

// For returns the policy for m, PolicyZero when unset
func (p MetricPolicy) For(m domain.Metric) MissingPolicy {
	if policy, ok := p[m]; ok {
		return policy
	}
	return PolicyZero
}

// ParseMetricPolicy parses "commits=zero,prs=fail,contributors=zero".
// Metrics not mentioned keep the default.
func ParseMetricPolicy(s string) (MetricPolicy, error) {
	policy := DefaultMetricPolicy()
	s = strings.TrimSpace(s)
	if s == "" {
		return policy, nil
	}

	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, &ConfigError{Field: "on-missing", Message: fmt.Sprintf("%q is not metric=policy", part)}
		}
		metric := domain.Metric(strings.TrimSpace(key))
		switch metric {
		case domain.MetricCommits, domain.MetricPRs, domain.MetricContributors:
		default:
			return nil, &ConfigError{Field: "on-missing", Message: fmt.Sprintf("unknown metric %q", key)}
		}
		mp := MissingPolicy(strings.TrimSpace(value))
		if mp != PolicyZero && mp != PolicyFail {
			return nil, &ConfigError{Field: "on-missing", Message: fmt.Sprintf("unknown policy %q", value)}
		}
		policy[metric] = mp
	}
	return policy, nil
}

// HarvestConfig holds the options of one organization run. It is validated
// once and then passed by value.
type HarvestConfig struct {
	OrgName            string
	BucketCount        int
	ActivityWindowDays int
	WorkerCount        int
	MaxWait            time.Duration
	MetricPolicy       MetricPolicy
	CommitCap          int
	PRCap              int
	ContributorCap     int
}

// DefaultHarvestConfig returns the defaults for org
func DefaultHarvestConfig(org string) HarvestConfig {
	return HarvestConfig{
		OrgName:            org,
		BucketCount:        DefaultBucketCount,
		ActivityWindowDays: DefaultActivityDays,
		WorkerCount:        DefaultOrgWorkers,
		MaxWait:            DefaultMaxWait,
		MetricPolicy:       DefaultMetricPolicy(),
		CommitCap:          DefaultCommitCap,
		PRCap:              DefaultPRCap,
		ContributorCap:     DefaultContributorCap,
	}
}

// Since returns the start of the activity window relative to now
func (c HarvestConfig) Since(now time.Time) time.Time {
	return now.AddDate(0, 0, -c.ActivityWindowDays)
}

// Validate validates the harvest options
func (c HarvestConfig) Validate() error {
	if !ownerPattern.MatchString(c.OrgName) {
		return &ConfigError{Field: "org", Message: fmt.Sprintf("invalid organization name %q", c.OrgName)}
	}
	if c.BucketCount < 1 {
		return &ConfigError{Field: "buckets", Message: "must be at least 1"}
	}
	if c.ActivityWindowDays < 1 {
		return &ConfigError{Field: "days", Message: "must be at least 1"}
	}
	if err := validateWorkers(c.WorkerCount); err != nil {
		return err
	}
	if c.MaxWait <= 0 {
		return &ConfigError{Field: "max-wait", Message: "must be positive"}
	}
	if c.CommitCap < 1 || c.PRCap < 1 || c.ContributorCap < 1 {
		return &ConfigError{Field: "caps", Message: "pagination caps must be at least 1"}
	}
	return nil
}

// IssueConfig holds the options of one issue run
type IssueConfig struct {
	Owner       string
	Repo        string
	Limit       int
	WorkerCount int
	MaxWait     time.Duration
}

// DefaultIssueConfig returns the defaults for owner/repo
func DefaultIssueConfig(owner, repo string) IssueConfig {
	return IssueConfig{
		Owner:       owner,
		Repo:        repo,
		Limit:       DefaultIssueLimit,
		WorkerCount: DefaultIssueWorkers,
		MaxWait:     DefaultMaxWait,
	}
}

// Validate validates the issue options
func (c IssueConfig) Validate() error {
	if !ownerPattern.MatchString(c.Owner) {
		return &ConfigError{Field: "owner", Message: fmt.Sprintf("invalid owner %q", c.Owner)}
	}
	if c.Repo == "" || strings.ContainsAny(c.Repo, "/ ") {
		return &ConfigError{Field: "repo", Message: fmt.Sprintf("invalid repository %q", c.Repo)}
	}
	if c.Limit < 1 || c.Limit > 1000 {
		return &ConfigError{Field: "limit", Message: "must be between 1 and 1000"}
	}
	if err := validateWorkers(c.WorkerCount); err != nil {
		return err
	}
	if c.MaxWait <= 0 {
		return &ConfigError{Field: "max-wait", Message: "must be positive"}
	}
	return nil
}

func validateWorkers(n int) error {
	if n < 1 || n > MaxWorkers {
		return &ConfigError{Field: "workers", Message: fmt.Sprintf("must be between 1 and %d", MaxWorkers)}
	}
	return nil
}
