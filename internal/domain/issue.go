package domain

import "time"

// IssueSummary is an open issue as seen in the listing
type IssueSummary struct {
	Number    int
	Title     string
	URL       string
	CreatedAt time.Time
}

// Comment is a single issue comment
type Comment struct {
	Author    string
	CreatedAt time.Time
	Body      string
}

// IssueRecord is the issue-mode payload
type IssueRecord struct {
	Owner     string
	Repo      string
	Number    int
	Title     string
	URL       string
	CreatedAt time.Time
	Author    string
	State     string
	Labels    []string // API order
	Body      string
	Comments  []Comment // oldest first
}
