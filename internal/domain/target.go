package domain

import (
	"fmt"
	"strings"
)

// TargetKind identifies what a harvest unit works on
type TargetKind string

const (
	TargetRepository TargetKind = "repository"
	TargetIssue      TargetKind = "issue"
)

// Target identifies a single unit of harvest work. Targets are fixed when a
// run starts and never change afterwards.
type Target struct {
	Kind   TargetKind
	Owner  string
	Repo   string
	Number int // issue number, zero for repositories
}

// RepositoryTarget creates a target for repository metrics
func RepositoryTarget(owner, repo string) Target {
	return Target{Kind: TargetRepository, Owner: owner, Repo: repo}
}

// IssueTarget creates a target for a single issue
func IssueTarget(owner, repo string, number int) Target {
	return Target{Kind: TargetIssue, Owner: owner, Repo: repo, Number: number}
}

// ID returns "owner/repo" for repositories and "owner/repo#n" for issues
func (t Target) ID() string {
	if t.Kind == TargetIssue {
		return fmt.Sprintf("%s/%s#%d", t.Owner, t.Repo, t.Number)
	}
	return t.Owner + "/" + t.Repo
}

func (t Target) String() string {
	return t.ID()
}

// CompareTargets orders targets by owner, repo, then number.
func CompareTargets(a, b Target) int {
	if c := strings.Compare(a.Owner, b.Owner); c != 0 {
		return c
	}
	if c := strings.Compare(a.Repo, b.Repo); c != 0 {
		return c
	}
	switch {
	case a.Number < b.Number:
		return -1
	case a.Number > b.Number:
		return 1
	}
	return 0
}

// ParseRepoPath splits "owner/repo" into its parts
func ParseRepoPath(path string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/repo", path)
	}
	return parts[0], parts[1], nil
}
