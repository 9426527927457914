package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

// fakeCollector serves canned data and errors keyed by "owner/repo".
type fakeCollector struct {
	mu sync.Mutex

	repos        []*domain.Repository
	details      map[string]*domain.Repository
	commits      map[string]int
	prs          map[string]int
	contributors map[string]int
	errs         map[string]error // keyed by "<call> owner/repo"

	issues   []domain.IssueSummary
	records  map[int]*domain.IssueRecord
	comments map[int][]domain.Comment

	calls map[string]int
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		details:      make(map[string]*domain.Repository),
		commits:      make(map[string]int),
		prs:          make(map[string]int),
		contributors: make(map[string]int),
		errs:         make(map[string]error),
		records:      make(map[int]*domain.IssueRecord),
		comments:     make(map[int][]domain.Comment),
		calls:        make(map[string]int),
	}
}

func (f *fakeCollector) addRepo(name string, commits, prs, contributors int) {
	r := &domain.Repository{
		Owner:       "octo",
		Name:        name,
		FullName:    "octo/" + name,
		URL:         "https://github.com/octo/" + name,
		Language:    "Go",
		Description: domain.DefaultDescription,
	}
	f.repos = append(f.repos, r)
	f.details[r.FullName] = r
	f.commits[r.FullName] = commits
	f.prs[r.FullName] = prs
	f.contributors[r.FullName] = contributors
}

func (f *fakeCollector) record(call, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[call+" "+key]++
	return f.errs[call+" "+key]
}

func (f *fakeCollector) callCount(call, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call+" "+key]
}

func (f *fakeCollector) ListOrgRepositories(_ context.Context, org string, _ time.Time) ([]*domain.Repository, error) {
	if err := f.record("repos", org); err != nil {
		return nil, err
	}
	return f.repos, nil
}

func (f *fakeCollector) GetRepository(_ context.Context, owner, repo string) (*domain.Repository, error) {
	key := owner + "/" + repo
	if err := f.record("detail", key); err != nil {
		return nil, err
	}
	r, ok := f.details[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("repository " + key)
	}
	return r, nil
}

func (f *fakeCollector) CountRecentCommits(_ context.Context, owner, repo string, _ time.Time, _ int) (int, error) {
	key := owner + "/" + repo
	if err := f.record("commits", key); err != nil {
		return 0, err
	}
	return f.commits[key], nil
}

func (f *fakeCollector) CountClosedPullRequests(_ context.Context, owner, repo string, _ time.Time, _ int) (int, error) {
	key := owner + "/" + repo
	if err := f.record("prs", key); err != nil {
		return 0, err
	}
	return f.prs[key], nil
}

func (f *fakeCollector) CountContributors(_ context.Context, owner, repo string, _ int) (int, error) {
	key := owner + "/" + repo
	if err := f.record("contributors", key); err != nil {
		return 0, err
	}
	return f.contributors[key], nil
}

func (f *fakeCollector) ListOpenIssues(_ context.Context, owner, repo string, limit int) ([]domain.IssueSummary, error) {
	if err := f.record("issues", owner+"/"+repo); err != nil {
		return nil, err
	}
	if len(f.issues) > limit {
		return f.issues[:limit], nil
	}
	return f.issues, nil
}

func (f *fakeCollector) GetIssue(_ context.Context, owner, repo string, number int) (*domain.IssueRecord, error) {
	key := fmt.Sprintf("%s/%s#%d", owner, repo, number)
	if err := f.record("issue", key); err != nil {
		return nil, err
	}
	rec, ok := f.records[number]
	if !ok {
		return nil, apperrors.NewNotFoundError("issue " + key)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeCollector) ListIssueComments(_ context.Context, owner, repo string, number int) ([]domain.Comment, error) {
	key := fmt.Sprintf("%s/%s#%d", owner, repo, number)
	if err := f.record("comments", key); err != nil {
		return nil, err
	}
	return append([]domain.Comment(nil), f.comments[number]...), nil
}

// fakeBudget is a settable BudgetSource
type fakeBudget struct {
	mu sync.Mutex
	b  domain.RateBudget
}

func (f *fakeBudget) Budget() domain.RateBudget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.b
}

func (f *fakeBudget) set(b domain.RateBudget) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.b = b
}
