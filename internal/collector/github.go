package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

const perPage = 100

// githubCollector implements Collector using GitHub API
type githubCollector struct {
	client  *github.Client
	limiter *RateLimiter
	backoff Backoff
	sleep   sleepFunc
	now     func() time.Time
}

// Option configures the GitHub collector
type Option func(*collectorOptions)

type collectorOptions struct {
	baseURL    string
	httpClient *http.Client
	backoff    Backoff
	sleep      sleepFunc
	now        func() time.Time
}

// WithBaseURL points the collector at a GitHub Enterprise or test server
func WithBaseURL(u string) Option {
	return func(o *collectorOptions) { o.baseURL = u }
}

// WithHTTPClient sets the client the oauth2 transport wraps
func WithHTTPClient(c *http.Client) Option {
	return func(o *collectorOptions) { o.httpClient = c }
}

// WithBackoff replaces the retry schedule
func WithBackoff(b Backoff) Option {
	return func(o *collectorOptions) { o.backoff = b }
}

// WithRetrySleep replaces the sleep used between retries
func WithRetrySleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *collectorOptions) { o.sleep = sleep }
}

// WithNow replaces the clock used for Retry-After arithmetic
func WithNow(now func() time.Time) Option {
	return func(o *collectorOptions) { o.now = now }
}

// NewGitHubCollector creates a new GitHub collector sharing limiter
func NewGitHubCollector(token string, limiter *RateLimiter, opts ...Option) (Collector, error) {
	o := collectorOptions{
		backoff: DefaultBackoff(),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if token != "" {
		ctx := context.Background()
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		hc = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(hc)

	if o.baseURL != "" {
		base := o.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", o.baseURL, err)
		}
		client.BaseURL = u
	}

	if limiter == nil {
		limiter = NewRateLimiter()
	}

	return &githubCollector{
		client:  client,
		limiter: limiter,
		backoff: o.backoff,
		sleep:   o.sleep,
		now:     o.now,
	}, nil
}

// do runs one remote call: acquire budget, call, record headers, classify,
// and retry transient failures.
func (c *githubCollector) do(ctx context.Context, op string, call func() (*github.Response, error)) (*github.Response, error) {
	var resp *github.Response
	err := doWithRetry(ctx, c.backoff, c.sleep, func() error {
		if err := c.limiter.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return c.classifyError(op, err)
			}
			return err
		}

		r, err := call()
		resp = r
		c.updateRateLimitFromResponse(r)
		if err != nil {
			return c.classifyError(op, err)
		}
		return nil
	})
	return resp, err
}

// updateRateLimitFromResponse updates the limiter only when the response
// carried rate limit headers.
func (c *githubCollector) updateRateLimitFromResponse(resp *github.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	if resp.Header.Get(headerRateRemaining) == "" {
		return
	}
	c.limiter.Update(resp.Rate.Remaining, resp.Rate.Limit, resp.Rate.Reset.Time)
}

// paginate fetches pages until there is no next page or visit returns false.
func paginate[T any](ctx context.Context, c *githubCollector, op string, list func(page int) ([]T, *github.Response, error), visit func(item T) bool) error {
	page := 0
	for {
		var items []T
		resp, err := c.do(ctx, op, func() (*github.Response, error) {
			var r *github.Response
			var err error
			items, r, err = list(page)
			return r, err
		})
		if err != nil {
			return err
		}

		for _, item := range items {
			if !visit(item) {
				return nil
			}
		}

		if resp == nil || resp.NextPage == 0 {
			return nil
		}
		page = resp.NextPage
	}
}

// ListOrgRepositories retrieves active repositories for an organization
func (c *githubCollector) ListOrgRepositories(ctx context.Context, org string, activeSince time.Time) ([]*domain.Repository, error) {
	var repos []*domain.Repository
	opts := &github.RepositoryListByOrgOptions{
		Type:        "all",
		Sort:        "pushed",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	err := paginate(ctx, c, "list repositories of "+org,
		func(page int) ([]*github.Repository, *github.Response, error) {
			opts.Page = page
			return c.client.Repositories.ListByOrg(ctx, org, opts)
		},
		func(r *github.Repository) bool {
			if r.GetArchived() || r.GetDisabled() {
				return true
			}
			pushedAt := r.GetPushedAt().Time
			if pushedAt.IsZero() {
				return true
			}
			// Sorted by push time, so everything after this is older still.
			if pushedAt.Before(activeSince) {
				return false
			}
			repos = append(repos, toRepository(org, r))
			return true
		})
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// GetRepository retrieves repository details
func (c *githubCollector) GetRepository(ctx context.Context, owner, repo string) (*domain.Repository, error) {
	var r *github.Repository
	_, err := c.do(ctx, fmt.Sprintf("get repository %s/%s", owner, repo), func() (*github.Response, error) {
		var resp *github.Response
		var err error
		r, resp, err = c.client.Repositories.Get(ctx, owner, repo)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return toRepository(owner, r), nil
}

// CountRecentCommits counts commits since the given time
func (c *githubCollector) CountRecentCommits(ctx context.Context, owner, repo string, since time.Time, limit int) (int, error) {
	count := 0
	opts := &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	err := paginate(ctx, c, fmt.Sprintf("list commits of %s/%s", owner, repo),
		func(page int) ([]*github.RepositoryCommit, *github.Response, error) {
			opts.Page = page
			return c.client.Repositories.ListCommits(ctx, owner, repo, opts)
		},
		func(*github.RepositoryCommit) bool {
			count++
			return count < limit
		})
	if err != nil {
		// Skip if repository is empty or has no commits
		if statusOf(err) == http.StatusConflict {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// CountClosedPullRequests counts pull requests closed since the given time
func (c *githubCollector) CountClosedPullRequests(ctx context.Context, owner, repo string, since time.Time, limit int) (int, error) {
	count := 0
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	err := paginate(ctx, c, fmt.Sprintf("list closed pull requests of %s/%s", owner, repo),
		func(page int) ([]*github.PullRequest, *github.Response, error) {
			opts.Page = page
			return c.client.PullRequests.List(ctx, owner, repo, opts)
		},
		func(pr *github.PullRequest) bool {
			// A PR closed in the window was also updated in it.
			if pr.GetUpdatedAt().Time.Before(since) {
				return false
			}
			if !pr.GetClosedAt().Time.Before(since) {
				count++
			}
			return count < limit
		})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountContributors counts repository contributors
func (c *githubCollector) CountContributors(ctx context.Context, owner, repo string, limit int) (int, error) {
	count := 0
	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	err := paginate(ctx, c, fmt.Sprintf("list contributors of %s/%s", owner, repo),
		func(page int) ([]*github.Contributor, *github.Response, error) {
			opts.Page = page
			return c.client.Repositories.ListContributors(ctx, owner, repo, opts)
		},
		func(*github.Contributor) bool {
			count++
			return count < limit
		})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListOpenIssues lists the newest open issues, skipping pull requests
func (c *githubCollector) ListOpenIssues(ctx context.Context, owner, repo string, limit int) ([]domain.IssueSummary, error) {
	var issues []domain.IssueSummary
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	err := paginate(ctx, c, fmt.Sprintf("list open issues of %s/%s", owner, repo),
		func(page int) ([]*github.Issue, *github.Response, error) {
			opts.Page = page
			return c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		},
		func(issue *github.Issue) bool {
			if issue.IsPullRequest() {
				return true
			}
			issues = append(issues, domain.IssueSummary{
				Number:    issue.GetNumber(),
				Title:     issue.GetTitle(),
				URL:       issue.GetHTMLURL(),
				CreatedAt: issue.GetCreatedAt().Time,
			})
			return len(issues) < limit
		})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// GetIssue retrieves a single issue
func (c *githubCollector) GetIssue(ctx context.Context, owner, repo string, number int) (*domain.IssueRecord, error) {
	var issue *github.Issue
	_, err := c.do(ctx, fmt.Sprintf("get issue %s/%s#%d", owner, repo, number), func() (*github.Response, error) {
		var resp *github.Response
		var err error
		issue, resp, err = c.client.Issues.Get(ctx, owner, repo, number)
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	return &domain.IssueRecord{
		Owner:     owner,
		Repo:      repo,
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		URL:       issue.GetHTMLURL(),
		CreatedAt: issue.GetCreatedAt().Time,
		Author:    loginOf(issue.GetUser()),
		State:     issue.GetState(),
		Labels:    labels,
		Body:      issue.GetBody(),
	}, nil
}

// ListIssueComments retrieves all comments of an issue
func (c *githubCollector) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	err := paginate(ctx, c, "list comments of "+owner+"/"+repo+"#"+strconv.Itoa(number),
		func(page int) ([]*github.IssueComment, *github.Response, error) {
			opts.Page = page
			return c.client.Issues.ListComments(ctx, owner, repo, number, opts)
		},
		func(comment *github.IssueComment) bool {
			comments = append(comments, domain.Comment{
				Author:    loginOf(comment.GetUser()),
				CreatedAt: comment.GetCreatedAt().Time,
				Body:      comment.GetBody(),
			})
			return true
		})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func toRepository(owner string, r *github.Repository) *domain.Repository {
	if login := r.GetOwner().GetLogin(); login != "" {
		owner = login
	}
	return &domain.Repository{
		Owner:       owner,
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		URL:         r.GetHTMLURL(),
		Stars:       r.GetStargazersCount(),
		Language:    domain.NormalizeLanguage(r.GetLanguage()),
		Description: domain.NormalizeDescription(r.GetDescription()),
		OpenIssues:  r.GetOpenIssuesCount(),
		Forks:       r.GetForksCount(),
		PushedAt:    r.GetPushedAt().Time,
		Archived:    r.GetArchived(),
		Disabled:    r.GetDisabled(),
	}
}

func loginOf(u *github.User) string {
	if login := u.GetLogin(); login != "" {
		return login
	}
	return "unknown"
}
