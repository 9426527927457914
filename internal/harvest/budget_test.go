package harvest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/bucket-harvest/internal/collector"
	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// TestRunOrganizationStopsWhenServerReportsExhaustion runs the real limiter
// against a server that reports an empty budget with a reset five hours out.
func TestRunOrganizationStopsWhenServerReportsExhaustion(t *testing.T) {
	t.Parallel()

	now := time.Now()
	reset := now.Add(5 * time.Hour)

	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		remaining := "4000"
		var body any = []any{}
		switch {
		case r.URL.Path == "/orgs/octo/repos":
			var repos []map[string]any
			for _, name := range []string{"a", "b", "c", "d"} {
				repos = append(repos, map[string]any{
					"name":      name,
					"full_name": "octo/" + name,
					"pushed_at": now.Add(-time.Hour).UTC().Format(time.RFC3339),
				})
			}
			body = repos
		case strings.HasSuffix(r.URL.Path, "/contributors"):
			// The last call of the first unit drains the budget.
			remaining = "0"
			body = []map[string]any{{"login": "dev"}}
		case strings.HasSuffix(r.URL.Path, "/commits"), strings.HasSuffix(r.URL.Path, "/pulls"):
		default:
			name := strings.TrimPrefix(r.URL.Path, "/repos/octo/")
			body = map[string]any{"name": name, "full_name": "octo/" + name, "stargazers_count": 3}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", remaining)
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(srv.Close)

	limiter := collector.NewRateLimiter(
		collector.WithRequestsPerSecond(0, 0),
		collector.WithMaxWait(10*time.Minute),
	)
	coll, err := collector.NewGitHubCollector("test-token", limiter,
		collector.WithBaseURL(srv.URL),
		collector.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	cfg := config.DefaultHarvestConfig("octo")
	cfg.WorkerCount = 1
	cfg.MaxWait = 10 * time.Minute

	p := &Pipeline{Collector: coll, Budget: limiter}
	res, err := p.RunOrganization(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, res.Report.Successes, 1)
	assert.Equal(t, "octo/a", res.Report.Successes[0].Value.FullName)
	assert.Equal(t, 1, res.Report.Successes[0].Value.ContributorCount)

	require.Len(t, res.Report.Failures, 3)
	for _, f := range res.Report.Failures {
		assert.Equal(t, domain.FailureAborted, f.Kind, f.Target.ID())
		assert.Contains(t, f.Message, "rate limit exhausted")
	}
	assert.Equal(t, domain.StatusAborted, res.Run.Status)

	b := limiter.Budget()
	assert.Zero(t, b.Remaining)
	assert.Equal(t, reset.Unix(), b.ResetAt.Unix())

	mu.Lock()
	defer mu.Unlock()
	for _, path := range paths {
		assert.False(t, strings.HasPrefix(path, "/repos/octo/") && !strings.HasPrefix(path, "/repos/octo/a/") && path != "/repos/octo/a",
			"queued target was fetched: %s", path)
	}
}
