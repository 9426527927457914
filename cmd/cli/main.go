package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/bucket-harvest/internal/collector"
	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	"github.com/kurihiro0119/bucket-harvest/internal/harvest"
	"github.com/kurihiro0119/bucket-harvest/internal/storage"
	"github.com/kurihiro0119/bucket-harvest/internal/storage/postgres"
	"github.com/kurihiro0119/bucket-harvest/internal/storage/sqlite"
)

// errIncomplete signals a run that finished with failures or was aborted
var errIncomplete = errors.New("run finished with failures")

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "bucket-harvest",
	Short: "GitHub organization and issue harvester",
	Long: `A CLI tool for harvesting GitHub data within the API rate limit.

It ranks the active repositories of an organization by recent activity,
or collects the newest open issues of a repository as Markdown documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(showCmd)
}

func main() {
	err := rootCmd.Execute()
	switch {
	case err == nil:
	case errors.Is(err, errIncomplete):
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(requireToken bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	validate := cfg.ValidateStorage
	if requireToken {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

// newPipeline builds the shared limiter, the collector and the pipeline
func newPipeline(cfg *config.Config, maxWait time.Duration) (*harvest.Pipeline, *collector.RateLimiter, error) {
	limiter := collector.NewRateLimiter(
		collector.WithMaxWait(maxWait),
		collector.WithRequestsPerSecond(cfg.RequestsPerSecond, collector.DefaultBurst),
	)
	coll, err := collector.NewGitHubCollector(cfg.GitHubToken, limiter, collector.WithBaseURL(cfg.GitHubAPIURL))
	if err != nil {
		return nil, nil, err
	}

	return &harvest.Pipeline{
		Collector:  coll,
		Budget:     limiter,
		OnProgress: printProgress,
	}, limiter, nil
}

func printProgress(p harvest.Progress) {
	pct := 0.0
	if p.Total > 0 {
		pct = float64(p.Completed) / float64(p.Total) * 100
	}
	fmt.Printf("\rProgress: %d/%d (%.1f%%)", p.Completed, p.Total, pct)
	if p.Failure != nil {
		slog.Debug("target failed", "target", p.Target.ID(), "kind", p.Failure.Kind, "message", p.Failure.Message)
	}
	if p.Completed == p.Total {
		fmt.Println()
	}
}

func warnWorkers(n int) {
	if n > config.WorkerWarningThreshold {
		fmt.Printf("Warning: %d workers may trigger GitHub's secondary rate limits\n", n)
	}
}

func printSummary(s domain.Summary) {
	fmt.Printf("Processed %d targets: %d succeeded, %d failed (%.1f%% success)\n",
		s.Total, s.Succeeded, s.Failed, s.SuccessRate())
	if s.Partial > 0 {
		fmt.Printf("  %d records are partial\n", s.Partial)
	}
	for _, kind := range []domain.FailureKind{
		domain.FailureNotFound, domain.FailureTransient, domain.FailureRateLimited,
		domain.FailureAborted, domain.FailureUnauthorized, domain.FailureInternal,
	} {
		if n := s.ByKind[kind]; n > 0 {
			fmt.Printf("  %s: %d\n", kind, n)
		}
	}
}

func printBudget(limiter *collector.RateLimiter) {
	b := limiter.Budget()
	if b.ResetAt.IsZero() {
		fmt.Printf("Rate budget: %d/%d remaining\n", b.Remaining, b.Limit)
		return
	}
	fmt.Printf("Rate budget: %d/%d remaining, resets at %s\n", b.Remaining, b.Limit, b.ResetAt.Local().Format("15:04:05"))
}

func finalStatus(run *domain.HarvestRun) error {
	if run.Status == domain.StatusCompleted {
		return nil
	}
	if run.Status == domain.StatusAborted {
		return fmt.Errorf("run %s aborted: %w", run.ID, errIncomplete)
	}
	return fmt.Errorf("run %s: %d of %d targets failed: %w", run.ID, run.Failed, run.Total, errIncomplete)
}
