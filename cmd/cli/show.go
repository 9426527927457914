package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	"github.com/kurihiro0119/bucket-harvest/internal/report"
	"github.com/kurihiro0119/bucket-harvest/pkg/client"
)

var (
	showRemote bool
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show archived runs",
	Long:  `Display runs saved with --save, from local storage or from the report API.`,
}

var showRunsCmd = &cobra.Command{
	Use:   "runs [owner]",
	Short: "List archived runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShowRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "run [id]",
	Short: "Show the contents of an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

func init() {
	showCmd.PersistentFlags().BoolVar(&showRemote, "remote", false, "read from the report API at API_ENDPOINT")
	showRunsCmd.Flags().IntVarP(&showLimit, "limit", "n", 20, "maximum number of runs")

	showCmd.AddCommand(showRunsCmd)
	showCmd.AddCommand(showRunCmd)
}

// runReader is the read side shared by storage and the API client
type runReader interface {
	ListRuns(ctx context.Context, owner string, limit int) ([]*domain.HarvestRun, error)
	GetRun(ctx context.Context, id string) (*domain.HarvestRun, error)
	GetRepositoryMetrics(ctx context.Context, runID string) ([]domain.RepositoryMetrics, error)
	GetIssueRecords(ctx context.Context, runID string) ([]domain.IssueRecord, error)
	GetFailures(ctx context.Context, runID string) ([]domain.Failure, error)
}

type remoteReader struct {
	*client.Client
}

func (r remoteReader) GetRepositoryMetrics(ctx context.Context, runID string) ([]domain.RepositoryMetrics, error) {
	return r.GetRunRepositories(ctx, runID)
}

func (r remoteReader) GetIssueRecords(ctx context.Context, runID string) ([]domain.IssueRecord, error) {
	return r.GetRunIssues(ctx, runID)
}

func (r remoteReader) GetFailures(ctx context.Context, runID string) ([]domain.Failure, error) {
	return r.GetRunFailures(ctx, runID)
}

// openReader returns the run source and a function releasing it
func openReader() (runReader, func(), error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, nil, err
	}
	if showRemote {
		return remoteReader{client.NewClient(cfg.APIEndpoint)}, func() {}, nil
	}
	return openStore(cfg)
}

func openStore(cfg *config.Config) (runReader, func(), error) {
	store, err := getStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, func() { store.Close() }, nil
}

func runShowRuns(cmd *cobra.Command, args []string) error {
	reader, release, err := openReader()
	if err != nil {
		return err
	}
	defer release()

	owner := ""
	if len(args) == 1 {
		owner = args[0]
	}

	runs, err := reader.ListRuns(cmd.Context(), owner, showLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	report.RenderRunsTable(os.Stdout, runs)
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	reader, release, err := openReader()
	if err != nil {
		return err
	}
	defer release()

	ctx := cmd.Context()
	run, err := reader.GetRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	report.RenderRunsTable(os.Stdout, []*domain.HarvestRun{run})

	switch run.Mode {
	case domain.ModeOrganization:
		metrics, err := reader.GetRepositoryMetrics(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to get repository metrics: %w", err)
		}
		fmt.Printf("\nRepositories (%d):\n", len(metrics))
		report.RenderTopTable(os.Stdout, metrics, len(metrics))
	case domain.ModeIssues:
		issues, err := reader.GetIssueRecords(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to get issues: %w", err)
		}
		fmt.Printf("\nIssues (%d):\n", len(issues))
		report.RenderIssuesTable(os.Stdout, issues)
	}

	failures, err := reader.GetFailures(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to get failures: %w", err)
	}
	if len(failures) > 0 {
		fmt.Printf("\nFailures (%d):\n", len(failures))
		report.RenderFailuresTable(os.Stdout, failures)
	}
	return nil
}
