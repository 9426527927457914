package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	"github.com/kurihiro0119/bucket-harvest/internal/harvest"
	"github.com/kurihiro0119/bucket-harvest/internal/report"
	"github.com/kurihiro0119/bucket-harvest/internal/storage"
)

var (
	orgWorkers   int
	orgDays      int
	orgBuckets   int
	orgOut       string
	orgSave      bool
	orgOnMissing string
	orgMaxWait   time.Duration
)

var orgCmd = &cobra.Command{
	Use:   "org [org]",
	Short: "Rank the active repositories of an organization",
	Long: `Discover the repositories of an organization pushed within the activity
window, collect commit, pull request and contributor counts for each, and
write them ranked by health score.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrg,
}

var discoverCmd = &cobra.Command{
	Use:   "discover [org]",
	Short: "Write bucket files of active repositories",
	Long:  `Discover the active repositories of an organization and split them into bucket CSV files without collecting metrics.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscover,
}

func init() {
	orgCmd.Flags().IntVarP(&orgWorkers, "workers", "w", config.DefaultOrgWorkers, "number of concurrent workers")
	orgCmd.Flags().IntVar(&orgDays, "days", config.DefaultActivityDays, "activity window in days")
	orgCmd.Flags().IntVar(&orgBuckets, "buckets", config.DefaultBucketCount, "number of bucket files")
	orgCmd.Flags().StringVarP(&orgOut, "out", "o", "", "output directory (default HARVEST_OUTPUT_DIR)")
	orgCmd.Flags().BoolVar(&orgSave, "save", false, "archive the run in storage")
	orgCmd.Flags().StringVar(&orgOnMissing, "on-missing", "", "missing metric policy, e.g. commits=zero,prs=fail")
	orgCmd.Flags().DurationVar(&orgMaxWait, "max-wait", config.DefaultMaxWait, "longest wait for a rate limit reset")

	discoverCmd.Flags().IntVar(&orgDays, "days", config.DefaultActivityDays, "activity window in days")
	discoverCmd.Flags().IntVar(&orgBuckets, "buckets", config.DefaultBucketCount, "number of bucket files")
	discoverCmd.Flags().StringVarP(&orgOut, "out", "o", "", "output directory (default HARVEST_OUTPUT_DIR)")
}

func harvestConfig(cmd *cobra.Command, cfg *config.Config, org string) (config.HarvestConfig, error) {
	hc := config.DefaultHarvestConfig(org)
	hc.BucketCount = orgBuckets
	hc.ActivityWindowDays = orgDays
	if cmd.Flags().Lookup("workers") != nil {
		hc.WorkerCount = orgWorkers
	}

	hc.MaxWait = cfg.MaxWait
	if cmd.Flags().Changed("max-wait") {
		hc.MaxWait = orgMaxWait
	}

	policy, err := config.ParseMetricPolicy(orgOnMissing)
	if err != nil {
		return hc, err
	}
	hc.MetricPolicy = policy

	return hc, hc.Validate()
}

func outputWriter(cfg *config.Config) report.FileWriter {
	if orgOut != "" {
		return report.FileWriter{Dir: orgOut}
	}
	return report.FileWriter{Dir: cfg.OutputDir}
}

func runOrg(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	hc, err := harvestConfig(cmd, cfg, args[0])
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	warnWorkers(hc.WorkerCount)

	pipeline, limiter, err := newPipeline(cfg, hc.MaxWait)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Harvesting organization: %s\n", hc.OrgName)
	fmt.Printf("Activity window: last %d days, %d workers\n", hc.ActivityWindowDays, hc.WorkerCount)

	start := time.Now()
	res, err := pipeline.RunOrganization(ctx, hc)
	if err != nil {
		return fmt.Errorf("failed to harvest %s: %w", hc.OrgName, err)
	}
	elapsed := time.Since(start)
	fmt.Printf("Found %d active repositories\n", len(res.Repositories))

	out := outputWriter(cfg)
	if err := writeBuckets(out, hc, res.Repositories, res.Run.StartedAt); err != nil {
		return err
	}

	metrics := res.Report.Values()
	files := []struct {
		name   string
		render func(io.Writer) error
	}{
		{report.AnalysisFileName(hc.OrgName), func(w io.Writer) error { return report.WriteAnalysisCSV(w, metrics) }},
		{report.ProcessingReportFileName, func(w io.Writer) error {
			return report.WriteProcessingReport(w, report.ProcessingReport{
				Org:         hc.OrgName,
				ProcessedAt: res.Run.FinishedAt,
				Elapsed:     elapsed,
				Workers:     hc.WorkerCount,
				Report:      res.Report,
			})
		}},
	}
	for _, f := range files {
		path, err := out.Write(f.name, f.render)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
	}

	if len(metrics) > 0 {
		fmt.Println("\nTop 5 repositories by health score:")
		report.RenderTopTable(os.Stdout, metrics, 5)
	}

	printSummary(res.Report.Summary)
	printBudget(limiter)

	if orgSave {
		if err := saveRun(context.WithoutCancel(ctx), cfg, res.Run, storage.RunArchive{
			Repositories: metrics,
			Failures:     res.Report.Failures,
		}); err != nil {
			return err
		}
	}

	return finalStatus(res.Run)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	hc, err := harvestConfig(cmd, cfg, args[0])
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	pipeline, limiter, err := newPipeline(cfg, hc.MaxWait)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Discovering active repositories of %s (last %d days)\n", hc.OrgName, hc.ActivityWindowDays)
	now := time.Now()
	repos, err := pipeline.Discover(ctx, hc)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d active repositories\n", len(repos))

	if err := writeBuckets(outputWriter(cfg), hc, repos, now); err != nil {
		return err
	}
	printBudget(limiter)
	return nil
}

func writeBuckets(out report.FileWriter, hc config.HarvestConfig, repos []*domain.Repository, now time.Time) error {
	buckets := harvest.Partition(repos, hc.BucketCount)
	for i, bucket := range buckets {
		if _, err := out.Write(report.BucketFileName(i+1), func(w io.Writer) error {
			return report.WriteBucketCSV(w, bucket)
		}); err != nil {
			return err
		}
	}

	path, err := out.Write(report.BucketSummaryFileName, func(w io.Writer) error {
		return report.WriteBucketSummary(w, report.BucketSummary{
			Org:       hc.OrgName,
			CreatedAt: now,
			Cutoff:    hc.Since(now),
			Days:      hc.ActivityWindowDays,
			Repos:     repos,
			Buckets:   buckets,
		})
	})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d bucket files and %s\n", len(buckets), path)
	return nil
}

func saveRun(ctx context.Context, cfg *config.Config, run *domain.HarvestRun, archive storage.RunArchive) error {
	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if err := store.SaveRun(ctx, run, archive); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	fmt.Printf("Saved run %s (%s storage)\n", run.ID, cfg.StorageType)
	return nil
}
