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
	"github.com/kurihiro0119/bucket-harvest/internal/report"
	"github.com/kurihiro0119/bucket-harvest/internal/storage"
)

var (
	issueWorkers int
	issueLimit   int
	issueOut     string
	issueSave    bool
	issueMaxWait time.Duration
)

var issuesCmd = &cobra.Command{
	Use:   "issues [owner/repo]",
	Short: "Collect the newest open issues of a repository",
	Long: `Collect the most recently created open issues of a repository, with their
comments, and write one Markdown document per issue.`,
	Args: cobra.ExactArgs(1),
	RunE: runIssues,
}

func init() {
	issuesCmd.Flags().IntVarP(&issueWorkers, "workers", "w", config.DefaultIssueWorkers, "number of concurrent workers")
	issuesCmd.Flags().IntVar(&issueLimit, "limit", config.DefaultIssueLimit, "number of open issues to collect")
	issuesCmd.Flags().StringVarP(&issueOut, "out", "o", "", "base output directory (default HARVEST_OUTPUT_DIR)")
	issuesCmd.Flags().BoolVar(&issueSave, "save", false, "archive the run in storage")
	issuesCmd.Flags().DurationVar(&issueMaxWait, "max-wait", config.DefaultMaxWait, "longest wait for a rate limit reset")
}

func runIssues(cmd *cobra.Command, args []string) error {
	owner, repo, err := domain.ParseRepoPath(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	ic := config.DefaultIssueConfig(owner, repo)
	ic.Limit = issueLimit
	ic.WorkerCount = issueWorkers
	ic.MaxWait = cfg.MaxWait
	if cmd.Flags().Changed("max-wait") {
		ic.MaxWait = issueMaxWait
	}
	if err := ic.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	warnWorkers(ic.WorkerCount)

	pipeline, limiter, err := newPipeline(cfg, ic.MaxWait)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Collecting %d most recent open issues from %s/%s\n", ic.Limit, owner, repo)
	res, err := pipeline.RunIssues(ctx, ic)
	if err != nil {
		return fmt.Errorf("failed to collect issues: %w", err)
	}
	fmt.Printf("Found %d open issues\n", len(res.Issues))

	base := report.FileWriter{Dir: cfg.OutputDir}
	if issueOut != "" {
		base.Dir = issueOut
	}
	out := base.Sub("." + repo)

	records := res.Report.Values()
	for _, rec := range records {
		if _, err := out.Write(report.IssueFileName(rec.Number), func(w io.Writer) error {
			return report.WriteIssueDocument(w, rec)
		}); err != nil {
			return err
		}
	}
	for _, f := range res.Report.Failures {
		if _, err := out.Write(report.IssueFileName(f.Target.Number), func(w io.Writer) error {
			return report.WriteFailedIssueDocument(w, f)
		}); err != nil {
			return err
		}
	}

	path, err := out.Write(report.CollectionSummaryFileName, func(w io.Writer) error {
		return report.WriteCollectionSummary(w, report.CollectionSummary{
			Repo:      owner + "/" + repo,
			CreatedAt: res.Run.FinishedAt,
			Limit:     ic.Limit,
			OutputDir: out.Dir,
			Summary:   res.Report.Summary,
		})
	})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d issue documents to %s\n", res.Report.Summary.Total, out.Dir)
	fmt.Printf("Wrote %s\n", path)

	printSummary(res.Report.Summary)
	printBudget(limiter)

	if issueSave {
		if err := saveRun(context.WithoutCancel(ctx), cfg, res.Run, storage.RunArchive{
			Issues:   records,
			Failures: res.Report.Failures,
		}); err != nil {
			return err
		}
	}

	return finalStatus(res.Run)
}
