package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/aggregator"
	"github.com/kurihiro0119/bucket-harvest/internal/collector"
	"github.com/kurihiro0119/bucket-harvest/internal/config"
	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// Pipeline wires discovery, the harvester and the aggregator for both modes
type Pipeline struct {
	Collector  collector.Collector
	Budget     BudgetSource
	OnProgress ProgressFunc
	Now        func() time.Time
}

// OrganizationResult is the outcome of an organization run
type OrganizationResult struct {
	Run          *domain.HarvestRun
	Repositories []*domain.Repository
	Report       domain.HarvestReport[domain.RepositoryMetrics]
}

// IssueResult is the outcome of an issue run
type IssueResult struct {
	Run    *domain.HarvestRun
	Issues []domain.IssueSummary
	Report domain.HarvestReport[domain.IssueRecord]
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Discover lists the organization's active repositories
func (p *Pipeline) Discover(ctx context.Context, cfg config.HarvestConfig) ([]*domain.Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	repos, err := p.Collector.ListOrgRepositories(ctx, cfg.OrgName, cfg.Since(p.now()))
	if err != nil {
		return nil, fmt.Errorf("discover repositories of %s: %w", cfg.OrgName, err)
	}
	slog.Debug("discovered active repositories", "org", cfg.OrgName, "count", len(repos))
	return repos, nil
}

// RunOrganization discovers active repositories and harvests their metrics.
// Only discovery failures are returned as errors; unit failures are part of
// the report.
func (p *Pipeline) RunOrganization(ctx context.Context, cfg config.HarvestConfig) (*OrganizationResult, error) {
	run := domain.NewHarvestRun(domain.ModeOrganization, cfg.OrgName, "", p.now())

	repos, err := p.Discover(ctx, cfg)
	if err != nil {
		return nil, err
	}

	targets := make([]domain.Target, 0, len(repos))
	for _, r := range repos {
		targets = append(targets, domain.RepositoryTarget(r.Owner, r.Name))
	}

	unit := NewRepositoryUnit(p.Collector, cfg, cfg.Since(p.now()))
	h := NewHarvester[domain.RepositoryMetrics](unit, Options{
		Workers:    cfg.WorkerCount,
		MaxWait:    cfg.MaxWait,
		Budget:     p.Budget,
		OnProgress: p.OnProgress,
		Now:        p.Now,
	})

	report := aggregator.Finalize(h.Run(ctx, targets), aggregator.ByHealthDesc)
	run.Finish(report.Summary, p.now())

	return &OrganizationResult{Run: run, Repositories: repos, Report: report}, nil
}

// RunIssues collects the newest open issues of one repository
func (p *Pipeline) RunIssues(ctx context.Context, cfg config.IssueConfig) (*IssueResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	run := domain.NewHarvestRun(domain.ModeIssues, cfg.Owner, cfg.Repo, p.now())

	issues, err := p.Collector.ListOpenIssues(ctx, cfg.Owner, cfg.Repo, cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("list open issues of %s/%s: %w", cfg.Owner, cfg.Repo, err)
	}

	targets := make([]domain.Target, 0, len(issues))
	for _, is := range issues {
		targets = append(targets, domain.IssueTarget(cfg.Owner, cfg.Repo, is.Number))
	}

	h := NewHarvester[domain.IssueRecord](NewIssueUnit(p.Collector), Options{
		Workers:    cfg.WorkerCount,
		MaxWait:    cfg.MaxWait,
		Budget:     p.Budget,
		OnProgress: p.OnProgress,
		Now:        p.Now,
	})

	report := aggregator.Finalize(h.Run(ctx, targets), aggregator.ByCreatedDesc)
	run.Finish(report.Summary, p.now())

	return &IssueResult{Run: run, Issues: issues, Report: report}, nil
}
