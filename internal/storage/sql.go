package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
)

// Dialect holds what differs between the SQL backends
type Dialect struct {
	Name string
	// Schema is executed by Migrate; it must be idempotent.
	Schema string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	NumberedParams bool
}

// SQLStore implements Storage on database/sql
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// rebind rewrites ? placeholders for dialects that number them
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.NumberedParams {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate runs database migrations
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema); err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", s.dialect.Name, err)
	}
	return nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its contents in one transaction
func (s *SQLStore) SaveRun(ctx context.Context, run *domain.HarvestRun, archive RunArchive) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO harvest_runs (id, mode, owner, repo, started_at, finished_at, status, total, succeeded, failed, partial)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			total = excluded.total,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			partial = excluded.partial
	`), run.ID, string(run.Mode), run.Owner, run.Repo, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		string(run.Status), run.Total, run.Succeeded, run.Failed, run.Partial)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for _, table := range []string{"repository_metrics", "issue_records", "harvest_failures"} {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM "+table+" WHERE run_id = ?"), run.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, m := range archive.Repositories {
		missing, err := json.Marshal(m.MissingMetrics)
		if err != nil {
			return fmt.Errorf("failed to marshal missing metrics: %w", err)
		}
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO repository_metrics (run_id, position, name, full_name, star_count, contributor_count, url,
				primary_language, description, commits_last_30d, closed_prs_last_30d, health_score, partial,
				missing_metrics, forks, open_issues, pushed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), run.ID, i, m.Name, m.FullName, m.StarCount, m.ContributorCount, m.URL, m.PrimaryLanguage, m.Description,
			m.CommitsLast30d, m.ClosedPRsLast30d, m.HealthScore, m.Partial, string(missing), m.Forks, m.OpenIssues, m.PushedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to save metrics for %s: %w", m.FullName, err)
		}
	}

	for i, rec := range archive.Issues {
		labels, err := json.Marshal(rec.Labels)
		if err != nil {
			return fmt.Errorf("failed to marshal labels: %w", err)
		}
		comments, err := json.Marshal(rec.Comments)
		if err != nil {
			return fmt.Errorf("failed to marshal comments: %w", err)
		}
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO issue_records (run_id, position, owner, repo, number, title, url, created_at, author, state, labels, body, comments)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), run.ID, i, rec.Owner, rec.Repo, rec.Number, rec.Title, rec.URL, rec.CreatedAt.UTC(), rec.Author, rec.State,
			string(labels), rec.Body, string(comments))
		if err != nil {
			return fmt.Errorf("failed to save issue #%d: %w", rec.Number, err)
		}
	}

	for i, f := range archive.Failures {
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO harvest_failures (run_id, position, target_kind, owner, repo, number, kind, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`), run.ID, i, string(f.Target.Kind), f.Target.Owner, f.Target.Repo, f.Target.Number, string(f.Kind), f.Message)
		if err != nil {
			return fmt.Errorf("failed to save failure for %s: %w", f.Target.ID(), err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, mode, owner, repo, started_at, finished_at, status, total, succeeded, failed, partial`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.HarvestRun, error) {
	var r domain.HarvestRun
	var mode, status string
	if err := row.Scan(&r.ID, &mode, &r.Owner, &r.Repo, &r.StartedAt, &r.FinishedAt, &status,
		&r.Total, &r.Succeeded, &r.Failed, &r.Partial); err != nil {
		return nil, err
	}
	r.Mode = domain.RunMode(mode)
	r.Status = domain.RunStatus(status)
	return &r, nil
}

// GetRun retrieves a run header
func (s *SQLStore) GetRun(ctx context.Context, id string) (*domain.HarvestRun, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM harvest_runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs newest first
func (s *SQLStore) ListRuns(ctx context.Context, owner string, limit int) ([]*domain.HarvestRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM harvest_runs`
	args := []any{}
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.HarvestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRepositoryMetrics retrieves the ranked metrics of a run
func (s *SQLStore) GetRepositoryMetrics(ctx context.Context, runID string) ([]domain.RepositoryMetrics, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT name, full_name, star_count, contributor_count, url, primary_language, description,
			commits_last_30d, closed_prs_last_30d, health_score, partial, missing_metrics, forks, open_issues, pushed_at
		FROM repository_metrics WHERE run_id = ? ORDER BY position
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository metrics: %w", err)
	}
	defer rows.Close()

	metrics := []domain.RepositoryMetrics{}
	for rows.Next() {
		var m domain.RepositoryMetrics
		var missing string
		var pushedAt time.Time
		if err := rows.Scan(&m.Name, &m.FullName, &m.StarCount, &m.ContributorCount, &m.URL, &m.PrimaryLanguage,
			&m.Description, &m.CommitsLast30d, &m.ClosedPRsLast30d, &m.HealthScore, &m.Partial, &missing,
			&m.Forks, &m.OpenIssues, &pushedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repository metrics: %w", err)
		}
		if err := json.Unmarshal([]byte(missing), &m.MissingMetrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing metrics: %w", err)
		}
		m.PushedAt = pushedAt.UTC()
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// GetIssueRecords retrieves the issues of a run, newest first
func (s *SQLStore) GetIssueRecords(ctx context.Context, runID string) ([]domain.IssueRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT owner, repo, number, title, url, created_at, author, state, labels, body, comments
		FROM issue_records WHERE run_id = ? ORDER BY position
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue records: %w", err)
	}
	defer rows.Close()

	records := []domain.IssueRecord{}
	for rows.Next() {
		var rec domain.IssueRecord
		var labels, comments string
		var createdAt time.Time
		if err := rows.Scan(&rec.Owner, &rec.Repo, &rec.Number, &rec.Title, &rec.URL, &createdAt, &rec.Author,
			&rec.State, &labels, &rec.Body, &comments); err != nil {
			return nil, fmt.Errorf("failed to scan issue record: %w", err)
		}
		if err := json.Unmarshal([]byte(labels), &rec.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
		}
		if err := json.Unmarshal([]byte(comments), &rec.Comments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal comments: %w", err)
		}
		rec.CreatedAt = createdAt.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetFailures retrieves the failures of a run in target order
func (s *SQLStore) GetFailures(ctx context.Context, runID string) ([]domain.Failure, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT target_kind, owner, repo, number, kind, message
		FROM harvest_failures WHERE run_id = ? ORDER BY position
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get failures: %w", err)
	}
	defer rows.Close()

	failures := []domain.Failure{}
	for rows.Next() {
		var f domain.Failure
		var targetKind, kind string
		if err := rows.Scan(&targetKind, &f.Target.Owner, &f.Target.Repo, &f.Target.Number, &kind, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Target.Kind = domain.TargetKind(targetKind)
		f.Kind = domain.FailureKind(kind)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
