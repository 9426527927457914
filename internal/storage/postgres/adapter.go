package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/bucket-harvest/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS harvest_runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	owner TEXT NOT NULL,
	repo TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	total INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	partial INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_harvest_runs_owner ON harvest_runs(owner, started_at);

CREATE TABLE IF NOT EXISTS repository_metrics (
	run_id TEXT NOT NULL REFERENCES harvest_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	full_name TEXT NOT NULL,
	star_count INTEGER NOT NULL,
	contributor_count INTEGER NOT NULL,
	url TEXT NOT NULL,
	primary_language TEXT NOT NULL,
	description TEXT NOT NULL,
	commits_last_30d INTEGER NOT NULL,
	closed_prs_last_30d INTEGER NOT NULL,
	health_score DOUBLE PRECISION NOT NULL,
	partial BOOLEAN NOT NULL,
	missing_metrics JSONB NOT NULL,
	forks INTEGER NOT NULL,
	open_issues INTEGER NOT NULL,
	pushed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, full_name)
);

CREATE TABLE IF NOT EXISTS issue_records (
	run_id TEXT NOT NULL REFERENCES harvest_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	owner TEXT NOT NULL,
	repo TEXT NOT NULL,
	number INTEGER NOT NULL,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	author TEXT NOT NULL,
	state TEXT NOT NULL,
	labels JSONB NOT NULL,
	body TEXT NOT NULL,
	comments JSONB NOT NULL,
	PRIMARY KEY (run_id, number)
);

CREATE TABLE IF NOT EXISTS harvest_failures (
	run_id TEXT NOT NULL REFERENCES harvest_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	target_kind TEXT NOT NULL,
	owner TEXT NOT NULL,
	repo TEXT NOT NULL,
	number INTEGER NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	PRIMARY KEY (run_id, owner, repo, number)
);
`

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := storage.NewSQLStore(db, storage.Dialect{Name: "postgres", Schema: schema, NumberedParams: true})
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}
