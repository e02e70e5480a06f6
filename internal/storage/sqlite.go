// Package storage opens the SQLite database that holds the fleet inventory and
// the cleanup run log.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := CheckLocalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
  name             TEXT PRIMARY KEY,
  mode             TEXT NOT NULL DEFAULT 'normal',
  online           INTEGER NOT NULL DEFAULT 1,
  cleanup_disabled INTEGER NOT NULL DEFAULT 0,
  root_dir         TEXT NOT NULL DEFAULT '',
  updated_at       TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS node_labels (
  node_name TEXT NOT NULL REFERENCES nodes(name) ON DELETE CASCADE,
  label     TEXT NOT NULL,
  PRIMARY KEY (node_name, label)
);`,
		`CREATE TABLE IF NOT EXISTS jobs (
  name        TEXT PRIMARY KEY,
  label       TEXT,
  concurrent  INTEGER NOT NULL DEFAULT 0,
  clean_phase TEXT NOT NULL DEFAULT 'post',
  updated_at  TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS builds (
  id             TEXT PRIMARY KEY,
  job_name       TEXT NOT NULL REFERENCES jobs(name) ON DELETE CASCADE,
  number         INTEGER NOT NULL,
  node_name      TEXT,
  started        INTEGER NOT NULL DEFAULT 0,
  running        INTEGER NOT NULL DEFAULT 0,
  workspace_path TEXT NOT NULL DEFAULT '',
  created_at     TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS cleanup_runs (
  id            TEXT PRIMARY KEY,
  job_name      TEXT NOT NULL,
  phase         TEXT NOT NULL,
  node_name     TEXT NOT NULL,
  outcome       TEXT NOT NULL,
  status        TEXT NOT NULL,
  planned       INTEGER NOT NULL DEFAULT 0,
  deleted       INTEGER NOT NULL DEFAULT 0,
  failed        INTEGER NOT NULL DEFAULT 0,
  skipped_nodes INTEGER NOT NULL DEFAULT 0,
  last_error    TEXT,
  started_at    TEXT NOT NULL,
  duration_ms   INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS node_labels_label_idx ON node_labels(label);`,
		`CREATE INDEX IF NOT EXISTS builds_job_number_idx ON builds(job_name, number DESC);`,
		`CREATE INDEX IF NOT EXISTS cleanup_runs_started_at_idx ON cleanup_runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS cleanup_runs_job_idx ON cleanup_runs(job_name, started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
