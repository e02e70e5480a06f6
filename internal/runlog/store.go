// Package runlog persists cleanup run results in SQLite.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/fleet"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one persisted run.
type Entry struct {
	ID           string    `json:"id"`
	Job          string    `json:"job"`
	Phase        string    `json:"phase"`
	Node         string    `json:"node"`
	Outcome      string    `json:"outcome"`
	Status       string    `json:"status"`
	Planned      int       `json:"planned"`
	Deleted      int       `json:"deleted"`
	Failed       int       `json:"failed"`
	SkippedNodes int       `json:"skipped_nodes"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
}

// Filter narrows List.
type Filter struct {
	Job   string
	Limit int
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ cleanup.RunRecorder = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RecordRun implements cleanup.RunRecorder.
func (s *Store) RecordRun(ctx context.Context, res cleanup.Result) error {
	if res.RunID == "" {
		return fmt.Errorf("run id is empty")
	}
	var lastErr any
	if res.Error != "" {
		lastErr = res.Error
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cleanup_runs (id, job_name, phase, node_name, outcome, status, planned, deleted, failed, skipped_nodes, last_error, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		res.RunID, res.Job, string(res.Phase), fleet.DisplayName(res.NodeName),
		res.Outcome.String(), res.Status,
		res.Planned, res.Deleted, res.Failed, res.SkippedNodes, lastErr,
		res.StartedAt.UTC().Format(timeLayout), res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", res.RunID, err)
	}
	return nil
}

// List returns recent runs, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var (
		where []string
		args  []any
	)
	if f.Job != "" {
		where = append(where, "job_name = ?")
		args = append(args, f.Job)
	}
	q := `SELECT id, job_name, phase, node_name, outcome, status, planned, deleted, failed, skipped_nodes, last_error, started_at, duration_ms FROM cleanup_runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC LIMIT ?;"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			lastErr sql.NullString
			started string
		)
		if err := rows.Scan(&e.ID, &e.Job, &e.Phase, &e.Node, &e.Outcome, &e.Status,
			&e.Planned, &e.Deleted, &e.Failed, &e.SkippedNodes, &lastErr, &started, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Error = lastErr.String
		t, err := time.Parse(timeLayout, started)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad started_at %q: %w", e.ID, started, err)
		}
		e.StartedAt = t
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes runs that started more than retention ago. A non-positive
// retention keeps everything.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-retention).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM cleanup_runs WHERE started_at < ?;", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return n, nil
}
