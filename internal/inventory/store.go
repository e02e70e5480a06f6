// Package inventory is the SQLite-backed fleet catalog: nodes and their labels,
// jobs, and each job's build history.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/mattjoyce/wsclean/internal/fleet"
)

// ErrUnknownJob is returned when a job is not in the inventory.
var ErrUnknownJob = errors.New("unknown job")

// Store implements the fleet read interfaces on top of the inventory tables.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open database. The schema must already be bootstrapped.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

var (
	_ fleet.NodeCatalog       = (*Store)(nil)
	_ fleet.LabelResolver     = (*Store)(nil)
	_ fleet.WorkspaceResolver = (*Store)(nil)
	_ fleet.BuildHistory      = (*Store)(nil)
)

// ListNodes returns every node ordered by name. The controller sorts first.
func (s *Store) ListNodes(ctx context.Context) ([]fleet.Node, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM nodes ORDER BY name;")
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return scanNodes(rows)
}

// ResolveByName looks a node up by its exact name.
func (s *Store) ResolveByName(ctx context.Context, name string) (fleet.Node, bool, error) {
	var got string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM nodes WHERE name = ?;", name).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Node{}, false, nil
	}
	if err != nil {
		return fleet.Node{}, false, fmt.Errorf("resolve node %q: %w", name, err)
	}
	return fleet.Node{Name: got}, true, nil
}

// NodeMode returns the node's scheduling mode.
func (s *Store) NodeMode(ctx context.Context, node fleet.Node) (fleet.Mode, error) {
	var mode string
	err := s.db.QueryRowContext(ctx, "SELECT mode FROM nodes WHERE name = ?;", node.Name).Scan(&mode)
	if err != nil {
		return fleet.ModeNormal, fmt.Errorf("mode of node %s: %w", node, err)
	}
	return fleet.ParseMode(mode)
}

// IsDisabledForCleanup reports the node's administrative opt-out. Unknown
// nodes are not disabled.
func (s *Store) IsDisabledForCleanup(ctx context.Context, node fleet.Node) (bool, error) {
	var disabled bool
	err := s.db.QueryRowContext(ctx, "SELECT cleanup_disabled FROM nodes WHERE name = ?;", node.Name).Scan(&disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cleanup opt-out of node %s: %w", node, err)
	}
	return disabled, nil
}

// AssignedLabel returns the job's label, or nil for a roaming job.
func (s *Store) AssignedLabel(ctx context.Context, job fleet.Job) (*fleet.Label, error) {
	var label sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT label FROM jobs WHERE name = ?;", job.Name).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, job.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("label of job %q: %w", job.Name, err)
	}
	if !label.Valid || label.String == "" {
		return nil, nil
	}
	return &fleet.Label{Name: label.String}, nil
}

// NodesForLabel returns the nodes carrying label. Every node implicitly
// carries its own name as a label.
func (s *Store) NodesForLabel(ctx context.Context, label fleet.Label) ([]fleet.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name FROM nodes
WHERE name = ?
   OR name IN (SELECT node_name FROM node_labels WHERE label = ?)
ORDER BY name;`, label.Name, label.Name)
	if err != nil {
		return nil, fmt.Errorf("nodes for label %q: %w", label.Name, err)
	}
	return scanNodes(rows)
}

// WorkspacePathFor derives the job's workspace on node from the node's root
// directory. Offline nodes and nodes without a root have no workspace.
func (s *Store) WorkspacePathFor(ctx context.Context, node fleet.Node, job fleet.Job) (string, bool, error) {
	var (
		online bool
		root   string
	)
	err := s.db.QueryRowContext(ctx, "SELECT online, root_dir FROM nodes WHERE name = ?;", node.Name).Scan(&online, &root)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("workspace of %q on %s: %w", job.Name, node, err)
	}
	if !online || root == "" {
		return "", false, nil
	}
	return WorkspacePath(node, root, job.Name), true, nil
}

// WorkspacePath is the workspace layout: <root>/jobs/<job>/workspace on the
// controller and <root>/workspace/<job> on agents.
func WorkspacePath(node fleet.Node, root, job string) string {
	if node.IsController() {
		return path.Join(root, "jobs", job, "workspace")
	}
	return path.Join(root, "workspace", job)
}

// RecordsFor returns the job's builds, newest first. A build on a node that is
// offline or no longer in the catalog has no workspace path, so the node is
// treated as dead.
func (s *Store) RecordsFor(ctx context.Context, job fleet.Job) ([]fleet.BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT b.id, b.node_name, b.started, b.running,
       CASE WHEN n.online = 1 THEN b.workspace_path ELSE '' END
FROM builds b
LEFT JOIN nodes n ON n.name = b.node_name
WHERE b.job_name = ?
ORDER BY b.number DESC;`, job.Name)
	if err != nil {
		return nil, fmt.Errorf("build history of %q: %w", job.Name, err)
	}
	defer rows.Close()

	var out []fleet.BuildRecord
	for rows.Next() {
		var (
			rec  fleet.BuildRecord
			node sql.NullString
		)
		if err := rows.Scan(&rec.ID, &node, &rec.Started, &rec.Running, &rec.WorkspacePath); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		rec.NodeName = node.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Job loads a job definition.
func (s *Store) Job(ctx context.Context, name string) (fleet.Job, error) {
	var (
		job   = fleet.Job{Name: name}
		phase string
	)
	err := s.db.QueryRowContext(ctx, "SELECT concurrent, clean_phase FROM jobs WHERE name = ?;", name).Scan(&job.Concurrent, &phase)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Job{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if err != nil {
		return fleet.Job{}, fmt.Errorf("load job %q: %w", name, err)
	}
	p, err := fleet.ParsePhase(phase)
	if err != nil {
		return fleet.Job{}, fmt.Errorf("job %q: %w", name, err)
	}
	job.CleanPhase = p
	return job, nil
}

// Jobs lists every job name.
func (s *Store) Jobs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM jobs ORDER BY name;")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// BuildUpdate reports a build's lifecycle transition from a host hook.
type BuildUpdate struct {
	Job      string
	Number   int
	NodeName string
	// WorkspacePath defaults to the node's derived workspace when empty.
	WorkspacePath string
	Running       bool
}

// RecordBuild inserts or updates the build so that in-use detection sees
// builds announced through hooks.
func (s *Store) RecordBuild(ctx context.Context, u BuildUpdate) error {
	u.NodeName = fleet.NameFromDisplay(u.NodeName)
	if u.WorkspacePath == "" {
		ws, ok, err := s.WorkspacePathFor(ctx, fleet.Node{Name: u.NodeName}, fleet.Job{Name: u.Job})
		if err != nil {
			return err
		}
		if ok {
			u.WorkspacePath = ws
		}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO builds (id, job_name, number, node_name, started, running, workspace_path, created_at)
VALUES (?, ?, ?, ?, 1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  node_name = excluded.node_name,
  started = 1,
  running = excluded.running,
  workspace_path = excluded.workspace_path;`,
		BuildID(u.Job, u.Number), u.Job, u.Number, u.NodeName, u.Running, u.WorkspacePath,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record build %s: %w", BuildID(u.Job, u.Number), err)
	}
	return nil
}

// BuildID is the primary key of a job's build number.
func BuildID(job string, number int) string {
	return fmt.Sprintf("%s#%d", job, number)
}

func scanNodes(rows *sql.Rows) ([]fleet.Node, error) {
	defer rows.Close()
	var out []fleet.Node
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, fleet.Node{Name: name})
	}
	return out, rows.Err()
}
