package inventory

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/wsclean/internal/fleet"
)

// FleetFile is the YAML document accepted by Import.
type FleetFile struct {
	Nodes  []NodeSpec  `yaml:"nodes"`
	Jobs   []JobSpec   `yaml:"jobs"`
	Builds []BuildSpec `yaml:"builds"`
}

// NodeSpec describes one node. The controller is written as "controller".
type NodeSpec struct {
	Name            string   `yaml:"name"`
	Mode            string   `yaml:"mode"`
	Online          *bool    `yaml:"online,omitempty"`
	CleanupDisabled bool     `yaml:"cleanup_disabled"`
	Root            string   `yaml:"root"`
	Labels          []string `yaml:"labels"`
}

// JobSpec describes one job. An empty label makes the job roaming.
type JobSpec struct {
	Name       string `yaml:"name"`
	Label      string `yaml:"label"`
	Concurrent bool   `yaml:"concurrent"`
	CleanPhase string `yaml:"clean_phase"`
}

// BuildSpec describes one build of a job.
type BuildSpec struct {
	Job       string `yaml:"job"`
	Number    int    `yaml:"number"`
	Node      string `yaml:"node"`
	Started   bool   `yaml:"started"`
	Running   bool   `yaml:"running"`
	Workspace string `yaml:"workspace"`
}

// ImportSummary counts what Import wrote.
type ImportSummary struct {
	Nodes  int
	Jobs   int
	Builds int
}

// ReadFleetFile parses a fleet YAML file.
func ReadFleetFile(path string) (*FleetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}
	var f FleetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fleet file %s: %w", path, err)
	}
	return &f, nil
}

// Import upserts the nodes, jobs and builds of f in one transaction. A node's
// labels are replaced by the ones in f.
func (s *Store) Import(ctx context.Context, f *FleetFile) (ImportSummary, error) {
	var sum ImportSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sum, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC().Format(time.RFC3339Nano)

	for i, n := range f.Nodes {
		name := fleet.NameFromDisplay(n.Name)
		mode, err := fleet.ParseMode(n.Mode)
		if err != nil {
			return sum, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		online := n.Online == nil || *n.Online
		if _, err := tx.ExecContext(ctx, `
INSERT INTO nodes (name, mode, online, cleanup_disabled, root_dir, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  mode = excluded.mode,
  online = excluded.online,
  cleanup_disabled = excluded.cleanup_disabled,
  root_dir = excluded.root_dir,
  updated_at = excluded.updated_at;`,
			name, mode.String(), online, n.CleanupDisabled, n.Root, now); err != nil {
			return sum, fmt.Errorf("nodes[%d] (%s): %w", i, fleet.DisplayName(name), err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM node_labels WHERE node_name = ?;", name); err != nil {
			return sum, fmt.Errorf("nodes[%d]: clear labels: %w", i, err)
		}
		for _, label := range n.Labels {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO node_labels (node_name, label) VALUES (?, ?);", name, label); err != nil {
				return sum, fmt.Errorf("nodes[%d]: label %q: %w", i, label, err)
			}
		}
		sum.Nodes++
	}

	for i, j := range f.Jobs {
		if j.Name == "" {
			return sum, fmt.Errorf("jobs[%d]: name is required", i)
		}
		phase := fleet.PhasePost
		if j.CleanPhase != "" {
			p, err := fleet.ParsePhase(j.CleanPhase)
			if err != nil {
				return sum, fmt.Errorf("jobs[%d]: %w", i, err)
			}
			phase = p
		}
		var label any
		if j.Label != "" {
			label = j.Label
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO jobs (name, label, concurrent, clean_phase, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  label = excluded.label,
  concurrent = excluded.concurrent,
  clean_phase = excluded.clean_phase,
  updated_at = excluded.updated_at;`,
			j.Name, label, j.Concurrent, string(phase), now); err != nil {
			return sum, fmt.Errorf("jobs[%d] (%s): %w", i, j.Name, err)
		}
		sum.Jobs++
	}

	for i, b := range f.Builds {
		if b.Job == "" || b.Number <= 0 {
			return sum, fmt.Errorf("builds[%d]: job and a positive number are required", i)
		}
		var node any
		if b.Node != "" || b.Started {
			node = fleet.NameFromDisplay(b.Node)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO builds (id, job_name, number, node_name, started, running, workspace_path, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  node_name = excluded.node_name,
  started = excluded.started,
  running = excluded.running,
  workspace_path = excluded.workspace_path;`,
			BuildID(b.Job, b.Number), b.Job, b.Number, node, b.Started, b.Running, b.Workspace, now); err != nil {
			return sum, fmt.Errorf("builds[%d] (%s): %w", i, BuildID(b.Job, b.Number), err)
		}
		sum.Builds++
	}

	if err := tx.Commit(); err != nil {
		return sum, fmt.Errorf("commit: %w", err)
	}
	return sum, nil
}
