package api

import (
	"time"

	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/runlog"
)

// CleanupRequest is the optional JSON body for
// POST /v1/jobs/{job}/cleanup/{phase}.
type CleanupRequest struct {
	// Node is the node the triggering build runs on. Empty or "controller"
	// means the controller.
	Node string `json:"node,omitempty"`
}

// HookRequest is the JSON body for POST /v1/hooks/{event}.
type HookRequest struct {
	Job       string `json:"job"`
	Build     int    `json:"build"`
	Node      string `json:"node,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// RunResponse describes a finished cleanup run.
type RunResponse struct {
	RunID        string `json:"run_id"`
	Job          string `json:"job"`
	Phase        string `json:"phase"`
	Node         string `json:"node"`
	Outcome      string `json:"outcome"`
	Status       string `json:"status"`
	Planned      int    `json:"planned"`
	Deleted      int    `json:"deleted"`
	Failed       int    `json:"failed"`
	SkippedNodes int    `json:"skipped_nodes"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// NewRunResponse converts an engine result for the wire.
func NewRunResponse(res cleanup.Result) RunResponse {
	return RunResponse{
		RunID:        res.RunID,
		Job:          res.Job,
		Phase:        string(res.Phase),
		Node:         fleet.DisplayName(res.NodeName),
		Outcome:      res.Outcome.String(),
		Status:       res.Status,
		Planned:      res.Planned,
		Deleted:      res.Deleted,
		Failed:       res.Failed,
		SkippedNodes: res.SkippedNodes,
		DurationMS:   res.Duration.Milliseconds(),
		Error:        res.Error,
	}
}

// HookResponse is returned by POST /v1/hooks/{event}. Run is nil when the
// job cleans in the other phase.
type HookResponse struct {
	Event string       `json:"event"`
	Ran   bool         `json:"ran"`
	Run   *RunResponse `json:"run,omitempty"`
}

// PlanResponse is returned by GET /v1/jobs/{job}/plan.
type PlanResponse struct {
	Job        string          `json:"job"`
	Node       string          `json:"node"`
	Workspaces []NodeWorkspace `json:"workspaces"`
}

// NodeWorkspace lists the paths that would be cleared on one node.
type NodeWorkspace struct {
	Node  string   `json:"node"`
	Paths []string `json:"paths"`
}

// RunsResponse is returned by GET /v1/runs.
type RunsResponse struct {
	Runs []runlog.Entry `json:"runs"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string    `json:"status"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	ActiveRuns    int64     `json:"active_runs"`
	StartedAt     time.Time `json:"started_at"`
}
