package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/inventory"
	"github.com/mattjoyce/wsclean/internal/lock"
	"github.com/mattjoyce/wsclean/internal/runlog"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		ActiveRuns:    s.active.Load(),
		StartedAt:     s.startedAt.UTC(),
	})
}

// handleCleanup runs one phase for a job: POST /v1/jobs/{job}/cleanup/{phase}.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	name, err := jobParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	phase, err := fleet.ParsePhase(chi.URLParam(r, "phase"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CleanupRequest
	if err := decodeOptional(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	job, ok := s.loadJob(w, r, name)
	if !ok {
		return
	}

	release, ok := s.acquire(w, job.Name)
	if !ok {
		return
	}
	defer release()

	res, err := s.cleaner.Run(r.Context(), phase, cleanup.BuildContext{
		Job:      job,
		NodeName: fleet.NameFromDisplay(req.Node),
	})
	s.respondRun(w, res, err)
}

// handleHook records a build lifecycle event and runs the job's clean phase
// when the event maps onto it: POST /v1/hooks/{event}.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	event := cleanup.HookEvent(chi.URLParam(r, "event"))
	phase, err := event.Phase()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req HookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Job == "" || req.Build <= 0 {
		s.writeError(w, http.StatusBadRequest, "job and a positive build number are required")
		return
	}

	job, ok := s.loadJob(w, r, req.Job)
	if !ok {
		return
	}

	// Announce the build first so in-use detection sees it.
	if err := s.inventory.RecordBuild(r.Context(), inventory.BuildUpdate{
		Job:           job.Name,
		Number:        req.Build,
		NodeName:      req.Node,
		WorkspacePath: req.Workspace,
		Running:       event == cleanup.EventStarted,
	}); err != nil {
		s.logger.Error("failed to record build", "job", job.Name, "build", req.Build, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to record build")
		return
	}

	if !cleanup.CleansIn(job, phase) {
		respondJSON(w, http.StatusOK, HookResponse{Event: string(event)})
		return
	}

	release, ok := s.acquire(w, job.Name)
	if !ok {
		return
	}
	defer release()

	res, ran, err := s.cleaner.Hook(r.Context(), event, cleanup.BuildContext{
		Job:      job,
		NodeName: fleet.NameFromDisplay(req.Node),
	})
	resp := HookResponse{Event: string(event), Ran: ran}
	if ran {
		run := NewRunResponse(res)
		resp.Run = &run
	}
	respondJSON(w, statusForRun(err), resp)
}

// handlePlan returns the workspaces a run would clear: GET /v1/jobs/{job}/plan.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	name, err := jobParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, ok := s.loadJob(w, r, name)
	if !ok {
		return
	}

	node := fleet.NameFromDisplay(r.URL.Query().Get("node"))
	plan, err := s.cleaner.Plan(r.Context(), cleanup.BuildContext{Job: job, NodeName: node})
	if err != nil {
		s.logger.Error("failed to plan cleanup", "job", job.Name, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := PlanResponse{Job: job.Name, Node: fleet.DisplayName(node), Workspaces: []NodeWorkspace{}}
	for _, n := range plan.Nodes() {
		resp.Workspaces = append(resp.Workspaces, NodeWorkspace{Node: fleet.DisplayName(n), Paths: plan.Paths(n)})
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleListRuns returns recent runs: GET /v1/runs?job=&limit=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	f := runlog.Filter{Job: r.URL.Query().Get("job")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	runs, err := s.runs.List(r.Context(), f)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []runlog.Entry{}
	}
	respondJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

func (s *Server) loadJob(w http.ResponseWriter, r *http.Request, name string) (fleet.Job, bool) {
	job, err := s.inventory.Job(r.Context(), name)
	if errors.Is(err, inventory.ErrUnknownJob) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return fleet.Job{}, false
	}
	if err != nil {
		s.logger.Error("failed to load job", "job", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return fleet.Job{}, false
	}
	return job, true
}

// acquire takes a run slot and the job's lock. On failure the response has
// already been written.
func (s *Server) acquire(w http.ResponseWriter, job string) (func(), bool) {
	if !s.slots.TryAcquire(1) {
		s.writeError(w, http.StatusTooManyRequests, "too many concurrent cleanup runs")
		return nil, false
	}
	unlock, err := s.lock(job)
	if err != nil {
		s.slots.Release(1)
		if errors.Is(err, lock.ErrHeld) {
			s.writeError(w, http.StatusConflict, fmt.Sprintf("a cleanup run for %q is already in progress", job))
			return nil, false
		}
		s.logger.Error("failed to lock job", "job", job, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to lock job")
		return nil, false
	}
	s.active.Add(1)
	return func() {
		s.active.Add(-1)
		if err := unlock(); err != nil {
			s.logger.Warn("failed to release job lock", "job", job, "error", err)
		}
		s.slots.Release(1)
	}, true
}

func (s *Server) respondRun(w http.ResponseWriter, res cleanup.Result, err error) {
	respondJSON(w, statusForRun(err), NewRunResponse(res))
}

func statusForRun(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, cleanup.ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// jobParam returns the {job} path segment. Folder-style job names arrive
// with escaped slashes.
func jobParam(r *http.Request) (string, error) {
	name, err := url.PathUnescape(chi.URLParam(r, "job"))
	if err != nil {
		return "", fmt.Errorf("invalid job name: %w", err)
	}
	if name == "" {
		return "", errors.New("job name is required")
	}
	return name, nil
}

// decodeOptional decodes a JSON body if one was sent.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
