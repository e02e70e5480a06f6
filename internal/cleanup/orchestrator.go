package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/workpool"
)

// Banner statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// RunRecorder persists the result of every run.
type RunRecorder interface {
	RecordRun(ctx context.Context, res Result) error
}

// BuildContext identifies the build that triggered a run.
type BuildContext struct {
	Job fleet.Job
	// NodeName is the node the build runs on ("" for the controller).
	NodeName string
}

// Result describes a finished run.
type Result struct {
	RunID        string
	Phase        fleet.Phase
	Job          string
	NodeName     string
	Outcome      Outcome
	Status       string
	Planned      int
	Deleted      int
	Failed       int
	SkippedNodes int
	StartedAt    time.Time
	Duration     time.Duration
	Error        string
}

// Deps are the collaborators an Orchestrator is built from.
type Deps struct {
	Catalog    fleet.NodeCatalog
	Labels     fleet.LabelResolver
	Workspaces fleet.WorkspaceResolver
	History    fleet.BuildHistory
	Deleter    fleet.RemoteDeleter
	Pool       *workpool.Pool
	Runs       RunRecorder
	Metrics    Recorder
	Logger     *slog.Logger
}

// Orchestrator runs the Pre and Post cleanup phases.
type Orchestrator struct {
	settings   Settings
	labels     fleet.LabelResolver
	history    fleet.BuildHistory
	calculator *Calculator
	exclusions *ExclusionEngine
	executor   *Executor
	runs       RunRecorder
	metrics    Recorder
	logger     *slog.Logger
	newRunID   func() string
}

// NewOrchestrator wires the engine. Invalid skip patterns are reported here,
// once, rather than at match time.
func NewOrchestrator(settings Settings, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cleanup")
	pool := deps.Pool
	if pool == nil {
		pool = workpool.New(workpool.DefaultSize)
	}

	for _, bad := range settings.Patterns.Invalid() {
		logger.Warn("ignoring invalid skip pattern", "pattern", bad.Pattern, "error", bad.Err)
	}

	executor := NewExecutor(deps.Catalog, deps.Deleter, pool, logger)
	if deps.Metrics != nil {
		executor.WithRecorder(deps.Metrics)
	}

	return &Orchestrator{
		settings:   settings,
		labels:     deps.Labels,
		history:    deps.History,
		calculator: NewCalculator(deps.Catalog, deps.Workspaces, logger),
		exclusions: NewExclusionEngine(deps.Catalog, logger),
		executor:   executor,
		runs:       deps.Runs,
		metrics:    deps.Metrics,
		logger:     logger,
		newRunID:   uuid.NewString,
	}
}

// Settings returns the settings the orchestrator was built with.
func (o *Orchestrator) Settings() Settings { return o.settings }

// Plan computes and filters the deletion set without deleting anything.
func (o *Orchestrator) Plan(ctx context.Context, build BuildContext) (*Multimap, error) {
	candidates, err := o.candidates(ctx, build)
	if err != nil {
		return nil, err
	}
	return o.exclusions.Filter(ctx, candidates, o.settings.Rules())
}

// Run executes one cleanup phase for build. The end banner is logged on every
// return path.
func (o *Orchestrator) Run(ctx context.Context, phase fleet.Phase, build BuildContext) (res Result, err error) {
	res = Result{
		RunID:     o.newRunID(),
		Phase:     phase,
		Job:       build.Job.Name,
		NodeName:  build.NodeName,
		Outcome:   OutcomeAbandoned,
		Status:    StatusFailed,
		StartedAt: time.Now().UTC(),
	}
	logger := o.logger.With("run_id", res.RunID, "job", build.Job.Name, "phase", string(phase))
	logger.Info(fmt.Sprintf("%s-build workspace cleanup started", phase.Title()),
		"running_on", fleet.DisplayName(build.NodeName),
		"node_selection", string(o.settings.Selection),
		"mode", o.settings.Mode().String(),
	)

	defer func() {
		res.Duration = time.Since(res.StartedAt)
		if err != nil {
			res.Error = err.Error()
		}
		logger.Info(fmt.Sprintf("%s-build workspace cleanup %s", phase.Title(), res.Status),
			"outcome", res.Outcome.String(),
			"deleted", res.Deleted,
			"failed", res.Failed,
			"duration_ms", res.Duration.Milliseconds(),
		)
		o.record(ctx, res)
	}()

	plan, err := o.Plan(ctx, build)
	if err != nil {
		res.Status = statusFor(err)
		return res, err
	}
	res.Planned = plan.Len()
	if plan.IsEmpty() {
		logger.Info("no workspaces to clean")
		res.Outcome = OutcomeCompleted
		res.Status = StatusCompleted
		return res, nil
	}

	report, err := o.executor.Execute(ctx, o.settings.Mode(), plan, o.settings.Timeout)
	res.Outcome = report.Outcome
	res.Deleted = report.Deleted
	res.Failed = report.Failed
	res.SkippedNodes = report.SkippedNodes
	if err != nil {
		res.Status = statusFor(err)
		return res, err
	}
	if report.Outcome == OutcomeTimedOut {
		res.Status = StatusFailed
		return res, nil
	}
	res.Status = StatusCompleted
	return res, nil
}

// Hook maps a host lifecycle event onto the job's clean phase. A build start
// triggers the Pre phase and a build finish the Post phase; the phase runs only
// if it is the one the job asked for. ran is false when nothing was done.
func (o *Orchestrator) Hook(ctx context.Context, event HookEvent, build BuildContext) (res Result, ran bool, err error) {
	phase, err := event.Phase()
	if err != nil {
		return Result{}, false, err
	}
	if !CleansIn(build.Job, phase) {
		o.logger.Debug("job cleans in another phase", "job", build.Job.Name, "event", string(event), "clean_phase", string(build.Job.CleanPhase))
		return Result{}, false, nil
	}
	res, err = o.Run(ctx, phase, build)
	return res, true, err
}

// CleansIn reports whether job wants cleanup in phase. Jobs without an
// explicit phase clean after the build.
func CleansIn(job fleet.Job, phase fleet.Phase) bool {
	want := job.CleanPhase
	if want == "" {
		want = fleet.PhasePost
	}
	return want == phase
}

// HookEvent is a host lifecycle notification.
type HookEvent string

const (
	EventStarted  HookEvent = "started"
	EventFinished HookEvent = "finished"
)

// Phase returns the cleanup phase an event corresponds to.
func (e HookEvent) Phase() (fleet.Phase, error) {
	switch e {
	case EventStarted:
		return fleet.PhasePre, nil
	case EventFinished:
		return fleet.PhasePost, nil
	default:
		return "", fmt.Errorf("unknown hook event %q (want started or finished)", string(e))
	}
}

func (o *Orchestrator) candidates(ctx context.Context, build BuildContext) (*Multimap, error) {
	req := Request{
		Job:         build.Job,
		CurrentNode: build.NodeName,
		Policy:      o.settings.Selection.Policy(),
		SkipRoaming: o.settings.SkipRoaming,
	}

	label, err := o.labels.AssignedLabel(ctx, build.Job)
	if err != nil {
		return nil, o.collaboratorErr(ctx, "assigned label", err)
	}
	if label != nil {
		nodes, err := o.labels.NodesForLabel(ctx, *label)
		if err != nil {
			return nil, o.collaboratorErr(ctx, "nodes for label "+label.Name, err)
		}
		req.Label = &LabelAssignment{Label: *label, Nodes: nodes}
	}

	history, err := o.history.RecordsFor(ctx, build.Job)
	if err != nil {
		return nil, o.collaboratorErr(ctx, "build history", err)
	}
	req.History = history

	candidates, err := o.calculator.Compute(ctx, req)
	if err != nil && ctx.Err() != nil {
		return nil, cancelled(ctx.Err())
	}
	return candidates, err
}

func (o *Orchestrator) collaboratorErr(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return cancelled(ctx.Err())
	}
	return Error.Wrap(fmt.Errorf("%s: %w", what, err))
}

func (o *Orchestrator) record(ctx context.Context, res Result) {
	if o.metrics != nil {
		o.metrics.ObserveRun(res.Phase, res.Status, res.Duration)
	}
	if o.runs == nil {
		return
	}
	if err := o.runs.RecordRun(context.WithoutCancel(ctx), res); err != nil {
		o.logger.Error("failed to record cleanup run", "run_id", res.RunID, "error", err)
	}
}

func statusFor(err error) string {
	if errors.Is(err, ErrCancelled) {
		return StatusAbandoned
	}
	return StatusFailed
}
