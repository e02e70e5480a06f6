package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/workpool"
)

// Recorder receives deletion and run observations. Implementations must be
// safe for concurrent use.
type Recorder interface {
	ObserveDeletion(node string, err error, duration time.Duration)
	ObserveRun(phase fleet.Phase, status string, duration time.Duration)
}

// Report summarises an Execute call.
type Report struct {
	Outcome      Outcome
	Planned      int
	Deleted      int
	Failed       int
	SkippedNodes int
}

type counters struct {
	deleted atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

// Executor deletes the workspaces of a filtered candidate set.
type Executor struct {
	catalog  fleet.NodeCatalog
	deleter  fleet.RemoteDeleter
	pool     *workpool.Pool
	poller   Poller
	recorder Recorder
	logger   *slog.Logger
}

// NewExecutor creates an Executor. pool is owned by the caller and may be
// shared with other runs.
func NewExecutor(catalog fleet.NodeCatalog, deleter fleet.RemoteDeleter, pool *workpool.Pool, logger *slog.Logger) *Executor {
	return &Executor{
		catalog: catalog,
		deleter: deleter,
		pool:    pool,
		poller:  DefaultPoller(),
		logger:  logger,
	}
}

// WithRecorder attaches a metrics recorder.
func (e *Executor) WithRecorder(r Recorder) *Executor {
	e.recorder = r
	return e
}

// Execute deletes every location in workspaces. With timeout > 0 the whole
// phase runs under that deadline and expiry yields OutcomeTimedOut with a nil
// error. Cancellation of ctx yields OutcomeAbandoned and an error wrapping
// ErrCancelled.
func (e *Executor) Execute(ctx context.Context, mode ExecutionMode, workspaces *Multimap, timeout time.Duration) (Report, error) {
	var c counters
	phase := func(ctx context.Context) error {
		if mode == Parallel {
			return e.deleteInParallel(ctx, workspaces, &c)
		}
		return e.deleteInSeries(ctx, workspaces, &c)
	}

	var err error
	if timeout > 0 {
		err = RunWithTimeout(ctx, timeout, phase)
	} else {
		err = RunWithoutTimeout(ctx, phase)
	}

	report := Report{
		Outcome:      OutcomeCompleted,
		Planned:      workspaces.Len(),
		Deleted:      int(c.deleted.Load()),
		Failed:       int(c.failed.Load()),
		SkippedNodes: int(c.skipped.Load()),
	}
	switch {
	case err == nil:
		return report, nil
	case errors.Is(err, ErrTimedOut):
		e.logger.Warn("deletion phase timed out", "timeout", timeout)
		report.Outcome = OutcomeTimedOut
		return report, nil
	default:
		report.Outcome = OutcomeAbandoned
		return report, err
	}
}

func (e *Executor) deleteInSeries(ctx context.Context, workspaces *Multimap, c *counters) error {
	for _, name := range workspaces.Nodes() {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		node, ok, err := e.resolve(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			c.skipped.Add(1)
			continue
		}
		if err := e.deleteOnNode(ctx, node, workspaces.Paths(name), c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) deleteInParallel(ctx context.Context, workspaces *Multimap, c *counters) error {
	nodes := workspaces.Nodes()
	tasks := make([]*workpool.Task, 0, len(nodes))

	for _, name := range nodes {
		paths := workspaces.Paths(name)
		task, err := e.pool.Submit(ctx, func(ctx context.Context) error {
			node, ok, err := e.resolve(ctx, name)
			switch {
			case err != nil:
				e.logger.Info("deletion abandoned", "node", fleet.DisplayName(name), "error", err)
				return nil
			case !ok:
				c.skipped.Add(1)
				return nil
			}
			if err := e.deleteOnNode(ctx, node, paths, c); err != nil {
				e.logger.Info("deletion abandoned", "node", node.String(), "error", err)
			}
			return nil
		})
		if err != nil {
			cancelIncomplete(tasks)
			return cancelled(err)
		}
		tasks = append(tasks, task)
	}

	return e.poller.WaitAll(ctx, tasks)
}

// resolve looks a node up again just before deleting on it. A node that has
// gone away is reported as ok=false; only cancellation is an error.
func (e *Executor) resolve(ctx context.Context, name string) (fleet.Node, bool, error) {
	node, ok, err := e.catalog.ResolveByName(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return fleet.Node{}, false, cancelled(ctx.Err())
		}
		e.logger.Warn("cannot resolve node, skipping", "node", fleet.DisplayName(name), "error", err)
		return fleet.Node{}, false, nil
	}
	if !ok {
		e.logger.Debug("node no longer exists, skipping", "node", fleet.DisplayName(name))
		return fleet.Node{}, false, nil
	}
	return node, true, nil
}

// deleteOnNode deletes paths one after another. Failures are logged and
// counted; only cancellation stops the loop.
func (e *Executor) deleteOnNode(ctx context.Context, node fleet.Node, paths []string, c *counters) error {
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		e.logger.Info("cleaning workspace", "node", node.String(), "path", path)

		start := time.Now()
		err := e.deleter.DeleteContents(ctx, node, path)
		if e.recorder != nil {
			e.recorder.ObserveDeletion(node.String(), err, time.Since(start))
		}
		if err == nil {
			c.deleted.Add(1)
			continue
		}
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		c.failed.Add(1)
		switch {
		case errors.Is(err, fleet.ErrNoChannel):
			e.logger.Warn("no deletion channel on node", "node", node.String(), "path", path)
		case errors.Is(err, fleet.ErrChannelAborted):
			e.logger.Warn("remote channel aborted while deleting", "node", node.String(), "path", path, "error", err)
		default:
			e.logger.Warn("cannot delete workspace", "node", node.String(), "path", path, "error", err)
		}
	}
	return nil
}
