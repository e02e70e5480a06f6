package cleanup

import (
	"context"
	"errors"
	"time"

	"github.com/mattjoyce/wsclean/internal/workpool"
)

const (
	pollFloor   = 50 * time.Millisecond
	pollStep    = 50 * time.Millisecond
	pollCeiling = 1000 * time.Millisecond
)

// RunWithTimeout runs fn on a supervising goroutine and waits up to timeout for
// it. When the deadline passes, fn's context is cancelled and ErrTimedOut is
// returned without waiting for fn to notice. When ctx ends first, fn is
// cancelled the same way and an error wrapping ErrCancelled is returned.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	task := workpool.Spawn(ctx, fn)
	defer task.Cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-task.Done():
		return task.Err()
	case <-timer.C:
		return ErrTimedOut
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
}

// RunWithoutTimeout runs fn inline. Only ctx can stop it.
func RunWithoutTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
		return cancelled(ctx.Err())
	}
	return err
}

// Poller waits for a set of tasks with a wait that grows while nothing
// finishes and snaps back to the floor whenever something does.
type Poller struct {
	Floor   time.Duration
	Step    time.Duration
	Ceiling time.Duration

	// observe, when set, sees every wait before it starts.
	observe func(wait time.Duration)
}

// DefaultPoller starts at 50ms, grows by 50ms per idle poll and caps at 1s.
func DefaultPoller() Poller {
	return Poller{Floor: pollFloor, Step: pollStep, Ceiling: pollCeiling}
}

// WaitAll returns once every task is done. If ctx ends first, every task that
// is still running is cancelled before the error is returned.
func (p Poller) WaitAll(ctx context.Context, tasks []*workpool.Task) error {
	wait := p.Floor
	for task := firstIncomplete(tasks); task != nil; task = firstIncomplete(tasks) {
		if p.observe != nil {
			p.observe(wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-task.Done():
			timer.Stop()
			wait = p.Floor
		case <-timer.C:
			wait = min(p.Ceiling, wait+p.Step)
		case <-ctx.Done():
			timer.Stop()
			cancelIncomplete(tasks)
			return cancelled(ctx.Err())
		}
	}
	return nil
}

func firstIncomplete(tasks []*workpool.Task) *workpool.Task {
	for _, t := range tasks {
		if !t.IsDone() {
			return t
		}
	}
	return nil
}

func cancelIncomplete(tasks []*workpool.Task) {
	for _, t := range tasks {
		if !t.IsDone() {
			t.Cancel()
		}
	}
}
