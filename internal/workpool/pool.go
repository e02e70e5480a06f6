// Package workpool provides the capacity-bounded worker pool shared by every
// cleanup run in the process.
package workpool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is used when a pool is created with a non-positive size.
const DefaultSize = 8

// Pool runs submitted functions on goroutines, never more than Size at once.
type Pool struct {
	slots *semaphore.Weighted
	size  int
}

// New creates a pool with the given capacity.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		slots: semaphore.NewWeighted(int64(size)),
		size:  size,
	}
}

// Size returns the pool's capacity.
func (p *Pool) Size() int { return p.size }

// Submit waits for a free slot and starts fn on it. The task's context is
// derived from ctx and is additionally cancelled by Task.Cancel. Submit only
// fails when ctx ends before a slot frees up.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) (*Task, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return start(ctx, fn, func() { p.slots.Release(1) }), nil
}

// Spawn starts fn on its own goroutine without taking a pool slot. It is meant
// for the single supervising goroutine of a run, which must never compete with
// the work it submits.
func Spawn(ctx context.Context, fn func(ctx context.Context) error) *Task {
	return start(ctx, fn, func() {})
}

func start(ctx context.Context, fn func(ctx context.Context) error, release func()) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer release()
		defer cancel()
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.setErr(fmt.Errorf("task panicked: %v", r))
			}
		}()
		t.setErr(fn(taskCtx))
	}()
	return t
}

// Task is a handle on a submitted function.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed once the function has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// IsDone reports whether the function has returned.
func (t *Task) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Cancel signals the task's context. It does not wait for the task to exit.
func (t *Task) Cancel() { t.cancel() }

// Err returns the function's error once Done is closed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}
