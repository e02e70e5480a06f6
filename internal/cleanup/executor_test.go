package cleanup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/workpool"
)

type fakeRecorder struct {
	mu        sync.Mutex
	deletions map[string]int
	failures  int
}

func (r *fakeRecorder) ObserveDeletion(node string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deletions == nil {
		r.deletions = map[string]int{}
	}
	r.deletions[node]++
	if err != nil {
		r.failures++
	}
}

func (r *fakeRecorder) ObserveRun(fleet.Phase, string, time.Duration) {}

func newTestExecutor(f *fakeFleet, poolSize int) (*Executor, *lockedBuffer) {
	logger, logs := newTestLogger()
	return NewExecutor(f, f, workpool.New(poolSize), logger), logs
}

func fleetWith(nodes ...string) *fakeFleet {
	f := newFakeFleet()
	for _, n := range nodes {
		f.addNode(n)
	}
	return f
}

func TestExecuteSequentialDeletesInOrder(t *testing.T) {
	f := fleetWith("n1", "n2")
	exec, _ := newTestExecutor(f, 4)
	set := NewMultimap()
	set.Add("n2", "/w/b")
	set.Add("n2", "/w/a")
	set.Add("n1", "/w/a")
	set.Add("", "/ctl")

	report, err := exec.Execute(context.Background(), Sequential, set, time.Second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, 4, report.Planned)
	assert.Equal(t, 4, report.Deleted)
	assert.Equal(t, set.Locations(), f.deletedLocations())
}

func TestExecuteParallelRunsNodesConcurrently(t *testing.T) {
	const perDelete = 100 * time.Millisecond
	f := fleetWith("n1", "n2", "n3", "n4")
	f.deleteFn = sleepDelete(perDelete)
	exec, _ := newTestExecutor(f, 8)

	start := time.Now()
	report, err := exec.Execute(context.Background(), Parallel, candidatesOn("n1", "n2", "n3", "n4"), time.Minute)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, 4, report.Deleted)
	assert.Less(t, elapsed, 3*perDelete, "parallel deletion should take about one delete, took %s", elapsed)
}

func TestExecuteParallelSerialisesPathsOnOneNode(t *testing.T) {
	var active, peak atomic.Int32
	f := fleetWith("n1", "n2")
	f.deleteFn = func(ctx context.Context, node fleet.Node, _ string) error {
		if node.Name != "n1" {
			return nil
		}
		cur := active.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return nil
	}
	exec, _ := newTestExecutor(f, 8)
	set := candidatesOn("n2")
	for _, p := range []string{"/a", "/b", "/c"} {
		set.Add("n1", p)
	}

	report, err := exec.Execute(context.Background(), Parallel, set, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Deleted)
	assert.Equal(t, int32(1), peak.Load())
}

func TestExecuteParallelRespectsPoolSize(t *testing.T) {
	var active, peak atomic.Int32
	f := fleetWith("n1", "n2", "n3", "n4", "n5")
	f.deleteFn = func(context.Context, fleet.Node, string) error {
		cur := active.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return nil
	}
	exec, _ := newTestExecutor(f, 2)

	report, err := exec.Execute(context.Background(), Parallel, candidatesOn("n1", "n2", "n3", "n4", "n5"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Deleted)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExecuteContinuesAfterFailures(t *testing.T) {
	for _, mode := range []ExecutionMode{Sequential, Parallel} {
		t.Run(mode.String(), func(t *testing.T) {
			f := fleetWith("n1", "n2", "n3")
			f.deleteFn = func(_ context.Context, node fleet.Node, _ string) error {
				switch node.Name {
				case "n1":
					return fleet.ErrIO
				case "n2":
					return fleet.ErrNoChannel
				}
				return nil
			}
			exec, logs := newTestExecutor(f, 4)
			rec := &fakeRecorder{}
			exec.WithRecorder(rec)

			report, err := exec.Execute(context.Background(), mode, candidatesOn("n1", "n2", "n3"), time.Minute)
			require.NoError(t, err)
			assert.Equal(t, OutcomeCompleted, report.Outcome)
			assert.Equal(t, 1, report.Deleted)
			assert.Equal(t, 2, report.Failed)
			assert.Equal(t, []Location{{NodeName: "n3", Path: workspaceOf("n3", "app")}}, f.deletedLocations())
			assert.Contains(t, logs.String(), "cannot delete workspace")
			assert.Contains(t, logs.String(), "no deletion channel on node")
			assert.Equal(t, 2, rec.failures)
			assert.Len(t, rec.deletions, 3)
		})
	}
}

func TestExecuteSkipsVanishedNodes(t *testing.T) {
	for _, mode := range []ExecutionMode{Sequential, Parallel} {
		t.Run(mode.String(), func(t *testing.T) {
			f := fleetWith("n1")
			exec, _ := newTestExecutor(f, 4)

			report, err := exec.Execute(context.Background(), mode, candidatesOn("n1", "gone"), time.Minute)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Deleted)
			assert.Equal(t, 1, report.SkippedNodes)
		})
	}
}

func TestExecuteTimeout(t *testing.T) {
	for _, mode := range []ExecutionMode{Sequential, Parallel} {
		t.Run(mode.String(), func(t *testing.T) {
			f := fleetWith("n1", "n2")
			f.deleteFn = sleepDelete(5 * time.Second)
			exec, logs := newTestExecutor(f, 4)

			start := time.Now()
			report, err := exec.Execute(context.Background(), mode, candidatesOn("n1", "n2"), 50*time.Millisecond)
			require.NoError(t, err)
			assert.Equal(t, OutcomeTimedOut, report.Outcome)
			assert.Less(t, time.Since(start), time.Second)
			assert.Zero(t, report.Deleted)
			assert.Contains(t, logs.String(), "deletion phase timed out")
		})
	}
}

func TestExecuteCancellation(t *testing.T) {
	for _, mode := range []ExecutionMode{Sequential, Parallel} {
		for _, timeout := range []time.Duration{0, time.Minute} {
			t.Run(mode.String()+"/"+timeout.String(), func(t *testing.T) {
				// Sequential has one node in flight, parallel has all three.
				inFlight := int32(1)
				if mode == Parallel {
					inFlight = 3
				}

				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()

				var started, stopped atomic.Int32
				f := fleetWith("n1", "n2", "n3")
				f.deleteFn = func(ctx context.Context, _ fleet.Node, _ string) error {
					if started.Add(1) == inFlight {
						cancel()
					}
					<-ctx.Done()
					stopped.Add(1)
					return ctx.Err()
				}
				exec, _ := newTestExecutor(f, 4)

				start := time.Now()
				report, err := exec.Execute(ctx, mode, candidatesOn("n1", "n2", "n3"), timeout)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrCancelled)
				assert.Equal(t, OutcomeAbandoned, report.Outcome)
				assert.Less(t, time.Since(start), time.Second)
				assert.Zero(t, report.Failed, "cancelled deletes are not failures")
				assert.Eventually(t, func() bool { return stopped.Load() == inFlight }, time.Second, 10*time.Millisecond)
				time.Sleep(50 * time.Millisecond)
				assert.Equal(t, inFlight, started.Load(), "no node may start after cancellation")
				assert.Equal(t, inFlight, stopped.Load())
			})
		}
	}
}

func TestExecuteCancellationWithUnresponsiveDeleter(t *testing.T) {
	// An inline sequential phase cannot return before its delete does, so it
	// is not covered here.
	cases := []struct {
		mode    ExecutionMode
		timeout time.Duration
	}{
		{Parallel, 0},
		{Parallel, time.Minute},
		{Sequential, time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.mode.String()+"/"+tc.timeout.String(), func(t *testing.T) {
			f := fleetWith("n1", "n2", "n3")
			f.deleteFn = func(context.Context, fleet.Node, string) error {
				time.Sleep(time.Second)
				return nil
			}
			exec, _ := newTestExecutor(f, 4)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			time.AfterFunc(30*time.Millisecond, cancel)

			start := time.Now()
			report, err := exec.Execute(ctx, tc.mode, candidatesOn("n1", "n2", "n3"), tc.timeout)
			elapsed := time.Since(start)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCancelled)
			assert.Equal(t, OutcomeAbandoned, report.Outcome)
			assert.Less(t, elapsed, 500*time.Millisecond)
		})
	}
}

func TestExecuteEmptySet(t *testing.T) {
	f := fleetWith()
	exec, _ := newTestExecutor(f, 1)
	report, err := exec.Execute(context.Background(), Parallel, NewMultimap(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Zero(t, report.Planned)
}
