package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/fleet/mocks"
	"github.com/mattjoyce/wsclean/internal/workpool"
)

type memoryRuns struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (m *memoryRuns) RecordRun(ctx context.Context, res Result) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return m.err
}

func (m *memoryRuns) last() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[len(m.results)-1]
}

func newTestOrchestrator(f *fakeFleet, settings Settings) (*Orchestrator, *memoryRuns, *lockedBuffer) {
	logger, logs := newTestLogger()
	runs := &memoryRuns{}
	o := NewOrchestrator(settings, Deps{
		Catalog:    f,
		Labels:     f,
		Workspaces: f,
		History:    f,
		Deleter:    f,
		Pool:       workpool.New(4),
		Runs:       runs,
		Logger:     logger,
	})
	return o, runs, logs
}

func TestRunFiveNodeLabelExample(t *testing.T) {
	f := newFakeFleet()
	for _, n := range []string{"A", "B", "C", "D", "E"} {
		f.addNode(n, "pool")
	}
	f.nodes["D"].offline = true
	f.nodes["E"].offline = true
	f.jobs["app"] = "pool"

	settings := DefaultSettings()
	settings.Parallel = false
	o, runs, logs := newTestOrchestrator(f, settings)

	res, err := o.Run(context.Background(), fleet.PhasePost, BuildContext{Job: fleet.Job{Name: "app"}, NodeName: "A"})
	require.NoError(t, err)
	assert.Equal(t, []Location{
		{NodeName: "B", Path: workspaceOf("B", "app")},
		{NodeName: "C", Path: workspaceOf("C", "app")},
	}, f.deletedLocations())

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, res.Planned)
	assert.Equal(t, 2, res.Deleted)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, res.RunID, runs.last().RunID)
	assert.Contains(t, logs.String(), "Post-build workspace cleanup started")
	assert.Contains(t, logs.String(), "Post-build workspace cleanup completed")
}

func TestRunHistoryOnlyDeletesOldWorkspaces(t *testing.T) {
	const (
		normalWS = "/workspaces/NormalPlace"
		weirdWS  = "/workspaces/SomewhereElse"
	)
	f := newFakeFleet()
	for _, n := range []string{"node1", "node2", "node3", "node4", "node5"} {
		f.addNode(n)
	}
	f.nodes["node5"].disabled = true

	rec := func(node, ws string, running bool) fleet.BuildRecord {
		return fleet.BuildRecord{NodeName: node, Started: true, WorkspacePath: ws, Running: running}
	}
	f.history["app"] = []fleet.BuildRecord{
		{WorkspacePath: normalWS},                   // not started yet
		{NodeName: "node2", WorkspacePath: weirdWS}, // allocated but not started
		rec("node2", normalWS, true),                // concurrent with us
		rec("node1", normalWS, true),                // another running build
		rec("node5", normalWS, false),               // node opted out
		rec("nodeX", normalWS, false),               // node no longer exists
		rec("node2", normalWS, false),
		rec("node3", normalWS, false),
		rec("node3", weirdWS, false),
		rec("node4", normalWS, false),
		rec("node1", normalWS, false),
		rec("", normalWS, false),
	}

	settings := DefaultSettings()
	settings.Selection = SelectHistoryOnly
	settings.Parallel = false
	o, _, logs := newTestOrchestrator(f, settings)

	res, err := o.Run(context.Background(), fleet.PhasePre, BuildContext{Job: fleet.Job{Name: "app"}, NodeName: "nodeX"})
	require.NoError(t, err)
	assert.Equal(t, []Location{
		{NodeName: "", Path: normalWS},
		{NodeName: "node3", Path: normalWS},
		{NodeName: "node3", Path: weirdWS},
		{NodeName: "node4", Path: normalWS},
	}, f.deletedLocations())
	assert.Equal(t, 4, res.Deleted)
	assert.Contains(t, logs.String(), "Pre-build workspace cleanup started")
}

func TestRunTimeoutLogsFailedBanner(t *testing.T) {
	f := newFakeFleet()
	f.addNode("n1", "l")
	f.addNode("n2", "l")
	f.jobs["app"] = "l"
	f.deleteFn = sleepDelete(5 * time.Second)

	settings := DefaultSettings()
	settings.Timeout = 50 * time.Millisecond
	o, runs, logs := newTestOrchestrator(f, settings)

	res, err := o.Run(context.Background(), fleet.PhasePost, BuildContext{Job: fleet.Job{Name: "app"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, StatusFailed, runs.last().Status)
	assert.Contains(t, logs.String(), "Post-build workspace cleanup failed")
}

func TestRunCancellationLogsAbandonedBanner(t *testing.T) {
	f := newFakeFleet()
	f.addNode("n1", "l")
	f.jobs["app"] = "l"
	f.deleteFn = sleepDelete(5 * time.Second)

	o, runs, logs := newTestOrchestrator(f, DefaultSettings())
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	res, err := o.Run(ctx, fleet.PhasePost, BuildContext{Job: fleet.Job{Name: "app"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, OutcomeAbandoned, res.Outcome)
	assert.Equal(t, StatusAbandoned, res.Status)
	assert.Equal(t, StatusAbandoned, runs.last().Status, "the run is recorded even though ctx is done")
	assert.Contains(t, logs.String(), "Post-build workspace cleanup abandoned")
}

func TestRunCollaboratorFailureLogsFailedBanner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	labels := mocks.NewMockLabelResolver(ctrl)
	labels.EXPECT().AssignedLabel(gomock.Any(), gomock.Any()).Return(nil, errors.New("catalog offline"))

	logger, logs := newTestLogger()
	o := NewOrchestrator(DefaultSettings(), Deps{
		Catalog:    mocks.NewMockNodeCatalog(ctrl),
		Labels:     labels,
		Workspaces: mocks.NewMockWorkspaceResolver(ctrl),
		History:    mocks.NewMockBuildHistory(ctrl),
		Deleter:    mocks.NewMockRemoteDeleter(ctrl),
		Logger:     logger,
	})

	res, err := o.Run(context.Background(), fleet.PhasePost, BuildContext{Job: fleet.Job{Name: "app"}})
	require.Error(t, err)
	assert.True(t, Error.Has(err))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "catalog offline")
	assert.Contains(t, logs.String(), "Post-build workspace cleanup failed")
}

func TestRunNothingToClean(t *testing.T) {
	f := newFakeFleet()
	f.addNode("n1", "l")
	f.jobs["app"] = "l"

	o, _, logs := newTestOrchestrator(f, DefaultSettings())
	res, err := o.Run(context.Background(), fleet.PhasePost, BuildContext{Job: fleet.Job{Name: "app"}, NodeName: "n1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Zero(t, res.Planned)
	assert.Contains(t, logs.String(), "no workspaces to clean")
}

func TestPlanDoesNotDelete(t *testing.T) {
	f := newFakeFleet()
	f.addNode("n1", "l")
	f.addNode("n2", "l")
	f.addNode("skipme", "l")
	f.jobs["app"] = "l"

	settings := DefaultSettings()
	settings.Patterns = CompilePatterns([]string{"skip.*", "("})
	o, _, logs := newTestOrchestrator(f, settings)
	assert.Contains(t, logs.String(), "ignoring invalid skip pattern")

	plan, err := o.Plan(context.Background(), BuildContext{Job: fleet.Job{Name: "app"}, NodeName: "n1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"n2"}, plan.Nodes())
	assert.Empty(t, f.deletedLocations())
}

func TestHook(t *testing.T) {
	f := newFakeFleet()
	f.addNode("n1", "l")
	f.jobs["app"] = "l"
	o, _, _ := newTestOrchestrator(f, DefaultSettings())
	ctx := context.Background()

	t.Run("finished runs post for default jobs", func(t *testing.T) {
		res, ran, err := o.Hook(ctx, EventFinished, BuildContext{Job: fleet.Job{Name: "app"}})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, fleet.PhasePost, res.Phase)
	})

	t.Run("started is ignored for post jobs", func(t *testing.T) {
		_, ran, err := o.Hook(ctx, EventStarted, BuildContext{Job: fleet.Job{Name: "app"}})
		require.NoError(t, err)
		assert.False(t, ran)
	})

	t.Run("started runs pre for pre jobs", func(t *testing.T) {
		res, ran, err := o.Hook(ctx, EventStarted, BuildContext{Job: fleet.Job{Name: "app", CleanPhase: fleet.PhasePre}})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, fleet.PhasePre, res.Phase)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, ran, err := o.Hook(ctx, HookEvent("deleted"), BuildContext{Job: fleet.Job{Name: "app"}})
		assert.Error(t, err)
		assert.False(t, ran)
	})
}
