package cleanup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mattjoyce/wsclean/internal/fleet"
)

func newTestLogger() (*slog.Logger, *lockedBuffer) {
	buf := &lockedBuffer{}
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), buf
}

// lockedBuffer lets parallel node tasks log into one buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type fakeNode struct {
	mode     fleet.Mode
	disabled bool
	offline  bool
	labels   []string
}

// fakeFleet implements every fleet collaborator from an in-memory table.
type fakeFleet struct {
	mu      sync.Mutex
	nodes   map[string]*fakeNode
	jobs    map[string]string
	history map[string][]fleet.BuildRecord

	// deleteFn overrides the default instant success.
	deleteFn func(ctx context.Context, node fleet.Node, path string) error
	deleted  []Location
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{
		nodes:   map[string]*fakeNode{"": {}},
		jobs:    map[string]string{},
		history: map[string][]fleet.BuildRecord{},
	}
}

func (f *fakeFleet) addNode(name string, labels ...string) *fakeNode {
	n := &fakeNode{labels: labels}
	f.nodes[name] = n
	return n
}

func workspaceOf(node, job string) string {
	if node == "" {
		return "/var/ci/jobs/" + job + "/workspace"
	}
	return "/home/ci/" + node + "/workspace/" + job
}

func (f *fakeFleet) ListNodes(context.Context) ([]fleet.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fleet.Node
	for name := range f.nodes {
		out = append(out, fleet.Node{Name: name})
	}
	slices.SortFunc(out, func(a, b fleet.Node) int { return cmpString(a.Name, b.Name) })
	return out, nil
}

func (f *fakeFleet) ResolveByName(_ context.Context, name string) (fleet.Node, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[name]; !ok {
		return fleet.Node{}, false, nil
	}
	return fleet.Node{Name: name}, true, nil
}

func (f *fakeFleet) NodeMode(_ context.Context, node fleet.Node) (fleet.Mode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[node.Name]
	if !ok {
		return fleet.ModeNormal, fmt.Errorf("no node %q", node.Name)
	}
	return n.mode, nil
}

func (f *fakeFleet) IsDisabledForCleanup(_ context.Context, node fleet.Node) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[node.Name]
	if !ok {
		return false, nil
	}
	return n.disabled, nil
}

func (f *fakeFleet) AssignedLabel(_ context.Context, job fleet.Job) (*fleet.Label, error) {
	label, ok := f.jobs[job.Name]
	if !ok || label == "" {
		return nil, nil
	}
	return &fleet.Label{Name: label}, nil
}

func (f *fakeFleet) NodesForLabel(_ context.Context, label fleet.Label) ([]fleet.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fleet.Node
	for name, n := range f.nodes {
		if slices.Contains(n.labels, label.Name) {
			out = append(out, fleet.Node{Name: name})
		}
	}
	slices.SortFunc(out, func(a, b fleet.Node) int { return cmpString(a.Name, b.Name) })
	return out, nil
}

func (f *fakeFleet) WorkspacePathFor(_ context.Context, node fleet.Node, job fleet.Job) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[node.Name]
	if !ok || n.offline {
		return "", false, nil
	}
	return workspaceOf(node.Name, job.Name), true, nil
}

func (f *fakeFleet) RecordsFor(_ context.Context, job fleet.Job) ([]fleet.BuildRecord, error) {
	return f.history[job.Name], nil
}

func (f *fakeFleet) DeleteContents(ctx context.Context, node fleet.Node, path string) error {
	var err error
	if f.deleteFn != nil {
		err = f.deleteFn(ctx, node, path)
	}
	if err == nil {
		f.mu.Lock()
		f.deleted = append(f.deleted, Location{NodeName: node.Name, Path: path})
		f.mu.Unlock()
	}
	return err
}

func (f *fakeFleet) deletedLocations() []Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sleepDelete sleeps d per call, or until the task is cancelled.
func sleepDelete(d time.Duration) func(ctx context.Context, node fleet.Node, path string) error {
	return func(ctx context.Context, _ fleet.Node, _ string) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// built returns a finished build record of job on node.
func built(job, node string) fleet.BuildRecord {
	return fleet.BuildRecord{NodeName: node, Started: true, WorkspacePath: workspaceOf(node, job)}
}

func running(job, node string) fleet.BuildRecord {
	r := built(job, node)
	r.Running = true
	return r
}
