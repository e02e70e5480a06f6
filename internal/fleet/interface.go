package fleet

import "context"

//go:generate mockgen -destination=mocks/mock_fleet.go -package=mocks github.com/mattjoyce/wsclean/internal/fleet NodeCatalog,LabelResolver,WorkspaceResolver,BuildHistory,RemoteDeleter

// NodeCatalog exposes the fleet's current node set.
type NodeCatalog interface {
	ListNodes(ctx context.Context) ([]Node, error)
	// ResolveByName returns ok=false when no node of that name exists.
	ResolveByName(ctx context.Context, name string) (Node, bool, error)
	NodeMode(ctx context.Context, node Node) (Mode, error)
	IsDisabledForCleanup(ctx context.Context, node Node) (bool, error)
}

// LabelResolver maps jobs to labels and labels to nodes.
type LabelResolver interface {
	// AssignedLabel returns nil for a roaming job.
	AssignedLabel(ctx context.Context, job Job) (*Label, error)
	NodesForLabel(ctx context.Context, label Label) ([]Node, error)
}

// WorkspaceResolver locates a job's workspace on a node.
type WorkspaceResolver interface {
	// WorkspacePathFor returns ok=false when the node is offline or has no
	// workspace for the job.
	WorkspacePathFor(ctx context.Context, node Node, job Job) (path string, ok bool, err error)
}

// BuildHistory yields a job's builds, newest first.
type BuildHistory interface {
	RecordsFor(ctx context.Context, job Job) ([]BuildRecord, error)
}

// RemoteDeleter removes the contents of a workspace directory on a node.
type RemoteDeleter interface {
	DeleteContents(ctx context.Context, node Node, path string) error
}
