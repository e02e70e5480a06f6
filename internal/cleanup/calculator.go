package cleanup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/wsclean/internal/fleet"
)

// LabelAssignment is a job's label together with its current node membership.
type LabelAssignment struct {
	Label fleet.Label
	Nodes []fleet.Node
}

// Request carries everything Compute needs for one run.
type Request struct {
	Job fleet.Job
	// CurrentNode is the node the triggering build runs on.
	CurrentNode string
	// Label is nil for a roaming job.
	Label       *LabelAssignment
	History     []fleet.BuildRecord
	Policy      SelectionPolicy
	SkipRoaming bool
}

// Calculator computes the candidate set for a run.
type Calculator struct {
	catalog    fleet.NodeCatalog
	workspaces fleet.WorkspaceResolver
	logger     *slog.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator(catalog fleet.NodeCatalog, workspaces fleet.WorkspaceResolver, logger *slog.Logger) *Calculator {
	return &Calculator{
		catalog:    catalog,
		workspaces: workspaces,
		logger:     logger,
	}
}

// historyScan is the result of one pass over a job's build history.
type historyScan struct {
	reclaimable *Multimap
	inUse       *Multimap
	dead        map[string]struct{}
}

// Compute returns every (node, path) that may be deleted for req.
//
// The build history is always scanned so that in-use workspaces and nodes
// that cannot be vouched for are subtracted no matter which sources discover
// candidates. Only Policy.UseHistory lets finished builds add candidates.
func (c *Calculator) Compute(ctx context.Context, req Request) (*Multimap, error) {
	candidates := NewMultimap()

	if req.Policy.UseLabels {
		byLabel, err := c.labelCandidates(ctx, req)
		if err != nil {
			return nil, err
		}
		candidates.AddAll(byLabel)
	}

	scan, err := c.scanHistory(ctx, req.History)
	if err != nil {
		return nil, err
	}
	if req.Policy.UseHistory {
		candidates.AddAll(scan.reclaimable)
	}

	for node := range scan.dead {
		if candidates.HasNode(node) {
			c.logger.Info("not cleaning node whose state is unknown", "node", fleet.DisplayName(node))
		}
		candidates.RemoveNode(node)
	}
	candidates.RemoveAll(scan.inUse)
	candidates.RemoveNode(req.CurrentNode)

	return candidates, nil
}

func (c *Calculator) labelCandidates(ctx context.Context, req Request) (*Multimap, error) {
	out := NewMultimap()

	var nodes []fleet.Node
	if req.Label == nil {
		if req.SkipRoaming {
			c.logger.Info("skipping roaming job", "job", req.Job.Name)
			return out, nil
		}
		normal, err := c.normalNodes(ctx)
		if err != nil {
			return nil, err
		}
		nodes = normal
	} else {
		nodes = req.Label.Nodes
	}

	for _, node := range nodes {
		if node.Name == req.CurrentNode {
			continue
		}
		path, ok, err := c.workspaces.WorkspacePathFor(ctx, node, req.Job)
		if err != nil {
			return nil, Error.Wrap(fmt.Errorf("resolve workspace of %q on %s: %w", req.Job.Name, node, err))
		}
		if !ok {
			c.logger.Debug("node has no reachable workspace", "node", node.String())
			continue
		}
		out.Add(node.Name, path)
	}
	return out, nil
}

func (c *Calculator) normalNodes(ctx context.Context) ([]fleet.Node, error) {
	all, err := c.catalog.ListNodes(ctx)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("list nodes: %w", err))
	}
	nodes := make([]fleet.Node, 0, len(all))
	for _, node := range all {
		mode, err := c.catalog.NodeMode(ctx, node)
		if err != nil {
			return nil, Error.Wrap(fmt.Errorf("mode of %s: %w", node, err))
		}
		if mode == fleet.ModeNormal {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func (c *Calculator) scanHistory(ctx context.Context, history []fleet.BuildRecord) (historyScan, error) {
	scan := historyScan{
		reclaimable: NewMultimap(),
		inUse:       NewMultimap(),
		dead:        make(map[string]struct{}),
	}
	exists := make(map[string]bool)

	for _, rec := range history {
		if !rec.Started {
			continue
		}
		known, seen := exists[rec.NodeName]
		if !seen {
			_, ok, err := c.catalog.ResolveByName(ctx, rec.NodeName)
			if err != nil {
				return historyScan{}, Error.Wrap(fmt.Errorf("resolve node %q: %w", fleet.DisplayName(rec.NodeName), err))
			}
			known = ok
			exists[rec.NodeName] = ok
		}
		if !known || rec.WorkspacePath == "" {
			scan.dead[rec.NodeName] = struct{}{}
			continue
		}
		if rec.Running {
			scan.inUse.Add(rec.NodeName, rec.WorkspacePath)
			continue
		}
		scan.reclaimable.Add(rec.NodeName, rec.WorkspacePath)
	}
	return scan, nil
}
