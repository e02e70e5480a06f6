package cleanup

import (
	"context"
	"log/slog"

	"github.com/mattjoyce/wsclean/internal/fleet"
)

// ExclusionEngine removes nodes that must not be cleaned.
type ExclusionEngine struct {
	catalog fleet.NodeCatalog
	logger  *slog.Logger
}

// NewExclusionEngine creates an ExclusionEngine.
func NewExclusionEngine(catalog fleet.NodeCatalog, logger *slog.Logger) *ExclusionEngine {
	return &ExclusionEngine{catalog: catalog, logger: logger}
}

// Filter returns a copy of candidates without the nodes that match a skip
// pattern, are listed in rules.DisabledNodes, or carry the catalog's cleanup
// opt-out. A node whose opt-out cannot be read is left out as well. The input
// is never modified.
func (x *ExclusionEngine) Filter(ctx context.Context, candidates *Multimap, rules ExclusionRules) (*Multimap, error) {
	byPattern := candidates.KeepNodes(func(node string) bool {
		if rules.Patterns.Matches(node) {
			x.logger.Info("skipping node matching skip pattern", "node", fleet.DisplayName(node))
			return false
		}
		return true
	})

	var ctxErr error
	out := byPattern.KeepNodes(func(node string) bool {
		if ctxErr != nil {
			return false
		}
		if _, ok := rules.DisabledNodes[node]; ok {
			x.logger.Info("skipping node disabled in configuration", "node", fleet.DisplayName(node))
			return false
		}
		disabled, err := x.catalog.IsDisabledForCleanup(ctx, fleet.Node{Name: node})
		if err != nil {
			if ctx.Err() != nil {
				ctxErr = ctx.Err()
				return false
			}
			x.logger.Warn("cannot read cleanup opt-out, skipping node", "node", fleet.DisplayName(node), "error", err)
			return false
		}
		if disabled {
			x.logger.Info("skipping node with cleanup disabled", "node", fleet.DisplayName(node))
			return false
		}
		return true
	})
	if ctxErr != nil {
		return nil, cancelled(ctxErr)
	}
	return out, nil
}
