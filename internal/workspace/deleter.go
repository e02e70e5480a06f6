// Package workspace deletes workspace contents through local mounts of each
// node's filesystem.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zeebo/errs"

	"github.com/mattjoyce/wsclean/internal/fleet"
)

// Error is the class of all workspace deletion errors.
var Error = errs.Class("workspace")

// FSDeleter implements fleet.RemoteDeleter for nodes whose filesystem is
// mounted on this host. Mounts are keyed by node display name, so the
// controller is "controller".
type FSDeleter struct {
	mounts map[string]string
	logger *slog.Logger
}

var _ fleet.RemoteDeleter = (*FSDeleter)(nil)

// NewFSDeleter returns a deleter over mounts (node name → local root).
func NewFSDeleter(mounts map[string]string, logger *slog.Logger) *FSDeleter {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[string]string, len(mounts))
	for node, root := range mounts {
		m[node] = filepath.Clean(strings.TrimSpace(root))
	}
	return &FSDeleter{mounts: m, logger: logger}
}

// LocalPath maps a path as seen on node to its location under the node's
// mount. It fails with fleet.ErrNoChannel when the node is not mounted.
func (d *FSDeleter) LocalPath(node fleet.Node, remote string) (string, error) {
	root, ok := d.mounts[node.String()]
	if !ok {
		return "", Error.Wrap(fmt.Errorf("%w: %s is not mounted", fleet.ErrNoChannel, node))
	}
	rel := path.Clean("/" + filepath.ToSlash(remote))
	if rel == "/" {
		return "", Error.New("refusing to clear the root of %s", node)
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// DeleteContents removes every entry inside the workspace directory and
// keeps the directory itself. A missing workspace is already clean.
func (d *FSDeleter) DeleteContents(ctx context.Context, node fleet.Node, remote string) error {
	local, err := d.LocalPath(node, remote)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(local)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Debug("workspace already gone", "node", node.String(), "path", remote)
		return nil
	}
	if err != nil {
		return Error.Wrap(fmt.Errorf("%w: read %s on %s: %v", fleet.ErrIO, remote, node, err))
	}

	var failed []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(local, entry.Name())); err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return Error.Wrap(fmt.Errorf("%w: clear %s on %s: %v", fleet.ErrIO, remote, node, errors.Join(failed...)))
	}

	d.logger.Debug("workspace cleared", "node", node.String(), "path", remote, "entries", len(entries))
	return nil
}
