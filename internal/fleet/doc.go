// Package fleet defines the host-side collaborators the cleanup engine consumes:
// the node catalog, label membership, workspace path resolution, build history,
// and the remote deletion primitive.
//
// Everything here is an interface or a plain value so that candidate calculation
// is reproducible from explicit inputs. The SQLite inventory
// (internal/inventory) and the filesystem deleter (internal/workspace) are the
// bundled implementations; tests use the gomock mocks in fleet/mocks.
//
// The controller node is represented by the empty name "". It stays empty inside
// every map and set and is only turned into "controller" by DisplayName when it
// is logged or rendered.
package fleet
