package cleanup

import (
	"maps"
	"slices"
)

// Location is one workspace directory on one node.
type Location struct {
	NodeName string
	Path     string
}

// Multimap maps node names to a set of workspace paths. Iteration is always
// sorted by node name and then by path.
type Multimap struct {
	nodes map[string]map[string]struct{}
}

// NewMultimap returns an empty Multimap.
func NewMultimap() *Multimap {
	return &Multimap{nodes: make(map[string]map[string]struct{})}
}

// Add inserts (node, path) and reports whether it was not already present.
func (m *Multimap) Add(node, path string) bool {
	paths, ok := m.nodes[node]
	if !ok {
		paths = make(map[string]struct{})
		m.nodes[node] = paths
	}
	if _, exists := paths[path]; exists {
		return false
	}
	paths[path] = struct{}{}
	return true
}

// AddAll inserts every pair of other.
func (m *Multimap) AddAll(other *Multimap) {
	for node, paths := range other.nodes {
		for path := range paths {
			m.Add(node, path)
		}
	}
}

// Contains reports whether (node, path) is present.
func (m *Multimap) Contains(node, path string) bool {
	_, ok := m.nodes[node][path]
	return ok
}

// HasNode reports whether node has at least one path.
func (m *Multimap) HasNode(node string) bool {
	_, ok := m.nodes[node]
	return ok
}

// Remove deletes (node, path). Nodes left without paths disappear.
func (m *Multimap) Remove(node, path string) {
	paths, ok := m.nodes[node]
	if !ok {
		return
	}
	delete(paths, path)
	if len(paths) == 0 {
		delete(m.nodes, node)
	}
}

// RemoveAll deletes every pair of other.
func (m *Multimap) RemoveAll(other *Multimap) {
	for node, paths := range other.nodes {
		for path := range paths {
			m.Remove(node, path)
		}
	}
}

// RemoveNode deletes node and all of its paths.
func (m *Multimap) RemoveNode(node string) {
	delete(m.nodes, node)
}

// Nodes returns the node names in lexicographic order.
func (m *Multimap) Nodes() []string {
	return slices.Sorted(maps.Keys(m.nodes))
}

// Paths returns node's paths in lexicographic order.
func (m *Multimap) Paths(node string) []string {
	return slices.Sorted(maps.Keys(m.nodes[node]))
}

// Locations returns every pair in iteration order.
func (m *Multimap) Locations() []Location {
	out := make([]Location, 0, m.Len())
	for _, node := range m.Nodes() {
		for _, path := range m.Paths(node) {
			out = append(out, Location{NodeName: node, Path: path})
		}
	}
	return out
}

// Len returns the number of (node, path) pairs.
func (m *Multimap) Len() int {
	n := 0
	for _, paths := range m.nodes {
		n += len(paths)
	}
	return n
}

// NodeCount returns the number of distinct nodes.
func (m *Multimap) NodeCount() int { return len(m.nodes) }

// IsEmpty reports whether there are no pairs.
func (m *Multimap) IsEmpty() bool { return len(m.nodes) == 0 }

// Clone returns an independent copy.
func (m *Multimap) Clone() *Multimap {
	out := NewMultimap()
	out.AddAll(m)
	return out
}

// KeepNodes returns a copy holding only the nodes for which keep is true.
func (m *Multimap) KeepNodes(keep func(node string) bool) *Multimap {
	out := NewMultimap()
	for _, node := range m.Nodes() {
		if !keep(node) {
			continue
		}
		for path := range m.nodes[node] {
			out.Add(node, path)
		}
	}
	return out
}
