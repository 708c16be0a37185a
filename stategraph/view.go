// SPDX-License-Identifier: MIT
//
// File: view.go
// Role: Shared read access for traversal and exclusive pruning.
// Concurrency:
//   - A View holds the graph's read lock from Acquire until Release.
//   - Prune takes the write lock, so it starts only after every View is released.

package stategraph

import "sync"

// View is a read-locked window on the graph's adjacency.
// It must be released exactly once; extra Release calls are no-ops.
type View struct {
	g    *Graph
	once sync.Once
}

// Acquire takes a shared read lock on g and returns a View over it.
func (g *Graph) Acquire() *View {
	g.mu.RLock()

	return &View{g: g}
}

// Release drops the read lock.
func (v *View) Release() {
	v.once.Do(v.g.mu.RUnlock)
}

// Out returns the live outgoing edges of n in build order.
// The slice is valid until Release and must not be modified.
func (v *View) Out(n NodeID) []EdgeID { return v.g.out[n] }

// FirstEdge returns n's first outgoing edge and its cursor.
func (v *View) FirstEdge(n NodeID) (EdgeID, int, bool) {
	return v.NextEdge(n, -1)
}

// NextEdge returns the edge after cursor in n's adjacency and its cursor.
func (v *View) NextEdge(n NodeID, cursor int) (EdgeID, int, bool) {
	adj := v.g.out[n]
	next := cursor + 1
	if next < 0 || next >= len(adj) {
		return NoEdge, cursor, false
	}

	return adj[next], next, true
}

// Node resolves a node ID.
func (v *View) Node(id NodeID) Node { return v.g.nodes[id] }

// Edge resolves an edge ID.
func (v *View) Edge(id EdgeID) Edge { return v.g.edges[id] }

// Prune drops every live edge whose trip, (category, bin) or mode pool is
// depleted according to d, keeping the surviving order. It returns the
// number of edges removed.
func (g *Graph) Prune(d Depletion) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for n, adj := range g.out {
		kept := adj[:0]
		for _, id := range adj {
			if d.Depleted(g.edges[id].Key()) {
				removed++
				continue
			}
			kept = append(kept, id)
		}
		g.out[n] = kept
	}
	g.live -= removed

	return removed
}
