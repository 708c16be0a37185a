// Package stategraph provides the arena-backed state graph the plan search
// walks: nodes are (district, purpose, time-bin) states, edges are
// (trip record, mode) transitions between them.
//
// Build creates, for every trip record × time bin × mode, one edge
//
//	source = (origin district,      category origin purpose,      t)
//	target = (destination district, category destination purpose, t + duration(origin purpose))
//
// Nodes are deduplicated by value through a map that lives only during Build.
// Afterwards topology is plain slices: nodes and edges are addressed by dense
// integer IDs, and every node owns an adjacency slice of outgoing EdgeIDs in
// build order, which gives the search a stable first/next sibling order.
//
// Lifecycle:
//
//   - Build once. The node set never changes afterwards.
//   - Acquire a *View for reading. Views share a read lock; hold one for the
//     whole traversal of a root and Release it when done.
//   - Prune removes edges whose trip, (category, bin) or mode pool is
//     depleted. It takes the write lock, so it waits for every outstanding
//     View to be released. Pruning is an optimization: admission filters
//     re-check capacity on every step.
//
// Pruned edges disappear from adjacency but stay resolvable through Edge(id),
// so plans referencing them remain valid.
//
// Complexity:
//
//   - Build:       O(T·B·M) time and space (T trip records, B bins, M modes).
//   - FirstEdge / NextEdge / Node / Edge: O(1).
//   - Prune:       O(live edges) plus one ledger peek per edge.
//
// Errors:
//
//   - ErrNilTables      Build received nil tables.
//   - ErrModeNotInTables WithModes names a mode without a share in the tables.
package stategraph
