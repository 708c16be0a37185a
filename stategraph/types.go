// SPDX-License-Identifier: MIT

package stategraph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/timebin"
)

// Sentinel errors for graph construction.
var (
	// ErrNilTables indicates Build was called without reference tables.
	ErrNilTables = errors.New("stategraph: tables are nil")

	// ErrModeNotInTables indicates a requested mode has no share in the tables.
	ErrModeNotInTables = errors.New("stategraph: mode not in tables")
)

// NodeID is the dense index of a node in the arena.
type NodeID int32

// EdgeID is the dense index of an edge in the arena.
type EdgeID int32

// NoEdge is returned by lookups that find no edge.
const NoEdge EdgeID = -1

// Node is a (district, purpose, time bin) state. Nodes compare by value.
type Node struct {
	District refdata.DistrictID
	Purpose  refdata.Purpose
	Bin      timebin.TimeBin
}

func (n Node) String() string {
	return fmt.Sprintf("d%d/%s@%s", n.District, n.Purpose, n.Bin)
}

// Edge is one trip record travelled with one mode, departing at Source's bin.
type Edge struct {
	ID            EdgeID
	Trip          refdata.TripID
	CategoryIndex int
	Mode          refdata.Mode
	Source        NodeID
	Target        NodeID
	Depart        timebin.TimeBin
}

// Key returns the ledger resources a traversal of e consumes.
func (e Edge) Key() ledger.Key {
	return ledger.Key{Trip: e.Trip, CategoryIndex: e.CategoryIndex, Bin: e.Depart, Mode: e.Mode}
}

// Depletion reports whether a resource pool is exhausted. *ledger.Ledger implements it.
type Depletion interface {
	Depleted(k ledger.Key) bool
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	ctx   context.Context
	modes []refdata.Mode
}

// WithModes restricts the edges to the given modes (default: every mode in the tables).
func WithModes(modes ...refdata.Mode) Option {
	return func(o *buildOptions) {
		o.modes = append([]refdata.Mode(nil), modes...)
	}
}

// WithContext sets the context Build records its trace span under.
// A nil context is ignored.
func WithContext(ctx context.Context) Option {
	return func(o *buildOptions) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// Graph is the immutable-topology state graph. Only adjacency shrinks, via Prune.
type Graph struct {
	mu sync.RWMutex

	nodes []Node
	edges []Edge
	out   [][]EdgeID // per node, build order, live edges only
	live  int
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges not yet pruned.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.live
}

// BuiltEdgeCount returns the number of edges Build created.
func (g *Graph) BuiltEdgeCount() int { return len(g.edges) }

// Node returns the node with the given ID.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// Edge returns the edge with the given ID, pruned or not.
func (g *Graph) Edge(id EdgeID) Edge { return g.edges[id] }

// Nodes returns a copy of all nodes in ID order.
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Roots returns, in ID order, the nodes whose purpose is in allowed and that
// still have at least one outgoing edge.
func (g *Graph) Roots(allowed refdata.PurposeSet) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []NodeID
	for i, n := range g.nodes {
		if allowed.Has(n.Purpose) && len(g.out[i]) > 0 {
			roots = append(roots, NodeID(i))
		}
	}

	return roots
}
