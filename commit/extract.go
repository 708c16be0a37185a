// SPDX-License-Identifier: MIT
//
// Package commit turns search candidates into accepted plans.
//
// Extract commits a candidate's usage against the ledger again and again,
// producing one Plan per successful TryCommit, and stops at the first
// failure. One discovered route pattern can thus absorb several units of
// capacity. A candidate whose very first commit fails lost a capacity race
// to another worker; it is dropped and only counted.
//
// Concurrency: an Extractor is safe for concurrent use. Commits are
// linearized by the ledger's exclusive lock.
package commit

import (
	"sync/atomic"

	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/search"
	"github.com/katalvlaran/plansynth/stategraph"
)

// Committer is the write side of the capacity ledger. *ledger.Ledger implements it.
type Committer interface {
	TryCommit(u ledger.Usage) bool
}

// Resolver resolves graph IDs. *stategraph.Graph and *stategraph.View implement it.
type Resolver interface {
	Node(id stategraph.NodeID) stategraph.Node
	Edge(id stategraph.EdgeID) stategraph.Edge
}

// Stats counts extraction outcomes.
type Stats struct {
	Candidates int64 // candidates offered to Extract
	Plans      int64 // plans accepted
	Races      int64 // candidates that could not be committed even once
}

// Extractor commits candidates and materializes plans.
type Extractor struct {
	ledger Committer
	graph  Resolver

	candidates atomic.Int64
	plans      atomic.Int64
	races      atomic.Int64
}

// NewExtractor returns an Extractor committing to l and resolving IDs through g.
func NewExtractor(l Committer, g Resolver) *Extractor {
	return &Extractor{ledger: l, graph: g}
}

// Extract commits c until the ledger refuses and returns one Plan per commit.
func (x *Extractor) Extract(c search.Candidate) []Plan {
	x.candidates.Add(1)

	var plans []Plan
	for x.ledger.TryCommit(c.Usage) {
		plans = append(plans, x.materialize(c))
	}
	if len(plans) == 0 {
		x.races.Add(1)
		return nil
	}
	x.plans.Add(int64(len(plans)))

	return plans
}

// materialize resolves a candidate's IDs into a self-contained Plan.
func (x *Extractor) materialize(c search.Candidate) Plan {
	p := Plan{
		Stops: make([]Stop, 0, len(c.Edges)+1),
		Legs:  make([]Leg, 0, len(c.Edges)),
	}
	root := x.graph.Node(c.Root)
	p.Stops = append(p.Stops, Stop{District: root.District, Purpose: root.Purpose, Bin: root.Bin})
	for _, id := range c.Edges {
		e := x.graph.Edge(id)
		n := x.graph.Node(e.Target)
		p.Legs = append(p.Legs, Leg{Edge: id, Trip: e.Trip, Mode: e.Mode})
		p.Stops = append(p.Stops, Stop{District: n.District, Purpose: n.Purpose, Bin: n.Bin})
	}

	return p
}

// Stats returns the extraction counters.
func (x *Extractor) Stats() Stats {
	return Stats{
		Candidates: x.candidates.Load(),
		Plans:      x.plans.Load(),
		Races:      x.races.Load(),
	}
}
