// SPDX-License-Identifier: MIT
//
// File: build.go
// Role: One-time construction of the arena from the reference tables.
// Determinism:
//   - Edges are created in trip order, then bin 0..B-1, then mode order.
//   - Node IDs follow first appearance in that sweep (source before target).
//   - Identical tables and options therefore yield identical IDs.

package stategraph

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/timebin"
)

var tracer = otel.Tracer("plansynth.stategraph")

// Build creates the state graph for every trip × bin × mode of t.
func Build(t *refdata.Tables, opts ...Option) (*Graph, error) {
	if t == nil {
		return nil, ErrNilTables
	}
	o := buildOptions{ctx: context.Background()}
	for _, fn := range opts {
		fn(&o)
	}

	modes, err := resolveModes(t, o.modes)
	if err != nil {
		return nil, err
	}

	_, span := tracer.Start(o.ctx, "stategraph.Build",
		trace.WithAttributes(
			attribute.Int("trips", len(t.Trips())),
			attribute.Int("modes", len(modes)),
		),
	)
	defer span.End()

	trips := t.Trips()
	edgeCap := len(trips) * timebin.Count * len(modes)
	g := &Graph{edges: make([]Edge, 0, edgeCap)}

	// Transient registry; topology is slices once Build returns.
	registry := make(map[Node]NodeID)
	intern := func(n Node) NodeID {
		if id, ok := registry[n]; ok {
			return id
		}
		id := NodeID(len(g.nodes))
		registry[n] = id
		g.nodes = append(g.nodes, n)
		g.out = append(g.out, nil)

		return id
	}

	cats := t.Categories()
	for _, tr := range trips {
		cat := cats[tr.CategoryIndex]
		stay := t.Duration(cat.Origin)
		for _, bin := range timebin.All() {
			src := intern(Node{District: tr.Origin, Purpose: cat.Origin, Bin: bin})
			dst := intern(Node{District: tr.Destination, Purpose: cat.Destination, Bin: bin.Add(stay)})
			for _, m := range modes {
				id := EdgeID(len(g.edges))
				g.edges = append(g.edges, Edge{
					ID:            id,
					Trip:          tr.ID,
					CategoryIndex: tr.CategoryIndex,
					Mode:          m,
					Source:        src,
					Target:        dst,
					Depart:        bin,
				})
				g.out[src] = append(g.out[src], id)
			}
		}
	}
	g.live = len(g.edges)

	span.SetAttributes(
		attribute.Int("nodes", len(g.nodes)),
		attribute.Int("edges", len(g.edges)),
	)

	return g, nil
}

// resolveModes returns the requested modes in canonical order, or every table mode.
func resolveModes(t *refdata.Tables, want []refdata.Mode) ([]refdata.Mode, error) {
	var have [refdata.ModeCount]bool
	all := make([]refdata.Mode, 0, len(t.Modes()))
	for _, s := range t.Modes() {
		have[s.Mode] = true
		all = append(all, s.Mode)
	}
	if want == nil {
		return all, nil
	}

	var pick [refdata.ModeCount]bool
	for _, m := range want {
		if !m.Valid() || !have[m] {
			return nil, fmt.Errorf("%w: %v", ErrModeNotInTables, m)
		}
		pick[m] = true
	}
	out := make([]refdata.Mode, 0, len(want))
	for _, m := range all {
		if pick[m] {
			out = append(out, m)
		}
	}

	return out, nil
}
