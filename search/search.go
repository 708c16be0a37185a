// SPDX-License-Identifier: MIT
//
// Package search walks the state graph depth-first from one root without
// recursion, using an explicit stack of frames.
//
// A frame holds the edge it stands on, that edge's position among its
// parent's outgoing edges, the filter State after traversing it and whether
// the chain admitted it (any verdict but Reject). Only an admitted frame can
// have children.
//
// Moves:
//
//   - descend: from the top frame's target (or the root when the stack is
//     empty) take the first outgoing edge, evaluate the chain against the
//     top's State and push the new frame.
//   - advanceSibling: replace the top frame by the next outgoing edge of the
//     same parent, evaluating from the parent's State, which sits in the
//     frame below (or is the root State).
//   - ascend: pop the top frame. The parent's State is simply the frame
//     below; nothing is recomputed.
//
// Every Satisfied evaluation hands a Candidate to emit before the walk goes
// on, so a satisfied prefix is still extended and its siblings still tried.
//
// Complexity:
//
//   - Time:   O(paths explored × chain cost).
//   - Memory: O(depth) frames; depth is bounded by the chain's MaxLength.
//
// Errors:
//
//   - ErrNilView, ErrNilChain  on missing inputs.
//   - ErrRootNotAdmitted       if the root purpose fails FirstActivity.
//   - ErrStepLimit             if WithMaxSteps stops the walk early.
package search

import (
	"github.com/katalvlaran/plansynth/filter"
	"github.com/katalvlaran/plansynth/stategraph"
)

// frame is one level of the explicit DFS stack.
type frame struct {
	edge     stategraph.EdgeID
	cursor   int
	state    filter.State
	admitted bool
}

// walker encapsulates state during one root's traversal.
type walker struct {
	view  *stategraph.View
	chain *filter.Chain
	opts  Options
	emit  func(Candidate)

	root      stategraph.NodeID
	rootState filter.State
	stack     []frame
	stats     Stats
	err       error
}

// Run explores every path from root admitted by chain and calls emit for each
// Satisfied one. The view must stay acquired for the duration of Run.
func Run(v *stategraph.View, chain *filter.Chain, root stategraph.NodeID, emit func(Candidate), opts ...Option) (Stats, error) {
	// 1. Validate inputs
	if v == nil {
		return Stats{}, ErrNilView
	}
	if chain == nil {
		return Stats{}, ErrNilChain
	}

	// 2. Apply options
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	// 3. FirstActivity decides the root once
	rs, ok := chain.Root(v.Node(root).Purpose)
	if !ok {
		return Stats{}, ErrRootNotAdmitted
	}
	if emit == nil {
		emit = func(Candidate) {}
	}

	w := &walker{
		view:      v,
		chain:     chain,
		opts:      o,
		emit:      emit,
		root:      root,
		rootState: rs,
		stack:     make([]frame, 0, chain.Params().MaxLength),
	}
	w.walk()

	return w.stats, w.err
}

// walk drives descend / advanceSibling / ascend until the stack empties.
func (w *walker) walk() {
	for {
		// 1. Try to go one level deeper from an admitted position.
		if len(w.stack) == 0 || w.top().admitted {
			if w.descend() {
				if w.top().admitted {
					continue
				}
			} else if len(w.stack) == 0 {
				return // root without outgoing edges
			}
		}
		if w.err != nil {
			return
		}

		// 2. Move sideways to the next admitted sibling, ascending when exhausted.
		for {
			if w.err != nil {
				return
			}
			if w.advanceSibling() {
				if w.top().admitted {
					break
				}
				continue
			}
			w.ascend()
			if len(w.stack) == 0 {
				return
			}
		}
	}
}

func (w *walker) top() *frame { return &w.stack[len(w.stack)-1] }

// parent returns the node and State new children of the given depth extend.
func (w *walker) parent(depth int) (stategraph.NodeID, filter.State) {
	if depth == 0 {
		return w.root, w.rootState
	}
	f := &w.stack[depth-1]

	return w.view.Edge(f.edge).Target, f.state
}

// descend pushes the first child of the current position.
func (w *walker) descend() bool {
	if w.err != nil {
		return false
	}
	depth := len(w.stack)
	node, ps := w.parent(depth)
	e, cur, ok := w.view.FirstEdge(node)
	if !ok {
		return false
	}
	w.stack = append(w.stack, w.evaluate(depth, ps, e, cur))
	if len(w.stack) > w.stats.MaxDepth {
		w.stats.MaxDepth = len(w.stack)
	}

	return true
}

// advanceSibling replaces the top frame with its parent's next outgoing edge.
func (w *walker) advanceSibling() bool {
	depth := len(w.stack) - 1
	node, ps := w.parent(depth)
	e, cur, ok := w.view.NextEdge(node, w.stack[depth].cursor)
	if !ok {
		return false
	}
	w.stack[depth] = w.evaluate(depth, ps, e, cur)

	return true
}

// ascend pops the top frame.
func (w *walker) ascend() {
	w.stack = w.stack[:len(w.stack)-1]
}

// evaluate runs the chain for edge e extending ps and emits on Satisfied.
// The frame is placed at index depth.
func (w *walker) evaluate(depth int, ps filter.State, e stategraph.EdgeID, cursor int) frame {
	edge := w.view.Edge(e)
	src, dst := w.view.Node(edge.Source), w.view.Node(edge.Target)
	st, out := w.chain.Step(ps, filter.Move{
		Key:  edge.Key(),
		From: src.Purpose,
		To:   dst.Purpose,
		Bins: dst.Bin.Sub(src.Bin),
	})

	w.stats.Steps++
	if w.opts.OnStep != nil {
		w.opts.OnStep(depth+1, e, out)
	}
	if w.opts.MaxSteps > 0 && w.stats.Steps >= w.opts.MaxSteps {
		w.err = ErrStepLimit
	}

	f := frame{edge: e, cursor: cursor, state: st, admitted: out.Verdict != filter.Reject}
	switch out.Verdict {
	case filter.Reject:
		w.stats.Rejected[out.By]++
	case filter.Pending:
		w.stats.Pending++
	case filter.Satisfied:
		w.stats.Candidates++
		w.emit(w.candidate(depth, f))
	}

	return f
}

// candidate materializes the path ending in f, which sits at index depth.
func (w *walker) candidate(depth int, f frame) Candidate {
	edges := make([]stategraph.EdgeID, depth+1)
	for i := 0; i < depth; i++ {
		edges[i] = w.stack[i].edge
	}
	edges[depth] = f.edge

	return Candidate{Root: w.root, Edges: edges, Usage: f.state.Usage()}
}
