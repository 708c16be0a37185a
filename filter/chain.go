// SPDX-License-Identifier: MIT
//
// File: chain.go
// Role: Incremental evaluation of the fixed filter sequence.
// Concurrency:
//   - A Chain is immutable and safe to share between workers.
//   - States are values; Step never mutates its parent.

package filter

import (
	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/timebin"
)

// Chain evaluates Params against paths, reading capacity from a Budget.
type Chain struct {
	params Params
	budget Budget
	kinds  []Kind // evaluation order, FirstActivity excluded
}

// NewChain validates p and returns a chain reading capacity from b.
func NewChain(p Params, b Budget) (*Chain, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNilBudget
	}

	kinds := []Kind{Length, Duration}
	if p.EnforceActivityCycle {
		kinds = append(kinds, ActivityCycle)
	}
	kinds = append(kinds, DistinctActivities, Capacity)

	return &Chain{params: p, budget: b, kinds: kinds}, nil
}

// Params returns the chain's parameters.
func (c *Chain) Params() Params { return c.params }

// usageCell is one edge's key in a persistent list, newest first.
type usageCell struct {
	key  ledger.Key
	next *usageCell
}

// State is the filter snapshot of a path. The zero value is not a valid root.
type State struct {
	root    refdata.Purpose
	current refdata.Purpose
	edges   int
	bins    int
	seen    refdata.PurposeSet
	usage   *usageCell
	verdict Verdict
}

// Root starts a path at a node with purpose p. It reports false when p is
// not an allowed first activity.
func (c *Chain) Root(p refdata.Purpose) (State, bool) {
	if !c.params.AllowedFirst.Has(p) {
		return State{}, false
	}

	return State{root: p, current: p, verdict: Pending}, true
}

// Step evaluates the chain for parent extended by m.
// On Reject the returned State must not be extended.
func (c *Chain) Step(parent State, m Move) (State, Outcome) {
	next := State{
		root:    parent.root,
		current: m.To,
		edges:   parent.edges + 1,
		bins:    parent.bins + m.Bins,
		seen:    parent.seen,
	}

	out := Outcome{Verdict: Satisfied, By: NoKind}
	for _, k := range c.kinds {
		var v Verdict
		switch k {
		case Length:
			v = c.length(next.edges + 1)
		case Duration:
			v = c.duration(next.bins)
		case ActivityCycle:
			v = c.cycle(next.root, next.current)
		case DistinctActivities:
			if parent.seen.Has(m.From) {
				v = Reject
			} else {
				next.seen = parent.seen.With(m.From)
				v = Satisfied
			}
		case Capacity:
			v = c.capacity(parent.usage, m.Key)
		}

		switch {
		case v == Reject:
			return State{verdict: Reject}, Outcome{Verdict: Reject, By: k}
		case v == Pending && out.Verdict == Satisfied:
			out = Outcome{Verdict: Pending, By: k}
		}
	}

	next.usage = &usageCell{key: m.Key, next: parent.usage}
	next.verdict = out.Verdict

	return next, out
}

func (c *Chain) length(stops int) Verdict {
	switch {
	case stops > c.params.MaxLength:
		return Reject
	case stops < c.params.MinLength:
		return Pending
	default:
		return Satisfied
	}
}

func (c *Chain) duration(bins int) Verdict {
	switch {
	case bins > timebin.Count:
		return Reject
	case bins < c.params.MinDurationBins:
		return Pending
	default:
		return Satisfied
	}
}

func (c *Chain) cycle(root, current refdata.Purpose) Verdict {
	if current == root {
		return Satisfied
	}

	return Pending
}

// capacity counts the path's earlier use of k's resources plus this edge
// and compares against one budget snapshot.
func (c *Chain) capacity(prev *usageCell, k ledger.Key) Verdict {
	trip, level, mode := int64(1), int64(1), int64(1)
	lk := k.Level()
	for cell := prev; cell != nil; cell = cell.next {
		if cell.key.Trip == k.Trip {
			trip++
		}
		if cell.key.Level() == lk {
			level++
		}
		if cell.key.Mode == k.Mode {
			mode++
		}
	}

	snap := c.budget.Peek(k)
	if trip > snap.Trip || level > snap.Level || mode > snap.Mode {
		return Reject
	}

	return Satisfied
}

// Verdict returns the overall verdict that produced s. Roots are Pending.
func (s State) Verdict() Verdict { return s.verdict }

// Len returns the number of stops on the path.
func (s State) Len() int { return s.edges + 1 }

// Edges returns the number of edges on the path.
func (s State) Edges() int { return s.edges }

// Bins returns the accumulated duration of the path in bins.
func (s State) Bins() int { return s.bins }

// Root returns the purpose the path started with.
func (s State) Root() refdata.Purpose { return s.root }

// Current returns the purpose at the path's last stop.
func (s State) Current() refdata.Purpose { return s.current }

// Keys returns the resource keys of the path's edges in path order.
func (s State) Keys() []ledger.Key {
	keys := make([]ledger.Key, s.edges)
	i := s.edges - 1
	for cell := s.usage; cell != nil && i >= 0; cell = cell.next {
		keys[i] = cell.key
		i--
	}

	return keys
}

// Usage aggregates the path's resource demand for a commit.
func (s State) Usage() ledger.Usage {
	u := ledger.NewUsage()
	for cell := s.usage; cell != nil; cell = cell.next {
		u.Add(cell.key)
	}

	return u
}
