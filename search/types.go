// Package search defines the non-recursive backtracking traversal that
// enumerates admissible plans from a single root of the state graph.
package search

import (
	"errors"

	"github.com/katalvlaran/plansynth/filter"
	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/stategraph"
)

var (
	// ErrNilView is returned when Run is called without a graph view.
	ErrNilView = errors.New("search: view is nil")

	// ErrNilChain is returned when Run is called without a filter chain.
	ErrNilChain = errors.New("search: chain is nil")

	// ErrRootNotAdmitted indicates the root's purpose is not an allowed first activity.
	ErrRootNotAdmitted = errors.New("search: root not admitted")

	// ErrStepLimit indicates the traversal stopped at the WithMaxSteps bound.
	ErrStepLimit = errors.New("search: step limit reached")
)

// Candidate is a path every filter currently reports Satisfied for.
type Candidate struct {
	// Root is the node the path starts at.
	Root stategraph.NodeID

	// Edges lists the path's edges from the root outward.
	Edges []stategraph.EdgeID

	// Usage is the path's aggregated demand on the ledger.
	Usage ledger.Usage
}

// Len returns the number of stops on the candidate's path.
func (c Candidate) Len() int { return len(c.Edges) + 1 }

// StepHook observes every filter evaluation: the depth of the evaluated
// edge (1 for root edges), the edge and the outcome.
type StepHook func(depth int, e stategraph.EdgeID, out filter.Outcome)

// Option configures Run.
type Option func(*Options)

// Options holds the optional parameters of Run.
type Options struct {
	// OnStep, if non-nil, is called after each filter evaluation.
	OnStep StepHook

	// MaxSteps bounds the evaluations of one Run. Zero means unbounded.
	MaxSteps int64
}

// DefaultOptions returns Options with no hook and no step bound.
func DefaultOptions() Options {
	return Options{OnStep: nil, MaxSteps: 0}
}

// WithStepHook installs fn as the per-step hook.
func WithStepHook(fn StepHook) Option {
	return func(o *Options) {
		o.OnStep = fn
	}
}

// WithMaxSteps bounds the number of filter evaluations; n <= 0 disables the bound.
func WithMaxSteps(n int64) Option {
	return func(o *Options) {
		if n < 0 {
			n = 0
		}
		o.MaxSteps = n
	}
}

// Stats summarizes one Run.
type Stats struct {
	// Steps counts filter evaluations.
	Steps int64

	// Candidates counts emitted candidates.
	Candidates int64

	// Pending counts evaluations that were neither rejected nor satisfied.
	Pending int64

	// Rejected counts rejections by the deciding filter kind.
	Rejected [filter.KindCount]int64

	// MaxDepth is the deepest stack reached, in edges.
	MaxDepth int
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Steps += o.Steps
	s.Candidates += o.Candidates
	s.Pending += o.Pending
	for i := range s.Rejected {
		s.Rejected[i] += o.Rejected[i]
	}
	if o.MaxDepth > s.MaxDepth {
		s.MaxDepth = o.MaxDepth
	}
}

// RejectedTotal sums rejections over all kinds.
func (s Stats) RejectedTotal() int64 {
	var n int64
	for _, r := range s.Rejected {
		n += r
	}

	return n
}
