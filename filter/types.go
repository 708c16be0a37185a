// SPDX-License-Identifier: MIT

package filter

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/timebin"
)

// Sentinel errors for chain construction.
var (
	// ErrInvalidLength indicates MinLength < 1, MaxLength < 2 or MinLength > MaxLength.
	ErrInvalidLength = errors.New("filter: invalid plan length bounds")

	// ErrInvalidDuration indicates MinDurationBins outside [0, timebin.Count].
	ErrInvalidDuration = errors.New("filter: invalid minimum duration")

	// ErrNoFirstPurpose indicates an empty AllowedFirst set.
	ErrNoFirstPurpose = errors.New("filter: no allowed first purpose")

	// ErrNilBudget indicates a chain without a capacity budget.
	ErrNilBudget = errors.New("filter: budget is nil")
)

// Verdict is the tri-state outcome of a filter.
type Verdict uint8

// Verdicts, ordered so that a smaller value dominates when combining.
const (
	Reject Verdict = iota
	Pending
	Satisfied
)

func (v Verdict) String() string {
	switch v {
	case Reject:
		return "reject"
	case Pending:
		return "pending"
	case Satisfied:
		return "satisfied"
	default:
		return fmt.Sprintf("Verdict(%d)", uint8(v))
	}
}

// Kind identifies one filter of the chain.
type Kind uint8

// Kinds in evaluation order.
const (
	Length Kind = iota
	FirstActivity
	Duration
	ActivityCycle
	DistinctActivities
	Capacity

	kindCount
)

// KindCount is the number of filter kinds.
const KindCount = int(kindCount)

// NoKind marks an Outcome that no single kind decided.
const NoKind Kind = kindCount

var kindNames = [kindCount]string{"length", "first-activity", "duration", "activity-cycle", "distinct-activities", "capacity"}

func (k Kind) String() string {
	if k >= kindCount {
		return "none"
	}

	return kindNames[k]
}

// Params are the structural constraints of one search stage.
type Params struct {
	MinLength            int
	MaxLength            int
	AllowedFirst         refdata.PurposeSet
	MinDurationBins      int
	EnforceActivityCycle bool
}

// Validate checks the bounds of p.
func (p Params) Validate() error {
	if p.MinLength < 1 || p.MaxLength < 2 || p.MinLength > p.MaxLength {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidLength, p.MinLength, p.MaxLength)
	}
	if p.MinDurationBins < 0 || p.MinDurationBins > timebin.Count {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, p.MinDurationBins)
	}
	if p.AllowedFirst.Empty() {
		return ErrNoFirstPurpose
	}

	return nil
}

// Budget is the read side of the capacity ledger. *ledger.Ledger implements it.
type Budget interface {
	Peek(k ledger.Key) ledger.Snapshot
}

// Move describes one edge traversal as the chain sees it.
type Move struct {
	Key  ledger.Key      // resources consumed
	From refdata.Purpose // origin purpose of the edge's category
	To   refdata.Purpose // purpose at the target node
	Bins int             // forward cyclic bin delta from source to target
}

// Outcome is the combined verdict of one Step.
// By is the rejecting kind on Reject, the first pending kind on Pending,
// and NoKind on Satisfied.
type Outcome struct {
	Verdict Verdict
	By      Kind
}
