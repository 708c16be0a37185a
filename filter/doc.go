// Package filter implements the admission filter chain the plan search
// evaluates on every edge traversal.
//
// The chain is a closed, fixed-order set of filter kinds:
//
//	Length → FirstActivity → Duration → ActivityCycle → DistinctActivities → Capacity
//
// ActivityCycle takes part only when Params.EnforceActivityCycle is set.
// FirstActivity is decided once, when a root State is created.
//
// Every kind reports a tri-state Verdict for the extended path:
//
//   - Reject    the branch is permanently invalid; the search tries a sibling.
//   - Pending   the path is structurally incomplete; keep extending.
//   - Satisfied the condition currently holds.
//
// The first Reject short-circuits the rest of the chain, so the capacity
// check (the only kind touching shared state) runs last. If nothing rejects,
// any Pending makes the overall verdict Pending; otherwise the path is
// Satisfied and is a candidate for commit. A Satisfied path may still be
// extended.
//
// State is a small value. Copying it is the snapshot taken at a branch point,
// and keeping the parent's copy is how backtracking restores it. Per-path
// capacity usage is a persistent list whose tail is shared with the parent,
// so Step allocates one list cell and never mutates its input.
//
// Semantics of each kind:
//
//   - Length counts plan stops (edges + 1). Reject above MaxLength, Pending
//     below MinLength.
//   - Duration sums the forward cyclic bin delta of every edge. Reject above
//     one day (timebin.Count bins), Pending below MinDurationBins.
//   - ActivityCycle is Pending until the current purpose equals the root's.
//   - DistinctActivities rejects an edge whose origin purpose already was the
//     origin of an earlier edge on the path. Returning to the root purpose is
//     allowed; leaving it again is not.
//   - Capacity compares cumulative per-path usage of the edge's trip,
//     (category, departure bin) and mode against the Budget and rejects when
//     any would exceed what remains. It is never Pending.
package filter
