// SPDX-License-Identifier: MIT
//
// Package apportion distributes an integer total across buckets in proportion
// to fractional shares while preserving the exact sum.
//
// Two deterministic strategies are offered:
//
//   - LargestRemainder: one-shot Hamilton method. Floor every quota, then hand
//     the shortfall, one unit each, to the buckets with the largest fractional
//     remainder. Ties go to the lower index.
//   - Selector: streaming sequential-highest-need allocation. Every call to
//     Next assigns one unit to the bucket that is furthest behind its quota
//     after the unit is counted. Ties go to the lower index.
//
// Both produce non-negative integers summing exactly to the number of units,
// each within 1 of share*total.
//
// Complexity:
//
//   - LargestRemainder: O(n log n) time, O(n) space.
//   - Selector.Next:    O(n) per unit.
package apportion

import (
	"errors"
	"math"
	"sort"
)

var (
	// ErrNoShares is returned when the share list is empty.
	ErrNoShares = errors.New("apportion: no shares")

	// ErrBadShare is returned for a negative, NaN or infinite share.
	ErrBadShare = errors.New("apportion: share must be finite and non-negative")

	// ErrZeroSum is returned when all shares are zero.
	ErrZeroSum = errors.New("apportion: shares sum to zero")

	// ErrNegativeTotal is returned when the total to distribute is negative.
	ErrNegativeTotal = errors.New("apportion: negative total")
)

// normalize validates shares and returns them scaled to sum to 1.
func normalize(shares []float64) ([]float64, error) {
	if len(shares) == 0 {
		return nil, ErrNoShares
	}
	var sum float64
	for _, s := range shares {
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, ErrBadShare
		}
		sum += s
	}
	if sum <= 0 {
		return nil, ErrZeroSum
	}
	out := make([]float64, len(shares))
	for i, s := range shares {
		out[i] = s / sum
	}

	return out, nil
}

// LargestRemainder splits total across len(shares) buckets.
// Shares are normalized by their sum first.
func LargestRemainder(total int64, shares []float64) ([]int64, error) {
	if total < 0 {
		return nil, ErrNegativeTotal
	}
	norm, err := normalize(shares)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(norm))
	rem := make([]float64, len(norm))
	var assigned int64
	for i, s := range norm {
		quota := s * float64(total)
		fl := math.Floor(quota)
		out[i] = int64(fl)
		rem[i] = quota - fl
		assigned += out[i]
	}

	// Shortfall is below len(norm); the modulo only guards float drift.
	order := make([]int, len(norm))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })

	for k := 0; assigned < total; k = (k + 1) % len(order) {
		out[order[k]]++
		assigned++
	}

	return out, nil
}

// Selector hands out units one at a time, always to the bucket with the
// highest outstanding need.
type Selector struct {
	shares []float64
	counts []int64
	n      int64
}

// NewSelector returns a Selector over shares, normalized by their sum.
func NewSelector(shares []float64) (*Selector, error) {
	norm, err := normalize(shares)
	if err != nil {
		return nil, err
	}

	return &Selector{shares: norm, counts: make([]int64, len(norm))}, nil
}

// Next assigns one unit and returns the chosen bucket index.
// The choice maximizes share*(n+1) - count, where n is the number of units
// assigned so far.
func (s *Selector) Next() int {
	best, bestNeed := 0, math.Inf(-1)
	target := float64(s.n + 1)
	for i, sh := range s.shares {
		need := sh*target - float64(s.counts[i])
		if need > bestNeed {
			best, bestNeed = i, need
		}
	}
	s.counts[best]++
	s.n++

	return best
}

// Counts returns a copy of the units assigned per bucket.
func (s *Selector) Counts() []int64 {
	return append([]int64(nil), s.counts...)
}

// Total returns the number of units assigned so far.
func (s *Selector) Total() int64 { return s.n }
