// SPDX-License-Identifier: MIT
//
// Package timebin models the 30-minute slots of a day used throughout the
// plan synthesis engine.
//
// A TimeBin is always in range [0, Count). Addition wraps around midnight,
// subtraction yields the forward cyclic distance, so a trip leaving at 23:30
// and arriving at 00:30 spans 2 bins.
//
// Complexity: every operation is O(1) and allocation-free.
package timebin

import (
	"fmt"
	"math"
	"time"
)

// Count is the number of bins in a day.
const Count = 48

// Width is the wall-clock length of a single bin.
const Width = 30 * time.Minute

// TimeBin is the index of a 30-minute slot within a day.
type TimeBin uint8

// New returns the bin for index i reduced modulo Count (negative i wraps backwards).
func New(i int) TimeBin {
	i %= Count
	if i < 0 {
		i += Count
	}

	return TimeBin(i)
}

// Add advances t by n bins, wrapping around midnight.
func (t TimeBin) Add(n int) TimeBin {
	return New(int(t) + n)
}

// Sub returns the forward cyclic distance from o to t in [0, Count).
// Equal bins are 0 apart.
func (t TimeBin) Sub(o TimeBin) int {
	return (int(t) - int(o) + Count) % Count
}

// Index returns t as an int, convenient for slice indexing.
func (t TimeBin) Index() int { return int(t) }

// String renders the bin start as HH:MM.
func (t TimeBin) String() string {
	minutes := int(t) * int(Width/time.Minute)

	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FromDuration converts d into a whole number of bins, rounding up.
// Non-positive durations yield 0.
func FromDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}

	return int(math.Ceil(float64(d) / float64(Width)))
}

// All returns every bin in ascending order.
func All() []TimeBin {
	out := make([]TimeBin, Count)
	for i := range out {
		out[i] = TimeBin(i)
	}

	return out
}
