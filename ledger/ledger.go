// SPDX-License-Identifier: MIT
//
// File: ledger.go
// Role: Pool initialization, shared reads and the exclusive TryCommit.

package ledger

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/katalvlaran/plansynth/apportion"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/timebin"
)

var (
	// ErrNilTables is returned when New receives nil tables.
	ErrNilTables = errors.New("ledger: tables are nil")

	// ErrUnknownMethod is returned for an unsupported apportionment method.
	ErrUnknownMethod = errors.New("ledger: unknown apportionment method")
)

// Method selects how totals are apportioned into level and mode pools.
type Method int

const (
	// MethodLargestRemainder apportions each total in one shot.
	MethodLargestRemainder Method = iota

	// MethodSequential streams every trip unit, in record order, through
	// sequential-highest-need selectors.
	MethodSequential
)

func (m Method) String() string {
	switch m {
	case MethodLargestRemainder:
		return "largest-remainder"
	case MethodSequential:
		return "sequential"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod resolves the names printed by Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "largest-remainder", "":
		return MethodLargestRemainder, nil
	case "sequential":
		return MethodSequential, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Option configures New.
type Option func(*options)

type options struct {
	method Method
}

// WithMethod selects the apportionment method (default MethodLargestRemainder).
func WithMethod(m Method) Option {
	return func(o *options) { o.method = m }
}

// Stats counts commit outcomes.
type Stats struct {
	Commits int64 // successful TryCommit calls
	Races   int64 // TryCommit calls that changed nothing
}

// Totals sums each pool.
type Totals struct {
	Trips  int64
	Levels int64
	Modes  int64
}

// Ledger holds the three capacity pools.
type Ledger struct {
	mu sync.RWMutex

	trips  []int64
	levels []int64 // categoryIndex*timebin.Count + bin
	modes  [refdata.ModeCount]int64

	tripsInit  []int64
	levelsInit []int64
	modesInit  [refdata.ModeCount]int64

	tables *refdata.Tables

	commits atomic.Int64
	races   atomic.Int64
}

// New derives the pools from t.
//
// Complexity: O(T + C·B) with MethodLargestRemainder,
// O(N·(B+M)) with MethodSequential where N is the total trip count.
func New(t *refdata.Tables, opts ...Option) (*Ledger, error) {
	if t == nil {
		return nil, ErrNilTables
	}
	o := options{method: MethodLargestRemainder}
	for _, fn := range opts {
		fn(&o)
	}

	l := &Ledger{
		tables: t,
		trips:  make([]int64, len(t.Trips())),
		levels: make([]int64, len(t.Categories())*timebin.Count),
	}
	for i, tr := range t.Trips() {
		l.trips[i] = int64(tr.Count)
	}

	var err error
	switch o.method {
	case MethodLargestRemainder:
		err = l.initLargestRemainder()
	case MethodSequential:
		err = l.initSequential()
	default:
		err = fmt.Errorf("%w: %v", ErrUnknownMethod, o.method)
	}
	if err != nil {
		return nil, err
	}

	l.tripsInit = append([]int64(nil), l.trips...)
	l.levelsInit = append([]int64(nil), l.levels...)
	l.modesInit = l.modes

	return l, nil
}

func (l *Ledger) initLargestRemainder() error {
	for ci := range l.tables.Categories() {
		total := l.tables.CategoryTotal(ci)
		if total == 0 {
			continue
		}
		curve := l.tables.Curve(ci)
		cells, err := apportion.LargestRemainder(total, curve[:])
		if err != nil {
			return fmt.Errorf("ledger: level pool of category index %d: %w", ci, err)
		}
		copy(l.levels[ci*timebin.Count:], cells)
	}

	if total := l.tables.TotalTrips(); total > 0 {
		modes, shares := l.modeShares()
		cells, err := apportion.LargestRemainder(total, shares)
		if err != nil {
			return fmt.Errorf("ledger: mode pool: %w", err)
		}
		for i, m := range modes {
			l.modes[m] = cells[i]
		}
	}

	return nil
}

func (l *Ledger) initSequential() error {
	if l.tables.TotalTrips() == 0 {
		return nil
	}
	modes, shares := l.modeShares()
	modeSel, err := apportion.NewSelector(shares)
	if err != nil {
		return fmt.Errorf("ledger: mode pool: %w", err)
	}

	levelSel := make([]*apportion.Selector, len(l.tables.Categories()))
	for _, tr := range l.tables.Trips() {
		ci := tr.CategoryIndex
		if levelSel[ci] == nil {
			curve := l.tables.Curve(ci)
			if levelSel[ci], err = apportion.NewSelector(curve[:]); err != nil {
				return fmt.Errorf("ledger: level pool of category index %d: %w", ci, err)
			}
		}
		for u := 0; u < tr.Count; u++ {
			l.levels[ci*timebin.Count+levelSel[ci].Next()]++
			l.modes[modes[modeSel.Next()]]++
		}
	}

	return nil
}

func (l *Ledger) modeShares() ([]refdata.Mode, []float64) {
	ms := l.tables.Modes()
	modes := make([]refdata.Mode, len(ms))
	shares := make([]float64, len(ms))
	for i, s := range ms {
		modes[i], shares[i] = s.Mode, s.Share
	}

	return modes, shares
}

func (l *Ledger) levelIndex(ci int, b timebin.TimeBin) int {
	return ci*timebin.Count + int(b)
}

func (l *Ledger) validKey(k Key) bool {
	return k.Trip >= 0 && int(k.Trip) < len(l.trips) &&
		k.CategoryIndex >= 0 && k.CategoryIndex < len(l.tables.Categories()) &&
		int(k.Bin) < timebin.Count && k.Mode.Valid()
}

// RemainingTrip returns the remaining capacity of a trip record.
func (l *Ledger) RemainingTrip(id refdata.TripID) int64 {
	if id < 0 || int(id) >= len(l.trips) {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.trips[id]
}

// RemainingLevel returns the remaining capacity of a (category, bin) cell.
// Unknown categories have none.
func (l *Ledger) RemainingLevel(id refdata.CategoryID, b timebin.TimeBin) int64 {
	ci, ok := l.tables.CategoryIndex(id)
	if !ok || int(b) >= timebin.Count {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.levels[l.levelIndex(ci, b)]
}

// RemainingMode returns the remaining capacity of a mode.
func (l *Ledger) RemainingMode(m refdata.Mode) int64 {
	if !m.Valid() {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.modes[m]
}

// Peek reads all three pools named by k under one shared lock.
// Invalid keys read as zero.
func (l *Ledger) Peek(k Key) Snapshot {
	if !l.validKey(k) {
		return Snapshot{}
	}
	l.mu.RLock()
	s := Snapshot{
		Trip:  l.trips[k.Trip],
		Level: l.levels[l.levelIndex(k.CategoryIndex, k.Bin)],
		Mode:  l.modes[k.Mode],
	}
	l.mu.RUnlock()

	return s
}

// Depleted reports whether any pool named by k is exhausted.
func (l *Ledger) Depleted(k Key) bool {
	s := l.Peek(k)

	return s.Trip <= 0 || s.Level <= 0 || s.Mode <= 0
}

// InitialTrip returns the starting capacity of a trip record.
func (l *Ledger) InitialTrip(id refdata.TripID) int64 {
	if id < 0 || int(id) >= len(l.tripsInit) {
		return 0
	}

	return l.tripsInit[id]
}

// InitialLevel returns the starting capacity of a (category, bin) cell.
func (l *Ledger) InitialLevel(id refdata.CategoryID, b timebin.TimeBin) int64 {
	ci, ok := l.tables.CategoryIndex(id)
	if !ok || int(b) >= timebin.Count {
		return 0
	}

	return l.levelsInit[l.levelIndex(ci, b)]
}

// InitialMode returns the starting capacity of a mode.
func (l *Ledger) InitialMode(m refdata.Mode) int64 {
	if !m.Valid() {
		return 0
	}

	return l.modesInit[m]
}

// Totals returns the current sum of each pool.
func (l *Ledger) Totals() Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var t Totals
	for _, v := range l.trips {
		t.Trips += v
	}
	for _, v := range l.levels {
		t.Levels += v
	}
	for _, v := range l.modes {
		t.Modes += v
	}

	return t
}

// TryCommit atomically verifies that u fits into every pool and, only then,
// decrements all of them. It returns false and changes nothing when any
// entry exceeds the remaining capacity, when an entry is not positive, or
// when u is empty.
func (l *Ledger) TryCommit(u Usage) bool {
	if u.Empty() || !l.wellFormed(u) {
		l.races.Add(1)
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// 1) Verify
	for id, n := range u.Trips {
		if n > l.trips[id] {
			l.races.Add(1)
			return false
		}
	}
	for k, n := range u.Levels {
		if n > l.levels[l.levelIndex(k.CategoryIndex, k.Bin)] {
			l.races.Add(1)
			return false
		}
	}
	for m, n := range u.Modes {
		if n > l.modes[m] {
			l.races.Add(1)
			return false
		}
	}

	// 2) Decrement
	for id, n := range u.Trips {
		l.trips[id] -= n
	}
	for k, n := range u.Levels {
		l.levels[l.levelIndex(k.CategoryIndex, k.Bin)] -= n
	}
	for m, n := range u.Modes {
		l.modes[m] -= n
	}
	l.commits.Add(1)

	return true
}

// wellFormed checks bounds and positivity without taking the lock.
func (l *Ledger) wellFormed(u Usage) bool {
	for id, n := range u.Trips {
		if n <= 0 || id < 0 || int(id) >= len(l.trips) {
			return false
		}
	}
	for k, n := range u.Levels {
		if n <= 0 || k.CategoryIndex < 0 || k.CategoryIndex >= len(l.tables.Categories()) || int(k.Bin) >= timebin.Count {
			return false
		}
	}
	for m, n := range u.Modes {
		if n <= 0 || !m.Valid() {
			return false
		}
	}

	return true
}

// Stats returns the commit counters.
func (l *Ledger) Stats() Stats {
	return Stats{Commits: l.commits.Load(), Races: l.races.Load()}
}

// Tables returns the reference tables the ledger was derived from.
func (l *Ledger) Tables() *refdata.Tables { return l.tables }
