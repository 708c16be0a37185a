// SPDX-License-Identifier: MIT
//
// File: tables.go
// Role: Validation and freezing of reference rows into *Tables.
// Policy:
//   - New never panics; every row-level problem is a *ReferenceDataError.
//   - Output order is deterministic: categories by ID, trips in first-seen order.

package refdata

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/katalvlaran/plansynth/timebin"
)

// shareTolerance bounds how far mode shares may drift from summing to 1.
const shareTolerance = 1e-6

// Tables is the validated, immutable view of the reference data.
type Tables struct {
	districts     map[DistrictID]District
	districtOrder []DistrictID

	categories []Category // sorted by ID
	catIndex   map[CategoryID]int
	catTotals  []int64

	trips  []Trip
	levels []LevelCurve // normalized, by category index
	modes  []ModeShare  // normalized, canonical mode order

	durations [purposeCount]int
	total     int64
}

// New validates in and returns the frozen tables.
//
// Steps:
//  1. Districts and categories: unique IDs, valid purposes.
//  2. Durations: defaults merged with overrides, each in [0, timebin.Count).
//  3. Trip records: foreign keys resolve, counts non-negative, duplicates merged,
//     zero counts dropped.
//  4. Level curves: every category with demand has a finite, non-negative,
//     non-zero curve; curves are normalized to sum to 1.
//  5. Mode shares: known, unique, non-negative, summing to 1 within 1e-6.
//
// Complexity: O(D + C·B + T) time and space.
func New(in Input) (*Tables, error) {
	t := &Tables{
		districts: make(map[DistrictID]District, len(in.Districts)),
		catIndex:  make(map[CategoryID]int, len(in.Categories)),
	}

	// 1) Districts
	for _, d := range in.Districts {
		if _, dup := t.districts[d.ID]; dup {
			return nil, refErr("districts", ErrDuplicateID, "%d", d.ID)
		}
		t.districts[d.ID] = d
		t.districtOrder = append(t.districtOrder, d.ID)
	}
	sort.Slice(t.districtOrder, func(i, j int) bool { return t.districtOrder[i] < t.districtOrder[j] })

	// 1b) Categories
	cats := append([]Category(nil), in.Categories...)
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
	for i, c := range cats {
		if i > 0 && cats[i-1].ID == c.ID {
			return nil, refErr("categories", ErrDuplicateID, "%d", c.ID)
		}
		if !c.Origin.Valid() || !c.Destination.Valid() {
			return nil, refErr("categories", ErrUnknownPurpose, "%d", c.ID)
		}
		t.catIndex[c.ID] = i
	}
	t.categories = cats
	t.catTotals = make([]int64, len(cats))

	// 2) Durations
	if err := t.resolveDurations(in.Durations); err != nil {
		return nil, err
	}

	// 3) Trip records
	if err := t.resolveTrips(in.Trips); err != nil {
		return nil, err
	}

	// 4) Level curves
	if err := t.resolveLevels(in.Levels); err != nil {
		return nil, err
	}

	// 5) Mode shares
	if err := t.resolveModes(in.Modes); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Tables) resolveDurations(overrides Durations) error {
	merged := DefaultDurations()
	for p, d := range overrides {
		merged[p] = d
	}
	for p, d := range merged {
		if !p.Valid() {
			return refErr("durations", ErrUnknownPurpose, "%d", int(p))
		}
		if d < 0 || d >= timebin.Count {
			return refErr("durations", ErrInvalidDuration, "%s=%d", p, d)
		}
		t.durations[p] = d
	}

	return nil
}

func (t *Tables) resolveTrips(records []TripRecord) error {
	seen := make(map[tripKey]int, len(records)) // key -> index into merged
	merged := make([]TripRecord, 0, len(records))

	for _, r := range records {
		if _, ok := t.catIndex[r.Category]; !ok {
			return refErr("trips", ErrUnknownKey, "category=%d", r.Category)
		}
		if _, ok := t.districts[r.Origin]; !ok {
			return refErr("trips", ErrUnknownKey, "origin=%d", r.Origin)
		}
		if _, ok := t.districts[r.Destination]; !ok {
			return refErr("trips", ErrUnknownKey, "destination=%d", r.Destination)
		}
		if r.Transport != Individual && r.Transport != Public {
			return refErr("trips", ErrUnknownTransport, "%d", int(r.Transport))
		}
		if r.Count < 0 {
			return refErr("trips", ErrNegativeCount, "%s/%d/%d->%d", r.Transport, r.Category, r.Origin, r.Destination)
		}
		if i, dup := seen[r.key()]; dup {
			merged[i].Count += r.Count
			continue
		}
		seen[r.key()] = len(merged)
		merged = append(merged, r)
	}

	t.trips = make([]Trip, 0, len(merged))
	for _, r := range merged {
		if r.Count == 0 {
			continue // zero demand never becomes an edge
		}
		ci := t.catIndex[r.Category]
		t.trips = append(t.trips, Trip{ID: TripID(len(t.trips)), TripRecord: r, CategoryIndex: ci})
		t.catTotals[ci] += int64(r.Count)
		t.total += int64(r.Count)
	}

	return nil
}

func (t *Tables) resolveLevels(curves map[CategoryID]LevelCurve) error {
	t.levels = make([]LevelCurve, len(t.categories))
	for id := range curves {
		if _, ok := t.catIndex[id]; !ok {
			return refErr("levels", ErrUnknownKey, "category=%d", id)
		}
	}
	for i, c := range t.categories {
		curve, ok := curves[c.ID]
		if !ok {
			if t.catTotals[i] > 0 {
				return refErr("levels", ErrUnknownKey, "missing curve for category=%d", c.ID)
			}
			continue
		}
		var sum float64
		for _, v := range curve {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return refErr("levels", ErrInvalidCurve, "category=%d", c.ID)
			}
			sum += v
		}
		if sum <= 0 {
			return refErr("levels", ErrInvalidCurve, "category=%d", c.ID)
		}
		for b := range curve {
			t.levels[i][b] = curve[b] / sum
		}
	}

	return nil
}

func (t *Tables) resolveModes(shares []ModeShare) error {
	if shares == nil {
		shares = DefaultModeShares()
	}
	if len(shares) == 0 {
		return refErr("modes", ErrInvalidShares, "empty")
	}
	var (
		sum  float64
		used [modeCount]bool
	)
	for _, s := range shares {
		if !s.Mode.Valid() {
			return refErr("modes", ErrUnknownMode, "%d", int(s.Mode))
		}
		if used[s.Mode] {
			return refErr("modes", ErrDuplicateID, "%s", s.Mode)
		}
		if s.Share < 0 || math.IsNaN(s.Share) || math.IsInf(s.Share, 0) {
			return refErr("modes", ErrInvalidShares, "%s", s.Mode)
		}
		used[s.Mode] = true
		sum += s.Share
	}
	if math.Abs(sum-1) > shareTolerance {
		return refErr("modes", ErrInvalidShares, "sum=%g", sum)
	}

	t.modes = make([]ModeShare, 0, len(shares))
	for _, s := range shares {
		t.modes = append(t.modes, ModeShare{Mode: s.Mode, Share: s.Share / sum})
	}
	sort.Slice(t.modes, func(i, j int) bool { return t.modes[i].Mode < t.modes[j].Mode })

	return nil
}

// District returns the district with the given ID.
func (t *Tables) District(id DistrictID) (District, bool) {
	d, ok := t.districts[id]

	return d, ok
}

// Districts returns all districts ordered by ID.
func (t *Tables) Districts() []District {
	out := make([]District, len(t.districtOrder))
	for i, id := range t.districtOrder {
		out[i] = t.districts[id]
	}

	return out
}

// Extent returns the bounding box of all district locations.
func (t *Tables) Extent() orb.Bound {
	mp := make(orb.MultiPoint, 0, len(t.districts))
	for _, id := range t.districtOrder {
		mp = append(mp, t.districts[id].Location)
	}

	return mp.Bound()
}

// Categories returns the categories ordered by ID; the position is the category index.
// The returned slice must not be modified.
func (t *Tables) Categories() []Category { return t.categories }

// Category returns the category with the given ID.
func (t *Tables) Category(id CategoryID) (Category, bool) {
	i, ok := t.catIndex[id]
	if !ok {
		return Category{}, false
	}

	return t.categories[i], true
}

// CategoryIndex resolves a category ID to its dense index.
func (t *Tables) CategoryIndex(id CategoryID) (int, bool) {
	i, ok := t.catIndex[id]

	return i, ok
}

// CategoryTotal returns the summed trip count of the category at index i.
func (t *Tables) CategoryTotal(i int) int64 { return t.catTotals[i] }

// Trips returns the resolved trips; Trips()[id].ID == id.
// The returned slice must not be modified.
func (t *Tables) Trips() []Trip { return t.trips }

// Trip returns the trip with the given dense ID.
func (t *Tables) Trip(id TripID) Trip { return t.trips[id] }

// Level returns the normalized share of category index i in bin b.
func (t *Tables) Level(i int, b timebin.TimeBin) float64 { return t.levels[i][b] }

// Curve returns the normalized level curve of category index i.
func (t *Tables) Curve(i int) LevelCurve { return t.levels[i] }

// Modes returns the normalized mode shares in canonical mode order.
// The returned slice must not be modified.
func (t *Tables) Modes() []ModeShare { return t.modes }

// Duration returns the nominal activity duration of p in bins.
func (t *Tables) Duration(p Purpose) int { return t.durations[p] }

// TotalTrips returns the sum of all trip counts.
func (t *Tables) TotalTrips() int64 { return t.total }
