// SPDX-License-Identifier: MIT

package refdata

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/katalvlaran/plansynth/timebin"
)

// Purpose is the activity performed at a stop.
type Purpose uint8

// Purposes, in their canonical order.
const (
	Home Purpose = iota
	Work
	School
	Shopping
	Leisure
	Service

	purposeCount
)

// PurposeCount is the number of defined purposes.
const PurposeCount = int(purposeCount)

var purposeNames = [purposeCount]string{"Home", "Work", "School", "Shopping", "Leisure", "Service"}

// purposeAliases maps survey labels (German source data) onto purposes.
var purposeAliases = map[string]Purpose{
	"wohnen":         Home,
	"arbeit":         Work,
	"grundschule":    School,
	"weiterf.schule": School,
	"hörsaal":        School,
	"hörsaalhin":     School,
	"hörsaalplatz":   School,
	"hörsaalrück":    School,
	"stud.ziele":     School,
	"einkaufen":      Shopping,
	"freizeit":       Leisure,
	"dienstleistung": Service,
}

func (p Purpose) String() string {
	if !p.Valid() {
		return "Purpose(" + strconv.Itoa(int(p)) + ")"
	}

	return purposeNames[p]
}

// Valid reports whether p is one of the defined purposes.
func (p Purpose) Valid() bool { return p < purposeCount }

// ParsePurpose resolves an English purpose name or a survey label, case-insensitively.
func ParsePurpose(s string) (Purpose, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range purposeNames {
		if strings.ToLower(name) == key {
			return Purpose(i), nil
		}
	}
	if p, ok := purposeAliases[key]; ok {
		return p, nil
	}

	return 0, refErr("purposes", ErrUnknownPurpose, "%s", s)
}

// AllPurposes returns every purpose in canonical order.
func AllPurposes() []Purpose {
	out := make([]Purpose, purposeCount)
	for i := range out {
		out[i] = Purpose(i)
	}

	return out
}

// PurposeSet is a small bitmask set of purposes.
type PurposeSet uint8

// NewPurposeSet returns the set holding ps.
func NewPurposeSet(ps ...Purpose) PurposeSet {
	var s PurposeSet
	for _, p := range ps {
		s = s.With(p)
	}

	return s
}

// With returns s plus p.
func (s PurposeSet) With(p Purpose) PurposeSet { return s | 1<<p }

// Has reports whether p is in s.
func (s PurposeSet) Has(p Purpose) bool { return s&(1<<p) != 0 }

// Empty reports whether s holds no purposes.
func (s PurposeSet) Empty() bool { return s == 0 }

// Slice lists the members of s in canonical order.
func (s PurposeSet) Slice() []Purpose {
	var out []Purpose
	for p := Purpose(0); p < purposeCount; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}

	return out
}

// Durations maps each purpose to its nominal activity duration in bins.
type Durations map[Purpose]int

// DefaultDurations returns the nominal durations used when the input omits them.
func DefaultDurations() Durations {
	return Durations{
		Home:     16,
		Work:     16,
		School:   12,
		Shopping: 2,
		Leisure:  4,
		Service:  2,
	}
}

// Mode is a travel mode.
type Mode uint8

// Modes, in their canonical order.
const (
	Feet Mode = iota
	Bike
	PublicTransport
	CarDriver
	CarPassenger

	modeCount
)

// ModeCount is the number of defined modes.
const ModeCount = int(modeCount)

var modeNames = [modeCount]string{"Feet", "Bike", "PublicTransport", "CarDriver", "CarPassenger"}

func (m Mode) String() string {
	if !m.Valid() {
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}

	return modeNames[m]
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool { return m < modeCount }

// ParseMode resolves a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if strings.ToLower(name) == key {
			return Mode(i), nil
		}
	}

	return 0, refErr("modes", ErrUnknownMode, "%s", s)
}

// ModeShare is the population share of one travel mode.
type ModeShare struct {
	Mode  Mode
	Share float64
}

// DefaultModeShares returns the modal split of the Aachen statistical
// yearbook 2017 (p. 104), which the original calibration used.
func DefaultModeShares() []ModeShare {
	return []ModeShare{
		{Mode: Feet, Share: 0.298},
		{Mode: Bike, Share: 0.110},
		{Mode: PublicTransport, Share: 0.130},
		{Mode: CarDriver, Share: 0.336},
		{Mode: CarPassenger, Share: 0.126},
	}
}

// Transport is the survey's transport class of a trip record.
type Transport uint8

// Transport classes.
const (
	Individual Transport = iota // "IV"
	Public                      // "OV"
)

func (t Transport) String() string {
	switch t {
	case Individual:
		return "IV"
	case Public:
		return "OV"
	default:
		return "Transport(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseTransport accepts "IV"/"individual" and "OV"/"public".
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iv", "individual":
		return Individual, nil
	case "ov", "public":
		return Public, nil
	}

	return 0, refErr("transports", ErrUnknownTransport, "%s", s)
}

// DistrictID identifies a district.
type DistrictID int

// CategoryID identifies a purpose-to-purpose category.
type CategoryID int

// TripID is the dense index of a resolved trip record within Tables.Trips.
type TripID int32

// NoTrip marks the absence of a trip, e.g. on the final stop of a plan.
const NoTrip TripID = -1

// District is a traffic analysis zone.
type District struct {
	ID       DistrictID
	Location orb.Point
	Label    string
}

// Category pairs an origin purpose with a destination purpose.
type Category struct {
	ID          CategoryID
	Origin      Purpose
	Destination Purpose
}

// TripRecord is one row of measured demand.
type TripRecord struct {
	Transport   Transport
	Category    CategoryID
	Origin      DistrictID
	Destination DistrictID
	Count       int
}

// key returns the deduplication key tuple of r.
func (r TripRecord) key() tripKey {
	return tripKey{r.Transport, r.Category, r.Origin, r.Destination}
}

type tripKey struct {
	transport   Transport
	category    CategoryID
	origin      DistrictID
	destination DistrictID
}

// Trip is a validated trip record with its dense IDs resolved.
type Trip struct {
	ID TripID
	TripRecord
	// CategoryIndex is the dense index of the record's category in Tables.Categories().
	CategoryIndex int
}

// LevelCurve distributes a category's demand over the bins of a day.
type LevelCurve [timebin.Count]float64

// Input gathers the raw tables handed to New.
// Nil Durations or Modes fall back to DefaultDurations and DefaultModeShares;
// Durations given are merged over the defaults.
type Input struct {
	Districts  []District
	Categories []Category
	Durations  Durations
	Trips      []TripRecord
	Levels     map[CategoryID]LevelCurve
	Modes      []ModeShare
}
