// SPDX-License-Identifier: MIT
//
// File: yaml.go
// Role: Compact YAML fixture format for already-parsed reference tables.
//
// Format:
//
//	districts:  [{id: 1, x: 6.08, y: 50.77, label: Mitte}]
//	categories: [{id: 1, origin: Home, destination: Work}]
//	durations:  {Home: 16, Shopping: 2}        # optional, merged over defaults
//	trips:      [{transport: IV, category: 1, origin: 1, destination: 2, count: 3}]
//	levels:     [{category: 1, bins: {0: 1.0}}] # or shares: [48 values]
//	modes:      [{mode: CarDriver, share: 1.0}] # optional, defaults when omitted

package refdata

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/plansynth/timebin"
)

// ErrDecode indicates a fixture that is not valid YAML or has the wrong shape.
var ErrDecode = errors.New("refdata: decode fixture")

type fixtureDoc struct {
	Districts  []fixtureDistrict `yaml:"districts"`
	Categories []fixtureCategory `yaml:"categories"`
	Durations  map[string]int    `yaml:"durations"`
	Trips      []fixtureTrip     `yaml:"trips"`
	Levels     []fixtureLevel    `yaml:"levels"`
	Modes      []fixtureMode     `yaml:"modes"`
}

type fixtureDistrict struct {
	ID    DistrictID `yaml:"id"`
	X     float64    `yaml:"x"`
	Y     float64    `yaml:"y"`
	Label string     `yaml:"label"`
}

type fixtureCategory struct {
	ID          CategoryID `yaml:"id"`
	Origin      string     `yaml:"origin"`
	Destination string     `yaml:"destination"`
}

type fixtureTrip struct {
	Transport   string     `yaml:"transport"`
	Category    CategoryID `yaml:"category"`
	Origin      DistrictID `yaml:"origin"`
	Destination DistrictID `yaml:"destination"`
	Count       int        `yaml:"count"`
}

type fixtureLevel struct {
	Category CategoryID      `yaml:"category"`
	Shares   []float64       `yaml:"shares"`
	Bins     map[int]float64 `yaml:"bins"`
}

type fixtureMode struct {
	Mode  string  `yaml:"mode"`
	Share float64 `yaml:"share"`
}

// DecodeYAML reads a fixture from r and converts it into an Input.
// Labels (purposes, modes, transports) are resolved here; keys and counts are
// validated later by New.
func DecodeYAML(r io.Reader) (Input, error) {
	var doc fixtureDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	in := Input{
		Districts:  make([]District, 0, len(doc.Districts)),
		Categories: make([]Category, 0, len(doc.Categories)),
		Trips:      make([]TripRecord, 0, len(doc.Trips)),
		Levels:     make(map[CategoryID]LevelCurve, len(doc.Levels)),
	}

	for _, d := range doc.Districts {
		in.Districts = append(in.Districts, District{ID: d.ID, Location: orb.Point{d.X, d.Y}, Label: d.Label})
	}

	for _, c := range doc.Categories {
		o, err := ParsePurpose(c.Origin)
		if err != nil {
			return Input{}, err
		}
		dst, err := ParsePurpose(c.Destination)
		if err != nil {
			return Input{}, err
		}
		in.Categories = append(in.Categories, Category{ID: c.ID, Origin: o, Destination: dst})
	}

	if doc.Durations != nil {
		in.Durations = make(Durations, len(doc.Durations))
		for name, bins := range doc.Durations {
			p, err := ParsePurpose(name)
			if err != nil {
				return Input{}, err
			}
			in.Durations[p] = bins
		}
	}

	for _, t := range doc.Trips {
		tr, err := ParseTransport(t.Transport)
		if err != nil {
			return Input{}, err
		}
		in.Trips = append(in.Trips, TripRecord{
			Transport:   tr,
			Category:    t.Category,
			Origin:      t.Origin,
			Destination: t.Destination,
			Count:       t.Count,
		})
	}

	for _, l := range doc.Levels {
		if _, dup := in.Levels[l.Category]; dup {
			return Input{}, refErr("levels", ErrDuplicateID, "category=%d", l.Category)
		}
		curve, err := l.curve()
		if err != nil {
			return Input{}, err
		}
		in.Levels[l.Category] = curve
	}

	if doc.Modes != nil {
		in.Modes = make([]ModeShare, 0, len(doc.Modes))
		for _, m := range doc.Modes {
			mode, err := ParseMode(m.Mode)
			if err != nil {
				return Input{}, err
			}
			in.Modes = append(in.Modes, ModeShare{Mode: mode, Share: m.Share})
		}
	}

	return in, nil
}

// curve accepts either a dense shares list or a sparse bin map, not both.
func (l fixtureLevel) curve() (LevelCurve, error) {
	var c LevelCurve
	switch {
	case l.Shares != nil && l.Bins != nil:
		return c, refErr("levels", ErrInvalidCurve, "category=%d: both shares and bins", l.Category)
	case l.Shares != nil:
		if len(l.Shares) != timebin.Count {
			return c, refErr("levels", ErrInvalidCurve, "category=%d: %d shares", l.Category, len(l.Shares))
		}
		copy(c[:], l.Shares)
	default:
		for b, v := range l.Bins {
			if b < 0 || b >= timebin.Count {
				return c, refErr("levels", ErrInvalidCurve, "category=%d: bin %d", l.Category, b)
			}
			c[b] = v
		}
	}

	return c, nil
}

// LoadFile decodes the fixture at path and validates it with New.
func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("refdata: open %s: %w", path, err)
	}
	defer f.Close()

	in, err := DecodeYAML(f)
	if err != nil {
		return nil, fmt.Errorf("refdata: %s: %w", path, err)
	}

	return New(in)
}
