package refdata_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/timebin"
)

func baseInput() refdata.Input {
	var curve refdata.LevelCurve
	curve[0] = 1

	return refdata.Input{
		Districts: []refdata.District{
			{ID: 1, Location: orb.Point{0, 0}, Label: "A"},
			{ID: 2, Location: orb.Point{3, 4}, Label: "B"},
		},
		Categories: []refdata.Category{{ID: 7, Origin: refdata.Home, Destination: refdata.Work}},
		Trips: []refdata.TripRecord{
			{Transport: refdata.Individual, Category: 7, Origin: 1, Destination: 2, Count: 3},
		},
		Levels: map[refdata.CategoryID]refdata.LevelCurve{7: curve},
		Modes:  []refdata.ModeShare{{Mode: refdata.CarDriver, Share: 1}},
	}
}

func TestNew_Minimal(t *testing.T) {
	tb, err := refdata.New(baseInput())
	require.NoError(t, err)

	require.Len(t, tb.Trips(), 1)
	assert.Equal(t, refdata.TripID(0), tb.Trips()[0].ID)
	assert.EqualValues(t, 3, tb.TotalTrips())
	assert.EqualValues(t, 3, tb.CategoryTotal(0))
	assert.Equal(t, 1.0, tb.Level(0, 0))
	assert.Equal(t, 16, tb.Duration(refdata.Home))
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 4}}, tb.Extent())

	c, ok := tb.Category(7)
	require.True(t, ok)
	assert.Equal(t, refdata.Work, c.Destination)
	_, ok = tb.CategoryIndex(99)
	assert.False(t, ok)
}

func TestNew_MergesDuplicatesAndDropsZero(t *testing.T) {
	in := baseInput()
	in.Trips = append(in.Trips,
		refdata.TripRecord{Transport: refdata.Individual, Category: 7, Origin: 1, Destination: 2, Count: 2},
		refdata.TripRecord{Transport: refdata.Public, Category: 7, Origin: 2, Destination: 1, Count: 0},
	)

	tb, err := refdata.New(in)
	require.NoError(t, err)
	require.Len(t, tb.Trips(), 1)
	assert.Equal(t, 5, tb.Trips()[0].Count)
	assert.EqualValues(t, 5, tb.TotalTrips())
}

func TestNew_NormalizesCurvesAndShares(t *testing.T) {
	in := baseInput()
	var curve refdata.LevelCurve
	curve[4], curve[5] = 2, 6
	in.Levels[7] = curve
	in.Modes = []refdata.ModeShare{
		{Mode: refdata.Bike, Share: 0.5000004},
		{Mode: refdata.Feet, Share: 0.5},
	}

	tb, err := refdata.New(in)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, tb.Level(0, 4), 1e-12)
	assert.InDelta(t, 0.75, tb.Level(0, 5), 1e-12)

	modes := tb.Modes()
	require.Len(t, modes, 2)
	assert.Equal(t, refdata.Feet, modes[0].Mode)
	assert.InDelta(t, 1.0, modes[0].Share+modes[1].Share, 1e-12)
}

func TestNew_DefaultModes(t *testing.T) {
	in := baseInput()
	in.Modes = nil

	tb, err := refdata.New(in)
	require.NoError(t, err)
	assert.Len(t, tb.Modes(), refdata.ModeCount)
}

func TestNew_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*refdata.Input)
		want   error
		table  string
	}{
		{"duplicate district", func(in *refdata.Input) {
			in.Districts = append(in.Districts, refdata.District{ID: 1})
		}, refdata.ErrDuplicateID, "districts"},
		{"duplicate category", func(in *refdata.Input) {
			in.Categories = append(in.Categories, refdata.Category{ID: 7})
		}, refdata.ErrDuplicateID, "categories"},
		{"unknown origin", func(in *refdata.Input) {
			in.Trips[0].Origin = 42
		}, refdata.ErrUnknownKey, "trips"},
		{"unknown category", func(in *refdata.Input) {
			in.Trips[0].Category = 8
		}, refdata.ErrUnknownKey, "trips"},
		{"negative count", func(in *refdata.Input) {
			in.Trips[0].Count = -1
		}, refdata.ErrNegativeCount, "trips"},
		{"missing curve", func(in *refdata.Input) {
			delete(in.Levels, 7)
		}, refdata.ErrUnknownKey, "levels"},
		{"zero curve", func(in *refdata.Input) {
			in.Levels[7] = refdata.LevelCurve{}
		}, refdata.ErrInvalidCurve, "levels"},
		{"negative curve", func(in *refdata.Input) {
			var c refdata.LevelCurve
			c[0], c[1] = 2, -1
			in.Levels[7] = c
		}, refdata.ErrInvalidCurve, "levels"},
		{"nan curve", func(in *refdata.Input) {
			var c refdata.LevelCurve
			c[0] = math.NaN()
			in.Levels[7] = c
		}, refdata.ErrInvalidCurve, "levels"},
		{"curve for unknown category", func(in *refdata.Input) {
			in.Levels[8] = in.Levels[7]
		}, refdata.ErrUnknownKey, "levels"},
		{"shares off", func(in *refdata.Input) {
			in.Modes[0].Share = 0.9
		}, refdata.ErrInvalidShares, "modes"},
		{"duplicate mode", func(in *refdata.Input) {
			in.Modes = []refdata.ModeShare{{Mode: refdata.Bike, Share: 0.5}, {Mode: refdata.Bike, Share: 0.5}}
		}, refdata.ErrDuplicateID, "modes"},
		{"empty modes", func(in *refdata.Input) {
			in.Modes = []refdata.ModeShare{}
		}, refdata.ErrInvalidShares, "modes"},
		{"duration out of range", func(in *refdata.Input) {
			in.Durations = refdata.Durations{refdata.Work: timebin.Count}
		}, refdata.ErrInvalidDuration, "durations"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput()
			tc.mutate(&in)

			tb, err := refdata.New(in)
			require.Error(t, err)
			assert.Nil(t, tb)
			assert.ErrorIs(t, err, tc.want)

			var rerr *refdata.ReferenceDataError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tc.table, rerr.Table)
		})
	}
}

func TestParsePurpose(t *testing.T) {
	for in, want := range map[string]refdata.Purpose{
		"home":           refdata.Home,
		" Work ":         refdata.Work,
		"Weiterf.Schule": refdata.School,
		"Hörsaalplatz":   refdata.School,
		"Einkaufen":      refdata.Shopping,
		"Dienstleistung": refdata.Service,
	} {
		got, err := refdata.ParsePurpose(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := refdata.ParsePurpose("Sleeping")
	assert.ErrorIs(t, err, refdata.ErrUnknownPurpose)
}

func TestParseModeAndTransport(t *testing.T) {
	m, err := refdata.ParseMode(" cardriver")
	require.NoError(t, err)
	assert.Equal(t, refdata.CarDriver, m)
	assert.Equal(t, "PublicTransport", refdata.PublicTransport.String())

	_, err = refdata.ParseMode("Rocket")
	assert.ErrorIs(t, err, refdata.ErrUnknownMode)

	tr, err := refdata.ParseTransport("OV")
	require.NoError(t, err)
	assert.Equal(t, refdata.Public, tr)
	tr, err = refdata.ParseTransport("individual")
	require.NoError(t, err)
	assert.Equal(t, "IV", tr.String())

	_, err = refdata.ParseTransport("rail")
	assert.ErrorIs(t, err, refdata.ErrUnknownTransport)
}

func TestPurposeSet(t *testing.T) {
	s := refdata.NewPurposeSet(refdata.Home, refdata.Leisure)
	assert.True(t, s.Has(refdata.Home))
	assert.False(t, s.Has(refdata.Work))
	assert.Equal(t, []refdata.Purpose{refdata.Home, refdata.Leisure}, s.Slice())
	assert.True(t, refdata.PurposeSet(0).Empty())
}

func TestDecodeYAML_Fixture(t *testing.T) {
	tb, err := refdata.LoadFile("testdata/minimal.yaml")
	require.NoError(t, err)

	require.Len(t, tb.Trips(), 2)
	assert.EqualValues(t, 5, tb.TotalTrips())
	assert.Equal(t, 3, tb.Duration(refdata.Shopping))
	assert.Equal(t, 16, tb.Duration(refdata.Home))

	i, ok := tb.CategoryIndex(11)
	require.True(t, ok)
	assert.InDelta(t, 0.5, tb.Level(i, 32), 1e-12)

	d, ok := tb.District(2)
	require.True(t, ok)
	assert.Equal(t, "Westpark", d.Label)
	assert.Equal(t, []refdata.ModeShare{{Mode: refdata.CarDriver, Share: 1}}, tb.Modes())
}

func TestDecodeYAML_Errors(t *testing.T) {
	_, err := refdata.DecodeYAML(strings.NewReader("districts: [{id: 1, bogus: 2}]"))
	assert.ErrorIs(t, err, refdata.ErrDecode)

	_, err = refdata.DecodeYAML(strings.NewReader("categories: [{id: 1, origin: Nap, destination: Home}]"))
	assert.ErrorIs(t, err, refdata.ErrUnknownPurpose)

	_, err = refdata.DecodeYAML(strings.NewReader("levels: [{category: 1, shares: [1, 2]}]"))
	assert.ErrorIs(t, err, refdata.ErrInvalidCurve)

	_, err = refdata.DecodeYAML(strings.NewReader("levels: [{category: 1, bins: {48: 1}}]"))
	assert.ErrorIs(t, err, refdata.ErrInvalidCurve)
}
