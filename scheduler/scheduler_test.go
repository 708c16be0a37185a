package scheduler_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/plansynth/commit"
	"github.com/katalvlaran/plansynth/filter"
	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/scheduler"
	"github.com/katalvlaran/plansynth/stategraph"
	"github.com/katalvlaran/plansynth/telemetry"
)

type world struct {
	tables *refdata.Tables
	graph  *stategraph.Graph
	ledger *ledger.Ledger
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func build(t *testing.T, in refdata.Input) world {
	t.Helper()
	tb, err := refdata.New(in)
	require.NoError(t, err)
	g, err := stategraph.Build(tb)
	require.NoError(t, err)
	l, err := ledger.New(tb)
	require.NoError(t, err)

	return world{tables: tb, graph: g, ledger: l}
}

func spike(b int) refdata.LevelCurve {
	var c refdata.LevelCurve
	c[b] = 1
	return c
}

// roundTrip: d1 Home -> d2 Work departing 00:00 (3 units),
// d2 Work -> d1 Home departing 08:00 (2 units).
func roundTrip(t *testing.T) world {
	t.Helper()
	return build(t, refdata.Input{
		Districts: []refdata.District{{ID: 1, Location: orb.Point{0, 0}}, {ID: 2, Location: orb.Point{1, 0}}},
		Categories: []refdata.Category{
			{ID: 1, Origin: refdata.Home, Destination: refdata.Work},
			{ID: 2, Origin: refdata.Work, Destination: refdata.Home},
		},
		Trips: []refdata.TripRecord{
			{Category: 1, Origin: 1, Destination: 2, Count: 3},
			{Category: 2, Origin: 2, Destination: 1, Count: 2},
		},
		Levels: map[refdata.CategoryID]refdata.LevelCurve{1: spike(0), 2: spike(16)},
		Modes:  []refdata.ModeShare{{Mode: refdata.CarDriver, Share: 1}},
	})
}

// hub: three home districts commuting to one work district, two modes.
func hub(t *testing.T) world {
	t.Helper()
	var morning, evening refdata.LevelCurve
	morning[0], morning[1] = 0.5, 0.5
	evening[16], evening[17] = 0.5, 0.5

	return build(t, refdata.Input{
		Districts: []refdata.District{
			{ID: 1, Location: orb.Point{0, 0}},
			{ID: 2, Location: orb.Point{0, 1}},
			{ID: 3, Location: orb.Point{1, 1}},
			{ID: 4, Location: orb.Point{1, 0}},
		},
		Categories: []refdata.Category{
			{ID: 1, Origin: refdata.Home, Destination: refdata.Work},
			{ID: 2, Origin: refdata.Work, Destination: refdata.Home},
		},
		Trips: []refdata.TripRecord{
			{Category: 1, Origin: 1, Destination: 4, Count: 2},
			{Category: 1, Origin: 2, Destination: 4, Count: 2},
			{Category: 1, Origin: 3, Destination: 4, Count: 2},
			{Category: 2, Origin: 4, Destination: 1, Count: 1},
			{Category: 2, Origin: 4, Destination: 2, Count: 1},
			{Category: 2, Origin: 4, Destination: 3, Count: 1},
		},
		Levels: map[refdata.CategoryID]refdata.LevelCurve{1: morning, 2: evening},
		Modes:  []refdata.ModeShare{{Mode: refdata.CarDriver, Share: 0.5}, {Mode: refdata.Bike, Share: 0.5}},
	})
}

func roundTripStage() scheduler.Stage {
	return scheduler.Stage{Name: "cycle", Params: filter.Params{
		MinLength:            2,
		MaxLength:            3,
		AllowedFirst:         refdata.NewPurposeSet(refdata.Home),
		MinDurationBins:      16,
		EnforceActivityCycle: true,
	}}
}

func oneWayStage() scheduler.Stage {
	return scheduler.Stage{Name: "one-way", Params: filter.Params{
		MinLength:       2,
		MaxLength:       2,
		AllowedFirst:    refdata.NewPurposeSet(refdata.Home),
		MinDurationBins: 16,
	}}
}

// consumed asserts that the ledger lost exactly the demand the plans carry.
func consumed(t *testing.T, w world, plans []commit.Plan) {
	t.Helper()
	legs := make(map[refdata.TripID]int64)
	modes := make(map[refdata.Mode]int64)
	for _, p := range plans {
		for _, leg := range p.Legs {
			legs[leg.Trip]++
			modes[leg.Mode]++
		}
	}
	for _, tr := range w.tables.Trips() {
		used := w.ledger.InitialTrip(tr.ID) - w.ledger.RemainingTrip(tr.ID)
		assert.Equal(t, legs[tr.ID], used, "trip %d", tr.ID)
		assert.GreaterOrEqual(t, w.ledger.RemainingTrip(tr.ID), int64(0))
	}
	for _, ms := range w.tables.Modes() {
		used := w.ledger.InitialMode(ms.Mode) - w.ledger.RemainingMode(ms.Mode)
		assert.Equal(t, modes[ms.Mode], used, "mode %s", ms.Mode)
		assert.GreaterOrEqual(t, w.ledger.RemainingMode(ms.Mode), int64(0))
	}
}

func TestNew_Errors(t *testing.T) {
	w := roundTrip(t)
	_, err := scheduler.New(nil, w.graph, w.ledger)
	assert.ErrorIs(t, err, scheduler.ErrNilDependency)
	_, err = scheduler.New(w.tables, nil, w.ledger)
	assert.ErrorIs(t, err, scheduler.ErrNilDependency)
	_, err = scheduler.New(w.tables, w.graph, nil)
	assert.ErrorIs(t, err, scheduler.ErrNilDependency)
}

func TestRun_InvalidStages(t *testing.T) {
	w := roundTrip(t)
	s, err := scheduler.New(w.tables, w.graph, w.ledger, scheduler.WithLogger(quiet()))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, scheduler.ErrNoStages)

	bad := roundTripStage()
	bad.Params.MaxLength = 1
	_, err = s.Run(context.Background(), []scheduler.Stage{bad})
	assert.ErrorIs(t, err, filter.ErrInvalidLength)
	assert.Zero(t, w.ledger.Stats().Commits)
}

func TestRun_RoundTrip(t *testing.T) {
	w := roundTrip(t)
	s, err := scheduler.New(w.tables, w.graph, w.ledger,
		scheduler.WithLogger(quiet()),
		scheduler.WithWorkers(2),
		scheduler.WithRunID("rt"),
	)
	require.NoError(t, err)

	res, err := s.Run(context.Background(), []scheduler.Stage{roundTripStage()})
	require.NoError(t, err)

	assert.Equal(t, "rt", res.RunID)
	require.Len(t, res.Plans, 2)
	for _, p := range res.Plans {
		assert.Equal(t, "d1/Home@00:00 -[CarDriver]-> d2/Work@08:00 -[CarDriver]-> d1/Home@16:00", p.String())
	}
	assert.Equal(t, map[int]int{3: 2}, res.Lengths)

	require.Len(t, res.Stages, 1)
	st := res.Stages[0]
	assert.Equal(t, "cycle", st.Name)
	assert.Equal(t, 1, st.Roots)
	assert.Equal(t, 1, st.Chunks)
	assert.Equal(t, 2, st.Plans)
	assert.Equal(t, commit.Stats{Candidates: 1, Plans: 2}, st.Commit)
	assert.EqualValues(t, 1, st.Search.Candidates)

	// 47 empty departure bins per trip before the stage, then the
	// exhausted return trip.
	assert.Equal(t, 1, st.Pruned)
	assert.Equal(t, 95, res.Pruned)

	assert.EqualValues(t, 1, w.ledger.RemainingTrip(0))
	assert.Zero(t, w.ledger.RemainingTrip(1))
	consumed(t, w, res.Plans)
}

func TestRun_StagesShareLedger(t *testing.T) {
	w := roundTrip(t)
	s, err := scheduler.New(w.tables, w.graph, w.ledger, scheduler.WithLogger(quiet()))
	require.NoError(t, err)

	res, err := s.Run(context.Background(), []scheduler.Stage{roundTripStage(), oneWayStage()})
	require.NoError(t, err)

	require.Len(t, res.Stages, 2)
	assert.Equal(t, 2, res.Stages[0].Plans)
	assert.Equal(t, 1, res.Stages[1].Plans)
	require.Len(t, res.Plans, 3)
	assert.Equal(t, "d1/Home@00:00 -[CarDriver]-> d2/Work@08:00", res.Plans[2].String())
	assert.Equal(t, map[int]int{2: 1, 3: 2}, res.Lengths)

	assert.Equal(t, ledger.Totals{}, w.ledger.Totals())
	consumed(t, w, res.Plans)
}

func TestRun_DeferredIndependentOfWorkers(t *testing.T) {
	run := func(workers, chunks int) []string {
		w := hub(t)
		s, err := scheduler.New(w.tables, w.graph, w.ledger,
			scheduler.WithLogger(quiet()),
			scheduler.WithWorkers(workers),
			scheduler.WithChunks(chunks),
		)
		require.NoError(t, err)
		res, err := s.Run(context.Background(), []scheduler.Stage{roundTripStage(), oneWayStage()})
		require.NoError(t, err)
		consumed(t, w, res.Plans)

		out := make([]string, len(res.Plans))
		for i, p := range res.Plans {
			out[i] = p.String()
		}
		return out
	}

	want := run(1, 1)
	require.NotEmpty(t, want)
	for range 5 {
		assert.Equal(t, want, run(4, 1))
	}
	assert.Equal(t, run(1, 3), run(8, 3))
}

func TestRun_EagerNeverOversubscribes(t *testing.T) {
	for range 10 {
		w := hub(t)
		s, err := scheduler.New(w.tables, w.graph, w.ledger,
			scheduler.WithLogger(quiet()),
			scheduler.WithWorkers(4),
			scheduler.WithChunks(1),
			scheduler.WithEagerCommit(true),
		)
		require.NoError(t, err)

		res, err := s.Run(context.Background(), []scheduler.Stage{roundTripStage(), oneWayStage()})
		require.NoError(t, err)
		require.NotEmpty(t, res.Plans)
		consumed(t, w, res.Plans)
	}
}

func TestRun_ProgressAndMetrics(t *testing.T) {
	w := roundTrip(t)
	var buf bytes.Buffer
	log, err := telemetry.NewLogger("info", "json", &buf)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)
	s, err := scheduler.New(w.tables, w.graph, w.ledger,
		scheduler.WithLogger(log),
		scheduler.WithMetrics(m),
		scheduler.WithRunID("metrics"),
	)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), []scheduler.Stage{roundTripStage()})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"chunk done"`)
	assert.Contains(t, out, `"progress":"100.0%"`)
	assert.Contains(t, out, `"run_id":"metrics"`)
	assert.Contains(t, out, `"len_3":2`)

	families := gather(t, reg)
	assert.Equal(t, 2.0, families["plansynth_plans_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, families["plansynth_chunks_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 95.0, families["plansynth_pruned_edges_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, families["plansynth_candidates_total"].GetMetric()[0].GetCounter().GetValue())
	assert.EqualValues(t, 2, families["plansynth_plan_length_stops"].GetMetric()[0].GetHistogram().GetSampleCount())
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	fams, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(fams))
	for _, f := range fams {
		out[f.GetName()] = f
	}

	return out
}

func TestRun_NoRoots(t *testing.T) {
	w := roundTrip(t)
	s, err := scheduler.New(w.tables, w.graph, w.ledger, scheduler.WithLogger(quiet()))
	require.NoError(t, err)

	st := roundTripStage()
	st.Params.AllowedFirst = refdata.NewPurposeSet(refdata.Leisure)
	res, err := s.Run(context.Background(), []scheduler.Stage{st})
	require.NoError(t, err)
	assert.Empty(t, res.Plans)
	assert.Zero(t, res.Stages[0].Chunks)
}
