package search_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/plansynth/filter"
	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/search"
	"github.com/katalvlaran/plansynth/stategraph"
	"github.com/katalvlaran/plansynth/timebin"
)

// fixture is a round trip: Home->Work leaves at bin 0, Work->Home at bin 16,
// two units of demand each.
type fixture struct {
	graph  *stategraph.Graph
	ledger *ledger.Ledger
}

func newFixture(t testing.TB, modes []refdata.ModeShare) fixture {
	t.Helper()
	var out, back refdata.LevelCurve
	out[0], back[16] = 1, 1

	tb, err := refdata.New(refdata.Input{
		Districts: []refdata.District{{ID: 1, Location: orb.Point{0, 0}}, {ID: 2, Location: orb.Point{1, 0}}},
		Categories: []refdata.Category{
			{ID: 1, Origin: refdata.Home, Destination: refdata.Work},
			{ID: 2, Origin: refdata.Work, Destination: refdata.Home},
		},
		Trips: []refdata.TripRecord{
			{Category: 1, Origin: 1, Destination: 2, Count: 2},
			{Category: 2, Origin: 2, Destination: 1, Count: 2},
		},
		Levels: map[refdata.CategoryID]refdata.LevelCurve{1: out, 2: back},
		Modes:  modes,
	})
	require.NoError(t, err)
	g, err := stategraph.Build(tb)
	require.NoError(t, err)
	l, err := ledger.New(tb)
	require.NoError(t, err)

	return fixture{graph: g, ledger: l}
}

func (f fixture) node(t testing.TB, n stategraph.Node) stategraph.NodeID {
	t.Helper()
	for i, m := range f.graph.Nodes() {
		if m == n {
			return stategraph.NodeID(i)
		}
	}
	t.Fatalf("node %s not in graph", n)

	return -1
}

func (f fixture) chain(t testing.TB, p filter.Params) *filter.Chain {
	t.Helper()
	c, err := filter.NewChain(p, f.ledger)
	require.NoError(t, err)

	return c
}

var carOnly = []refdata.ModeShare{{Mode: refdata.CarDriver, Share: 1}}

func collect(out *[]search.Candidate) func(search.Candidate) {
	return func(c search.Candidate) { *out = append(*out, c) }
}

func TestRun_RoundTripWithCycle(t *testing.T) {
	f := newFixture(t, carOnly)
	chain := f.chain(t, filter.Params{
		MinLength:            2,
		MaxLength:            4,
		AllowedFirst:         refdata.NewPurposeSet(refdata.Home),
		EnforceActivityCycle: true,
	})
	root := f.node(t, stategraph.Node{District: 1, Purpose: refdata.Home, Bin: 0})

	v := f.graph.Acquire()
	defer v.Release()

	var got []search.Candidate
	stats, err := search.Run(v, chain, root, collect(&got))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, root, got[0].Root)
	assert.Equal(t, []stategraph.EdgeID{0, timebin.Count + 16}, got[0].Edges)
	assert.Equal(t, 3, got[0].Len())
	assert.EqualValues(t, 1, got[0].Usage.Trips[0])
	assert.EqualValues(t, 1, got[0].Usage.Trips[1])
	assert.EqualValues(t, 2, got[0].Usage.Modes[refdata.CarDriver])

	assert.EqualValues(t, 3, stats.Steps)
	assert.EqualValues(t, 1, stats.Candidates)
	assert.EqualValues(t, 1, stats.Pending)
	assert.EqualValues(t, 1, stats.Rejected[filter.DistinctActivities])
	assert.Equal(t, 3, stats.MaxDepth)
}

func TestRun_SatisfiedPrefixIsExtended(t *testing.T) {
	f := newFixture(t, carOnly)
	chain := f.chain(t, filter.Params{MinLength: 2, MaxLength: 4, AllowedFirst: refdata.NewPurposeSet(refdata.Home)})
	root := f.node(t, stategraph.Node{District: 1, Purpose: refdata.Home, Bin: 0})

	v := f.graph.Acquire()
	defer v.Release()

	var got []search.Candidate
	_, err := search.Run(v, chain, root, collect(&got))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []stategraph.EdgeID{0}, got[0].Edges)
	assert.Equal(t, []stategraph.EdgeID{0, timebin.Count + 16}, got[1].Edges)
}

func TestRun_SiblingsInBuildOrder(t *testing.T) {
	f := newFixture(t, []refdata.ModeShare{
		{Mode: refdata.Feet, Share: 0.5},
		{Mode: refdata.CarDriver, Share: 0.5},
	})
	chain := f.chain(t, filter.Params{MinLength: 2, MaxLength: 3, AllowedFirst: refdata.NewPurposeSet(refdata.Home)})
	root := f.node(t, stategraph.Node{District: 1, Purpose: refdata.Home, Bin: 0})

	v := f.graph.Acquire()
	defer v.Release()

	var got []search.Candidate
	stats, err := search.Run(v, chain, root, collect(&got))
	require.NoError(t, err)

	// Edge IDs: trip × bin × mode, two modes per bin.
	back := stategraph.EdgeID(2*timebin.Count + 2*16)
	want := [][]stategraph.EdgeID{
		{0}, {0, back}, {0, back + 1},
		{1}, {1, back}, {1, back + 1},
	}
	require.Len(t, got, len(want))
	for i, c := range got {
		assert.Equal(t, want[i], c.Edges, "candidate %d", i)
	}
	assert.EqualValues(t, 14, stats.Steps)
	assert.EqualValues(t, 8, stats.Rejected[filter.Length])
	assert.EqualValues(t, 8, stats.RejectedTotal())
}

func TestRun_CapacityRejectsEmptyBin(t *testing.T) {
	f := newFixture(t, carOnly)
	chain := f.chain(t, filter.Params{MinLength: 2, MaxLength: 4, AllowedFirst: refdata.NewPurposeSet(refdata.Home)})
	root := f.node(t, stategraph.Node{District: 1, Purpose: refdata.Home, Bin: 5})

	v := f.graph.Acquire()
	defer v.Release()

	var got []search.Candidate
	stats, err := search.Run(v, chain, root, collect(&got))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.EqualValues(t, 1, stats.Rejected[filter.Capacity])
}

func TestRun_RootWithoutEdges(t *testing.T) {
	f := newFixture(t, carOnly)
	chain := f.chain(t, filter.Params{MinLength: 2, MaxLength: 4, AllowedFirst: refdata.NewPurposeSet(refdata.Home)})

	// After pruning only the bin 0 home state keeps its outbound edge.
	f.graph.Prune(f.ledger)
	root := f.node(t, stategraph.Node{District: 1, Purpose: refdata.Home, Bin: 7})

	v := f.graph.Acquire()
	defer v.Release()

	stats, err := search.Run(v, chain, root, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Steps)
}

func TestRun_Errors(t *testing.T) {
	f := newFixture(t, carOnly)
	chain := f.chain(t, filter.Params{MinLength: 2, MaxLength: 4, AllowedFirst: refdata.NewPurposeSet(refdata.Home)})
	v := f.graph.Acquire()
	defer v.Release()

	_, err := search.Run(nil, chain, 0, nil)
	assert.ErrorIs(t, err, search.ErrNilView)

	_, err = search.Run(v, nil, 0, nil)
	assert.ErrorIs(t, err, search.ErrNilChain)

	work := f.node(t, stategraph.Node{District: 2, Purpose: refdata.Work, Bin: 16})
	_, err = search.Run(v, chain, work, nil)
	assert.ErrorIs(t, err, search.ErrRootNotAdmitted)
}

func TestRun_HookAndStepLimit(t *testing.T) {
	f := newFixture(t, carOnly)
	chain := f.chain(t, filter.Params{MinLength: 2, MaxLength: 4, AllowedFirst: refdata.NewPurposeSet(refdata.Home)})
	root := f.node(t, stategraph.Node{District: 1, Purpose: refdata.Home, Bin: 0})
	v := f.graph.Acquire()
	defer v.Release()

	var depths []int
	hook := search.WithStepHook(func(depth int, _ stategraph.EdgeID, _ filter.Outcome) {
		depths = append(depths, depth)
	})
	_, err := search.Run(v, chain, root, nil, hook)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, depths)

	var got []search.Candidate
	stats, err := search.Run(v, chain, root, collect(&got), search.WithMaxSteps(1))
	assert.ErrorIs(t, err, search.ErrStepLimit)
	assert.EqualValues(t, 1, stats.Steps)
	assert.Len(t, got, 1)
}

func TestStats_Merge(t *testing.T) {
	a := search.Stats{Steps: 2, Candidates: 1, MaxDepth: 2}
	a.Rejected[filter.Capacity] = 1
	b := search.Stats{Steps: 3, Pending: 4, MaxDepth: 5}
	b.Rejected[filter.Capacity] = 2

	a.Merge(b)
	assert.EqualValues(t, 5, a.Steps)
	assert.EqualValues(t, 4, a.Pending)
	assert.EqualValues(t, 3, a.Rejected[filter.Capacity])
	assert.Equal(t, 5, a.MaxDepth)
}
