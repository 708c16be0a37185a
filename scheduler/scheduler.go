// SPDX-License-Identifier: MIT
//
// Package scheduler drives a synthesis run: for every stage it splits the
// admitted roots into chunks, searches the roots of a chunk in parallel,
// extracts plans against the shared ledger and prunes the state graph.
//
// Chunk protocol:
//
//  1. Acquire one graph View for the chunk.
//  2. Run one single-threaded search per root on an errgroup limited to
//     the configured worker count. Workers only read the ledger.
//  3. Join, then release the View (barrier).
//  4. Deferred commit (default): extract the gathered candidates in root
//     order. Eager commit: workers already extracted in step 2.
//  5. If the chunk committed at least one plan, prune depleted edges.
//
// Stages run one after another against the same ledger, so demand consumed
// by an earlier parameter set is not available to a later one.
//
// With deferred commit the result depends only on the inputs, not on the
// worker count. With eager commit concurrent workers race for capacity; the
// ledger still never oversubscribes, but which competing path wins is
// unspecified.
//
// There is no cancellation: the context carries trace spans only and every
// chunk runs to completion.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/plansynth/commit"
	"github.com/katalvlaran/plansynth/filter"
	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/search"
	"github.com/katalvlaran/plansynth/stategraph"
	"github.com/katalvlaran/plansynth/telemetry"
)

var tracer = otel.Tracer("plansynth.scheduler")

var (
	// ErrNilDependency is returned when New is missing tables, graph or ledger.
	ErrNilDependency = errors.New("scheduler: nil tables, graph or ledger")

	// ErrNoStages is returned when Run receives no stages.
	ErrNoStages = errors.New("scheduler: no stages")
)

// Stage is one parameter set searched over all admitted roots.
type Stage struct {
	Name   string
	Params filter.Params
}

// StageResult summarizes one stage.
type StageResult struct {
	Name    string
	Roots   int
	Chunks  int
	Plans   int
	Pruned  int
	Search  search.Stats
	Commit  commit.Stats
	Elapsed time.Duration
}

// Result is the outcome of Run.
type Result struct {
	RunID  string
	Plans  []commit.Plan
	Stages []StageResult

	// Pruned counts edges removed before the first stage and after chunks.
	Pruned int

	// Lengths counts plans by number of stops.
	Lengths map[int]int
}

// Scheduler runs stages against one graph and ledger.
type Scheduler struct {
	tables *refdata.Tables
	graph  *stategraph.Graph
	ledger *ledger.Ledger

	workers int
	chunks  int
	eager   bool
	logger  *slog.Logger
	metrics *telemetry.Metrics
	runID   string
}

// New returns a Scheduler over the given tables, graph and ledger.
func New(t *refdata.Tables, g *stategraph.Graph, l *ledger.Ledger, opts ...Option) (*Scheduler, error) {
	if t == nil || g == nil || l == nil {
		return nil, ErrNilDependency
	}
	s := defaults()
	s.tables, s.graph, s.ledger = t, g, l
	for _, fn := range opts {
		fn(&s)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}

	return &s, nil
}

// Run executes stages in order and returns every accepted plan.
func (s *Scheduler) Run(ctx context.Context, stages []Stage) (*Result, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	for i, st := range stages {
		if err := st.Params.Validate(); err != nil {
			return nil, fmt.Errorf("scheduler: stage %d (%s): %w", i+1, st.Name, err)
		}
	}

	ctx, span := tracer.Start(ctx, "scheduler.Run",
		trace.WithAttributes(
			attribute.String("run_id", s.runID),
			attribute.Int("stages", len(stages)),
			attribute.Int("workers", s.workers),
			attribute.Bool("eager_commit", s.eager),
		),
	)
	defer span.End()

	start := time.Now()
	log := s.logger.With(slog.String("run_id", s.runID))
	res := &Result{RunID: s.runID, Lengths: make(map[int]int)}

	// Edges whose pools start empty are never traversable.
	res.Pruned = s.prune()
	log.Info("run started",
		slog.Int("nodes", s.graph.NodeCount()),
		slog.Int("edges", s.graph.EdgeCount()),
		slog.Int("pruned", res.Pruned),
		slog.Int64("trips", s.tables.TotalTrips()),
		slog.Int("workers", s.workers),
		slog.Bool("eager_commit", s.eager),
	)

	for i, st := range stages {
		sr, plans, err := s.runStage(ctx, log.With(slog.Int("stage", i+1)), i+1, st, start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		res.Stages = append(res.Stages, sr)
		res.Plans = append(res.Plans, plans...)
		res.Pruned += sr.Pruned
	}

	for _, p := range res.Plans {
		res.Lengths[p.Len()]++
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.Int("plans", len(res.Plans)))

	ls := s.ledger.Stats()
	log.Info("run finished",
		slog.Int("plans", len(res.Plans)),
		slog.Int64("commits", ls.Commits),
		slog.Int64("races", ls.Races),
		slog.Duration("elapsed", time.Since(start)),
	)

	return res, nil
}

// runStage searches every admitted root of one stage, chunk by chunk.
func (s *Scheduler) runStage(ctx context.Context, log *slog.Logger, index int, st Stage, runStart time.Time) (StageResult, []commit.Plan, error) {
	ctx, span := tracer.Start(ctx, "scheduler.Stage",
		trace.WithAttributes(
			attribute.Int("stage", index),
			attribute.String("name", st.Name),
		),
	)
	defer span.End()

	start := time.Now()
	sr := StageResult{Name: st.Name}

	chain, err := filter.NewChain(st.Params, s.ledger)
	if err != nil {
		return sr, nil, fmt.Errorf("scheduler: stage %d: %w", index, err)
	}
	x := commit.NewExtractor(s.ledger, s.graph)

	roots := s.graph.Roots(st.Params.AllowedFirst)
	chunks := split(roots, s.chunks)
	sr.Roots, sr.Chunks = len(roots), len(chunks)
	log.Info("stage started", slog.String("name", st.Name), slog.Int("roots", len(roots)), slog.Int("chunks", len(chunks)))

	var plans []commit.Plan
	for ci, chunk := range chunks {
		got, stats, err := s.runChunk(ctx, chain, x, chunk, ci)
		if err != nil {
			return sr, nil, fmt.Errorf("scheduler: stage %d chunk %d: %w", index, ci+1, err)
		}
		sr.Search.Merge(stats)
		plans = append(plans, got...)

		pruned := 0
		if len(got) > 0 {
			pruned = s.prune()
			sr.Pruned += pruned
		}

		log.Info("chunk done",
			slog.Int("chunk", ci+1),
			slog.String("progress", fmt.Sprintf("%.1f%%", 100*float64(ci+1)/float64(len(chunks)))),
			slog.Int("plans", len(plans)),
			slog.Int64("steps", sr.Search.Steps),
			slog.Int("pruned", pruned),
			slog.Duration("elapsed", time.Since(runStart)),
		)
	}

	sr.Plans = len(plans)
	sr.Commit = x.Stats()
	sr.Elapsed = time.Since(start)
	span.SetAttributes(attribute.Int("plans", sr.Plans), attribute.Int64("steps", sr.Search.Steps))

	lengths := make(map[int]int)
	attrs := make([]any, 0, 12)
	for _, p := range plans {
		lengths[p.Len()]++
	}
	for n := 1; n <= st.Params.MaxLength; n++ {
		if lengths[n] > 0 {
			attrs = append(attrs, slog.Int(fmt.Sprintf("len_%d", n), lengths[n]))
		}
	}
	log.Info("plan lengths", attrs...)

	return sr, plans, nil
}

// runChunk searches the roots of one chunk and returns the plans it accepted.
func (s *Scheduler) runChunk(ctx context.Context, chain *filter.Chain, x *commit.Extractor, roots []stategraph.NodeID, index int) ([]commit.Plan, search.Stats, error) {
	_, span := tracer.Start(ctx, "scheduler.Chunk",
		trace.WithAttributes(attribute.Int("chunk", index+1), attribute.Int("roots", len(roots))),
	)
	defer span.End()
	start := time.Now()
	racesBefore := x.Stats().Races

	cands := make([][]search.Candidate, len(roots))
	found := make([][]commit.Plan, len(roots))
	stats := make([]search.Stats, len(roots))

	view := s.graph.Acquire()
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, root := range roots {
		g.Go(func() error {
			emit := func(c search.Candidate) { cands[i] = append(cands[i], c) }
			if s.eager {
				emit = func(c search.Candidate) { found[i] = append(found[i], x.Extract(c)...) }
			}
			st, err := search.Run(view, chain, root, emit)
			stats[i] = st

			return err
		})
	}
	err := g.Wait()
	view.Release()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, search.Stats{}, err
	}

	var (
		plans []commit.Plan
		total search.Stats
	)
	for i := range roots {
		total.Merge(stats[i])
		if s.eager {
			plans = append(plans, found[i]...)
			continue
		}
		for _, c := range cands[i] {
			plans = append(plans, x.Extract(c)...)
		}
	}

	s.record(total, plans, x.Stats().Races-racesBefore, time.Since(start))
	span.SetAttributes(attribute.Int("plans", len(plans)), attribute.Int64("steps", total.Steps))

	return plans, total, nil
}

// prune removes depleted edges and records the count.
func (s *Scheduler) prune() int {
	n := s.graph.Prune(s.ledger)
	if s.metrics != nil {
		s.metrics.Pruned.Add(float64(n))
	}

	return n
}

// record feeds one chunk's counters into the metrics, if any.
func (s *Scheduler) record(st search.Stats, plans []commit.Plan, races int64, d time.Duration) {
	if s.metrics == nil {
		return
	}
	m := s.metrics
	m.Chunks.Inc()
	m.ChunkSeconds.Observe(d.Seconds())
	m.Steps.Add(float64(st.Steps))
	m.Candidates.Add(float64(st.Candidates))
	for k, n := range st.Rejected {
		if n > 0 {
			m.Rejected.WithLabelValues(filter.Kind(k).String()).Add(float64(n))
		}
	}
	m.Plans.Add(float64(len(plans)))
	for _, p := range plans {
		m.PlanLength.Observe(float64(p.Len()))
	}
	m.Races.Add(float64(races))
}

// split cuts roots into at most n contiguous chunks of ceil(len/n) roots.
func split(roots []stategraph.NodeID, n int) [][]stategraph.NodeID {
	if len(roots) == 0 {
		return nil
	}
	size := (len(roots) + n - 1) / n
	out := make([][]stategraph.NodeID, 0, n)
	for lo := 0; lo < len(roots); lo += size {
		hi := min(lo+size, len(roots))
		out = append(out, roots[lo:hi])
	}

	return out
}
