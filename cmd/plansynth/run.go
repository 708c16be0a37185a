// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/katalvlaran/plansynth/config"
	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/scheduler"
	"github.com/katalvlaran/plansynth/stategraph"
	"github.com/katalvlaran/plansynth/telemetry"
)

// errNoTables is returned when neither --tables nor the config names a file.
var errNoTables = errors.New("no reference tables: set --tables or tables in the config")

// loadConfig applies the command line overrides on top of config.Load.
func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return cfg, err
	}
	if f.tables != "" {
		cfg.Tables = f.tables
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if cfg.Tables == "" {
		return cfg, errNoTables
	}

	return cfg, cfg.Validate()
}

// world is the loaded reference data plus the structures derived from it.
type world struct {
	tables *refdata.Tables
	ledger *ledger.Ledger
	graph  *stategraph.Graph
}

func buildWorld(ctx context.Context, cfg config.Config, log *slog.Logger) (world, error) {
	start := time.Now()
	tb, err := refdata.LoadFile(cfg.Tables)
	if err != nil {
		return world{}, err
	}

	method, err := cfg.LedgerMethod()
	if err != nil {
		return world{}, err
	}
	l, err := ledger.New(tb, ledger.WithMethod(method))
	if err != nil {
		return world{}, err
	}

	modes, err := cfg.ModeList()
	if err != nil {
		return world{}, err
	}
	g, err := stategraph.Build(tb, stategraph.WithContext(ctx), stategraph.WithModes(modes...))
	if err != nil {
		return world{}, err
	}

	log.Info("reference data loaded",
		slog.String("tables", cfg.Tables),
		slog.Int("districts", len(tb.Districts())),
		slog.Int("categories", len(tb.Categories())),
		slog.Int("trips", len(tb.Trips())),
		slog.String("method", method.String()),
		slog.Int("nodes", g.NodeCount()),
		slog.Int("edges", g.BuiltEdgeCount()),
		slog.Duration("elapsed", time.Since(start)),
	)

	return world{tables: tb, ledger: l, graph: g}, nil
}

func runSynthesis(cmd *cobra.Command, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	log, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.InitTracing(ctx, cfg.Trace.Exporter, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("trace shutdown", slog.Any("error", err))
		}
	}()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, reg, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	w, err := buildWorld(ctx, cfg, log)
	if err != nil {
		return err
	}
	stages, err := cfg.SchedulerStages()
	if err != nil {
		return err
	}

	opts := []scheduler.Option{
		scheduler.WithChunks(cfg.Chunks),
		scheduler.WithEagerCommit(cfg.EagerCommit),
		scheduler.WithLogger(log),
		scheduler.WithMetrics(metrics),
	}
	if cfg.Workers > 0 {
		opts = append(opts, scheduler.WithWorkers(cfg.Workers))
	}
	s, err := scheduler.New(w.tables, w.graph, w.ledger, opts...)
	if err != nil {
		return err
	}

	res, err := s.Run(ctx, stages)
	if err != nil {
		return err
	}

	return report(cmd.OutOrStdout(), res, w.ledger, f.print)
}

// report writes the run summary and, when all is set, every plan.
func report(out io.Writer, res *scheduler.Result, l *ledger.Ledger, all bool) error {
	if all {
		for _, p := range res.Plans {
			if _, err := fmt.Fprintln(out, p); err != nil {
				return err
			}
		}
	}
	for _, st := range res.Stages {
		fmt.Fprintf(out, "stage %s: %d plans from %d roots in %s\n",
			st.Name, st.Plans, st.Roots, st.Elapsed.Round(time.Millisecond))
	}
	left := l.Totals()
	_, err := fmt.Fprintf(out, "run %s: %d plans, remaining trips=%d levels=%d modes=%d\n",
		res.RunID, len(res.Plans), left.Trips, left.Levels, left.Modes)

	return err
}

// serveMetrics exposes reg on addr until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", slog.Any("error", err))
		}
	}()
	log.Info("serving metrics", slog.String("addr", lis.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func runInspect(cmd *cobra.Command, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	log, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	w, err := buildWorld(ctx, cfg, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ext := w.tables.Extent()
	totals := w.ledger.Totals()
	fmt.Fprintf(out, "districts:  %d (extent %.4f,%.4f .. %.4f,%.4f)\n",
		len(w.tables.Districts()), ext.Min.X(), ext.Min.Y(), ext.Max.X(), ext.Max.Y())
	fmt.Fprintf(out, "categories: %d\n", len(w.tables.Categories()))
	fmt.Fprintf(out, "trips:      %d records, %d units\n", len(w.tables.Trips()), w.tables.TotalTrips())
	fmt.Fprintf(out, "graph:      %d nodes, %d edges\n", w.graph.NodeCount(), w.graph.BuiltEdgeCount())
	for _, ms := range w.tables.Modes() {
		fmt.Fprintf(out, "mode %-16s %d\n", ms.Mode, w.ledger.InitialMode(ms.Mode))
	}
	_, err = fmt.Fprintf(out, "pools:      trips=%d levels=%d modes=%d\n", totals.Trips, totals.Levels, totals.Modes)

	return err
}
