// SPDX-License-Identifier: MIT

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the Prometheus collectors of a synthesis run.
type Metrics struct {
	Plans        prometheus.Counter
	Candidates   prometheus.Counter
	Races        prometheus.Counter
	Steps        prometheus.Counter
	Rejected     *prometheus.CounterVec // label: kind
	Pruned       prometheus.Counter
	Chunks       prometheus.Counter
	ChunkSeconds prometheus.Histogram
	PlanLength   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Plans: f.NewCounter(prometheus.CounterOpts{
			Name: "plansynth_plans_total",
			Help: "Plans accepted by the ledger",
		}),
		Candidates: f.NewCounter(prometheus.CounterOpts{
			Name: "plansynth_candidates_total",
			Help: "Admissible paths handed to extraction",
		}),
		Races: f.NewCounter(prometheus.CounterOpts{
			Name: "plansynth_capacity_races_total",
			Help: "Candidates whose first commit failed",
		}),
		Steps: f.NewCounter(prometheus.CounterOpts{
			Name: "plansynth_search_steps_total",
			Help: "Filter chain evaluations",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plansynth_rejections_total",
			Help: "Rejected edge traversals by deciding filter",
		}, []string{"kind"}),
		Pruned: f.NewCounter(prometheus.CounterOpts{
			Name: "plansynth_pruned_edges_total",
			Help: "Edges removed from the state graph",
		}),
		Chunks: f.NewCounter(prometheus.CounterOpts{
			Name: "plansynth_chunks_total",
			Help: "Root chunks processed",
		}),
		ChunkSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "plansynth_chunk_duration_seconds",
			Help:    "Wall time per root chunk",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		PlanLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "plansynth_plan_length_stops",
			Help:    "Stops per accepted plan",
			Buckets: prometheus.LinearBuckets(1, 1, 9),
		}),
	}
}

// Handler serves the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
