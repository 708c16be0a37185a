// SPDX-License-Identifier: MIT

package scheduler

import (
	"log/slog"
	"runtime"

	"github.com/katalvlaran/plansynth/telemetry"
)

// DefaultChunks is the number of root chunks per stage when none is configured.
const DefaultChunks = 100

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the number of roots searched in parallel (default runtime.NumCPU()).
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n >= 1 {
			s.workers = n
		}
	}
}

// WithChunks sets how many chunks each stage's roots are split into (default DefaultChunks).
// Values below 1 are ignored.
func WithChunks(n int) Option {
	return func(s *Scheduler) {
		if n >= 1 {
			s.chunks = n
		}
	}
}

// WithEagerCommit makes workers extract candidates as soon as they are found
// instead of after the chunk joins. Capacity is still never oversubscribed,
// but which of several competing paths wins becomes scheduling dependent.
func WithEagerCommit(eager bool) Option {
	return func(s *Scheduler) { s.eager = eager }
}

// WithLogger sets the progress logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records run counters into m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithRunID sets the identifier attached to logs and spans (default a random UUID).
func WithRunID(id string) Option {
	return func(s *Scheduler) { s.runID = id }
}

func defaults() Scheduler {
	return Scheduler{
		workers: runtime.NumCPU(),
		chunks:  DefaultChunks,
		logger:  slog.Default(),
	}
}
