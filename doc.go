// SPDX-License-Identifier: MIT
//
// Package plansynth synthesizes daily activity plans for a population from
// aggregate travel demand.
//
// A plan is a sequence of stops (district, purpose, time bin) joined by trips
// (trip record, travel mode). Plans are found by depth-first search over a
// time-expanded state graph and accepted only while three capacity pools
// still hold demand: trips per record, trips per category and departure bin,
// and trips per mode. Every accepted plan consumes its demand, so the output
// never exceeds the observed counts.
//
// Packages, bottom-up:
//
//	timebin/     48 half-hour bins of one cyclic day
//	refdata/     immutable reference tables and their YAML fixture format
//	apportion/   integer apportionment of totals by shares
//	ledger/      the capacity pools and their atomic multi-pool commit
//	stategraph/  the time-expanded graph, read views and pruning
//	filter/      the admissibility chain evaluated per step
//	search/      single-root iterative backtracking search
//	commit/      repeated commit of candidates into plans
//	scheduler/   staged, chunked, parallel driver
//	telemetry/   slog logger, Prometheus metrics, OpenTelemetry tracing
//	config/      YAML and environment configuration
//
// The cmd/plansynth binary wires them together:
//
//	plansynth run --config plansynth.yaml --tables tables.yaml --print
package plansynth
