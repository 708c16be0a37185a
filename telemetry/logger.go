// SPDX-License-Identifier: MIT
//
// Package telemetry builds the ambient observability stack of a synthesis
// run: a slog logger, Prometheus collectors and an OpenTelemetry tracer
// provider. Nothing here is global except what InitTracing installs through
// otel.SetTracerProvider.
package telemetry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var (
	// ErrUnknownLevel indicates an unsupported log level name.
	ErrUnknownLevel = errors.New("telemetry: unknown log level")

	// ErrUnknownFormat indicates an unsupported log format name.
	ErrUnknownFormat = errors.New("telemetry: unknown log format")

	// ErrUnknownExporter indicates an unsupported trace exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown trace exporter")
)

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// NewLogger returns a logger writing to w in the given format ("text" or "json").
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
