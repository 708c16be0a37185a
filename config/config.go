// SPDX-License-Identifier: MIT
//
// Package config loads the settings of a plansynth run.
//
// Sources are layered with increasing priority:
//
//	Default() < YAML file < PLANSYNTH_* environment variables
//
// and the merged result is checked by Validate before it is returned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/plansynth/filter"
	"github.com/katalvlaran/plansynth/ledger"
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/scheduler"
	"github.com/katalvlaran/plansynth/telemetry"
)

var (
	// ErrDecode indicates a malformed configuration file.
	ErrDecode = errors.New("config: decode")

	// ErrEnv indicates an environment override that does not parse.
	ErrEnv = errors.New("config: bad environment value")

	// ErrInvalid indicates a configuration that fails validation.
	ErrInvalid = errors.New("config: invalid")
)

// Environment variables read by Load.
const (
	EnvTables        = "PLANSYNTH_TABLES"
	EnvWorkers       = "PLANSYNTH_WORKERS"
	EnvChunks        = "PLANSYNTH_CHUNKS"
	EnvEagerCommit   = "PLANSYNTH_EAGER_COMMIT"
	EnvMethod        = "PLANSYNTH_METHOD"
	EnvLogLevel      = "PLANSYNTH_LOG_LEVEL"
	EnvLogFormat     = "PLANSYNTH_LOG_FORMAT"
	EnvTraceExporter = "PLANSYNTH_TRACE_EXPORTER"
	EnvMetricsAddr   = "PLANSYNTH_METRICS_ADDR"
)

// Config is the full run configuration.
type Config struct {
	// Tables is the path of the reference data YAML file.
	Tables string `yaml:"tables"`

	// Workers bounds the roots searched in parallel. Zero means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0"`

	// Chunks is the number of root chunks per stage.
	Chunks int `yaml:"chunks" validate:"gte=1"`

	// EagerCommit commits candidates inside the workers.
	EagerCommit bool `yaml:"eager_commit"`

	// Method selects how pools are apportioned: largest-remainder or sequential.
	Method string `yaml:"method" validate:"method"`

	// Modes restricts the travel modes put into the graph. Empty means all.
	Modes []string `yaml:"modes" validate:"dive,mode"`

	Log     LogConfig     `yaml:"log"`
	Trace   TraceConfig   `yaml:"trace"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Stages run in order against one ledger.
	Stages []StageConfig `yaml:"stages" validate:"required,min=1,dive"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"loglevel"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// TraceConfig selects the span exporter.
type TraceConfig struct {
	Exporter string `yaml:"exporter" validate:"oneof=none stdout"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// StageConfig is one filter parameter set.
type StageConfig struct {
	Name          string   `yaml:"name" validate:"required"`
	MinLength     int      `yaml:"min_length" validate:"gte=1"`
	MaxLength     int      `yaml:"max_length" validate:"gte=2,gtefield=MinLength"`
	FirstActivity []string `yaml:"first_activity" validate:"required,min=1,dive,purpose"`
	MinDuration   int      `yaml:"min_duration" validate:"gte=0,lte=48"`
	ActivityCycle bool     `yaml:"activity_cycle"`
}

// Default returns the configuration of a single home-based round-trip stage.
func Default() Config {
	return Config{
		Chunks: scheduler.DefaultChunks,
		Method: ledger.MethodLargestRemainder.String(),
		Log:    LogConfig{Level: "info", Format: "text"},
		Trace:  TraceConfig{Exporter: "none"},
		Stages: []StageConfig{{
			Name:          "default",
			MinLength:     2,
			MaxLength:     6,
			FirstActivity: []string{refdata.Home.String()},
			MinDuration:   40,
			ActivityCycle: true,
		}},
	}
}

// Load merges Default, the YAML file at path (skipped when path is empty)
// and the environment, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: open %s: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Decode reads YAML from r over Default and validates the result.
// The environment is not consulted.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return nil
}

// applyEnv overrides cfg from the variables lookup reports as set.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTables); ok {
		cfg.Tables = v
	}
	if v, ok := lookup(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrEnv, EnvWorkers, v)
		}
		cfg.Workers = n
	}
	if v, ok := lookup(EnvChunks); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrEnv, EnvChunks, v)
		}
		cfg.Chunks = n
	}
	if v, ok := lookup(EnvEagerCommit); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrEnv, EnvEagerCommit, v)
		}
		cfg.EagerCommit = b
	}
	if v, ok := lookup(EnvMethod); ok {
		cfg.Method = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		cfg.Log.Format = v
	}
	if v, ok := lookup(EnvTraceExporter); ok {
		cfg.Trace.Exporter = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		cfg.Metrics.Addr = v
	}

	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("purpose", func(fl validator.FieldLevel) bool {
		_, err := refdata.ParsePurpose(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		_, err := refdata.ParseMode(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("method", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseMethod(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := telemetry.ParseLevel(fl.Field().String())
		return err == nil
	})

	return v
}

// Validate checks field constraints and stage names.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[string]bool, len(c.Stages))
	for _, st := range c.Stages {
		if seen[st.Name] {
			return fmt.Errorf("%w: duplicate stage name %q", ErrInvalid, st.Name)
		}
		seen[st.Name] = true
	}

	return nil
}

// LedgerMethod returns the configured apportionment method.
func (c Config) LedgerMethod() (ledger.Method, error) {
	return ledger.ParseMethod(c.Method)
}

// ModeList resolves Modes. An empty result selects every mode of the tables.
func (c Config) ModeList() ([]refdata.Mode, error) {
	out := make([]refdata.Mode, 0, len(c.Modes))
	for _, s := range c.Modes {
		m, err := refdata.ParseMode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, nil
}

// SchedulerStages converts every stage.
func (c Config) SchedulerStages() ([]scheduler.Stage, error) {
	out := make([]scheduler.Stage, 0, len(c.Stages))
	for _, st := range c.Stages {
		p, err := st.Params()
		if err != nil {
			return nil, fmt.Errorf("config: stage %q: %w", st.Name, err)
		}
		out = append(out, scheduler.Stage{Name: st.Name, Params: p})
	}

	return out, nil
}

// Params converts s to filter parameters.
func (s StageConfig) Params() (filter.Params, error) {
	var first refdata.PurposeSet
	for _, name := range s.FirstActivity {
		p, err := refdata.ParsePurpose(name)
		if err != nil {
			return filter.Params{}, err
		}
		first = first.With(p)
	}
	p := filter.Params{
		MinLength:            s.MinLength,
		MaxLength:            s.MaxLength,
		AllowedFirst:         first,
		MinDurationBins:      s.MinDuration,
		EnforceActivityCycle: s.ActivityCycle,
	}

	return p, p.Validate()
}
