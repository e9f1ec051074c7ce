// Package config loads and validates the stridelog configuration.
//
// Configuration is a YAML file validated against an embedded CUE
// schema: unknown fields are rejected, absent fields take schema
// defaults, and constraint violations carry the CUE error detail.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/stridelog/stridelog/internal/store"
	"github.com/stridelog/stridelog/internal/track"
)

//go:embed schema.cue
var schemaSource string

// Config is the fully resolved configuration: validated, defaulted,
// and converted to Go types.
type Config struct {
	Store   Store
	Engine  Engine
	Sources Sources
	Log     Log
}

// Store selects the durable KV backend.
type Store struct {
	Backend string
	Path    string
}

// Engine holds the tracking engine's intervals and thresholds.
type Engine struct {
	FlushInterval      time.Duration
	PollInterval       time.Duration
	StaleCheckInterval time.Duration
	StaleAfter         time.Duration
	SessionStaleAfter  time.Duration
	QueryTimeout       time.Duration
	RetryStep          time.Duration
	RetryMax           time.Duration
	ResetTolerance     int64
}

// Sources configures the counter sources. Both are optional; the
// engine refuses to start a session when neither is configured.
type Sources struct {
	// CounterFile is a file whose content is the raw cumulative
	// counter, watched for changes.
	CounterFile string
	// HealthURL is the base URL of a cumulative step-count HTTP service.
	HealthURL     string
	HealthTimeout time.Duration
}

// Log configures logging.
type Log struct {
	Level slog.Level
}

// fileConfig mirrors the schema shape. Durations stay strings here;
// they become time.Duration after validation.
type fileConfig struct {
	Store struct {
		Backend string `json:"backend"`
		Path    string `json:"path"`
	} `json:"store"`
	Engine struct {
		FlushInterval      string `json:"flush_interval"`
		PollInterval       string `json:"poll_interval"`
		StaleCheckInterval string `json:"stale_check_interval"`
		StaleAfter         string `json:"stale_after"`
		SessionStaleAfter  string `json:"session_stale_after"`
		QueryTimeout       string `json:"query_timeout"`
		RetryStep          string `json:"retry_step"`
		RetryMax           string `json:"retry_max"`
		ResetTolerance     int64  `json:"reset_tolerance"`
	} `json:"engine"`
	Sources struct {
		CounterFile   string `json:"counter_file"`
		HealthURL     string `json:"health_url"`
		HealthTimeout string `json:"health_timeout"`
	} `json:"sources"`
	Log struct {
		Level string `json:"level"`
	} `json:"log"`
}

// Load reads, validates, and resolves the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration with every field at its schema
// default.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		// The empty document always unifies with the schema.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// Parse validates data (YAML) against the schema and resolves it.
// Empty input yields the defaults.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var fc fileConfig
	if err := value.Decode(&fc); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return resolve(fc)
}

func resolve(fc fileConfig) (*Config, error) {
	cfg := &Config{
		Store: Store{
			Backend: fc.Store.Backend,
			Path:    fc.Store.Path,
		},
		Engine: Engine{ResetTolerance: fc.Engine.ResetTolerance},
		Sources: Sources{
			CounterFile: fc.Sources.CounterFile,
			HealthURL:   fc.Sources.HealthURL,
		},
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"engine.flush_interval", fc.Engine.FlushInterval, &cfg.Engine.FlushInterval},
		{"engine.poll_interval", fc.Engine.PollInterval, &cfg.Engine.PollInterval},
		{"engine.stale_check_interval", fc.Engine.StaleCheckInterval, &cfg.Engine.StaleCheckInterval},
		{"engine.stale_after", fc.Engine.StaleAfter, &cfg.Engine.StaleAfter},
		{"engine.session_stale_after", fc.Engine.SessionStaleAfter, &cfg.Engine.SessionStaleAfter},
		{"engine.query_timeout", fc.Engine.QueryTimeout, &cfg.Engine.QueryTimeout},
		{"engine.retry_step", fc.Engine.RetryStep, &cfg.Engine.RetryStep},
		{"engine.retry_max", fc.Engine.RetryMax, &cfg.Engine.RetryMax},
		{"sources.health_timeout", fc.Sources.HealthTimeout, &cfg.Sources.HealthTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}

	switch fc.Log.Level {
	case "debug":
		cfg.Log.Level = slog.LevelDebug
	case "info":
		cfg.Log.Level = slog.LevelInfo
	case "warn":
		cfg.Log.Level = slog.LevelWarn
	case "error":
		cfg.Log.Level = slog.LevelError
	}
	return cfg, nil
}

// StoreConfig converts to the store package's config.
func (c *Config) StoreConfig() store.Config {
	return store.Config{Backend: c.Store.Backend, Path: c.Store.Path}
}

// TrackConfig converts to the tracking engine's config.
func (c *Config) TrackConfig() track.Config {
	return track.Config{
		FlushInterval:      c.Engine.FlushInterval,
		PollInterval:       c.Engine.PollInterval,
		StaleCheckInterval: c.Engine.StaleCheckInterval,
		StaleAfter:         c.Engine.StaleAfter,
		SessionStaleAfter:  c.Engine.SessionStaleAfter,
		QueryTimeout:       c.Engine.QueryTimeout,
		RetryStep:          c.Engine.RetryStep,
		RetryMax:           c.Engine.RetryMax,
		ResetTolerance:     c.Engine.ResetTolerance,
	}
}
