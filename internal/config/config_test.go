package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyYieldsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "stridelog.db", cfg.Store.Path)
	assert.Equal(t, 10*time.Second, cfg.Engine.FlushInterval)
	assert.Equal(t, 30*time.Second, cfg.Engine.PollInterval)
	assert.Equal(t, 12*time.Hour, cfg.Engine.SessionStaleAfter)
	assert.Equal(t, int64(5), cfg.Engine.ResetTolerance)
	assert.Empty(t, cfg.Sources.CounterFile)
	assert.Empty(t, cfg.Sources.HealthURL)
	assert.Equal(t, 5*time.Second, cfg.Sources.HealthTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
store:
  backend: badger
  path: /var/lib/stridelog
engine:
  flush_interval: 5s
  reset_tolerance: 10
sources:
  counter_file: /sys/step_counter
  health_url: http://localhost:8080
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "/var/lib/stridelog", cfg.Store.Path)
	assert.Equal(t, 5*time.Second, cfg.Engine.FlushInterval)
	assert.Equal(t, int64(10), cfg.Engine.ResetTolerance)
	assert.Equal(t, 30*time.Second, cfg.Engine.PollInterval, "unset fields keep defaults")
	assert.Equal(t, "/sys/step_counter", cfg.Sources.CounterFile)
	assert.Equal(t, "http://localhost:8080", cfg.Sources.HealthURL)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "store:\n  backend: etcd\n"},
		{"unknown field", "engine:\n  flash_interval: 5s\n"},
		{"malformed duration", "engine:\n  flush_interval: fast\n"},
		{"zero tolerance", "engine:\n  reset_tolerance: 0\n"},
		{"bad health url", "sources:\n  health_url: localhost:8080\n"},
		{"bad log level", "log:\n  level: trace\n"},
		{"not yaml", ": : :\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault_MatchesEngineDefaults(t *testing.T) {
	cfg := Default()
	tc := cfg.TrackConfig()

	assert.Equal(t, 10*time.Second, tc.FlushInterval)
	assert.Equal(t, 45*time.Second, tc.StaleAfter)
	assert.Equal(t, 2*time.Second, tc.RetryStep)
	assert.Equal(t, 10*time.Second, tc.RetryMax)
	assert.Equal(t, int64(5), tc.ResetTolerance)

	sc := cfg.StoreConfig()
	assert.Equal(t, "sqlite", sc.Backend)
}
