package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelog/stridelog/internal/ledger"
	"github.com/stridelog/stridelog/internal/store"
)

// writeTestConfig writes a config file pointing the store at a fresh
// sqlite database and returns the config path plus the database path.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "kv.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("store:\n  backend: sqlite\n  path: %s\n", dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, dbPath
}

func seedStore(t *testing.T, dbPath string, rec *store.TrackingRecord, sessions []ledger.Session) {
	t.Helper()
	kv, err := store.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer kv.Close()

	ctx := context.Background()
	if rec != nil {
		raw, err := store.EncodeTrackingRecord(*rec)
		require.NoError(t, err)
		require.NoError(t, kv.Set(ctx, store.KeyTrackingState, raw))
	}
	if sessions != nil {
		raw, err := store.EncodeHistory(sessions)
		require.NoError(t, err)
		require.NoError(t, kv.Set(ctx, store.KeySessionHistory, raw))
	}
}

// execute runs the CLI with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func testSessions(now time.Time) []ledger.Session {
	return []ledger.Session{
		{
			ID:        "aaaaaaaa-0000-0000-0000-000000000001",
			Steps:     25,
			StartTime: now.Add(-2 * time.Hour),
			EndTime:   now.Add(-90 * time.Minute),
		},
		{
			ID:        "bbbbbbbb-0000-0000-0000-000000000002",
			Steps:     1500,
			StartTime: now.Add(-time.Hour),
			EndTime:   now.Add(-10 * time.Minute),
		},
	}
}

func TestStatusCommand_EmptyStore(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	out, err := execute(t, "-c", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Tracking: idle")
	assert.Contains(t, out, "Total:    0 steps")
}

func TestStatusCommand_ActiveSession(t *testing.T) {
	cfgPath, dbPath := writeTestConfig(t)
	start := time.Now().Add(-30 * time.Minute)
	baseline := int64(100)
	seedStore(t, dbPath, &store.TrackingRecord{
		IsTracking:      true,
		StartTime:       &start,
		SessionSteps:    1250,
		SessionBaseline: &baseline,
		LastCumulative:  1350,
		LifetimeTotal:   5000,
	}, nil)

	out, err := execute(t, "-c", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Tracking: active (1,250 steps this session)")
	assert.Contains(t, out, "Total:    6,250 steps")
}

func TestStatusCommand_JSON(t *testing.T) {
	cfgPath, dbPath := writeTestConfig(t)
	seedStore(t, dbPath, &store.TrackingRecord{LifetimeTotal: 42}, testSessions(time.Now()))

	out, err := execute(t, "-c", cfgPath, "--format", "json", "status")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["tracking"])
	assert.Equal(t, float64(42), data["total_steps"])
	assert.Equal(t, float64(2), data["sessions"])
}

func TestHistoryCommand(t *testing.T) {
	cfgPath, dbPath := writeTestConfig(t)
	seedStore(t, dbPath, nil, testSessions(time.Now()))

	out, err := execute(t, "-c", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "bbbbbbbb")
	assert.Contains(t, out, "2 sessions, 1,525 steps")
}

func TestHistoryCommand_Limit(t *testing.T) {
	cfgPath, dbPath := writeTestConfig(t)
	seedStore(t, dbPath, nil, testSessions(time.Now()))

	out, err := execute(t, "-c", cfgPath, "history", "-n", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "aaaaaaaa", "only the most recent session is shown")
	assert.Contains(t, out, "bbbbbbbb")
}

func TestHistoryCommand_Empty(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	out, err := execute(t, "-c", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No completed sessions.")
}

func TestResetHistoryCommand(t *testing.T) {
	cfgPath, dbPath := writeTestConfig(t)
	seedStore(t, dbPath, &store.TrackingRecord{LifetimeTotal: 100}, testSessions(time.Now()))

	out, err := execute(t, "-c", cfgPath, "reset", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared.")

	out, err = execute(t, "-c", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Sessions: 0")
	assert.Contains(t, out, "Total:    100 steps", "clearing history keeps the lifetime total")
}

func TestResetTotalCommand_RequiresEmptyHistory(t *testing.T) {
	cfgPath, dbPath := writeTestConfig(t)
	seedStore(t, dbPath, &store.TrackingRecord{LifetimeTotal: 100}, testSessions(time.Now()))

	_, err := execute(t, "-c", cfgPath, "reset", "total")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "history is not empty")

	_, err = execute(t, "-c", cfgPath, "reset", "history")
	require.NoError(t, err)
	_, err = execute(t, "-c", cfgPath, "reset", "total")
	require.NoError(t, err)

	out, err := execute(t, "-c", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:    0 steps")
}

func TestResetCommands_RefusedWhileTracking(t *testing.T) {
	cfgPath, dbPath := writeTestConfig(t)
	start := time.Now()
	seedStore(t, dbPath, &store.TrackingRecord{
		IsTracking:   true,
		StartTime:    &start,
		SessionSteps: 10,
	}, nil)

	for _, sub := range []string{"history", "total"} {
		_, err := execute(t, "-c", cfgPath, "reset", sub)
		require.Error(t, err, "reset %s while tracking", sub)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "session is open")
	}
}

func TestStatusCommand_BadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  backend: etcd\n"), 0o644))

	_, err := execute(t, "-c", cfgPath, "status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
