package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/state"
)

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robotcom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"connection_timeout_ms": 750,
		"read_block_timeout_ms": 90,
		"disk_usage_frequency": 5,
		"clear_observed_status_on_send": true
	}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(750), c.ConnectionTimeoutMs)
	require.Equal(t, uint32(90), c.ReadBlockTimeoutMs)
	require.Equal(t, uint8(5), c.DiskUsageFrequency)
	require.True(t, c.ClearObservedStatusOnSend)

	st := state.New()
	Apply(st, c)
	require.Equal(t, uint32(750), st.ConnectionTimeoutMs())
	require.Equal(t, uint32(90), st.ReadBlockTimeoutMs())
	require.Equal(t, uint8(5), st.DiskUsageFrequency())
	require.True(t, st.ClearObservedStatusOnSend())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestDefaultReadBlockTimeout(t *testing.T) {
	require.Equal(t, uint32(120), Default().ReadBlockTimeoutMs)
}

func TestWatcherReloadsAndSoftResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robotcom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"connection_timeout_ms": 1000, "read_block_timeout_ms": 120}`), 0o644))

	st := state.New()
	w, err := NewWatcher(path, st, logging.NewTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte(`{"connection_timeout_ms": 333, "read_block_timeout_ms": 60}`), 0o644))

	require.Eventually(t, func() bool {
		return st.ConnectionTimeoutMs() == 333
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, state.ResetSoft, st.PeekResetRequest())
}
