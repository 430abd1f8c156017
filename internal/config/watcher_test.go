package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherAppliesLogLevel(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("LOG_LEVEL=info\n"), 0o600))

	cfg := &Config{DataDir: dir, EnvFile: envPath, LogLevel: "info"}
	w, err := NewWatcher(cfg)
	require.NoError(t, err)
	w.debounce = 0
	t.Cleanup(w.Stop)

	levels := make(chan string, 4)
	w.OnLogLevelChange(func(level string) { levels <- level })
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(envPath, []byte("LOG_LEVEL=Debug\n"), 0o600))

	select {
	case got := <-levels:
		require.Equal(t, "debug", got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for log level change")
	}
	require.Equal(t, "debug", w.LogLevel())
}

func TestWatcherReloadIgnoresUnchangedLevel(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("LOG_LEVEL=warn\n"), 0o600))

	w, err := NewWatcher(&Config{DataDir: dir, EnvFile: envPath, LogLevel: "warn"})
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	called := false
	w.OnLogLevelChange(func(string) { called = true })
	w.reload()
	require.False(t, called)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(&Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}
