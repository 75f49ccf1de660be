package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)

	require.NoError(t, cfg.Load())
	assert.FileExists(t, path)

	snap := cfg.Snapshot()
	assert.Equal(t, DefaultPort, snap.Port)
	assert.Equal(t, 60*time.Second, snap.IdleTimeout)
	assert.Equal(t, 10*time.Second, snap.SweepInterval)
	assert.Equal(t, 3*time.Second, snap.PlaylistWait)
	assert.Equal(t, DefaultAudioHints, snap.AudioHints)
	assert.Equal(t, DefaultPassthroughSuffixes, snap.PassthroughSuffixes)
	assert.Empty(t, snap.TranscodeHints)
}

func TestLoadParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"system": {"port": 9000, "host": "10.0.0.5"},
		"sessions": {"idle_timeout_ms": 30000, "playlist_wait_ms": 500},
		"policy": {"audio_hints": ["radio", "icecast"]},
		"notifications": {"webhook": {"url": "http://hooks.example.com/x"}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := New(path)
	require.NoError(t, cfg.Load())

	snap := cfg.Snapshot()
	assert.Equal(t, 9000, snap.Port)
	assert.Equal(t, "10.0.0.5", snap.Host)
	assert.Equal(t, 30*time.Second, snap.IdleTimeout)
	assert.Equal(t, 500*time.Millisecond, snap.PlaylistWait)
	assert.Equal(t, []string{"radio", "icecast"}, snap.AudioHints)
	// Unset fields still get defaults.
	assert.Equal(t, 10*time.Second, snap.SweepInterval)
	assert.Equal(t, DefaultPassthroughSuffixes, snap.PassthroughSuffixes)
	assert.True(t, snap.HasWebhook())
	assert.False(t, snap.HasLogPath())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port out of range", `{"system": {"port": 70000}}`},
		{"idle timeout too small", `{"sessions": {"idle_timeout_ms": 10}}`},
		{"bad webhook url", `{"notifications": {"webhook": {"url": "not a url"}}}`},
		{"malformed json", `{"system":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg := New(path)
			assert.Error(t, cfg.Load())
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	cfg := New(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, cfg.Load())

	snap := cfg.Snapshot()
	snap.AudioHints[0] = "mutated"

	assert.Equal(t, DefaultAudioHints, cfg.Snapshot().AudioHints)
}
