package session

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serrebi/streamgate/internal/types"
)

// stubEngine writes a long-running shell script standing in for the real
// transcoding binary, so registry tests exercise process lifecycle without
// FFmpeg installed.
func stubEngine(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub engine script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	script := "#!/bin/sh\nwhile :; do sleep 1; done\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()
	opts = append([]RegistryOption{WithSweep(time.Hour, time.Hour)}, opts...)
	r := NewRegistry(stubEngine(t), opts...)
	t.Cleanup(r.Stop)
	return r
}

func TestGetOrCreateDeduplicates(t *testing.T) {
	var created atomic.Int64
	r := newTestRegistry(t, WithHooks(Hooks{
		OnCreate: func(*Session) { created.Add(1) },
	}))

	const workers = 8
	source := "http://127.0.0.1:9/live"
	paths := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i] = r.GetOrCreate(source, nil, types.ProfileAuto)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), created.Load())
	assert.Equal(t, 1, r.Len())
	for _, p := range paths[1:] {
		assert.Equal(t, paths[0], p)
	}
}

func TestGetOrCreateReturnsPublishedPath(t *testing.T) {
	r := newTestRegistry(t)

	source := "http://127.0.0.1:9/live"
	path := r.GetOrCreate(source, nil, types.ProfileAuto)

	fingerprint := Fingerprint(source, types.ProfileAuto)
	assert.Equal(t, "/transcode/"+fingerprint+"/"+types.PlaylistName, path)
	assert.True(t, strings.HasSuffix(path, types.PlaylistName))
}

func TestLookupNeverCreates(t *testing.T) {
	r := newTestRegistry(t)

	assert.Nil(t, r.Lookup("missing"))
	assert.Equal(t, 0, r.Len())
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	var evicted atomic.Int64
	r := newTestRegistry(t, WithHooks(Hooks{
		OnEvict: func(*Session) { evicted.Add(1) },
	}))

	r.GetOrCreate("http://127.0.0.1:9/a", nil, types.ProfileAuto)
	r.GetOrCreate("http://127.0.0.1:9/b", nil, types.ProfileAuto)
	require.Equal(t, 2, r.Len())

	// Fresh sessions survive a sweep at the current time.
	r.Sweep(time.Now())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, int64(0), evicted.Load())

	// Both fall past the idle threshold when the sweep clock jumps ahead.
	r.Sweep(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int64(2), evicted.Load())
}

func TestSweepSparesRecentlyTouched(t *testing.T) {
	r := newTestRegistry(t)

	source := "http://127.0.0.1:9/live"
	r.GetOrCreate(source, nil, types.ProfileAuto)

	s := r.Lookup(Fingerprint(source, types.ProfileAuto))
	require.NotNil(t, s)
	s.Touch()

	r.Sweep(s.LastAccess().Add(time.Minute))
	assert.Equal(t, 1, r.Len())
}

func TestWaitForPlaylist(t *testing.T) {
	r := newTestRegistry(t)

	source := "http://127.0.0.1:9/live"
	r.GetOrCreate(source, nil, types.ProfileAuto)
	s := r.Lookup(Fingerprint(source, types.ProfileAuto))
	require.NotNil(t, s)
	require.NotEmpty(t, s.WorkDir())

	// Nothing written yet: the wait times out.
	assert.False(t, s.WaitForPlaylist(300*time.Millisecond))

	playlist := strings.Repeat("#EXTINF:2.0,\nseg_1.ts\n", 10)
	require.NoError(t, os.WriteFile(s.PlaylistPath(), []byte(playlist), 0o644))

	assert.True(t, s.WaitForPlaylist(2*time.Second))
	assert.Equal(t, types.SessionReady, s.Status().State)
}

func TestStopRemovesWorkDir(t *testing.T) {
	r := newTestRegistry(t)

	source := "http://127.0.0.1:9/live"
	r.GetOrCreate(source, nil, types.ProfileAuto)
	s := r.Lookup(Fingerprint(source, types.ProfileAuto))
	require.NotNil(t, s)
	workDir := s.WorkDir()
	require.DirExists(t, workDir)

	s.Stop()
	s.Stop() // idempotent

	assert.NoDirExists(t, workDir)
	assert.False(t, s.IsAlive())

	// A deliberate stop is not a crash: the state stays stopped and no
	// engine error is recorded even after the process exits.
	time.Sleep(200 * time.Millisecond)
	status := s.Status()
	assert.Equal(t, types.SessionStopped, status.State)
	assert.Empty(t, status.Error)
}

func TestCrashedSpawnIsNotAlive(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"),
		WithSweep(time.Hour, time.Hour))
	t.Cleanup(r.Stop)

	source := "http://127.0.0.1:9/live"
	r.GetOrCreate(source, nil, types.ProfileAuto)
	s := r.Lookup(Fingerprint(source, types.ProfileAuto))
	require.NotNil(t, s)

	assert.False(t, s.IsAlive())
	assert.False(t, s.WaitForPlaylist(time.Second))
	assert.Equal(t, types.SessionCrashed, s.Status().State)
}
