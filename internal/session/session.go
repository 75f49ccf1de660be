// Package session manages transcode sessions: one FFmpeg process per
// upstream source, its working directory, and the registry that deduplicates
// and reclaims them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/serrebi/streamgate/internal/ffmpeg"
	"github.com/serrebi/streamgate/internal/types"
	"github.com/serrebi/streamgate/internal/util"
)

// errStopped indicates the session was stopped deliberately.
var errStopped = errors.New("session stopped")

// upstreamClient fetches source streams. The timeout bounds connection and
// response-header wait only; live bodies are read for the session's lifetime.
var upstreamClient = &http.Client{
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: types.UpstreamTimeout}).DialContext,
		ResponseHeaderTimeout: types.UpstreamTimeout,
		Proxy:                 http.ProxyFromEnvironment,
	},
}

// Session converts one upstream source into a locally-served segmented
// stream. It owns exactly one engine process and one working directory.
// Sessions are created and destroyed only through the Registry.
type Session struct {
	fingerprint string
	sourceURL   string
	headers     map[string]string
	profile     types.Profile
	ffmpegPath  string

	workDir      string
	playlistPath string
	startedAt    time.Time

	mu         sync.Mutex
	proc       *ffmpeg.Process
	state      types.SessionState
	lastError  string
	lastAccess time.Time

	onExit func(s *Session, err error)
}

// newSession constructs an unstarted session for the given source.
func newSession(fingerprint, sourceURL string, headers map[string]string, profile types.Profile, ffmpegPath string) *Session {
	now := time.Now()
	return &Session{
		fingerprint: fingerprint,
		sourceURL:   sourceURL,
		headers:     headers,
		profile:     profile,
		ffmpegPath:  ffmpegPath,
		state:       types.SessionStarting,
		startedAt:   now,
		lastAccess:  now,
	}
}

// hlsArgs returns the engine invocation for piped input to a rolling HLS
// playlist: video copied, audio re-encoded to AAC, short segments with a
// bounded window and automatic deletion of rotated-out segments.
func hlsArgs(workDir string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-analyzeduration", "5000000", "-probesize", "5000000",
		"-fflags", "nobuffer+genpts+igndts",
		"-flags", "low_delay",
		"-i", "pipe:0",
		"-map", "0:v?", "-map", "0:a?",
		"-c:v", "copy",
		"-c:a", "aac", "-profile:a", "aac_low", "-b:a", "320k", "-ac", "2", "-ar", "44100",
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", int(types.SegmentDuration.Seconds())),
		"-hls_list_size", fmt.Sprintf("%d", types.SegmentWindow),
		"-hls_flags", "delete_segments+split_by_time+independent_segments+append_list+discont_start",
		"-hls_segment_type", "mpegts",
		"-hls_version", "3",
		"-hls_init_time", "0",
		"-flush_packets", "1",
		"-start_number", "1",
		"-hls_segment_filename", filepath.Join(workDir, types.SegmentPattern),
		"-mpegts_flags", "pat_pmt_at_beginning",
		filepath.Join(workDir, types.PlaylistName),
	}
}

// start creates the working directory, spawns the engine, and launches the
// pump. A spawn failure is logged and leaves the session permanently
// non-alive; callers detect it through IsAlive and WaitForPlaylist.
func (s *Session) start() {
	workDir, err := os.MkdirTemp("", "streamgate-*")
	if err != nil {
		slog.Error("failed to create session working directory",
			"fingerprint", s.fingerprint, "error", err)
		s.setCrashed(err.Error())
		return
	}
	s.workDir = workDir
	s.playlistPath = filepath.Join(workDir, types.PlaylistName)

	slog.Info("starting transcode session",
		"fingerprint", s.fingerprint, "source", s.sourceURL, "profile", s.profile)

	proc, err := ffmpeg.Start(s.ffmpegPath, hlsArgs(workDir), ffmpeg.Options{Stdin: true})
	if err != nil {
		slog.Error("engine spawn failed", "fingerprint", s.fingerprint, "error", err)
		s.setCrashed(err.Error())
		return
	}

	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()

	go s.pump(proc)
	go s.monitor(proc)
}

// pump copies the upstream response body into the engine's stdin in fixed
// chunks until the response ends, the engine exits, or a write fails. It
// never restarts the upstream fetch; recovery is a caller-level concern.
func (s *Session) pump(proc *ffmpeg.Process) {
	defer proc.CloseStdin()

	req, err := http.NewRequestWithContext(proc.Context(), http.MethodGet, s.sourceURL, http.NoBody)
	if err != nil {
		slog.Error("invalid source URL", "fingerprint", s.fingerprint, "error", err)
		return
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", types.DefaultUserAgent)
	}

	resp, err := upstreamClient.Do(req)
	if err != nil {
		slog.Error("upstream fetch failed", "fingerprint", s.fingerprint, "error", err)
		return
	}
	defer util.SafeCloseFunc(resp.Body, "upstream body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("upstream returned failure status",
			"fingerprint", s.fingerprint, "status", resp.StatusCode)
		return
	}

	buf := make([]byte, types.PumpChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := proc.WriteStdin(buf[:n]); writeErr != nil {
				if !errors.Is(writeErr, ffmpeg.ErrStdinClosed) {
					slog.Warn("pump write failed", "fingerprint", s.fingerprint, "error", writeErr)
				}
				return
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				slog.Warn("pump read failed", "fingerprint", s.fingerprint, "error", readErr)
			}
			return
		}
	}
}

// monitor waits for the engine to exit and records how it ended.
func (s *Session) monitor(proc *ffmpeg.Process) {
	err := proc.Wait()

	if errors.Is(context.Cause(proc.Context()), errStopped) {
		return
	}

	errMsg := ""
	if err != nil {
		errMsg = util.ExtractLastError(proc.Stderr())
		if errMsg == "" {
			errMsg = err.Error()
		}
		slog.Error("engine exited", "fingerprint", s.fingerprint, "error", errMsg)
	} else {
		slog.Info("engine finished", "fingerprint", s.fingerprint)
	}
	s.setCrashed(errMsg)

	if s.onExit != nil {
		s.onExit(s, err)
	}
}

// setCrashed marks the session permanently non-alive.
func (s *Session) setCrashed(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == types.SessionStopped {
		return
	}
	s.state = types.SessionCrashed
	if errMsg != "" {
		s.lastError = errMsg
	}
}

// Fingerprint returns the session's registry key.
func (s *Session) Fingerprint() string { return s.fingerprint }

// Source returns the upstream URL.
func (s *Session) Source() string { return s.sourceURL }

// WorkDir returns the session's exclusively-owned scratch directory.
func (s *Session) WorkDir() string { return s.workDir }

// Touch updates the last-access time. Called on every client request
// against this session; drives idle eviction.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// LastAccess returns the time of the most recent Touch.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// IsAlive reports whether the engine process is running.
func (s *Session) IsAlive() bool {
	s.mu.Lock()
	proc := s.proc
	state := s.state
	s.mu.Unlock()
	if state == types.SessionStopped || state == types.SessionCrashed {
		return false
	}
	return proc != nil && proc.Running()
}

// WaitForPlaylist polls until the playlist file exists and exceeds the
// minimum byte threshold, the engine has exited, or the timeout elapses.
// It reports whether the playlist is ready to serve.
func (s *Session) WaitForPlaylist(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if info, err := os.Stat(s.playlistPath); err == nil && info.Size() > types.MinPlaylistBytes {
			s.mu.Lock()
			if s.state == types.SessionStarting {
				s.state = types.SessionReady
			}
			s.mu.Unlock()
			return true
		}
		if !s.IsAlive() {
			return false
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(types.PlaylistPollInterval)
	}
}

// PlaylistPath returns the engine's live-updated playlist file path.
func (s *Session) PlaylistPath() string { return s.playlistPath }

// Stop terminates the engine and removes the working directory, swallowing
// errors from either step. Idempotent. Termination is a non-blocking signal
// with a delayed kill, not a graceful drain; see ffmpeg.Start.
func (s *Session) Stop() {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	alreadyStopped := s.state == types.SessionStopped
	s.state = types.SessionStopped
	workDir := s.workDir
	s.mu.Unlock()

	if alreadyStopped {
		return
	}

	if proc != nil {
		proc.CloseStdin()
		proc.Cancel(errStopped)
	}

	if workDir != "" {
		if err := os.RemoveAll(workDir); err != nil {
			slog.Warn("failed to remove session working directory",
				"fingerprint", s.fingerprint, "dir", workDir, "error", err)
		}
	}
}

// Status reports the session's current runtime status.
func (s *Session) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SessionStatus{
		Fingerprint: s.fingerprint,
		Source:      s.sourceURL,
		Profile:     s.profile,
		State:       s.state,
		Uptime:      util.FormatDuration(time.Since(s.startedAt)),
		IdleFor:     util.FormatDuration(time.Since(s.lastAccess)),
		Error:       s.lastError,
	}
}
