package gateway

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/serrebi/streamgate/internal/ffmpeg"
	"github.com/serrebi/streamgate/internal/session"
	"github.com/serrebi/streamgate/internal/types"
	"github.com/serrebi/streamgate/internal/util"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
)

// rewriteHeader is the fixed playlist header emitted in place of the
// engine's own format declarations. The discontinuity marker lets players
// that started on the bootstrap segment cut over to real content.
var rewriteHeader = []string{
	"#EXTM3U",
	"#EXT-X-VERSION:3",
	fmt.Sprintf("#EXT-X-TARGETDURATION:%d", int(types.SegmentDuration.Seconds())),
	"#EXT-X-DISCONTINUITY",
}

// strippedPrefixes are engine header lines dropped during the rewrite.
var strippedPrefixes = []string{"#EXTM3U", "#EXT-X-VERSION"}

// BootstrapPlaylist returns a minimal valid playlist describing exactly one
// short segment at the gateway's synthetic bootstrap endpoint.
func BootstrapPlaylist(baseURL string) string {
	return strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		fmt.Sprintf("#EXT-X-TARGETDURATION:%d", int(types.SegmentDuration.Seconds())),
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXT-X-DISCONTINUITY",
		"#EXTINF:1.0,",
		baseURL + "/bootstrap.ts",
	}, "\n") + "\n"
}

// RewritePlaylist transforms the engine's raw playlist for publication:
// engine header lines are dropped in favor of a fixed header, other tag
// lines pass through unchanged and in order, and every segment filename is
// rewritten to an absolute URL under base.
func RewritePlaylist(raw string, base string) string {
	out := make([]string, 0, 16)
	out = append(out, rewriteHeader...)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || hasAnyPrefix(line, strippedPrefixes) {
			continue
		}
		if strings.HasPrefix(line, "#") {
			out = append(out, line)
		} else {
			out = append(out, base+line)
		}
	}
	return strings.Join(out, "\n") + "\n"
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// handleTranscode serves a session's playlist and media segments under
// /transcode/{fingerprint}/{filename}.
func (g *Gateway) handleTranscode(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	filename := chi.URLParam(r, "filename")

	s := g.registry.Lookup(fingerprint)
	if s == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	s.Touch()

	if filename == types.PlaylistName {
		g.servePlaylist(w, s, fingerprint)
		return
	}
	g.serveSegment(w, s, filename)
}

// servePlaylist responds with the rewritten live playlist, or the bootstrap
// playlist when the session's real output is not ready within the wait
// window.
func (g *Gateway) servePlaylist(w http.ResponseWriter, s *session.Session, fingerprint string) {
	if !s.WaitForPlaylist(g.cfg.Snapshot().PlaylistWait) {
		if g.metrics != nil {
			g.metrics.IncBootstrapServed()
		}
		w.Header().Set("Content-Type", playlistContentType)
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, BootstrapPlaylist(g.BaseURL())); err != nil {
			slog.Debug("bootstrap playlist write failed", "fingerprint", fingerprint, "error", err)
		}
		return
	}

	raw, err := os.ReadFile(s.PlaylistPath())
	if err != nil {
		slog.Error("failed to read session playlist", "fingerprint", fingerprint, "error", err)
		writeError(w, http.StatusInternalServerError, "playlist unavailable")
		return
	}

	base := fmt.Sprintf("%s/transcode/%s/", g.BaseURL(), fingerprint)
	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, RewritePlaylist(string(raw), base)); err != nil {
		slog.Debug("playlist write failed", "fingerprint", fingerprint, "error", err)
	}
}

// serveSegment streams one media file from the session's working directory.
// Rotated-out segments are reported as 404; the player simply moves on.
func (g *Gateway) serveSegment(w http.ResponseWriter, s *session.Session, filename string) {
	path := filepath.Join(s.WorkDir(), filepath.Base(filename))
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	defer util.SafeCloseFunc(f, "segment file")()

	w.Header().Set("Content-Type", segmentContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		slog.Debug("segment write failed", "file", filename, "error", err)
	}
}

// bootstrapArgs returns the engine invocation for the synthetic bootstrap
// segment: one second of silent black video from the engine's generator
// inputs, no upstream fetch.
func bootstrapArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=black:s=640x360:r=10:d=1",
		"-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo",
		"-t", "1",
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p", "-b:v", "1M",
		"-c:a", "aac", "-b:a", "64k",
		"-f", "mpegts", "-muxrate", "2M", "pipe:1",
	}
}

// handleBootstrap synthesizes and serves the placeholder segment. The
// output is fully buffered before serving; it is short and cheap by
// construction.
func (g *Gateway) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	data, err := ffmpeg.Capture(r.Context(), g.ffmpegPath, bootstrapArgs())
	if err != nil {
		slog.Error("bootstrap segment generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "bootstrap unavailable")
		return
	}

	w.Header().Set("Content-Type", segmentContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("bootstrap segment write failed", "error", err)
	}
}
