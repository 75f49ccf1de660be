package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/serrebi/streamgate/internal/ffmpeg"
	"github.com/serrebi/streamgate/internal/types"
	"github.com/serrebi/streamgate/internal/util"
)

// RelayRequest is the validated query surface of the relay routes.
type RelayRequest struct {
	URL     string `validate:"required,url,max=4096"`
	Mode    string `validate:"omitempty,oneof=auto audio"`
	Headers map[string]string
}

// validate is the shared validator instance for relay requests.
var validate = validator.New(validator.WithRequiredStructEnabled())

// parseRelayRequest extracts and validates the relay query parameters.
func parseRelayRequest(r *http.Request) (*RelayRequest, error) {
	q := r.URL.Query()
	req := &RelayRequest{
		URL:     q.Get("url"),
		Mode:    q.Get("mode"),
		Headers: DecodeHeaders(q.Get("headers")),
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if _, ok := req.Headers["User-Agent"]; !ok {
		if _, ok := req.Headers["user-agent"]; !ok {
			req.Headers["User-Agent"] = types.DefaultUserAgent
		}
	}
	return req, nil
}

// radioTranscodeArgs returns the engine invocation for re-encoding piped
// audio to a fixed-rate MP3 stream on stdout.
func radioTranscodeArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0", "-vn",
		"-c:a", "libmp3lame", "-b:a", "320k", "-ar", "44100",
		"-f", "mp3", "pipe:1",
	}
}

// handleRelay serves /stream, /audio and /proxy. Radio sources are relayed
// as an audio/mpeg byte stream (transcoded or proxied per policy); video
// sources are redirected to a session-backed playlist URL.
func (g *Gateway) handleRelay(w http.ResponseWriter, r *http.Request) {
	req, err := parseRelayRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid relay request: "+err.Error())
		return
	}

	forceAudio := req.Mode == "audio" || r.URL.Path == "/audio"
	decision := g.policy.Classify(req.URL, forceAudio)

	if decision == DecideVideo {
		path := g.registry.GetOrCreate(req.URL, req.Headers, types.ProfileAuto)
		http.Redirect(w, r, g.BaseURL()+path, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Icy-MetaData", "1")
	w.WriteHeader(http.StatusOK)

	transcode := decision == DecideAudioTranscode
	if g.metrics != nil {
		if transcode {
			g.metrics.IncRelayTranscodes()
		} else {
			g.metrics.IncRelayPassthrough()
		}
	}

	g.streamRelay(w, r, req, transcode)
}

// streamRelay runs the producer for a radio relay and copies its output to
// the client until either side ends. Client write failures abandon the
// response after closing the buffer; the client retries at its own layer.
func (g *Gateway) streamRelay(w http.ResponseWriter, r *http.Request, req *RelayRequest, transcode bool) {
	buffer := NewStreamBuffer(types.RelayBufferMax, types.RelayInitialFill)

	go func() {
		var err error
		if transcode {
			err = g.produceTranscoded(req, buffer)
		} else {
			err = producePassthrough(req, buffer)
		}
		if err != nil {
			slog.Error("relay producer failed", "url", req.URL, "error", err)
		}
		buffer.Close(err)
	}()

	flusher, _ := w.(http.Flusher)
	for {
		chunk, err := buffer.Read()
		if chunk == nil {
			if err != nil {
				slog.Debug("relay ended with producer error", "url", req.URL, "error", err)
			}
			return
		}
		if _, err := w.Write(chunk); err != nil {
			// Client went away; unblock the producer and stop.
			buffer.Close(nil)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// producePassthrough copies upstream bytes into the buffer unmodified.
func producePassthrough(req *RelayRequest, buffer *StreamBuffer) error {
	resp, err := fetchUpstream(req.URL, req.Headers)
	if err != nil {
		return err
	}
	defer util.SafeCloseFunc(resp.Body, "upstream body")()

	chunk := make([]byte, types.RelayChunkSize)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buffer.Write(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return util.WrapError("read upstream", err)
		}
	}
}

// produceTranscoded pipes the upstream through the engine and copies the
// encoded stdout into the buffer. The engine's stdin is fed by its own
// goroutine so this goroutine can drain stdout.
func (g *Gateway) produceTranscoded(req *RelayRequest, buffer *StreamBuffer) error {
	proc, err := ffmpeg.Start(g.ffmpegPath, radioTranscodeArgs(), ffmpeg.Options{Stdin: true, Stdout: true})
	if err != nil {
		return util.WrapError("spawn relay engine", err)
	}
	defer func() {
		proc.Cancel(errRelayDone)
		_ = proc.Wait()
	}()

	go feedEngine(req, proc)

	chunk := make([]byte, types.RelayChunkSize)
	for {
		n, err := proc.Stdout().Read(chunk)
		if n > 0 {
			buffer.Write(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return util.WrapError("read engine output", err)
		}
	}
}

// feedEngine copies the upstream response into the engine's stdin and
// closes it when the source ends or a write fails.
func feedEngine(req *RelayRequest, proc *ffmpeg.Process) {
	defer proc.CloseStdin()

	resp, err := fetchUpstream(req.URL, req.Headers)
	if err != nil {
		slog.Error("relay upstream fetch failed", "url", req.URL, "error", err)
		return
	}
	defer util.SafeCloseFunc(resp.Body, "upstream body")()

	chunk := make([]byte, types.RelayChunkSize)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			if _, writeErr := proc.WriteStdin(chunk[:n]); writeErr != nil {
				return
			}
		}
		if readErr != nil {
			return
		}
	}
}
