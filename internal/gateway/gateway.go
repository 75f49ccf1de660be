// Package gateway is the HTTP entry point of the stream gateway: it relays
// radio sources, redirects video sources into transcode sessions, serves
// session playlists and segments, and synthesizes bootstrap content while a
// session spins up.
package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/serrebi/streamgate/internal/config"
	"github.com/serrebi/streamgate/internal/metrics"
	"github.com/serrebi/streamgate/internal/session"
	"github.com/serrebi/streamgate/internal/types"
)

// Gateway serves the HTTP surface backed by a session registry.
type Gateway struct {
	cfg             *config.Config
	registry        *session.Registry
	metrics         *metrics.Metrics
	version         func() types.VersionInfo
	policy          Policy
	host            string
	port            int
	ffmpegPath      string
	ffmpegAvailable bool
}

// New returns a Gateway advertising host as its address. version may be nil
// when no release checking is wired (e.g. in tests); metrics may be nil to
// disable instrumentation.
func New(cfg *config.Config, registry *session.Registry, m *metrics.Metrics, version func() types.VersionInfo, host, ffmpegPath string) *Gateway {
	snap := cfg.Snapshot()
	return &Gateway{
		cfg:             cfg,
		registry:        registry,
		metrics:         m,
		version:         version,
		policy:          NewPolicy(snap),
		host:            host,
		port:            snap.Port,
		ffmpegPath:      ffmpegPath,
		ffmpegAvailable: ffmpegPath != "",
	}
}

// BaseURL returns the absolute URL prefix handed to external receivers.
func (g *Gateway) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", g.host, g.port)
}

// Routes returns the gateway's HTTP handler.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	if g.metrics != nil {
		r.Use(metrics.RequestMiddleware(g.metrics))
	}

	r.Get("/stream", g.handleRelay)
	r.Get("/audio", g.handleRelay)
	r.Get("/proxy", g.handleRelay)
	r.Get("/transcode/{fingerprint}/{filename}", g.handleTranscode)
	r.Get("/bootstrap.ts", g.handleBootstrap)
	r.Get("/status", g.handleStatus)
	r.Get("/ws", g.handleWebSocket)
	if g.metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			g.metrics.Handler(func() {
				g.metrics.SetActiveSessions(g.registry.Len())
			}).ServeHTTP(w, req)
		})
	}

	return r
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (g *Gateway) Start() *http.Server {
	addr := fmt.Sprintf(":%d", g.port)
	slog.Info("starting gateway", "addr", addr, "base_url", g.BaseURL())

	srv := &http.Server{
		Addr:    addr,
		Handler: g.Routes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}

// corsMiddleware answers preflight requests and marks every response as
// cross-origin readable, for browser and cast-receiver clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleStatus returns the gateway status as JSON.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.status())
}

// status builds the current status payload for /status and /ws.
func (g *Gateway) status() types.GatewayStatus {
	st := types.GatewayStatus{
		Type:            "status",
		FFmpegAvailable: g.ffmpegAvailable,
		Sessions:        g.registry.Statuses(),
	}
	if g.version != nil {
		st.Version = g.version()
	}
	return st
}

// writeJSON writes data as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
