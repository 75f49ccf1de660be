package gateway

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// statusPushInterval is how often connected WebSocket clients receive a
// fresh gateway status snapshot.
const statusPushInterval = 3 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin reports whether the WebSocket connection origin is allowed.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Same-origin requests omit the Origin header
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}

	host := u.Hostname()

	// Exact localhost matches
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	// Same-origin check (compare with request host)
	requestHost := r.Host
	// Strip port from request host for comparison
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if host == requestHost {
		return true
	}

	// Check private IP ranges using net.IP
	ip := net.ParseIP(host)
	if ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		return true
	}

	slog.Warn("rejected WebSocket connection", "origin", origin, "host", host)
	return false
}

// handleWebSocket upgrades the connection and pushes periodic gateway
// status snapshots until the client disconnects. The push goroutine is
// the connection's only writer.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	done := make(chan struct{})

	// Reader goroutine: discard incoming frames, detect disconnect.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close failed", "remote", r.RemoteAddr, "error", err)
		}
	}()

	// Initial snapshot so clients render immediately.
	if err := conn.WriteJSON(g.status()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(g.status()); err != nil {
				return
			}
		}
	}
}
