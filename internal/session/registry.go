package session

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/serrebi/streamgate/internal/types"
)

// Hooks are optional callbacks for session lifecycle events. All callbacks
// run outside the registry lock and may be nil.
type Hooks struct {
	OnCreate func(s *Session)
	OnEvict  func(s *Session)
	OnExit   func(s *Session, err error)
}

// Registry is a fingerprint-keyed store of active transcode sessions.
// It enforces at-most-one live session per fingerprint and reclaims idle
// sessions with a periodic sweep. Safe for concurrent use.
type Registry struct {
	ffmpegPath    string
	sweepInterval time.Duration
	idleTimeout   time.Duration
	hooks         Hooks

	mu       sync.Mutex
	sessions map[string]*Session

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSweep overrides the idle-sweep interval and idle threshold.
func WithSweep(interval, idleTimeout time.Duration) RegistryOption {
	return func(r *Registry) {
		r.sweepInterval = interval
		r.idleTimeout = idleTimeout
	}
}

// WithHooks installs lifecycle callbacks.
func WithHooks(h Hooks) RegistryOption {
	return func(r *Registry) {
		r.hooks = h
	}
}

// NewRegistry returns a Registry that spawns engines from ffmpegPath.
// The idle sweep runs until Stop is called.
func NewRegistry(ffmpegPath string, opts ...RegistryOption) *Registry {
	r := &Registry{
		ffmpegPath:    ffmpegPath,
		sweepInterval: types.SweepInterval,
		idleTimeout:   types.IdleTimeout,
		sessions:      make(map[string]*Session),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.sweepLoop()
	return r
}

// GetOrCreate returns the published playlist path for the given source,
// creating and starting a session on miss. The registry lock serializes the
// check-then-insert, so concurrent requests for the same fingerprint observe
// exactly one session. The engine spawn happens outside the lock.
func (r *Registry) GetOrCreate(sourceURL string, headers map[string]string, profile types.Profile) string {
	fingerprint := Fingerprint(sourceURL, profile)

	r.mu.Lock()
	s, exists := r.sessions[fingerprint]
	if !exists {
		s = newSession(fingerprint, sourceURL, headers, profile, r.ffmpegPath)
		s.onExit = r.hooks.OnExit
		r.sessions[fingerprint] = s
	}
	r.mu.Unlock()

	if exists {
		s.Touch()
	} else {
		s.start()
		if r.hooks.OnCreate != nil {
			r.hooks.OnCreate(s)
		}
	}

	return PublishedPath(fingerprint)
}

// PublishedPath returns the gateway-relative playlist path for a fingerprint.
func PublishedPath(fingerprint string) string {
	return fmt.Sprintf("/transcode/%s/%s", fingerprint, types.PlaylistName)
}

// Lookup returns the session for a fingerprint, or nil if absent.
// It never creates.
func (r *Registry) Lookup(fingerprint string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[fingerprint]
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Statuses reports the status of all sessions, ordered by fingerprint.
func (r *Registry) Statuses() []types.SessionStatus {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	statuses := make([]types.SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, s.Status())
	}
	slices.SortFunc(statuses, func(a, b types.SessionStatus) int {
		return strings.Compare(a.Fingerprint, b.Fingerprint)
	})
	return statuses
}

// sweepLoop periodically evicts sessions idle past the threshold.
func (r *Registry) sweepLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Sweep(time.Now())
		}
	}
}

// Sweep stops and removes every session whose last access is older than the
// idle threshold at the given time. Exposed for deterministic testing.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	var idle []*Session
	for fingerprint, s := range r.sessions {
		if now.Sub(s.LastAccess()) > r.idleTimeout {
			idle = append(idle, s)
			delete(r.sessions, fingerprint)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		slog.Info("evicting idle session", "fingerprint", s.Fingerprint(), "source", s.Source())
		s.Stop()
		if r.hooks.OnEvict != nil {
			r.hooks.OnEvict(s)
		}
	}
}

// Stop halts the sweep and tears down all sessions.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.done

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	clear(r.sessions)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}
