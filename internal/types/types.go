// Package types provides shared type definitions used across the gateway.
package types

import "time"

// SessionState represents the state of a transcode session.
type SessionState string

const (
	// SessionStarting indicates the engine process is spawning or has not
	// yet produced a usable playlist.
	SessionStarting SessionState = "starting"
	// SessionReady indicates the playlist file exists and is serveable.
	SessionReady SessionState = "ready"
	// SessionStopped indicates the session was stopped deliberately.
	SessionStopped SessionState = "stopped"
	// SessionCrashed indicates the engine process exited on its own or
	// failed to spawn.
	SessionCrashed SessionState = "crashed"
)

// Profile identifies a fixed set of transcoding-engine arguments.
type Profile string

// Supported transcode profiles.
const (
	// ProfileAuto remuxes video and re-encodes audio to AAC for HLS delivery.
	ProfileAuto Profile = "auto"
	// ProfileRadioPassthrough relays upstream audio bytes unmodified.
	ProfileRadioPassthrough Profile = "radio-passthrough"
	// ProfileRadioTranscode re-encodes upstream audio to MP3.
	ProfileRadioTranscode Profile = "radio-transcode"
)

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool {
	switch p {
	case ProfileAuto, ProfileRadioPassthrough, ProfileRadioTranscode:
		return true
	}
	return false
}

// HLS output parameters for the segmenting engine.
const (
	// SegmentDuration is the target duration of each media segment.
	SegmentDuration = 2 * time.Second
	// SegmentWindow is the number of segments retained in the live playlist.
	SegmentWindow = 5
	// PlaylistName is the playlist filename inside a session's working directory.
	PlaylistName = "stream.m3u8"
	// SegmentPattern is the engine's segment filename pattern.
	SegmentPattern = "seg_%d.ts"
	// MinPlaylistBytes is the size the playlist must exceed to count as ready.
	MinPlaylistBytes = 100
)

// Session lifecycle timing.
const (
	// PumpChunkSize is the copy chunk size from upstream into engine stdin.
	PumpChunkSize = 32 * 1024
	// UpstreamTimeout bounds connecting to an upstream source and waiting
	// for its response headers.
	UpstreamTimeout = 15 * time.Second
	// PlaylistPollInterval is the interval for polling playlist readiness.
	PlaylistPollInterval = 200 * time.Millisecond
	// PlaylistWaitTimeout is how long playlist handlers wait for readiness
	// before falling back to the bootstrap playlist.
	PlaylistWaitTimeout = 3 * time.Second
	// SweepInterval is how often the registry scans for idle sessions.
	SweepInterval = 10 * time.Second
	// IdleTimeout is how long a session may go untouched before eviction.
	IdleTimeout = 60 * time.Second
)

// Radio relay parameters.
const (
	// RelayChunkSize is the copy chunk size on the radio relay path.
	RelayChunkSize = 8 * 1024
	// RelayBufferMax is the relay buffer capacity before the producer blocks.
	RelayBufferMax = 16 * 1024 * 1024
	// RelayInitialFill is how many bytes must accumulate before the first
	// chunk is released to the client.
	RelayInitialFill = 64 * 1024
)

// DefaultUserAgent is sent upstream when the caller supplies no User-Agent.
// Many radio and IPTV origins reject requests without a browser identity.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// SessionStatus contains runtime status for one transcode session.
type SessionStatus struct {
	Fingerprint string       `json:"fingerprint"`  // Registry key and public path segment
	Source      string       `json:"source"`       // Upstream URL
	Profile     Profile      `json:"profile"`      // Transcode profile
	State       SessionState `json:"state"`        // Current lifecycle state
	Uptime      string       `json:"uptime"`       // Human-readable time since start
	IdleFor     string       `json:"idle_for"`     // Human-readable time since last touch
	Error       string       `json:"error,omitempty"` // Last engine error, if any
}

// GatewayStatus is the payload of the /status endpoint and /ws pushes.
type GatewayStatus struct {
	Type            string          `json:"type"` // "status"
	FFmpegAvailable bool            `json:"ffmpeg_available"`
	Sessions        []SessionStatus `json:"sessions"`
	Version         VersionInfo     `json:"version"`
}

// VersionInfo describes the running build and any newer published release.
type VersionInfo struct {
	Current     string `json:"current"`
	Latest      string `json:"latest,omitempty"`
	UpdateAvail bool   `json:"update_available"`
	Commit      string `json:"commit"`
	BuildTime   string `json:"build_time"`
}
