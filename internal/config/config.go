// Package config provides gateway configuration management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/serrebi/streamgate/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultPort          = 8480
	DefaultIdleTimeoutMs = 60000
	DefaultSweepMs       = 10000
	DefaultWaitMs        = 3000
)

// DefaultAudioHints mark a source URL as a radio stream.
var DefaultAudioHints = []string{"radio"}

// DefaultPassthroughSuffixes mark radio sources already in a compatible
// compressed format, served without re-encoding.
var DefaultPassthroughSuffixes = []string{".mp3"}

// SystemConfig holds system-level settings.
type SystemConfig struct {
	FFmpegPath string `json:"ffmpeg_path" validate:"omitempty,max=4096"` // Path to FFmpeg binary (empty = use PATH)
	Port       int    `json:"port" validate:"gte=0,lte=65535"`           // HTTP listen port
	Host       string `json:"host" validate:"omitempty,hostname|ip"`    // Advertised host (empty = auto-detect)
}

// SessionsConfig holds session reclamation timing.
type SessionsConfig struct {
	IdleTimeoutMs   int64 `json:"idle_timeout_ms" validate:"omitempty,gte=1000,lte=3600000"`  // Idle threshold before eviction
	SweepIntervalMs int64 `json:"sweep_interval_ms" validate:"omitempty,gte=500,lte=600000"`  // Sweep period
	PlaylistWaitMs  int64 `json:"playlist_wait_ms" validate:"omitempty,gte=100,lte=30000"`    // Handler wait before bootstrap fallback
}

// PolicyConfig holds the source classification policy for the relay routes.
type PolicyConfig struct {
	AudioHints          []string `json:"audio_hints"`          // URL substrings that select the radio path
	PassthroughSuffixes []string `json:"passthrough_suffixes"` // URL suffixes relayed without transcoding
	TranscodeHints      []string `json:"transcode_hints"`      // URL substrings that force transcoding
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url" validate:"omitempty,url,max=2048"` // Webhook URL for session events
}

// LogConfig holds log file notification settings.
type LogConfig struct {
	Path string `json:"path" validate:"omitempty,max=4096"` // Log file path for session events
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	Webhook WebhookConfig `json:"webhook"`
	Log     LogConfig     `json:"log"`
}

// Config holds all gateway configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system"`
	Sessions      SessionsConfig      `json:"sessions"`
	Policy        PolicyConfig        `json:"policy"`
	Notifications NotificationsConfig `json:"notifications"`

	mu       sync.RWMutex
	filePath string
}

// validate is the shared validator instance.
var validate = validator.New(validator.WithRequiredStructEnabled())

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port: DefaultPort,
		},
		Sessions: SessionsConfig{
			IdleTimeoutMs:   DefaultIdleTimeoutMs,
			SweepIntervalMs: DefaultSweepMs,
			PlaylistWaitMs:  DefaultWaitMs,
		},
		Policy: PolicyConfig{
			AudioHints:          slices.Clone(DefaultAudioHints),
			PassthroughSuffixes: slices.Clone(DefaultPassthroughSuffixes),
			TranscodeHints:      []string{},
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	if err := validate.Struct(c); err != nil {
		return util.WrapError("validate config", err)
	}

	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.Port == 0 {
		c.System.Port = DefaultPort
	}
	if c.Sessions.IdleTimeoutMs == 0 {
		c.Sessions.IdleTimeoutMs = DefaultIdleTimeoutMs
	}
	if c.Sessions.SweepIntervalMs == 0 {
		c.Sessions.SweepIntervalMs = DefaultSweepMs
	}
	if c.Sessions.PlaylistWaitMs == 0 {
		c.Sessions.PlaylistWaitMs = DefaultWaitMs
	}
	if c.Policy.AudioHints == nil {
		c.Policy.AudioHints = slices.Clone(DefaultAudioHints)
	}
	if c.Policy.PassthroughSuffixes == nil {
		c.Policy.PassthroughSuffixes = slices.Clone(DefaultPassthroughSuffixes)
	}
	if c.Policy.TranscodeHints == nil {
		c.Policy.TranscodeHints = []string{}
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// FFmpegPath returns the configured FFmpeg binary path.
func (c *Config) FFmpegPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.FFmpegPath
}

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	Port          int
	Host          string
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	PlaylistWait  time.Duration

	AudioHints          []string
	PassthroughSuffixes []string
	TranscodeHints      []string

	WebhookURL string
	LogPath    string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Port:          c.System.Port,
		Host:          c.System.Host,
		IdleTimeout:   time.Duration(c.Sessions.IdleTimeoutMs) * time.Millisecond,
		SweepInterval: time.Duration(c.Sessions.SweepIntervalMs) * time.Millisecond,
		PlaylistWait:  time.Duration(c.Sessions.PlaylistWaitMs) * time.Millisecond,

		AudioHints:          slices.Clone(c.Policy.AudioHints),
		PassthroughSuffixes: slices.Clone(c.Policy.PassthroughSuffixes),
		TranscodeHints:      slices.Clone(c.Policy.TranscodeHints),

		WebhookURL: c.Notifications.Webhook.URL,
		LogPath:    c.Notifications.Log.Path,
	}
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasLogPath reports whether a log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}
