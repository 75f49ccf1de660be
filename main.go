// Package main provides a local streaming gateway that accepts upstream
// audio and video source references and republishes them as HLS or
// transcoded byte streams for players on the local network.
//
// Usage:
//
//	streamgate [-config path/to/config.json]
//
// If -config is not specified, the gateway looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/serrebi/streamgate/internal/config"
	"github.com/serrebi/streamgate/internal/gateway"
	"github.com/serrebi/streamgate/internal/metrics"
	"github.com/serrebi/streamgate/internal/netinfo"
	"github.com/serrebi/streamgate/internal/notify"
	"github.com/serrebi/streamgate/internal/session"
	"github.com/serrebi/streamgate/internal/util"
)

// Build metadata, injected via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	snap := cfg.Snapshot()

	// Check FFmpeg availability
	ffmpegPath := util.ResolveFFmpegPath(cfg.FFmpegPath())
	if ffmpegPath == "" {
		slog.Warn("FFmpeg not found - running in degraded mode",
			"configured_path", cfg.FFmpegPath())
	} else {
		slog.Info("FFmpeg found", "path", ffmpegPath)
	}

	host := snap.Host
	if host == "" {
		host = netinfo.LocalIP()
	}
	slog.Info("advertising gateway address", "host", host, "port", snap.Port)

	m := metrics.New()
	notifier := notify.NewNotifier(snap.WebhookURL, snap.LogPath)
	if snap.HasWebhook() || snap.HasLogPath() {
		slog.Info("session notifications enabled",
			"webhook", snap.HasWebhook(), "log_file", snap.HasLogPath())
	}

	if ffmpegPath == "" {
		notifier.Notify(notify.GatewayEvent(notify.EventEngineMissing,
			"FFmpeg not found; transcoding disabled"))
	}

	registry := session.NewRegistry(ffmpegPath,
		session.WithSweep(snap.SweepInterval, snap.IdleTimeout),
		session.WithHooks(session.Hooks{
			OnCreate: func(s *session.Session) {
				m.IncSessionsStarted()
				notifier.Notify(notify.SessionEvent(notify.EventSessionStarted, s.Status(), ""))
			},
			OnEvict: func(s *session.Session) {
				m.IncSessionsEvicted()
				notifier.Notify(notify.SessionEvent(notify.EventSessionEvicted, s.Status(), "idle timeout"))
			},
			OnExit: func(s *session.Session, err error) {
				msg := ""
				if err != nil {
					msg = err.Error()
				}
				notifier.Notify(notify.SessionEvent(notify.EventSessionCrashed, s.Status(), msg))
			},
		}),
	)

	vc := NewVersionChecker()

	gw := gateway.New(cfg, registry, m, vc.Info, host, ffmpegPath)
	httpServer := gw.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	// Stop version checker goroutine
	vc.Stop()

	// Tear down sessions before the listening socket goes away.
	registry.Stop()

	// Shut down HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
