// Package main provides a daemon that automatically lowers the volume of every
// other audio session while a chosen process is playing, and restores it once
// that process has been silent for a while.
//
// Usage:
//
//	ducker [-config path/to/config.json] [-debug]
//
// If -config is not specified, the ducker looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/config"
	"github.com/oszuidwest/zwfm-ducker/internal/ducking"
	"github.com/oszuidwest/zwfm-ducker/internal/events"
	"github.com/oszuidwest/zwfm-ducker/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

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

	mixer := audio.NewMixer()
	for _, seed := range snap.Sessions {
		if err := mixer.Add(seed.ID, seed.ProcessID, seed.Name, seed.InitialVolume()); err != nil {
			slog.Error("failed to register session", "id", seed.ID, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("mixer ready", "sessions", len(snap.Sessions))

	var eventLog ducking.EventLogger
	var eventLogger *events.Logger
	if snap.HasEventLog() {
		l, err := events.NewLogger(snap.EventLogPath)
		if err != nil {
			slog.Error("failed to open event log, continuing without it", "path", snap.EventLogPath, "error", err)
		} else {
			eventLogger = l
			eventLog = l
		}
	}

	engine := ducking.New(mixer, ducking.Settings{
		SilenceThresholdMs: snap.SilenceThresholdMs,
		LowVolume:          snap.LowVolume(),
		TrackedProcessID:   snap.TrackedProcessID,
	}, eventLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	version := NewVersionChecker()
	go version.Run(ctx)

	reload := newReloadApplier(engine, snap)
	go func() {
		err := cfg.Watch(ctx, reload.Apply)
		if err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		}
	}()

	if err := engine.Start(); err != nil {
		slog.Error("failed to start ducking engine", "error", err)
		os.Exit(1)
	}

	srv := NewServer(cfg, engine, mixer, version)
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	var errs []error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := engine.Stop(); err != nil {
		errs = append(errs, err)
	}
	if eventLogger != nil {
		if err := eventLogger.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		slog.Error("shutdown completed with errors", "error", err)
		return
	}
	slog.Info("shutdown complete")
}
