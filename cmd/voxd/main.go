// voxd is the bridge daemon: it serves the chat-stream proxy endpoint and,
// when the bus is enabled, mirrors conversations onto NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/runtime"
)

// version is stamped by the release build; module build info is preferred
// when present.
var version = "dev"

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return version
}

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "vox.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("voxd %s\n", buildVersion())
		return
	}

	// The level variable lets the configured log level take effect once the
	// config is loaded; until then the bootstrap default is info.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", configPath),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	level.Set(cfg.Telemetry.SlogLevel())

	logger.Info("starting voxd",
		slog.String("version", buildVersion()),
		slog.String("config", configPath),
		slog.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := runtime.New(cfg, buildVersion(), logger)
	if err := rt.Start(ctx); err != nil {
		logger.Error("voxd exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
