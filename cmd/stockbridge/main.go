// Command stockbridge republishes the stockmcp tool server over MCP SSE with
// permissive CORS and a discovery endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/stockmcp/internal/app"
	"github.com/MrWong99/stockmcp/internal/config"
	"github.com/MrWong99/stockmcp/internal/observe"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults apply when empty)")
	listenAddr := flag.String("listen", "", "override bridge.listen_addr")
	upstream := flag.String("upstream", "", "override bridge.upstream_url")
	instructions := flag.String("instructions", "", "override bridge.instructions_file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stockbridge: %v\n", err)
		return 1
	}
	if *listenAddr != "" {
		cfg.Bridge.ListenAddr = *listenAddr
	}
	if *upstream != "" {
		cfg.Bridge.UpstreamURL = *upstream
	}
	if *instructions != "" {
		cfg.Bridge.InstructionsFile = *instructions
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "stockbridge: %v\n", err)
		return 1
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	})))
	slog.Info("stockbridge starting",
		"version", version,
		"listen_addr", cfg.Bridge.ListenAddr,
		"upstream", cfg.Bridge.UpstreamURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry := cfg.Telemetry
	telemetry.ServiceName += "-bridge"
	shutdownTelemetry, err := observe.InitProvider(ctx, telemetry, observe.WithServiceVersion(version))
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	b, err := app.NewBridge(ctx, cfg, app.WithMetricsHandler(promhttp.Handler()))
	if err != nil {
		slog.Error("failed to initialise bridge", "err", err)
		return 1
	}

	runErr := b.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := b.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}
