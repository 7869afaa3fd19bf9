// Command stockmcp serves stock market data tools over MCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/stockmcp/internal/app"
	"github.com/MrWong99/stockmcp/internal/config"
	"github.com/MrWong99/stockmcp/internal/mcp"
	"github.com/MrWong99/stockmcp/internal/observe"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults apply when empty)")
	transport := flag.String("transport", "", "override server.transport: stdio or streamable-http")
	listenAddr := flag.String("listen", "", "override server.listen_addr")
	logLevel := flag.String("log-level", "", "override server.log_level: debug, info, warn or error")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "stockmcp: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "stockmcp: %v\n", err)
		}
		return 1
	}
	if *transport != "" {
		cfg.Server.Transport = mcp.Transport(*transport)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(*logLevel)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "stockmcp: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout belongs to the stdio transport; logs always go to stderr.
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("stockmcp starting",
		"version", version,
		"config", *configPath,
		"transport", string(cfg.Server.Transport),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, cfg.Telemetry, observe.WithServiceVersion(version))
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	server, err := app.New(ctx, cfg, app.WithMetricsHandler(promhttp.Handler()))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	server.OnShutdown(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTelemetry(ctx)
	})

	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, reload(level))
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			server.OnShutdown(func() error { w.Stop(); return nil })
		}
	}

	printStartupSummary(cfg)

	runErr := server.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// reload applies log level changes and reports everything that needs a
// restart.
func reload(level *slog.LevelVar) func(config.Reload) {
	return func(r config.Reload) {
		if r.Diff.LogLevelChanged {
			level.Set(r.Diff.NewLogLevel.SlogLevel())
			slog.Info("log level changed", "level", r.Diff.NewLogLevel)
		}
		if sections := r.Diff.RestartRequired(); len(sections) > 0 {
			slog.Warn("config changes take effect after a restart", "sections", strings.Join(sections, ","))
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	w := os.Stderr
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        stockmcp - startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow("Backend", cfg.Backend.Name)
	printRow("Fallbacks", fmt.Sprint(len(cfg.Backend.Fallbacks)))
	printRow("Transport", string(cfg.Server.Transport))
	if cfg.Server.Transport != mcp.TransportStdio {
		printRow("Listen addr", cfg.Server.ListenAddr)
		printRow("MCP path", cfg.Server.MCPPath)
	}
	if cfg.Documents.FactsheetURL != "" {
		printRow("Factsheet", cfg.Documents.FactsheetURL)
	} else {
		printRow("Factsheet", "(built-in sample)")
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(os.Stderr, "║  %-12s    : %-19s ║\n", label, value)
}
