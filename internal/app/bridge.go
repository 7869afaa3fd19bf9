package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/MrWong99/stockmcp/internal/config"
	"github.com/MrWong99/stockmcp/internal/health"
	"github.com/MrWong99/stockmcp/internal/mcp/bridge"
)

// Bridge owns the SSE proxy's lifetime.
type Bridge struct {
	cfg     *config.Config
	bridge  *bridge.Bridge
	handler http.Handler

	closers  []func() error
	stopOnce sync.Once
}

// NewBridge connects to the configured upstream tool server, mirrors its
// tools and builds the HTTP routes. Nothing is served until [Bridge.Run].
func NewBridge(ctx context.Context, cfg *config.Config, opts ...Option) (*Bridge, error) {
	o := newOptions(opts)
	bc := cfg.Bridge

	b := bridge.New(
		bridge.WithName(bc.Name),
		bridge.WithToolTimeout(bc.ToolTimeout.Std()),
		bridge.WithMetrics(o.metrics),
	)
	if err := b.Connect(ctx, bc.UpstreamServer()); err != nil {
		return nil, fmt.Errorf("app: connect upstream: %w", err)
	}

	a := &Bridge{cfg: cfg, bridge: b}
	a.closers = append(a.closers, b.Close)
	a.handler = bridge.NewRouter(bridge.RouterConfig{
		Bridge: b,
		Discovery: bridge.Discovery{
			Name:             bc.DiscoveryName,
			InstructionsFile: bc.InstructionsFile,
		},
		Health:  health.New(health.Checker{Name: "upstream", Check: b.Ping}),
		Metrics: o.metricsHandler,
		Observe: o.metrics,
	})
	return a, nil
}

// Handler returns the bridge's HTTP handler.
func (a *Bridge) Handler() http.Handler { return a.handler }

// Tools returns the names of the mirrored upstream tools.
func (a *Bridge) Tools() []string { return a.bridge.Tools() }

// Run serves the bridge and blocks until ctx is cancelled or serving fails.
func (a *Bridge) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Bridge.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Bridge.ListenAddr, err)
	}
	slog.Info("serving bridge over SSE",
		"addr", ln.Addr().String(),
		"upstream", a.cfg.Bridge.UpstreamURL,
		"tools", len(a.bridge.Tools()))
	return serve(ctx, ln, a.handler)
}

// Shutdown closes the upstream session. See [Server.Shutdown].
func (a *Bridge) Shutdown(ctx context.Context) error {
	return shutdown(ctx, &a.stopOnce, a.closers)
}
