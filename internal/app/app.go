// Package app wires the stockmcp subsystems into running applications.
//
// [Server] owns the tool server: New builds the backend chain, registers the
// tools and mounts the MCP endpoint; Run serves it until the context ends;
// Shutdown tears everything down. [Bridge] does the same for the SSE proxy.
//
// For testing, inject doubles via functional options (WithBackend,
// WithMetrics, ...). When an option is not provided, New builds the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/stockmcp/internal/config"
	"github.com/MrWong99/stockmcp/internal/health"
	"github.com/MrWong99/stockmcp/internal/mcp"
	"github.com/MrWong99/stockmcp/internal/mcp/mcpserver"
	"github.com/MrWong99/stockmcp/internal/mcp/tools"
	"github.com/MrWong99/stockmcp/internal/mcp/tools/chart"
	"github.com/MrWong99/stockmcp/internal/mcp/tools/documents"
	"github.com/MrWong99/stockmcp/internal/mcp/tools/history"
	"github.com/MrWong99/stockmcp/internal/mcp/tools/quote"
	"github.com/MrWong99/stockmcp/internal/observe"
	"github.com/MrWong99/stockmcp/internal/resilience"
	"github.com/MrWong99/stockmcp/pkg/marketdata"
	"github.com/MrWong99/stockmcp/pkg/tool"
)

// shutdownGrace bounds how long in-flight HTTP requests may take once Run's
// context is done.
const shutdownGrace = 10 * time.Second

// serverInstructions is returned to MCP clients on initialise.
const serverInstructions = "Stock market data tools. Look up a company with get_stock_info, " +
	"fetch OHLCV rows with get_historical_prices and show them with render_stock_chart. " +
	"get_disclaimer returns the terms every answer based on this data is subject to."

// Option is a functional option shared by [New] and [NewBridge]. Use these to
// inject test doubles.
type Option func(*options)

type options struct {
	backend        marketdata.Backend
	registry       *config.Registry
	metrics        *observe.Metrics
	metricsHandler http.Handler
}

// WithBackend injects the market data backend instead of creating one from
// config. The backend is still wrapped in a circuit breaker.
func WithBackend(b marketdata.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithRegistry sets the backend factory registry. Default:
// [config.DefaultRegistry].
func WithRegistry(r *config.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMetricsHandler serves h at /metrics, usually promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) { o.metricsHandler = h }
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = config.DefaultRegistry()
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Server owns the tool server's lifetime.
type Server struct {
	cfg     *config.Config
	opts    options
	backend *resilience.BackendFallback
	tools   *tool.Registry
	mcp     *mcpsdk.Server
	handler http.Handler

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates a Server from cfg: backend chain, tool registry, MCP server
// and HTTP routes. Nothing is served until [Server.Run].
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, opts: newOptions(opts)}

	// ── 1. Backend chain ─────────────────────────────────────────────────
	backend, err := s.buildBackend()
	if err != nil {
		return nil, fmt.Errorf("app: init backend: %w", err)
	}
	s.backend = backend

	// ── 2. Tools ─────────────────────────────────────────────────────────
	s.tools = tool.NewRegistry()
	all := slices.Concat(
		quote.Tools(backend),
		history.Tools(backend),
		chart.Tools(backend),
		documents.Tools(backend, cfg.Documents.FactsheetURL),
	)
	if err := tools.Register(s.tools, all...); err != nil {
		return nil, fmt.Errorf("app: register tools: %w", err)
	}

	// ── 3. MCP server + routes ───────────────────────────────────────────
	s.mcp = mcpserver.New(s.tools,
		mcpserver.WithMetrics(s.opts.metrics),
		mcpserver.WithInstructions(serverInstructions),
	)
	s.handler = s.routes()

	observe.Logger(ctx).Info("tool server initialised",
		"backends", backend.Names(),
		"tools", s.tools.Len())
	return s, nil
}

func (s *Server) buildBackend() (*resilience.BackendFallback, error) {
	bc := s.cfg.Backend
	primary := s.opts.backend
	if primary == nil {
		b, err := s.opts.registry.CreateBackend(bc.BackendEntry)
		if err != nil {
			return nil, err
		}
		primary = b
	}

	cb := resilience.CircuitBreakerConfig{
		MaxFailures:  bc.CircuitBreaker.MaxFailures,
		ResetTimeout: bc.CircuitBreaker.ResetTimeout.Std(),
		HalfOpenMax:  bc.CircuitBreaker.HalfOpenMax,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("backend circuit breaker changed state", "backend", name, "from", from.String(), "to", to.String())
		},
	}
	guardOpts := []resilience.GuardOption{resilience.WithMetrics(s.opts.metrics)}
	for _, fb := range bc.Fallbacks {
		b, err := s.opts.registry.CreateBackend(fb)
		if err != nil {
			return nil, err
		}
		guardOpts = append(guardOpts, resilience.WithFallback(fb.Name, b))
	}
	return resilience.Guard(primary, bc.Name, cb, guardOpts...), nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.opts.metrics))

	health.New(health.Checker{Name: "backend", Check: s.checkBackend}).Register(r)
	if s.opts.metricsHandler != nil {
		r.Handle("/metrics", s.opts.metricsHandler)
	}
	r.Handle(s.cfg.Server.MCPPath, mcpserver.StreamableHandler(s.mcp))
	return r
}

func (s *Server) checkBackend(context.Context) error {
	if !s.backend.Healthy() {
		return errors.New("every backend circuit breaker is open")
	}
	return nil
}

// Handler returns the HTTP handler serving the MCP endpoint and the ops
// routes.
func (s *Server) Handler() http.Handler { return s.handler }

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcpsdk.Server { return s.mcp }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the tool server on the configured transport and blocks until
// ctx is cancelled or serving fails.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Server.Transport == mcp.TransportStdio {
		slog.Info("serving MCP over stdio")
		return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
	}

	ln, err := net.Listen("tcp", s.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", s.cfg.Server.ListenAddr, err)
	}
	slog.Info("serving MCP over streamable HTTP",
		"addr", ln.Addr().String(),
		"path", s.cfg.Server.MCPPath)
	return serve(ctx, ln, s.handler)
}

// serve runs an HTTP server on ln until ctx is done, then shuts it down
// gracefully.
func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown runs the registered closers in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	return shutdown(ctx, &s.stopOnce, s.closers)
}

// OnShutdown registers fn to run during Shutdown.
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

func shutdown(ctx context.Context, once *sync.Once, closers []func() error) error {
	var shutdownErr error
	once.Do(func() {
		slog.Info("shutting down", "closers", len(closers))
		for i, closer := range closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
