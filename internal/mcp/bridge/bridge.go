// Package bridge republishes an upstream MCP server under a new identity.
//
// A [Bridge] connects to the upstream tool server as an MCP client, mirrors
// its tool catalogue onto a local [mcpsdk.Server] and forwards every call it
// receives to the upstream session. The local server is typically served over
// the legacy SSE transport next to a discovery endpoint, see [NewRouter].
//
// Typical usage:
//
//	b := bridge.New(bridge.WithName("Wingman Bridge"))
//	if err := b.Connect(ctx, mcp.ServerConfig{
//	    Name:      "stock",
//	    Transport: mcp.TransportStreamableHTTP,
//	    URL:       "http://127.0.0.1:8000/mcp",
//	}); err != nil { ... }
//	defer b.Close()
//
//	http.ListenAndServe("localhost:4200", bridge.NewRouter(bridge.RouterConfig{Bridge: b}))
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/stockmcp/internal/mcp"
	"github.com/MrWong99/stockmcp/internal/mcp/mcpserver"
	"github.com/MrWong99/stockmcp/internal/observe"
)

// Defaults for [New].
const (
	DefaultName        = "Wingman Bridge"
	DefaultVersion     = "1.0.0"
	defaultToolTimeout = 60 * time.Second
)

// Option is a functional option for configuring a [Bridge].
type Option func(*Bridge)

// WithName sets the server name the bridge reports to its clients.
func WithName(name string) Option {
	return func(b *Bridge) { b.name = name }
}

// WithToolTimeout bounds each forwarded call. The default is 60 seconds.
func WithToolTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.toolTimeout = d }
}

// WithMetrics records forwarded calls into m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithInstructions sets the instructions the local server returns on
// initialise. When unset, the upstream server's instructions are used.
func WithInstructions(s string) Option {
	return func(b *Bridge) { b.instructions = s }
}

// Bridge proxies one upstream MCP server. It is safe for concurrent use.
type Bridge struct {
	name         string
	instructions string
	toolTimeout  time.Duration
	metrics      *observe.Metrics

	client *mcpsdk.Client

	mu       sync.RWMutex
	server   *mcpsdk.Server
	upstream string
	session  *mcpsdk.ClientSession
	tools    []string
}

// New creates a Bridge. Call [Bridge.Connect] before serving it.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		name:        DefaultName,
		toolTimeout: defaultToolTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = observe.DefaultMetrics()
	}
	b.client = mcpsdk.NewClient(&mcpsdk.Implementation{Name: b.name, Version: DefaultVersion}, nil)
	return b
}

// Connect connects to the upstream server described by cfg and mirrors its
// tools. Calling Connect again replaces the previous upstream and its tools.
//
// The local server is created on the first successful Connect; until then
// [Bridge.Server] returns nil.
func (b *Bridge) Connect(ctx context.Context, cfg mcp.ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	transport, err := clientTransport(ctx, cfg)
	if err != nil {
		return err
	}
	session, err := b.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("bridge: connect to %q: %w", cfg.Name, err)
	}

	var discovered []*mcpsdk.Tool
	for t, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("bridge: list tools of %q: %w", cfg.Name, err)
		}
		discovered = append(discovered, t)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.server == nil {
		instructions := b.instructions
		if instructions == "" {
			if ir := session.InitializeResult(); ir != nil {
				instructions = ir.Instructions
			}
		}
		b.server = mcpsdk.NewServer(
			&mcpsdk.Implementation{Name: b.name, Version: DefaultVersion},
			&mcpsdk.ServerOptions{Instructions: instructions},
		)
	}
	if b.session != nil {
		_ = b.session.Close()
		b.server.RemoveTools(b.tools...)
	}

	b.session = session
	b.upstream = cfg.Name
	b.tools = b.tools[:0]
	for _, t := range discovered {
		mirrored := *t
		b.server.AddTool(&mirrored, b.forward(t.Name))
		b.tools = append(b.tools, t.Name)
	}

	observe.Logger(ctx).Info("bridge connected to upstream",
		"upstream", cfg.Name,
		"transport", string(cfg.Transport),
		"tools", len(b.tools))
	return nil
}

// clientTransport builds the SDK transport for cfg, which must be valid.
func clientTransport(ctx context.Context, cfg mcp.ServerConfig) (mcpsdk.Transport, error) {
	switch cfg.Transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		// A nil Env inherits the bridge's environment, PATH included.
		cmd := exec.CommandContext(ctx, executable, args...)
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	case mcp.TransportSSE:
		return &mcpsdk.SSEClientTransport{Endpoint: cfg.URL}, nil
	case mcp.TransportStreamableHTTP:
		return &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}, nil
	}
	return nil, fmt.Errorf("bridge: unknown transport %q", cfg.Transport)
}

// forward returns the handler that relays calls of the named tool upstream.
// Upstream results, IsError ones included, are returned unchanged; transport
// failures become IsError results.
func (b *Bridge) forward(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		ctx, cancel := context.WithTimeout(ctx, b.toolTimeout)
		defer cancel()

		b.mu.RLock()
		session, upstream := b.session, b.upstream
		b.mu.RUnlock()

		ctx, span := observe.StartForwardSpan(ctx, name, upstream)

		params := &mcpsdk.CallToolParams{Name: name}
		if raw := req.Params.Arguments; len(raw) > 0 {
			params.Arguments = json.RawMessage(raw)
		}

		res, err := session.CallTool(ctx, params)
		if err != nil {
			observe.EndSpan(span, err)
			b.metrics.RecordBridgeForward(ctx, name, observe.StatusError)
			observe.Logger(ctx).Warn("bridge forward failed", "tool", name, "err", err)
			return mcpserver.ErrorResult(fmt.Errorf("bridge: tool %q: %w", name, err)), nil
		}

		status := observe.StatusOK
		if res.IsError {
			status = observe.StatusError
		}
		span.SetAttributes(observe.AttrToolError.Bool(res.IsError))
		observe.EndSpan(span, nil)
		b.metrics.RecordBridgeForward(ctx, name, status)
		return res, nil
	}
}

// Server returns the local MCP server, or nil before the first successful
// [Bridge.Connect].
func (b *Bridge) Server() *mcpsdk.Server {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.server
}

// Tools returns the names of the mirrored tools in upstream order.
func (b *Bridge) Tools() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.tools))
	copy(out, b.tools)
	return out
}

// Ping checks that the upstream session is alive.
func (b *Bridge) Ping(ctx context.Context) error {
	b.mu.RLock()
	session, upstream := b.session, b.upstream
	b.mu.RUnlock()
	if session == nil {
		return fmt.Errorf("bridge: not connected")
	}
	if err := session.Ping(ctx, nil); err != nil {
		return fmt.Errorf("bridge: ping %q: %w", upstream, err)
	}
	return nil
}

// Close closes the upstream session. The local server keeps its tools but
// every forwarded call fails afterwards.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	if err != nil {
		err = fmt.Errorf("bridge: close %q: %w", b.upstream, err)
	}
	return err
}

// splitCommand splits "/bin/foo --bar baz" into ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
