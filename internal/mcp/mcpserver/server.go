// Package mcpserver exposes a [tool.Registry] as an MCP server.
//
// Every registered descriptor becomes an MCP tool whose input schema is the
// descriptor's derived JSON Schema. Calls are routed through
// [tool.Registry.Call], so argument validation happens before any handler
// runs, and the [tool.EncodedResponse] is translated into a
// [mcpsdk.CallToolResult]:
//
//   - structured results become StructuredContent plus a text block carrying
//     the same JSON for clients that ignore structured output;
//   - resource results become a single embedded resource (text or blob);
//   - errors become a result with IsError set and the error text as content.
//
// Typical usage:
//
//	reg := tool.NewRegistry()
//	_ = tools.Register(reg, quote.Tools(backend)...)
//	srv := mcpserver.New(reg)
//	http.Handle("/mcp", mcpserver.StreamableHandler(srv))
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/stockmcp/internal/observe"
	"github.com/MrWong99/stockmcp/pkg/tool"
)

// Default implementation details reported during initialisation.
const (
	DefaultName    = "stock-info-server"
	DefaultVersion = "1.0.0"
)

// Option configures [New].
type Option func(*options)

type options struct {
	name         string
	version      string
	instructions string
	metrics      *observe.Metrics
}

// WithImplementation overrides the server name and version.
func WithImplementation(name, version string) Option {
	return func(o *options) {
		o.name = name
		o.version = version
	}
}

// WithInstructions sets the instructions returned to clients on initialise.
func WithInstructions(s string) Option {
	return func(o *options) { o.instructions = s }
}

// WithMetrics records tool metrics into m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New builds an MCP server exposing every tool in reg. Tools registered in
// reg after New returns are not exposed.
func New(reg *tool.Registry, opts ...Option) *mcpsdk.Server {
	o := options{name: DefaultName, version: DefaultVersion}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}

	srv := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: o.name, Version: o.version},
		&mcpsdk.ServerOptions{Instructions: o.instructions},
	)
	for _, d := range reg.Descriptors() {
		srv.AddTool(&mcpsdk.Tool{
			Name:        d.Name,
			Title:       d.Title,
			Description: d.Description,
			InputSchema: d.InputSchema(),
		}, handler(reg, d.Name, o.metrics))
	}
	return srv
}

// StreamableHandler serves srv over the MCP streamable HTTP transport.
func StreamableHandler(srv *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return srv }, nil)
}

func handler(reg *tool.Registry, name string, m *observe.Metrics) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		ctx, span := observe.StartToolSpan(ctx, name)
		start := time.Now()

		resp, err := call(ctx, reg, name, req.Params.Arguments)
		m.RecordToolCall(ctx, name, observe.Status(err), time.Since(start))
		span.SetAttributes(observe.AttrToolError.Bool(err != nil))
		observe.EndSpan(span, err)
		if err != nil {
			observe.Logger(ctx).Warn("tool call failed", "tool", name, "err", err)
			return ErrorResult(err), nil
		}
		return ToResult(resp), nil
	}
}

func call(ctx context.Context, reg *tool.Registry, name string, raw json.RawMessage) (tool.EncodedResponse, error) {
	var args map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return tool.EncodedResponse{}, fmt.Errorf("mcpserver: arguments for %q are not a JSON object: %w", name, err)
		}
	}
	return reg.Call(ctx, name, args)
}

// ToResult converts an encoded tool response into an MCP result.
func ToResult(resp tool.EncodedResponse) *mcpsdk.CallToolResult {
	switch resp.Kind {
	case tool.ShapeResource:
		r := resp.Resource
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.EmbeddedResource{
				Resource: &mcpsdk.ResourceContents{
					URI:      r.URI,
					MIMEType: r.MediaType,
					Text:     r.Text,
					Blob:     r.Blob,
					Meta:     r.Meta,
				},
			}},
		}
	default:
		return &mcpsdk.CallToolResult{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: string(resp.Structured)}},
			StructuredContent: resp.Structured,
		}
	}
}

// ErrorResult reports err to the client as a failed tool call.
func ErrorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
