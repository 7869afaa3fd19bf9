// Package mcp holds the types shared by the stockmcp server and bridge
// packages: how to reach an MCP server and which transport to use.
package mcp

import "fmt"

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"

	// TransportSSE communicates via the legacy HTTP+SSE protocol.
	TransportSSE Transport = "sse"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP || t == TransportSSE
}

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	// Name identifies the server in log messages and errors.
	Name string

	// Transport specifies the connection mechanism.
	Transport Transport

	// Command is the executable path and arguments, split on whitespace.
	// Only used with TransportStdio.
	Command string

	// URL is the endpoint address for the HTTP transports.
	URL string
}

// Validate checks that the fields required by the transport are set.
func (c ServerConfig) Validate() error {
	if !c.Transport.IsValid() {
		return fmt.Errorf("mcp: unknown transport %q for server %q", c.Transport, c.Name)
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("mcp: stdio server %q requires a non-empty command", c.Name)
		}
	default:
		if c.URL == "" {
			return fmt.Errorf("mcp: %s server %q requires a non-empty URL", c.Transport, c.Name)
		}
	}
	return nil
}
