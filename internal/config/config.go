// Package config provides the configuration schema, loader, and backend
// registry for the stockmcp server and the stockbridge proxy.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/stockmcp/internal/mcp"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto a [slog.Level]. Unknown or empty levels map to Info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Duration is a [time.Duration] that unmarshals from YAML strings such as
// "10s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure shared by both binaries.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Documents DocumentsConfig `yaml:"documents"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the tool server.
type ServerConfig struct {
	// ListenAddr is the TCP address the streamable HTTP transport listens
	// on. Default: "127.0.0.1:8000".
	ListenAddr string `yaml:"listen_addr"`

	// MCPPath is the path the MCP endpoint is mounted at. Default: "/mcp".
	MCPPath string `yaml:"mcp_path"`

	// Transport selects how the tool server is exposed: "streamable-http"
	// (default) or "stdio".
	Transport mcp.Transport `yaml:"transport"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// BackendConfig selects and configures the market data backend.
type BackendConfig struct {
	BackendEntry `yaml:",inline"`

	// CircuitBreaker guards the primary backend and every fallback.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// Fallbacks are tried in order when the primary backend fails or its
	// breaker is open.
	Fallbacks []BackendEntry `yaml:"fallbacks"`
}

// BackendEntry is the configuration for one backend instance. It is what a
// factory in [Registry] receives.
type BackendEntry struct {
	// Name selects the backend implementation: "yahoo" or "fixture".
	Name string `yaml:"name"`

	// BaseURL overrides the API host. yahoo only.
	BaseURL string `yaml:"base_url"`

	// CookieURL overrides the page visited to obtain a session cookie.
	// yahoo only.
	CookieURL string `yaml:"cookie_url"`

	// UserAgent overrides the User-Agent header. yahoo only.
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds every upstream HTTP request. Default: 15s.
	Timeout Duration `yaml:"timeout"`

	// Path is the YAML dataset to serve. fixture only.
	Path string `yaml:"path"`
}

// CircuitBreakerConfig tunes the breaker around each backend.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that open the
	// breaker. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout Duration `yaml:"reset_timeout"`

	// HalfOpenMax is the number of trial calls allowed while half-open.
	// Default: 3.
	HalfOpenMax int `yaml:"half_open_max"`
}

// DocumentsConfig configures the document tools.
type DocumentsConfig struct {
	// FactsheetURL is the PDF served by get_factsheet. Empty uses the
	// built-in sample document.
	FactsheetURL string `yaml:"factsheet_url"`
}

// BridgeConfig configures the stockbridge proxy.
type BridgeConfig struct {
	// ListenAddr is where the SSE endpoint is served. Default:
	// "localhost:4200".
	ListenAddr string `yaml:"listen_addr"`

	// UpstreamURL is the tool server endpoint. Default:
	// "http://127.0.0.1:8000/mcp".
	UpstreamURL string `yaml:"upstream_url"`

	// UpstreamTransport is how the upstream is reached. Default:
	// streamable-http.
	UpstreamTransport mcp.Transport `yaml:"upstream_transport"`

	// UpstreamCommand launches the upstream when UpstreamTransport is stdio.
	UpstreamCommand string `yaml:"upstream_command"`

	// Name is the server name the bridge reports. Default: "Wingman Bridge".
	Name string `yaml:"name"`

	// DiscoveryName is the name in the discovery document. Default: "wingman".
	DiscoveryName string `yaml:"discovery_name"`

	// InstructionsFile is read on every discovery request.
	InstructionsFile string `yaml:"instructions_file"`

	// ToolTimeout bounds each forwarded call. Default: 60s.
	ToolTimeout Duration `yaml:"tool_timeout"`
}

// UpstreamServer returns the [mcp.ServerConfig] the bridge connects with.
func (b BridgeConfig) UpstreamServer() mcp.ServerConfig {
	return mcp.ServerConfig{
		Name:      "upstream",
		Transport: b.UpstreamTransport,
		URL:       b.UpstreamURL,
		Command:   b.UpstreamCommand,
	}
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// ServiceName is reported as the service.name resource attribute.
	// Default: "stockmcp". The bridge appends "-bridge".
	ServiceName string `yaml:"service_name"`

	// Environment is reported as deployment.environment when set.
	Environment string `yaml:"environment"`
}
