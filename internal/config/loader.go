package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/stockmcp/internal/mcp"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr        = "127.0.0.1:8000"
	DefaultMCPPath           = "/mcp"
	DefaultBackend           = "yahoo"
	DefaultBackendTimeout    = 15 * time.Second
	DefaultBridgeListenAddr  = "localhost:4200"
	DefaultBridgeUpstreamURL = "http://127.0.0.1:8000/mcp"
	DefaultBridgeName        = "Wingman Bridge"
	DefaultDiscoveryName     = "wingman"
	DefaultBridgeToolTimeout = 60 * time.Second
	DefaultServiceName       = "stockmcp"
)

// ValidBackendNames lists the backends shipped with stockmcp. [Validate]
// warns about any other name, which may still be registered by an embedder.
var ValidBackendNames = []string{"yahoo", "fixture"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromReader(strings.NewReader(""))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown keys are rejected. An empty document is valid.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field of cfg with its default. Circuit
// breaker fields are left at zero; the breaker applies its own defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.MCPPath == "" {
		s.MCPPath = DefaultMCPPath
	}
	if s.Transport == "" {
		s.Transport = mcp.TransportStreamableHTTP
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}

	if cfg.Backend.Name == "" {
		cfg.Backend.Name = DefaultBackend
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = Duration(DefaultBackendTimeout)
	}
	for i := range cfg.Backend.Fallbacks {
		if cfg.Backend.Fallbacks[i].Timeout == 0 {
			cfg.Backend.Fallbacks[i].Timeout = cfg.Backend.Timeout
		}
	}

	b := &cfg.Bridge
	if b.ListenAddr == "" {
		b.ListenAddr = DefaultBridgeListenAddr
	}
	if b.UpstreamURL == "" {
		b.UpstreamURL = DefaultBridgeUpstreamURL
	}
	if b.UpstreamTransport == "" {
		b.UpstreamTransport = mcp.TransportStreamableHTTP
	}
	if b.Name == "" {
		b.Name = DefaultBridgeName
	}
	if b.DiscoveryName == "" {
		b.DiscoveryName = DefaultDiscoveryName
	}
	if b.ToolTimeout == 0 {
		b.ToolTimeout = Duration(DefaultBridgeToolTimeout)
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	switch cfg.Server.Transport {
	case "", mcp.TransportStdio, mcp.TransportStreamableHTTP:
	default:
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: stdio, streamable-http", cfg.Server.Transport))
	}
	if p := cfg.Server.MCPPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("server.mcp_path %q must start with /", p))
	}

	// Backend
	errs = append(errs, validateBackend("backend", cfg.Backend.BackendEntry)...)
	for i, fb := range cfg.Backend.Fallbacks {
		errs = append(errs, validateBackend(fmt.Sprintf("backend.fallbacks[%d]", i), fb)...)
	}
	cb := cfg.Backend.CircuitBreaker
	if cb.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("backend.circuit_breaker.max_failures %d must not be negative", cb.MaxFailures))
	}
	if cb.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("backend.circuit_breaker.reset_timeout %s must not be negative", cb.ResetTimeout.Std()))
	}
	if cb.HalfOpenMax < 0 {
		errs = append(errs, fmt.Errorf("backend.circuit_breaker.half_open_max %d must not be negative", cb.HalfOpenMax))
	}

	// Documents
	if u := cfg.Documents.FactsheetURL; u != "" && !isHTTPURL(u) {
		errs = append(errs, fmt.Errorf("documents.factsheet_url %q must be an http(s) URL", u))
	}

	// Bridge
	if t := cfg.Bridge.UpstreamTransport; t != "" && !t.IsValid() {
		errs = append(errs, fmt.Errorf("bridge.upstream_transport %q is invalid; valid values: stdio, streamable-http, sse", t))
	}
	if cfg.Bridge.UpstreamTransport == mcp.TransportStdio && cfg.Bridge.UpstreamCommand == "" {
		errs = append(errs, fmt.Errorf("bridge.upstream_command is required when upstream_transport is stdio"))
	}
	if u := cfg.Bridge.UpstreamURL; u != "" && cfg.Bridge.UpstreamTransport != mcp.TransportStdio && !isHTTPURL(u) {
		errs = append(errs, fmt.Errorf("bridge.upstream_url %q must be an http(s) URL", u))
	}
	if cfg.Bridge.ToolTimeout < 0 {
		errs = append(errs, fmt.Errorf("bridge.tool_timeout %s must not be negative", cfg.Bridge.ToolTimeout.Std()))
	}

	return errors.Join(errs...)
}

func validateBackend(prefix string, e BackendEntry) []error {
	var errs []error
	if e.Name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", prefix))
	} else if !slices.Contains(ValidBackendNames, e.Name) {
		slog.Warn("unknown backend name; it must be registered before use",
			"key", prefix+".name",
			"name", e.Name,
			"known", ValidBackendNames,
		)
	}
	if e.Name == "fixture" && e.Path == "" {
		errs = append(errs, fmt.Errorf("%s.path is required for the fixture backend", prefix))
	}
	if e.BaseURL != "" && !isHTTPURL(e.BaseURL) {
		errs = append(errs, fmt.Errorf("%s.base_url %q must be an http(s) URL", prefix, e.BaseURL))
	}
	if e.CookieURL != "" && !isHTTPURL(e.CookieURL) {
		errs = append(errs, fmt.Errorf("%s.cookie_url %q must be an http(s) URL", prefix, e.CookieURL))
	}
	if e.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s.timeout %s must not be negative", prefix, e.Timeout.Std()))
	}
	return errs
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
