package config

import "slices"

// ConfigDiff describes what changed between two configs. Only the log level
// is applied while running; every other change takes effect on restart and
// is reported through [ConfigDiff.RestartRequired].
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ServerChanged    bool // listen address, MCP path or transport
	BackendChanged   bool // primary, fallbacks or circuit breaker
	DocumentsChanged bool
	BridgeChanged    bool
	TelemetryChanged bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldSrv, newSrv := old.Server, new.Server
	oldSrv.LogLevel, newSrv.LogLevel = "", ""
	d.ServerChanged = oldSrv != newSrv

	d.BackendChanged = old.Backend.BackendEntry != new.Backend.BackendEntry ||
		old.Backend.CircuitBreaker != new.Backend.CircuitBreaker ||
		!slices.Equal(old.Backend.Fallbacks, new.Backend.Fallbacks)

	d.DocumentsChanged = old.Documents != new.Documents
	d.BridgeChanged = old.Bridge != new.Bridge
	d.TelemetryChanged = old.Telemetry != new.Telemetry
	return d
}

// Changed reports whether anything the binaries read differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired()) > 0
}

// RestartRequired returns the config sections whose changes are only picked
// up by a restart, in file order.
func (d ConfigDiff) RestartRequired() []string {
	var sections []string
	if d.ServerChanged {
		sections = append(sections, "server")
	}
	if d.BackendChanged {
		sections = append(sections, "backend")
	}
	if d.DocumentsChanged {
		sections = append(sections, "documents")
	}
	if d.BridgeChanged {
		sections = append(sections, "bridge")
	}
	if d.TelemetryChanged {
		sections = append(sections, "telemetry")
	}
	return sections
}
