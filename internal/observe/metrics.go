// Package observe provides the observability primitives shared by the stock
// server and the bridge: OpenTelemetry metrics, tracing, trace-aware logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported for
// scraping on /metrics through the Prometheus bridge set up by
// [InitProvider]. A package-level [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/stockmcp"

// Status attribute values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// ToolDuration tracks end-to-end tool call latency, validation included.
	ToolDuration metric.Float64Histogram

	// UpstreamDuration tracks market data backend latency. Use with
	// attributes: attribute.String("op", ...)
	UpstreamDuration metric.Float64Histogram

	// --- Counters ---

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// UpstreamRequests counts backend requests. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	UpstreamRequests metric.Int64Counter

	// UpstreamErrors counts backend failures. Use with attribute:
	//   attribute.String("op", ...)
	UpstreamErrors metric.Int64Counter

	// BridgeForwards counts tool calls the bridge forwarded upstream. Use with
	// attributes: attribute.String("tool", ...), attribute.String("status", ...)
	BridgeForwards metric.Int64Counter

	// --- Gauges ---

	// BreakerOpen is 1 while the backend circuit breaker rejects requests.
	BreakerOpen metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote HTTP data fetches.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ToolDuration, err = m.Float64Histogram("stockmcp.tool.duration",
		metric.WithDescription("Latency of tool calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UpstreamDuration, err = m.Float64Histogram("stockmcp.upstream.duration",
		metric.WithDescription("Latency of market data backend requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ToolCalls, err = m.Int64Counter("stockmcp.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamRequests, err = m.Int64Counter("stockmcp.upstream.requests",
		metric.WithDescription("Total backend requests by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamErrors, err = m.Int64Counter("stockmcp.upstream.errors",
		metric.WithDescription("Total backend failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.BridgeForwards, err = m.Int64Counter("stockmcp.bridge.forwards",
		metric.WithDescription("Total tool calls forwarded by the bridge by tool name and status."),
	); err != nil {
		return nil, err
	}

	if met.BreakerOpen, err = m.Int64UpDownCounter("stockmcp.breaker.open",
		metric.WithDescription("1 while the backend circuit breaker is open."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("stockmcp.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Status maps err onto [StatusOK] or [StatusError].
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordToolCall records one tool invocation and its latency.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordUpstream records one backend request, its latency, and a failure
// when status is [StatusError].
func (m *Metrics) RecordUpstream(ctx context.Context, op, status string, d time.Duration) {
	m.UpstreamRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
	m.UpstreamDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("op", op)))
	if status == StatusError {
		m.UpstreamErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

// RecordBridgeForward records one forwarded bridge call.
func (m *Metrics) RecordBridgeForward(ctx context.Context, tool, status string) {
	m.BridgeForwards.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}
