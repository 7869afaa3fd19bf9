package observe

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/MrWong99/stockmcp/internal/config"
)

// ProviderOption configures [InitProvider].
type ProviderOption func(*providerOptions)

type providerOptions struct {
	version    string
	registerer prometheus.Registerer
	processors []sdktrace.SpanProcessor
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(v string) ProviderOption {
	return func(o *providerOptions) { o.version = v }
}

// WithRegisterer registers the Prometheus collector with reg instead of
// [prometheus.DefaultRegisterer], which is what promhttp.Handler serves.
func WithRegisterer(reg prometheus.Registerer) ProviderOption {
	return func(o *providerOptions) { o.registerer = reg }
}

// WithSpanProcessor adds a span processor, typically a batcher around an
// OTLP exporter. Without one spans are recorded but never exported.
func WithSpanProcessor(sp sdktrace.SpanProcessor) ProviderOption {
	return func(o *providerOptions) { o.processors = append(o.processors, sp) }
}

// InitProvider installs the global meter and tracer providers for one
// binary, described by cfg. Metrics are exported through the Prometheus
// bridge so /metrics can serve them.
//
// The returned shutdown flushes and closes both providers.
func InitProvider(ctx context.Context, cfg config.TelemetryConfig, opts ...ProviderOption) (shutdown func(context.Context) error, err error) {
	o := providerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = config.DefaultServiceName
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if o.version != "" {
		attrs = append(attrs, semconv.ServiceVersion(o.version))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	// Schemaless so the merge keeps the SDK's schema URL instead of
	// conflicting with it.
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, err
	}

	promOpts := []promexporter.Option{}
	if o.registerer != nil {
		promOpts = append(promOpts, promexporter.WithRegisterer(o.registerer))
	}
	promExp, err := promexporter.New(promOpts...)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, sp := range o.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
