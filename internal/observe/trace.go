package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the application tracer.
const tracerName = "github.com/MrWong99/stockmcp"

// Span attribute keys.
const (
	AttrToolName = attribute.Key("tool.name")
	AttrOp       = attribute.Key("marketdata.op")
	AttrSubject  = attribute.Key("marketdata.subject")
	AttrUpstream = attribute.Key("bridge.upstream")

	// AttrToolError is true when a tool answered with an error result.
	AttrToolError = attribute.Key("tool.is_error")
)

// Tracer returns the application tracer from the global
// [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartToolSpan starts the server span around one tool call.
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "tool "+tool,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(AttrToolName.String(tool)),
	)
}

// StartUpstreamSpan starts the client span around one market data request.
// op is "quote", "history" or "document"; subject is the ticker or the
// document URL.
func StartUpstreamSpan(ctx context.Context, op, subject string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "marketdata."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrOp.String(op), AttrSubject.String(subject)),
	)
}

// StartForwardSpan starts the client span around one call the bridge relays
// to the upstream tool server.
func StartForwardSpan(ctx context.Context, tool, upstream string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "forward "+tool,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrToolName.String(tool), AttrUpstream.String(upstream)),
	)
}

// EndSpan marks span as failed when err is non-nil, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the trace ID of the span in ctx, or "" without one.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
