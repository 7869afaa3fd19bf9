package resilience

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/stockmcp/internal/observe"
	"github.com/MrWong99/stockmcp/pkg/marketdata"
)

// BackendFallback implements [marketdata.Backend] over a [FallbackGroup] of
// backends. Every request is traced and counted; every error, including a
// tripped breaker, comes back as an [*marketdata.UpstreamFetchError].
type BackendFallback struct {
	group   *FallbackGroup[marketdata.Backend]
	metrics *observe.Metrics
}

var _ marketdata.Backend = (*BackendFallback)(nil)

// GuardOption configures [Guard].
type GuardOption func(*guardOptions)

type guardOptions struct {
	metrics   *observe.Metrics
	fallbacks []namedBackend
}

type namedBackend struct {
	name string
	b    marketdata.Backend
}

// WithMetrics records upstream metrics into m instead of
// [observe.DefaultMetrics]. The breaker state gauge is fed from m as well.
func WithMetrics(m *observe.Metrics) GuardOption {
	return func(o *guardOptions) { o.metrics = m }
}

// WithFallback adds a backend tried when the previous ones fail or have an
// open breaker.
func WithFallback(name string, b marketdata.Backend) GuardOption {
	return func(o *guardOptions) { o.fallbacks = append(o.fallbacks, namedBackend{name, b}) }
}

// Guard wraps primary with a circuit breaker configured by cb. Unless cb says
// otherwise, only [marketdata.IsUpstreamFailure] errors trip it: an unknown
// symbol or a missing document is an answer, not an outage.
func Guard(primary marketdata.Backend, name string, cb CircuitBreakerConfig, opts ...GuardOption) *BackendFallback {
	o := guardOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}

	if cb.IsFailure == nil {
		cb.IsFailure = marketdata.IsUpstreamFailure
	}

	m := o.metrics
	user := cb.OnStateChange
	cb.OnStateChange = func(name string, from, to State) {
		switch {
		case to == StateOpen:
			m.BreakerOpen.Add(context.Background(), 1, metricAttrs(name))
		case from == StateOpen:
			m.BreakerOpen.Add(context.Background(), -1, metricAttrs(name))
		}
		if user != nil {
			user(name, from, to)
		}
	}

	group := NewFallbackGroup(primary, name, FallbackConfig{CircuitBreaker: cb})
	for _, fb := range o.fallbacks {
		group.AddFallback(fb.name, fb.b)
	}
	return &BackendFallback{group: group, metrics: m}
}

// Healthy reports whether any backend would accept a request right now.
func (f *BackendFallback) Healthy() bool { return f.group.Healthy() }

// Names returns the backend names in failover order.
func (f *BackendFallback) Names() []string { return f.group.Names() }

// Quote fetches fields for symbol from the first healthy backend.
func (f *BackendFallback) Quote(ctx context.Context, symbol string, fields []string) (marketdata.FetchResult, error) {
	return run(ctx, f, "quote", symbol, func(ctx context.Context, b marketdata.Backend) (marketdata.FetchResult, error) {
		return b.Quote(ctx, symbol, fields)
	})
}

// History fetches rows for symbol from the first healthy backend.
func (f *BackendFallback) History(ctx context.Context, symbol string, q marketdata.HistoryQuery) ([]marketdata.Row, error) {
	return run(ctx, f, "history", symbol, func(ctx context.Context, b marketdata.Backend) ([]marketdata.Row, error) {
		return b.History(ctx, symbol, q)
	})
}

// Document downloads url from the first healthy backend.
func (f *BackendFallback) Document(ctx context.Context, url string) ([]byte, error) {
	return run(ctx, f, "document", url, func(ctx context.Context, b marketdata.Backend) ([]byte, error) {
		return b.Document(ctx, url)
	})
}

func metricAttrs(backend string) metric.AddOption {
	return metric.WithAttributes(attribute.String("backend", backend))
}

func run[R any](ctx context.Context, f *BackendFallback, op, subject string, fn func(context.Context, marketdata.Backend) (R, error)) (R, error) {
	ctx, span := observe.StartUpstreamSpan(ctx, op, subject)
	start := time.Now()
	res, err := ExecuteWithResult(f.group, func(b marketdata.Backend) (R, error) {
		return fn(ctx, b)
	})
	f.metrics.RecordUpstream(ctx, op, observe.Status(err), time.Since(start))
	observe.EndSpan(span, err)
	if err != nil {
		observe.Logger(ctx).Debug("upstream request failed", "op", op, "subject", subject, "err", err)
		return res, marketdata.Wrap(op, subject, err)
	}
	return res, nil
}
