// Package fixture provides an in-memory marketdata.Backend.
//
// A Backend serves canned quotes, history rows and documents, either set
// programmatically or loaded from a YAML file (see [Load]). It records every
// call, which makes it the standard fake for tool and server tests, and it
// lets the server run fully offline.
//
// Example:
//
//	b := fixture.New()
//	b.SetQuote("AAPL", marketdata.FetchResult{
//	    marketdata.FieldCurrentPrice: marketdata.Number(150.25),
//	})
//	res, _ := b.Quote(ctx, "AAPL", []string{marketdata.FieldCurrentPrice})
package fixture

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
)

// Ensure Backend implements marketdata.Backend at compile time.
var _ marketdata.Backend = (*Backend)(nil)

// Operation names used in [Call.Op] and [Backend.SetError].
const (
	OpQuote    = "quote"
	OpHistory  = "history"
	OpDocument = "document"
)

var (
	// ErrUnknownSymbol is the cause of the UpstreamFetchError returned for a
	// symbol the fixture knows nothing about. It matches
	// [marketdata.ErrNotFound].
	ErrUnknownSymbol = marketdata.NotFound(errors.New("unknown symbol"))

	// ErrNotFound is the cause returned for an unknown document URL. It
	// matches [marketdata.ErrNotFound].
	ErrNotFound = marketdata.NotFound(errors.New("document not found"))
)

// Call records a single backend invocation.
type Call struct {
	// Op is one of OpQuote, OpHistory or OpDocument.
	Op string

	// Symbol is the ticker, or the URL for OpDocument.
	Symbol string

	// Fields is a copy of the requested quote fields (OpQuote only).
	Fields []string

	// Query is the history query (OpHistory only).
	Query marketdata.HistoryQuery
}

// Backend is an in-memory marketdata.Backend. It is safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	quotes    map[string]marketdata.FetchResult
	history   map[string][]marketdata.Row
	documents map[string][]byte
	errs      map[string]error
	now       func() time.Time

	calls []Call
}

// Option is a functional option for Backend.
type Option func(*Backend)

// WithClock sets the clock used to resolve period aliases and open-ended
// date ranges. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New returns an empty Backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		quotes:    make(map[string]marketdata.FetchResult),
		history:   make(map[string][]marketdata.Row),
		documents: make(map[string][]byte),
		errs:      make(map[string]error),
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SetQuote sets the quote fields served for symbol.
func (b *Backend) SetQuote(symbol string, fields marketdata.FetchResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = maps.Clone(fields)
}

// SetHistory sets the rows served for symbol. Rows are sorted by time.
// A nil or empty slice makes symbol known with no data.
func (b *Backend) SetHistory(symbol string, rows []marketdata.Row) {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, c marketdata.Row) int { return a.Time.Compare(c.Time) })
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history[symbol] = sorted
}

// SetDocument sets the bytes served for url.
func (b *Backend) SetDocument(url string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.documents[url] = slices.Clone(data)
}

// SetError makes every call of op fail with err. A nil err clears it.
func (b *Backend) SetError(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.errs, op)
		return
	}
	b.errs[op] = err
}

// Calls returns a copy of all recorded calls in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// Reset clears the call log.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// Quote implements marketdata.Backend.
func (b *Backend) Quote(ctx context.Context, symbol string, fields []string) (marketdata.FetchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Op: OpQuote, Symbol: symbol, Fields: slices.Clone(fields)})

	if err := b.failure(ctx, OpQuote); err != nil {
		return nil, marketdata.Wrap(OpQuote, symbol, err)
	}
	q, ok := b.quotes[symbol]
	if !ok {
		return nil, marketdata.Wrap(OpQuote, symbol, ErrUnknownSymbol)
	}
	out := make(marketdata.FetchResult, len(fields))
	for _, f := range fields {
		out[f] = q.Get(f)
	}
	return out, nil
}

// History implements marketdata.Backend. Rows are filtered to the query
// window; the interval is not resampled.
func (b *Backend) History(ctx context.Context, symbol string, q marketdata.HistoryQuery) ([]marketdata.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Op: OpHistory, Symbol: symbol, Query: q})

	if err := b.failure(ctx, OpHistory); err != nil {
		return nil, marketdata.Wrap(OpHistory, symbol, err)
	}
	rows, ok := b.history[symbol]
	if !ok {
		return nil, marketdata.Wrap(OpHistory, symbol, ErrUnknownSymbol)
	}

	in := periodFilter(q.Period, b.now())
	if q.HasRange() {
		in = rangeFilter(q.Window(b.now()))
	}
	out := make([]marketdata.Row, 0, len(rows))
	for _, r := range rows {
		if in(r.Time) {
			out = append(out, r)
		}
	}
	return out, nil
}

// rangeFilter accepts [start, end).
func rangeFilter(start, end time.Time) func(time.Time) bool {
	return func(t time.Time) bool { return !t.Before(start) && t.Before(end) }
}

// periodFilter accepts [PeriodStart(period), now].
func periodFilter(period string, now time.Time) func(time.Time) bool {
	start := marketdata.PeriodStart(period, now)
	return func(t time.Time) bool { return !t.Before(start) && !t.After(now) }
}

// Document implements marketdata.Backend.
func (b *Backend) Document(ctx context.Context, url string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Op: OpDocument, Symbol: url})

	if err := b.failure(ctx, OpDocument); err != nil {
		return nil, marketdata.Wrap(OpDocument, url, err)
	}
	data, ok := b.documents[url]
	if !ok {
		return nil, marketdata.Wrap(OpDocument, url, ErrNotFound)
	}
	return slices.Clone(data), nil
}

// failure returns the configured error for op, or the context error.
// Caller must hold b.mu.
func (b *Backend) failure(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.errs[op]
}
