// Package marketdata defines the Backend interface for market-data sources
// and the vendor-neutral values they return.
//
// A backend answers three questions: what is known about a ticker right now
// ([Backend.Quote]), what did it trade at over a window ([Backend.History]),
// and what are the bytes behind a document URL ([Backend.Document]).
// Upstream data is routinely partial. Every scalar is therefore a [Value],
// which can be explicitly unavailable instead of silently zero.
//
// Backends do not retry. Failures surface as [*UpstreamFetchError] so that
// callers can tell upstream trouble apart from their own mistakes.
//
// Implementations must be safe for concurrent use.
package marketdata

import (
	"context"
	"errors"
	"fmt"
)

// Quote field names understood by every backend.
const (
	FieldLongName         = "longName"
	FieldCurrentPrice     = "currentPrice"
	FieldMarketCap        = "marketCap"
	FieldTrailingPE       = "trailingPE"
	FieldDividendYield    = "dividendYield"
	FieldFiftyTwoWeekHigh = "fiftyTwoWeekHigh"
	FieldFiftyTwoWeekLow  = "fiftyTwoWeekLow"
	FieldSector           = "sector"
	FieldIndustry         = "industry"
	FieldVolume           = "volume"
	FieldAverageVolume    = "averageVolume"
	FieldBeta             = "beta"
	FieldBookValue        = "bookValue"
	FieldTrailingEPS      = "trailingEps"
)

// Backend is the abstraction over a market-data source.
type Backend interface {
	// Quote returns the requested fields for symbol. The result has one entry
	// per requested field; fields the source lacks are Unavailable.
	Quote(ctx context.Context, symbol string, fields []string) (FetchResult, error)

	// History returns the rows of symbol inside the window selected by q, in
	// chronological order. An empty window is not an error.
	History(ctx context.Context, symbol string, q HistoryQuery) ([]Row, error)

	// Document downloads the document at url.
	Document(ctx context.Context, url string) ([]byte, error)
}

// UpstreamFetchError reports that a backend could not be reached or answered
// with an error. It is never retried internally.
type UpstreamFetchError struct {
	// Op is the backend operation: "quote", "history" or "document".
	Op string

	// Symbol is the ticker or URL the operation was about.
	Symbol string

	Err error
}

// Error implements error.
func (e *UpstreamFetchError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("marketdata: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("marketdata: %s %s: %v", e.Op, e.Symbol, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// Wrap wraps err as an [*UpstreamFetchError]. It returns nil for a nil err
// and leaves an existing UpstreamFetchError untouched.
func Wrap(op, symbol string, err error) error {
	if err == nil {
		return nil
	}
	var ufe *UpstreamFetchError
	if errors.As(err, &ufe) {
		return err
	}
	return &UpstreamFetchError{Op: op, Symbol: symbol, Err: err}
}

var (
	// ErrNotFound marks an answer saying the subject does not exist upstream:
	// an unknown ticker, a delisted symbol or a missing document.
	ErrNotFound = errors.New("not found")

	// ErrRejected marks an answer saying the request itself was invalid.
	ErrRejected = errors.New("request rejected")
)

// answerError is an error the upstream answered with, as opposed to a
// failure to get an answer at all. Its message is the cause's message.
type answerError struct {
	kind error
	err  error
}

func (e *answerError) Error() string   { return e.err.Error() }
func (e *answerError) Unwrap() []error { return []error{e.kind, e.err} }

// NotFound marks err as matching [ErrNotFound] without changing its message.
func NotFound(err error) error { return &answerError{kind: ErrNotFound, err: err} }

// Rejected marks err as matching [ErrRejected] without changing its message.
func Rejected(err error) error { return &answerError{kind: ErrRejected, err: err} }

// IsUpstreamFailure reports whether err says the backend is unhealthy.
// Answers marked with [NotFound] or [Rejected] and cancellation by the
// caller do not; everything else does.
func IsUpstreamFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrRejected),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
