package yahoo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
	"github.com/MrWong99/stockmcp/pkg/marketdata/yahoo"
)

const quoteSummaryBody = `{
  "quoteSummary": {
    "result": [{
      "price": {
        "longName": "Apple Inc.",
        "marketCap": {"raw": 2500000000000, "fmt": "2.5T"},
        "regularMarketPrice": {"raw": 150.1, "fmt": "150.10"}
      },
      "summaryDetail": {
        "trailingPE": {"raw": 28.5, "fmt": "28.50"},
        "dividendYield": {},
        "fiftyTwoWeekHigh": {"raw": 182.94},
        "fiftyTwoWeekLow": {"raw": 124.17},
        "volume": {"raw": 45000000},
        "averageVolume": {"raw": 50000000},
        "beta": {"raw": 1.2}
      },
      "assetProfile": {"sector": "Technology", "industry": "Consumer Electronics"},
      "defaultKeyStatistics": {"bookValue": {"raw": 4.25}, "trailingEps": null},
      "financialData": {"currentPrice": {"raw": 150.25, "fmt": "150.25"}}
    }],
    "error": null
  }
}`

const chartBody = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "gmtoffset": -18000, "timezone": "EST", "exchangeTimezoneName": "Not/AZone"},
      "timestamp": [1704205800, 1704292200, 1704378600],
      "indicators": {
        "quote": [{
          "open":   [187.15, 184.22, null],
          "high":   [188.44, 185.88, 183.09],
          "low":    [183.89, 183.43, 180.88],
          "close":  [185.64, 184.25, 181.91],
          "volume": [82488700, 58414500, 71983600]
        }],
        "adjclose": [{"adjclose": [184.94, 183.55, 181.22]}]
      }
    }],
    "error": null
  }
}`

// fakeYahoo serves the crumb handshake plus canned quoteSummary and chart
// bodies, recording the last query string of each API call.
type fakeYahoo struct {
	quoteBody   string
	quoteStatus int
	chartBody   string
	chartStatus int

	crumbCalls atomic.Int32
	lastQuery  atomic.Value
}

func (f *fakeYahoo) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cookie", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "session", Path: "/"})
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		f.crumbCalls.Add(1)
		if _, err := r.Cookie("A3"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("abc123"))
	})
	mux.HandleFunc("GET /v10/finance/quoteSummary/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery.Store(r.URL.RawQuery)
		w.WriteHeader(orOK(f.quoteStatus))
		_, _ = w.Write([]byte(f.quoteBody))
	})
	mux.HandleFunc("GET /v8/finance/chart/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery.Store(r.URL.RawQuery)
		w.WriteHeader(orOK(f.chartStatus))
		_, _ = w.Write([]byte(f.chartBody))
	})
	mux.HandleFunc("GET /docs/sample.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 sample"))
	})
	return mux
}

func orOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

func newClient(t *testing.T, f *fakeYahoo) (*yahoo.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := yahoo.New(
		yahoo.WithBaseURL(srv.URL+"/"),
		yahoo.WithCookieURL(srv.URL+"/cookie"),
		yahoo.WithTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

var allFields = []string{
	marketdata.FieldLongName, marketdata.FieldCurrentPrice, marketdata.FieldMarketCap,
	marketdata.FieldTrailingPE, marketdata.FieldDividendYield, marketdata.FieldFiftyTwoWeekHigh,
	marketdata.FieldFiftyTwoWeekLow, marketdata.FieldSector, marketdata.FieldIndustry,
	marketdata.FieldVolume, marketdata.FieldAverageVolume, marketdata.FieldBeta,
	marketdata.FieldBookValue, marketdata.FieldTrailingEPS,
}

// ─── Quote ───────────────────────────────────────────────────────────────────

func TestQuote_MapsFields(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{quoteBody: quoteSummaryBody}
	c, _ := newClient(t, f)

	got, err := c.Quote(context.Background(), "AAPL", allFields)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(got) != len(allFields) {
		t.Errorf("got %d fields, want %d", len(got), len(allFields))
	}

	wantNum := map[string]float64{
		marketdata.FieldCurrentPrice:     150.25,
		marketdata.FieldMarketCap:        2500000000000,
		marketdata.FieldTrailingPE:       28.5,
		marketdata.FieldFiftyTwoWeekHigh: 182.94,
		marketdata.FieldFiftyTwoWeekLow:  124.17,
		marketdata.FieldVolume:           45000000,
		marketdata.FieldAverageVolume:    50000000,
		marketdata.FieldBeta:             1.2,
		marketdata.FieldBookValue:        4.25,
	}
	for field, want := range wantNum {
		if f, ok := got.Get(field).Float(); !ok || f != want {
			t.Errorf("%s = %v (%v), want %v", field, f, ok, want)
		}
	}
	if s, _ := got.Get(marketdata.FieldLongName).AsString(); s != "Apple Inc." {
		t.Errorf("longName = %q", s)
	}
	if s, _ := got.Get(marketdata.FieldSector).AsString(); s != "Technology" {
		t.Errorf("sector = %q", s)
	}

	// {} and null upstream values are unavailable, never zero.
	for _, field := range []string{marketdata.FieldDividendYield, marketdata.FieldTrailingEPS} {
		if got.Get(field).Available() {
			t.Errorf("%s should be unavailable, got %v", field, got.Get(field))
		}
	}
}

func TestQuote_SendsCrumbOnce(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{quoteBody: quoteSummaryBody}
	c, _ := newClient(t, f)

	for range 3 {
		if _, err := c.Quote(context.Background(), "AAPL", allFields[:1]); err != nil {
			t.Fatalf("Quote: %v", err)
		}
	}
	if n := f.crumbCalls.Load(); n != 1 {
		t.Errorf("crumb fetched %d times, want 1", n)
	}
	q, _ := f.lastQuery.Load().(string)
	if !strings.Contains(q, "crumb=abc123") {
		t.Errorf("query %q lacks crumb", q)
	}
	if !strings.Contains(q, "modules=price%2CsummaryDetail") {
		t.Errorf("query %q lacks modules", q)
	}
}

func TestQuote_UnknownSymbol(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{
		quoteStatus: http.StatusNotFound,
		quoteBody:   `{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found for symbol: ZZZZ"}}}`,
	}
	c, _ := newClient(t, f)

	_, err := c.Quote(context.Background(), "ZZZZ", allFields)
	var ufe *marketdata.UpstreamFetchError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want *UpstreamFetchError", err)
	}
	if ufe.Op != "quote" || ufe.Symbol != "ZZZZ" {
		t.Errorf("ufe = %+v", ufe)
	}
	if !strings.Contains(err.Error(), "Quote not found") {
		t.Errorf("err = %q, want upstream description", err)
	}
	if !errors.Is(err, marketdata.ErrNotFound) || marketdata.IsUpstreamFailure(err) {
		t.Errorf("unknown symbol should be a not-found answer, got %v", err)
	}
}

func TestQuote_ServerError(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{quoteStatus: http.StatusBadGateway, quoteBody: "bad gateway"}
	c, _ := newClient(t, f)

	_, err := c.Quote(context.Background(), "AAPL", allFields)
	var ufe *marketdata.UpstreamFetchError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want *UpstreamFetchError", err)
	}
	if !marketdata.IsUpstreamFailure(err) {
		t.Errorf("502 should count as an upstream failure: %v", err)
	}
}

func TestQuote_RejectedRequest(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{
		quoteStatus: http.StatusBadRequest,
		quoteBody:   `{"quoteSummary":{"result":null,"error":{"code":"Bad Request","description":"Invalid Crumb"}}}`,
	}
	c, _ := newClient(t, f)

	_, err := c.Quote(context.Background(), "AAPL", allFields)
	if !errors.Is(err, marketdata.ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
}

func TestQuote_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := yahoo.New(yahoo.WithBaseURL(srv.URL), yahoo.WithCookieURL(""))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Quote(context.Background(), "AAPL", allFields)
	var ufe *marketdata.UpstreamFetchError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want *UpstreamFetchError", err)
	}
}

func TestQuote_HangingCrumbDoesNotSerialize(t *testing.T) {
	t.Parallel()
	var crumbCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		crumbCalls.Add(1)
		<-r.Context().Done()
	})
	mux.HandleFunc("GET /v10/finance/quoteSummary/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(quoteSummaryBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := yahoo.New(
		yahoo.WithBaseURL(srv.URL),
		yahoo.WithCookieURL(""),
		yahoo.WithTimeout(200*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := c.Quote(context.Background(), "AAPL", allFields[:1])
			errs <- err
		}()
	}
	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("Quote: %v", err)
		}
	}

	start := time.Now()
	if _, err := c.Quote(context.Background(), "AAPL", allFields[:1]); err != nil {
		t.Fatalf("Quote after failed handshake: %v", err)
	}
	if d := time.Since(start); d > 150*time.Millisecond {
		t.Errorf("quote after failed handshake took %v, want no new handshake", d)
	}
	if n := crumbCalls.Load(); n != 1 {
		t.Errorf("crumb endpoint hit %d times, want 1", n)
	}
}

// ─── History ─────────────────────────────────────────────────────────────────

func TestHistory_ParsesRows(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{chartBody: chartBody}
	c, _ := newClient(t, f)

	rows, err := c.History(context.Background(), "AAPL", marketdata.HistoryQuery{Period: "5d", Interval: "1d"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	wantDates := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	for i, r := range rows {
		if got := r.Time.Format(time.DateOnly); got != wantDates[i] {
			t.Errorf("row %d date = %s, want %s", i, got, wantDates[i])
		}
	}
	if f, _ := rows[0].AdjClose.Float(); f != 184.94 {
		t.Errorf("adj close = %v", f)
	}
	if f, _ := rows[1].Volume.Float(); f != 58414500 {
		t.Errorf("volume = %v", f)
	}
	if rows[2].Open.Available() {
		t.Error("null open should be unavailable")
	}

	q, _ := f.lastQuery.Load().(string)
	if !strings.Contains(q, "range=5d") || !strings.Contains(q, "interval=1d") || strings.Contains(q, "period1") {
		t.Errorf("query = %q", q)
	}
}

func TestHistory_DateRangeOverridesPeriod(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{chartBody: chartBody}
	c, _ := newClient(t, f)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.History(context.Background(), "AAPL", marketdata.HistoryQuery{Interval: "1wk", Start: start, End: end})
	if err != nil {
		t.Fatalf("History: %v", err)
	}

	q, _ := f.lastQuery.Load().(string)
	for _, want := range []string{"period1=1704067200", "period2=1706745600", "interval=1wk"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q lacks %s", q, want)
		}
	}
	if strings.Contains(q, "range=") {
		t.Errorf("query %q carries a period alias", q)
	}
}

func TestHistory_EmptyWindow(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{chartBody: `{"chart":{"result":[{"meta":{"gmtoffset":0},"indicators":{"quote":[{}]}}],"error":null}}`}
	c, _ := newClient(t, f)

	rows, err := c.History(context.Background(), "AAPL", marketdata.HistoryQuery{Period: "1d", Interval: "1m"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty non-nil", rows)
	}
}

func TestHistory_UpstreamError(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{
		chartStatus: http.StatusNotFound,
		chartBody:   `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`,
	}
	c, _ := newClient(t, f)

	_, err := c.History(context.Background(), "ZZZZ", marketdata.HistoryQuery{Period: "1y", Interval: "1d"})
	var ufe *marketdata.UpstreamFetchError
	if !errors.As(err, &ufe) || ufe.Op != "history" {
		t.Fatalf("err = %v, want history UpstreamFetchError", err)
	}
	if !errors.Is(err, marketdata.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ─── Document ────────────────────────────────────────────────────────────────

func TestDocument(t *testing.T) {
	t.Parallel()
	f := &fakeYahoo{}
	c, srv := newClient(t, f)

	body, err := c.Document(context.Background(), srv.URL+"/docs/sample.pdf")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if string(body) != "%PDF-1.4 sample" {
		t.Errorf("body = %q", body)
	}

	_, err = c.Document(context.Background(), srv.URL+"/docs/missing.pdf")
	var ufe *marketdata.UpstreamFetchError
	if !errors.As(err, &ufe) || ufe.Op != "document" {
		t.Fatalf("err = %v, want document UpstreamFetchError", err)
	}
	if !errors.Is(err, marketdata.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNew_EmptyBaseURL(t *testing.T) {
	t.Parallel()
	if _, err := yahoo.New(yahoo.WithBaseURL("")); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}
