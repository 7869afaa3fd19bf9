package fixture_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
	"github.com/MrWong99/stockmcp/pkg/marketdata/fixture"
)

var clock = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func seeded() *fixture.Backend {
	b := fixture.New(fixture.WithClock(clock))
	b.SetHistory("AAPL", []marketdata.Row{
		{Time: day("2024-02-28"), Close: marketdata.Number(3)},
		{Time: day("2024-01-02"), Close: marketdata.Number(1)},
		{Time: day("2024-02-01"), Close: marketdata.Number(2)},
		{Time: day("2023-06-01"), Close: marketdata.Number(0.5)},
	})
	return b
}

func closes(rows []marketdata.Row) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Close.OrZero())
	}
	return out
}

func TestQuote(t *testing.T) {
	t.Parallel()
	b := fixture.New()
	b.SetQuote("AAPL", marketdata.FetchResult{
		marketdata.FieldCurrentPrice: marketdata.Number(150.25),
		marketdata.FieldSector:       marketdata.Text("Technology"),
	})

	got, err := b.Quote(context.Background(), "AAPL", []string{marketdata.FieldCurrentPrice, marketdata.FieldBeta})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d fields, want exactly the 2 requested", len(got))
	}
	if got.Get(marketdata.FieldBeta).Available() {
		t.Error("beta should be unavailable")
	}

	_, err = b.Quote(context.Background(), "MSFT", nil)
	if !errors.Is(err, fixture.ErrUnknownSymbol) {
		t.Errorf("err = %v, want ErrUnknownSymbol", err)
	}
	if !errors.Is(err, marketdata.ErrNotFound) || marketdata.IsUpstreamFailure(err) {
		t.Errorf("unknown symbol should be a not-found answer, got %v", err)
	}
	var ufe *marketdata.UpstreamFetchError
	if !errors.As(err, &ufe) {
		t.Errorf("err = %v, want *UpstreamFetchError", err)
	}
}

func TestHistory_PeriodWindow(t *testing.T) {
	t.Parallel()
	rows, err := seeded().History(context.Background(), "AAPL", marketdata.HistoryQuery{Period: "3mo", Interval: "1d"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	got := closes(rows)
	want := []float64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("closes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("closes = %v, want %v", got, want)
			break
		}
	}
}

func TestHistory_RangeEndExclusive(t *testing.T) {
	t.Parallel()
	q := marketdata.HistoryQuery{Interval: "1d", Start: day("2024-01-02"), End: day("2024-02-28")}
	rows, err := seeded().History(context.Background(), "AAPL", q)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if got := closes(rows); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("closes = %v, want [1 2]", got)
	}
}

func TestHistory_EmptyWindow(t *testing.T) {
	t.Parallel()
	q := marketdata.HistoryQuery{Interval: "1d", Start: day("2020-01-01"), End: day("2020-02-01")}
	rows, err := seeded().History(context.Background(), "AAPL", q)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty non-nil", rows)
	}
}

func TestCallsAndErrors(t *testing.T) {
	t.Parallel()
	b := seeded()
	boom := errors.New("upstream down")
	b.SetError(fixture.OpHistory, boom)

	q := marketdata.HistoryQuery{Interval: "1wk", Start: day("2024-01-01")}
	_, err := b.History(context.Background(), "AAPL", q)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	calls := b.Calls()
	if len(calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(calls))
	}
	if calls[0].Op != fixture.OpHistory || calls[0].Symbol != "AAPL" || calls[0].Query != q {
		t.Errorf("call = %+v", calls[0])
	}

	b.SetError(fixture.OpHistory, nil)
	if _, err := b.History(context.Background(), "AAPL", q); err != nil {
		t.Errorf("after clearing error: %v", err)
	}
	b.Reset()
	if len(b.Calls()) != 0 {
		t.Error("Reset did not clear calls")
	}
}

func TestDocument(t *testing.T) {
	t.Parallel()
	b := fixture.New()
	b.SetDocument("https://example.com/a.pdf", []byte("%PDF"))

	got, err := b.Document(context.Background(), "https://example.com/a.pdf")
	if err != nil || string(got) != "%PDF" {
		t.Fatalf("Document = %q, %v", got, err)
	}
	if _, err := b.Document(context.Background(), "https://example.com/b.pdf"); !errors.Is(err, fixture.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := seeded().History(ctx, "AAPL", marketdata.HistoryQuery{Period: "1y"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sheet.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	yamlDoc := `
quotes:
  AAPL:
    longName: Apple Inc.
    currentPrice: 150.25
    marketCap: 2500000000000
    dividendYield: null
history:
  AAPL:
    - {date: 2024-01-02, open: 187.15, high: 188.44, low: 183.89, close: 185.64, volume: 82488700}
    - {date: "2024-01-03T16:00:00-05:00", close: 184.25}
documents:
  https://example.com/sheet.pdf: sheet.pdf
`
	path := filepath.Join(dir, "fixture.yaml")
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := fixture.Load(path, fixture.WithClock(clock))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	q, err := b.Quote(context.Background(), "AAPL", []string{marketdata.FieldLongName, marketdata.FieldMarketCap, marketdata.FieldDividendYield})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if s, _ := q.Get(marketdata.FieldLongName).AsString(); s != "Apple Inc." {
		t.Errorf("longName = %q", s)
	}
	if f, _ := q.Get(marketdata.FieldMarketCap).Float(); f != 2500000000000 {
		t.Errorf("marketCap = %v", f)
	}
	if q.Get(marketdata.FieldDividendYield).Available() {
		t.Error("null dividendYield should be unavailable")
	}

	rows, err := b.History(context.Background(), "AAPL", marketdata.HistoryQuery{Period: "max", Interval: "1d"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].Open.Available() {
		t.Error("omitted open should be unavailable")
	}
	if got := rows[1].Time.Format(time.DateOnly); got != "2024-01-03" {
		t.Errorf("second row date = %s", got)
	}

	doc, err := b.Document(context.Background(), "https://example.com/sheet.pdf")
	if err != nil || string(doc) != "%PDF-1.4" {
		t.Errorf("Document = %q, %v", doc, err)
	}
}

func TestLoadFromReader_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	_, err := fixture.LoadFromReader(strings.NewReader("quotez: {}\n"), ".")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadFromReader_BadDate(t *testing.T) {
	t.Parallel()
	_, err := fixture.LoadFromReader(strings.NewReader("history:\n  X:\n    - {date: yesterday}\n"), ".")
	if err == nil {
		t.Fatal("expected error for bad date")
	}
}
