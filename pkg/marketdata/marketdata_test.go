package marketdata_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
)

func TestValue_States(t *testing.T) {
	t.Parallel()

	if marketdata.Unavailable.Available() {
		t.Error("Unavailable reports available")
	}
	var zero marketdata.Value
	if zero.Available() {
		t.Error("zero Value reports available")
	}

	n := marketdata.Number(0)
	if !n.Available() || !n.IsNumber() {
		t.Error("Number(0) must be an available number")
	}
	if f, ok := n.Float(); !ok || f != 0 {
		t.Errorf("Float() = %v, %v", f, ok)
	}

	s := marketdata.Text("")
	if !s.Available() || s.IsNumber() {
		t.Error(`Text("") must be an available string`)
	}
	if _, ok := s.Float(); ok {
		t.Error("Text reports a float")
	}

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if marketdata.Number(f).Available() {
			t.Errorf("Number(%v) should be unavailable", f)
		}
	}
}

func TestValue_JSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		give marketdata.Value
		want string
	}{
		{"unavailable", marketdata.Unavailable, "null"},
		{"float", marketdata.Number(181.25), "181.25"},
		{"large int", marketdata.Number(51234567), "51234567"},
		{"zero", marketdata.Number(0), "0"},
		{"text", marketdata.Text("Technology"), `"Technology"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.give)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(raw) != tt.want {
				t.Errorf("Marshal = %s, want %s", raw, tt.want)
			}
			var back marketdata.Value
			if err := json.Unmarshal(raw, &back); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if back != tt.give {
				t.Errorf("round trip = %v, want %v", back, tt.give)
			}
		})
	}
}

func TestFetchResult_GetMissing(t *testing.T) {
	t.Parallel()
	r := marketdata.FetchResult{marketdata.FieldBeta: marketdata.Number(1.2)}
	if r.Get(marketdata.FieldSector).Available() {
		t.Error("missing field should be unavailable")
	}
	if f, _ := r.Get(marketdata.FieldBeta).Float(); f != 1.2 {
		t.Errorf("beta = %v", f)
	}
}

func TestHistoryQuery_Label(t *testing.T) {
	t.Parallel()
	d := func(s string) time.Time {
		v, _ := time.Parse(time.DateOnly, s)
		return v
	}
	tests := []struct {
		name           string
		q              marketdata.HistoryQuery
		wantLabel      string
		wantResolution string
	}{
		{"period", marketdata.HistoryQuery{Period: "1y", Interval: "1d"}, "1y", "1y"},
		{"range", marketdata.HistoryQuery{Interval: "1d", Start: d("2024-01-01"), End: d("2024-02-01")}, "start=2024-01-01, end=2024-02-01", "custom"},
		{"start only", marketdata.HistoryQuery{Start: d("2024-01-01")}, "start=2024-01-01, end=none", "custom"},
		{"end only", marketdata.HistoryQuery{End: d("2024-02-01")}, "start=none, end=2024-02-01", "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Label(); got != tt.wantLabel {
				t.Errorf("Label() = %q, want %q", got, tt.wantLabel)
			}
			if got := tt.q.Resolution(); got != tt.wantResolution {
				t.Errorf("Resolution() = %q, want %q", got, tt.wantResolution)
			}
		})
	}
}

func TestHistoryQuery_Window(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	s, e := marketdata.HistoryQuery{End: end}.Window(now)
	if !e.Equal(end) || !s.Equal(end.AddDate(0, 0, -30)) {
		t.Errorf("end only: window = %v..%v", s, e)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, e = marketdata.HistoryQuery{Start: start}.Window(now)
	if !s.Equal(start) || !e.Equal(now) {
		t.Errorf("start only: window = %v..%v", s, e)
	}
}

func TestPeriodStart(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	tests := map[string]time.Time{
		"5d":  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		"1mo": time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
		"1y":  time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
		"ytd": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"max": {},
	}
	for period, want := range tests {
		if got := marketdata.PeriodStart(period, now); !got.Equal(want) {
			t.Errorf("PeriodStart(%q) = %v, want %v", period, got, want)
		}
	}
}

func TestBuildHistory_Empty(t *testing.T) {
	t.Parallel()
	h := marketdata.BuildHistory("AAPL", marketdata.HistoryQuery{Period: "1mo"}, nil)
	if h.Bars == nil {
		t.Fatal("Bars is nil, want empty map")
	}
	if len(h.Bars) != 0 {
		t.Errorf("len(Bars) = %d", len(h.Bars))
	}
	raw, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"symbol":"AAPL","resolution":"1mo","period":"1mo","bars":{}}`
	if string(raw) != want {
		t.Errorf("json = %s, want %s", raw, want)
	}
}

func TestBuildHistory_KeysByExchangeDate(t *testing.T) {
	t.Parallel()
	ny := time.FixedZone("EST", -5*3600)
	rows := []marketdata.Row{
		// 2024-01-02 21:00 UTC is still Jan 2 in New York.
		{Time: time.Date(2024, 1, 2, 16, 0, 0, 0, ny), Close: marketdata.Number(185.64)},
		// 2024-01-04 02:00 UTC would be Jan 4 in UTC but is Jan 3 in New York.
		{Time: time.Date(2024, 1, 3, 21, 0, 0, 0, ny), Close: marketdata.Number(184.25), Volume: marketdata.Number(58414500)},
	}
	h := marketdata.BuildHistory("AAPL", marketdata.HistoryQuery{Period: "5d", Interval: "1d"}, rows)

	if len(h.Bars) != 2 {
		t.Fatalf("len(Bars) = %d, want 2: %v", len(h.Bars), h.Bars)
	}
	bar, ok := h.Bars["2024-01-03"]
	if !ok {
		t.Fatalf("missing 2024-01-03 in %v", h.Bars)
	}
	if f, _ := bar.Close.Float(); f != 184.25 {
		t.Errorf("close = %v", f)
	}
	if bar.AdjClose.Available() || bar.Open.Available() {
		t.Error("fields the upstream did not report must stay unavailable")
	}
}

func TestBuildHistory_DuplicateDateLastWins(t *testing.T) {
	t.Parallel()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := []marketdata.Row{
		{Time: day.Add(9 * time.Hour), Close: marketdata.Number(1)},
		{Time: day.Add(15 * time.Hour), Close: marketdata.Number(2)},
	}
	h := marketdata.BuildHistory("X", marketdata.HistoryQuery{Period: "1d", Interval: "1h"}, rows)
	if len(h.Bars) != 1 {
		t.Fatalf("len(Bars) = %d, want 1", len(h.Bars))
	}
	if f, _ := h.Bars["2024-01-02"].Close.Float(); f != 2 {
		t.Errorf("close = %v, want 2", f)
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()
	if marketdata.Wrap("quote", "AAPL", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	cause := context.DeadlineExceeded
	err := marketdata.Wrap("quote", "AAPL", cause)
	var ufe *marketdata.UpstreamFetchError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want *UpstreamFetchError", err)
	}
	if ufe.Op != "quote" || ufe.Symbol != "AAPL" {
		t.Errorf("ufe = %+v", ufe)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}

	again := marketdata.Wrap("history", "MSFT", fmt.Errorf("outer: %w", err))
	if !errors.As(again, &ufe) || ufe.Op != "quote" {
		t.Errorf("rewrapped error lost its original op: %v", again)
	}
}

func TestIsUpstreamFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("No data found, symbol may be delisted")
	notFound := marketdata.Wrap("history", "ZZZZ", marketdata.NotFound(cause))
	if notFound.Error() != "marketdata: history ZZZZ: No data found, symbol may be delisted" {
		t.Errorf("message changed: %q", notFound.Error())
	}
	if !errors.Is(notFound, marketdata.ErrNotFound) || !errors.Is(notFound, cause) {
		t.Errorf("chain lost: %v", notFound)
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", notFound, false},
		{"rejected", marketdata.Rejected(errors.New("invalid interval")), false},
		{"canceled", marketdata.Wrap("quote", "AAPL", context.Canceled), false},
		{"deadline", marketdata.Wrap("quote", "AAPL", context.DeadlineExceeded), true},
		{"status 503", errors.New("unexpected status 503"), true},
	}
	for _, tc := range tests {
		if got := marketdata.IsUpstreamFailure(tc.err); got != tc.want {
			t.Errorf("%s: IsUpstreamFailure = %v, want %v", tc.name, got, tc.want)
		}
	}
}
