package marketdata

import (
	"fmt"
	"time"
)

// Periods lists the relative period aliases a history query accepts.
var Periods = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// Intervals lists the bar intervals a history query accepts.
var Intervals = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo"}

// CustomResolution is reported as the resolution of a date-range query.
const CustomResolution = "custom"

// openEndedLookback is how far back an end-only date range reaches.
const openEndedLookback = 30 * 24 * time.Hour

// HistoryQuery selects a window of bars. A date range (Start and/or End set)
// takes precedence over Period; Interval applies in both modes.
//
// Start is inclusive, End is exclusive. Zero times mean "not supplied".
type HistoryQuery struct {
	Period   string
	Interval string
	Start    time.Time
	End      time.Time
}

// HasRange reports whether either date bound is set.
func (q HistoryQuery) HasRange() bool {
	return !q.Start.IsZero() || !q.End.IsZero()
}

// Resolution returns the period alias, or [CustomResolution] for a date range.
func (q HistoryQuery) Resolution() string {
	if q.HasRange() {
		return CustomResolution
	}
	return q.Period
}

// Label describes the window that was actually requested: the period alias,
// or "start=<date|none>, end=<date|none>" for a date range.
func (q HistoryQuery) Label() string {
	if !q.HasRange() {
		return q.Period
	}
	return fmt.Sprintf("start=%s, end=%s", dateOrNone(q.Start), dateOrNone(q.End))
}

// Window resolves the date range against now. A missing start reaches back
// 30 days from end; a missing end is now. It must only be called when
// [HistoryQuery.HasRange] is true.
func (q HistoryQuery) Window(now time.Time) (start, end time.Time) {
	start, end = q.Start, q.End
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.Add(-openEndedLookback)
	}
	return start, end
}

// PeriodStart returns the earliest instant covered by a period alias ending
// at now. "max" and unknown aliases return the zero time.
func PeriodStart(period string, now time.Time) time.Time {
	switch period {
	case "1d":
		return now.AddDate(0, 0, -1)
	case "5d":
		return now.AddDate(0, 0, -5)
	case "1mo":
		return now.AddDate(0, -1, 0)
	case "3mo":
		return now.AddDate(0, -3, 0)
	case "6mo":
		return now.AddDate(0, -6, 0)
	case "1y":
		return now.AddDate(-1, 0, 0)
	case "2y":
		return now.AddDate(-2, 0, 0)
	case "5y":
		return now.AddDate(-5, 0, 0)
	case "10y":
		return now.AddDate(-10, 0, 0)
	case "ytd":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}

func dateOrNone(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(time.DateOnly)
}

// Row is one upstream record. Time carries the exchange's location so that
// the calendar date is the trading date, not the UTC date.
type Row struct {
	Time     time.Time
	Open     Value
	High     Value
	Low      Value
	Close    Value
	AdjClose Value
	Volume   Value
}

// Bar is one OHLCV record for a single date. Every field is independently
// optional. Close is unadjusted; AdjClose is only set when the upstream
// reports it.
type Bar struct {
	Open     Value `json:"open"`
	High     Value `json:"high"`
	Low      Value `json:"low"`
	Close    Value `json:"close"`
	AdjClose Value `json:"adj_close"`
	Volume   Value `json:"volume"`
}

// HistoricalPrices is a series of bars keyed by YYYY-MM-DD.
type HistoricalPrices struct {
	Symbol     string         `json:"symbol"`
	Resolution string         `json:"resolution"`
	Period     string         `json:"period"`
	Bars       map[string]Bar `json:"bars"`
}

// BuildHistory keys rows by calendar date in each row's own location. When
// two rows fall on the same date the later one wins. Zero rows produce an
// empty, non-nil Bars map.
func BuildHistory(symbol string, q HistoryQuery, rows []Row) HistoricalPrices {
	bars := make(map[string]Bar, len(rows))
	for _, r := range rows {
		bars[r.Time.Format(time.DateOnly)] = Bar{
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
		}
	}
	return HistoricalPrices{
		Symbol:     symbol,
		Resolution: q.Resolution(),
		Period:     q.Label(),
		Bars:       bars,
	}
}
