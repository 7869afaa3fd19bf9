package yahoo

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
)

// History implements marketdata.Backend using the v8 chart endpoint.
//
// A date range is sent as period1/period2 (start inclusive, end exclusive);
// otherwise the period alias is sent as range. Row times are placed in the
// exchange's time zone so that bars land on their trading date.
func (c *Client) History(ctx context.Context, symbol string, hq marketdata.HistoryQuery) ([]marketdata.Row, error) {
	q := url.Values{}
	q.Set("interval", hq.Interval)
	q.Set("includeAdjustedClose", "true")
	if hq.HasRange() {
		start, end := hq.Window(c.now())
		q.Set("period1", strconv.FormatInt(start.Unix(), 10))
		q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	} else {
		q.Set("range", hq.Period)
	}

	body, status, err := c.apiGet(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q)
	if err != nil {
		return nil, marketdata.Wrap("history", symbol, err)
	}

	doc := gjson.ParseBytes(body)
	if e := doc.Get("chart.error"); apiError(e) != "" || status != http.StatusOK {
		return nil, marketdata.Wrap("history", symbol, answerErr(status, e))
	}
	result := doc.Get("chart.result.0")
	if !result.Exists() {
		return nil, marketdata.Wrap("history", symbol, marketdata.NotFound(errNoData))
	}
	return parseChart(result), nil
}

// parseChart turns one chart result into rows. A result without timestamps
// is an empty window and yields no rows.
func parseChart(result gjson.Result) []marketdata.Row {
	stamps := result.Get("timestamp").Array()
	if len(stamps) == 0 {
		return []marketdata.Row{}
	}

	loc := exchangeLocation(result.Get("meta"))
	quote := result.Get("indicators.quote.0")
	open := quote.Get("open").Array()
	high := quote.Get("high").Array()
	low := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volume := quote.Get("volume").Array()
	adj := result.Get("indicators.adjclose.0.adjclose").Array()

	rows := make([]marketdata.Row, 0, len(stamps))
	for i, ts := range stamps {
		rows = append(rows, marketdata.Row{
			Time:     time.Unix(ts.Int(), 0).In(loc),
			Open:     at(open, i),
			High:     at(high, i),
			Low:      at(low, i),
			Close:    at(closes, i),
			AdjClose: at(adj, i),
			Volume:   at(volume, i),
		})
	}
	return rows
}

// at returns the numeric element i of a series, or Unavailable when the
// series is short or the element is null.
func at(series []gjson.Result, i int) marketdata.Value {
	if i >= len(series) || series[i].Type != gjson.Number {
		return marketdata.Unavailable
	}
	return marketdata.Number(series[i].Float())
}

// exchangeLocation prefers the IANA zone named in the chart metadata and
// falls back to a fixed zone built from gmtoffset.
func exchangeLocation(meta gjson.Result) *time.Location {
	if name := meta.Get("exchangeTimezoneName").String(); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	abbr := meta.Get("timezone").String()
	if abbr == "" {
		abbr = "UTC"
	}
	return time.FixedZone(abbr, int(meta.Get("gmtoffset").Int()))
}
