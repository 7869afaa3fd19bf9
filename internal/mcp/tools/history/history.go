// Package history provides the "get_historical_prices" tool and the window
// parameters it shares with the chart tool.
//
// A window is either a relative period alias ("1mo", "ytd", ...) or an
// explicit date range. Supplying either range bound suppresses the period;
// the interval applies in both modes.
package history

import (
	"context"

	"github.com/MrWong99/stockmcp/internal/mcp/tools"
	"github.com/MrWong99/stockmcp/pkg/marketdata"
	"github.com/MrWong99/stockmcp/pkg/tool"
)

// Name is the registered tool name.
const Name = "get_historical_prices"

// WindowParams returns the period, interval, start and end parameters with
// the given default period.
func WindowParams(defaultPeriod string) []tool.ParamSpec {
	return []tool.ParamSpec{
		{
			Name:        "period",
			Type:        tool.TypeEnum,
			Description: "Period: 1d,5d,1mo,3mo,6mo,1y,2y,5y,10y,ytd,max. Default: " + defaultPeriod,
			Default:     defaultPeriod,
			Allowed:     marketdata.Periods,
		},
		{
			Name:        "interval",
			Type:        tool.TypeEnum,
			Description: "Interval: 1m,2m,5m,15m,30m,60m,90m,1h,1d,5d,1wk,1mo,3mo. Default: 1d",
			Default:     "1d",
			Allowed:     marketdata.Intervals,
		},
		{
			Name:        "start",
			Type:        tool.TypeDate,
			Description: "Start date (YYYY-MM-DD), inclusive. Overrides period if specified.",
		},
		{
			Name:        "end",
			Type:        tool.TypeDate,
			Description: "End date (YYYY-MM-DD), exclusive. Used with start date.",
		},
	}
}

// WindowPrecedence makes a date range override the period alias.
var WindowPrecedence = []tool.Precedence{{When: []string{"start", "end"}, Suppress: []string{"period"}}}

// WindowRanges requires end to follow start when both are given.
var WindowRanges = []tool.DateRange{{Start: "start", End: "end"}}

// QueryFromRequest builds the backend query from a validated request.
func QueryFromRequest(req tool.Request) marketdata.HistoryQuery {
	q := marketdata.HistoryQuery{
		Period:   req.String("period"),
		Interval: req.String("interval"),
	}
	q.Start, _ = req.Date("start")
	q.End, _ = req.Date("end")
	return q
}

// Descriptor returns the get_historical_prices descriptor.
func Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:  Name,
		Title: "Get Historical Price Data",
		Description: "Return historical OHLCV data for a stock symbol using flexible parameters " +
			"(period, interval, start, end).",
		Params: append([]tool.ParamSpec{
			tool.Ticker("symbol", "Stock ticker symbol (e.g., AAPL, GOOGL, TSLA)"),
		}, WindowParams("1y")...),
		Result:     tool.ResultShape{Kind: tool.ShapeStructured},
		Precedence: WindowPrecedence,
		Ranges:     WindowRanges,
	}
}

// Tools returns the history tools served from b.
func Tools(b marketdata.Backend) []tools.Tool {
	return []tools.Tool{{
		Descriptor: Descriptor(),
		Handler: func(ctx context.Context, req tool.Request) (any, error) {
			symbol := req.String("symbol")
			q := QueryFromRequest(req)
			rows, err := b.History(ctx, symbol, q)
			if err != nil {
				return nil, err
			}
			return marketdata.BuildHistory(symbol, q, rows), nil
		},
	}}
}
