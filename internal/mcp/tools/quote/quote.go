// Package quote provides the "get_stock_info" tool: a snapshot of price,
// valuation and company profile for one ticker.
//
// Every field except the symbol is optional. Fields the backend does not
// report are encoded as JSON null, never as 0 or "".
package quote

import (
	"context"

	"github.com/MrWong99/stockmcp/internal/mcp/tools"
	"github.com/MrWong99/stockmcp/pkg/marketdata"
	"github.com/MrWong99/stockmcp/pkg/tool"
)

// Name is the registered tool name.
const Name = "get_stock_info"

// Info is the structured result of get_stock_info.
type Info struct {
	Symbol           string           `json:"symbol"`
	CompanyName      marketdata.Value `json:"company_name"`
	CurrentPrice     marketdata.Value `json:"current_price"`
	MarketCap        marketdata.Value `json:"market_cap"`
	PERatio          marketdata.Value `json:"pe_ratio"`
	DividendYield    marketdata.Value `json:"dividend_yield"`
	FiftyTwoWeekHigh marketdata.Value `json:"52_week_high"`
	FiftyTwoWeekLow  marketdata.Value `json:"52_week_low"`
	Sector           marketdata.Value `json:"sector"`
	Industry         marketdata.Value `json:"industry"`
	Volume           marketdata.Value `json:"volume"`
	AvgVolume        marketdata.Value `json:"avg_volume"`
	Beta             marketdata.Value `json:"beta"`
	BookValue        marketdata.Value `json:"book_value"`
	EPS              marketdata.Value `json:"eps"`
}

// Fields are the backend fields a quote asks for.
var Fields = []string{
	marketdata.FieldLongName,
	marketdata.FieldCurrentPrice,
	marketdata.FieldMarketCap,
	marketdata.FieldTrailingPE,
	marketdata.FieldDividendYield,
	marketdata.FieldFiftyTwoWeekHigh,
	marketdata.FieldFiftyTwoWeekLow,
	marketdata.FieldSector,
	marketdata.FieldIndustry,
	marketdata.FieldVolume,
	marketdata.FieldAverageVolume,
	marketdata.FieldBeta,
	marketdata.FieldBookValue,
	marketdata.FieldTrailingEPS,
}

// FromFetch maps backend fields onto Info.
func FromFetch(symbol string, r marketdata.FetchResult) Info {
	return Info{
		Symbol:           symbol,
		CompanyName:      r.Get(marketdata.FieldLongName),
		CurrentPrice:     r.Get(marketdata.FieldCurrentPrice),
		MarketCap:        r.Get(marketdata.FieldMarketCap),
		PERatio:          r.Get(marketdata.FieldTrailingPE),
		DividendYield:    r.Get(marketdata.FieldDividendYield),
		FiftyTwoWeekHigh: r.Get(marketdata.FieldFiftyTwoWeekHigh),
		FiftyTwoWeekLow:  r.Get(marketdata.FieldFiftyTwoWeekLow),
		Sector:           r.Get(marketdata.FieldSector),
		Industry:         r.Get(marketdata.FieldIndustry),
		Volume:           r.Get(marketdata.FieldVolume),
		AvgVolume:        r.Get(marketdata.FieldAverageVolume),
		Beta:             r.Get(marketdata.FieldBeta),
		BookValue:        r.Get(marketdata.FieldBookValue),
		EPS:              r.Get(marketdata.FieldTrailingEPS),
	}
}

// Descriptor returns the get_stock_info descriptor.
func Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        Name,
		Title:       "Get Stock Information",
		Description: "Get comprehensive stock information for any publicly traded company using its ticker symbol",
		Params: []tool.ParamSpec{
			tool.Ticker("symbol", "Stock ticker symbol (e.g., 'AAPL' for Apple, 'GOOGL' for Google, 'TSLA' for Tesla)"),
		},
		Result: tool.ResultShape{Kind: tool.ShapeStructured},
	}
}

// Tools returns the quote tools served from b.
func Tools(b marketdata.Backend) []tools.Tool {
	return []tools.Tool{{
		Descriptor: Descriptor(),
		Handler: func(ctx context.Context, req tool.Request) (any, error) {
			symbol := req.String("symbol")
			r, err := b.Quote(ctx, symbol, Fields)
			if err != nil {
				return nil, err
			}
			return FromFetch(symbol, r), nil
		},
	}}
}
