// Package documents provides the document tools:
//   - "get_factsheet"  downloads a PDF factsheet for a ticker.
//   - "get_disclaimer" returns the static data disclaimer as markdown.
package documents

import (
	"context"
	_ "embed"

	"github.com/MrWong99/stockmcp/internal/mcp/tools"
	"github.com/MrWong99/stockmcp/pkg/marketdata"
	"github.com/MrWong99/stockmcp/pkg/tool"
)

// Registered tool names.
const (
	FactsheetName  = "get_factsheet"
	DisclaimerName = "get_disclaimer"
)

// DefaultFactsheetURL is served for every ticker unless configured otherwise.
const DefaultFactsheetURL = "https://www.adobe.com/support/products/enterprise/knowledgecenter/media/c4611_sample_explain.pdf"

//go:embed disclaimer.md
var disclaimer string

// Disclaimer returns the disclaimer markdown.
func Disclaimer() string { return disclaimer }

// FactsheetDescriptor returns the get_factsheet descriptor.
func FactsheetDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        FactsheetName,
		Title:       "Get Stock Factsheet",
		Description: "Download the PDF factsheet for a stock ticker symbol.",
		Params: []tool.ParamSpec{
			tool.Ticker("symbol", "Stock ticker symbol (e.g., 'AAPL' for Apple, 'GOOGL' for Google, 'TSLA' for Tesla)"),
		},
		Result: tool.ResultShape{
			Kind:         tool.ShapeResource,
			MediaType:    "application/pdf",
			URIPrefix:    "ui://data/factsheets/",
			SubjectParam: "symbol",
			URISuffix:    ".pdf",
		},
	}
}

// DisclaimerDescriptor returns the get_disclaimer descriptor.
func DisclaimerDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        DisclaimerName,
		Title:       "Get Stock Data Disclaimer",
		Description: "Return the disclaimer that applies to all stock data served by this server, as markdown.",
		Result: tool.ResultShape{
			Kind:      tool.ShapeResource,
			MediaType: "text/markdown",
			URIPrefix: "ui://data/disclaimer.md",
		},
	}
}

// Tools returns the document tools. factsheetURL is fetched through b for
// every ticker; an empty URL selects DefaultFactsheetURL.
func Tools(b marketdata.Backend, factsheetURL string) []tools.Tool {
	if factsheetURL == "" {
		factsheetURL = DefaultFactsheetURL
	}
	return []tools.Tool{
		{
			Descriptor: FactsheetDescriptor(),
			Handler: func(ctx context.Context, _ tool.Request) (any, error) {
				return b.Document(ctx, factsheetURL)
			},
		},
		{
			Descriptor: DisclaimerDescriptor(),
			Handler: func(context.Context, tool.Request) (any, error) {
				return disclaimer, nil
			},
		},
	}
}
