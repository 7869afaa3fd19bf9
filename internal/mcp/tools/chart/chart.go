// Package chart provides the "render_stock_chart" tool, which turns a
// history window into a self-contained interactive HTML page.
//
// Rendering is a pure function ([Render]) of a [Dataset] and a [Kind]. It
// performs no I/O. The page loads D3 from a CDN when opened.
package chart

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/MrWong99/stockmcp/internal/mcp/tools"
	"github.com/MrWong99/stockmcp/internal/mcp/tools/history"
	"github.com/MrWong99/stockmcp/pkg/marketdata"
	"github.com/MrWong99/stockmcp/pkg/tool"
)

// Name is the registered tool name.
const Name = "render_stock_chart"

// Kind selects the chart style.
type Kind string

const (
	KindLine        Kind = "line"
	KindCandlestick Kind = "candlestick"
	KindArea        Kind = "area"
)

// Kinds lists every supported chart style.
var Kinds = []Kind{KindLine, KindCandlestick, KindArea}

// Point is one plotted bar. Missing upstream values are plotted as 0.
type Point struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// placeholder is plotted when a window has no data so that the chart never
// gets an empty domain.
var placeholder = Point{Date: "2024-01-01", Open: 100, High: 100, Low: 100, Close: 100, Volume: 0}

// Dataset is the input of [Render].
type Dataset struct {
	Symbol string
	Period string
	Points []Point
}

// Stats summarises a dataset for the page header.
type Stats struct {
	First     float64
	Last      float64
	Change    float64
	ChangePct float64
	Points    int
}

// Up reports whether the price did not fall over the window.
func (s Stats) Up() bool { return s.Change >= 0 }

// ChangeText formats the change as "+1.23 (+0.5%)".
func (s Stats) ChangeText() string {
	return fmt.Sprintf("%+.2f (%+.1f%%)", s.Change, s.ChangePct)
}

// Summarize computes first/last close and the change between them. The
// percentage is 0 when the first close is 0. points must not be empty.
func Summarize(points []Point) Stats {
	first, last := points[0].Close, points[len(points)-1].Close
	s := Stats{First: first, Last: last, Change: last - first, Points: len(points)}
	if first != 0 {
		s.ChangePct = (last - first) / first * 100
	}
	return s
}

// PointsFromRows converts backend rows into chart points, in order.
func PointsFromRows(rows []marketdata.Row) []Point {
	out := make([]Point, 0, len(rows))
	for _, r := range rows {
		out = append(out, Point{
			Date:   r.Time.Format(time.DateOnly),
			Open:   r.Open.OrZero(),
			High:   r.High.OrZero(),
			Low:    r.Low.OrZero(),
			Close:  r.Close.OrZero(),
			Volume: int64(r.Volume.OrZero()),
		})
	}
	return out
}

//go:embed chart.html.tmpl
var pageSource string

var page = template.Must(template.New("chart").Parse(pageSource))

type pageData struct {
	Symbol   string
	Period   string
	Kind     Kind
	Stats    Stats
	DataJSON string
}

// Render produces the HTML page for ds. An empty dataset is replaced by a
// single placeholder point dated 2024-01-01.
func Render(ds Dataset, kind Kind) (string, error) {
	switch kind {
	case KindLine, KindCandlestick, KindArea:
	default:
		return "", fmt.Errorf("chart: unknown chart kind %q", kind)
	}

	points := ds.Points
	if len(points) == 0 {
		points = []Point{placeholder}
	}
	data, err := json.Marshal(points)
	if err != nil {
		return "", fmt.Errorf("chart: encode data: %w", err)
	}

	var sb strings.Builder
	err = page.Execute(&sb, pageData{
		Symbol:   ds.Symbol,
		Period:   ds.Period,
		Kind:     kind,
		Stats:    Summarize(points),
		DataJSON: string(data),
	})
	if err != nil {
		return "", fmt.Errorf("chart: render: %w", err)
	}
	return sb.String(), nil
}

// Descriptor returns the render_stock_chart descriptor.
func Descriptor() tool.Descriptor {
	kinds := make([]string, len(Kinds))
	for i, k := range Kinds {
		kinds[i] = string(k)
	}
	params := []tool.ParamSpec{
		tool.Ticker("symbol", "Stock ticker symbol (e.g., AAPL, GOOGL, TSLA)"),
		{
			Name:        "chart_type",
			Type:        tool.TypeEnum,
			Description: "Type of chart: line, candlestick, area",
			Default:     string(KindCandlestick),
			Allowed:     kinds,
			Case:        tool.CaseLower,
		},
	}
	return tool.Descriptor{
		Name:  Name,
		Title: "Create Interactive Stock Chart",
		Description: "Create a beautiful, interactive stock price chart that you can view in a browser. " +
			"Shows price movements over time with hover tooltips and smooth animations. " +
			"Perfect for visualizing stock performance trends.",
		Params: append(params, history.WindowParams("1mo")...),
		Result: tool.ResultShape{
			Kind:         tool.ShapeResource,
			MediaType:    "text/html",
			URIPrefix:    "ui://data/chart/",
			SubjectParam: "symbol",
			Meta: map[string]any{
				"mcpui.dev/ui-preferred-frame-size": []string{"800px", "1000px"},
			},
		},
		Precedence: history.WindowPrecedence,
		Ranges:     history.WindowRanges,
	}
}

// Tools returns the chart tools served from b.
func Tools(b marketdata.Backend) []tools.Tool {
	return []tools.Tool{{
		Descriptor: Descriptor(),
		Handler: func(ctx context.Context, req tool.Request) (any, error) {
			symbol := req.String("symbol")
			q := history.QueryFromRequest(req)
			rows, err := b.History(ctx, symbol, q)
			if err != nil {
				return nil, err
			}
			return Render(Dataset{
				Symbol: symbol,
				Period: q.Label(),
				Points: PointsFromRows(rows),
			}, Kind(req.String("chart_type")))
		},
	}}
}
