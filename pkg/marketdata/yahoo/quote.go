package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
)

// summaryModules are the quoteSummary modules requested for every quote.
var summaryModules = []string{"price", "summaryDetail", "assetProfile", "defaultKeyStatistics", "financialData"}

// fieldPaths lists, per quote field, the gjson paths tried in order inside a
// quoteSummary result. Fields not listed are looked up in every module.
var fieldPaths = map[string][]string{
	marketdata.FieldLongName:         {"price.longName", "price.shortName"},
	marketdata.FieldCurrentPrice:     {"financialData.currentPrice", "price.regularMarketPrice"},
	marketdata.FieldMarketCap:        {"price.marketCap", "summaryDetail.marketCap"},
	marketdata.FieldTrailingPE:       {"summaryDetail.trailingPE"},
	marketdata.FieldDividendYield:    {"summaryDetail.dividendYield"},
	marketdata.FieldFiftyTwoWeekHigh: {"summaryDetail.fiftyTwoWeekHigh"},
	marketdata.FieldFiftyTwoWeekLow:  {"summaryDetail.fiftyTwoWeekLow"},
	marketdata.FieldSector:           {"assetProfile.sector"},
	marketdata.FieldIndustry:         {"assetProfile.industry"},
	marketdata.FieldVolume:           {"summaryDetail.volume", "price.regularMarketVolume"},
	marketdata.FieldAverageVolume:    {"summaryDetail.averageVolume"},
	marketdata.FieldBeta:             {"summaryDetail.beta", "defaultKeyStatistics.beta"},
	marketdata.FieldBookValue:        {"defaultKeyStatistics.bookValue"},
	marketdata.FieldTrailingEPS:      {"defaultKeyStatistics.trailingEps"},
}

// errNoData is returned when Yahoo answers without a result for a symbol.
var errNoData = errors.New("no data returned")

// Quote implements marketdata.Backend.
func (c *Client) Quote(ctx context.Context, symbol string, fields []string) (marketdata.FetchResult, error) {
	q := url.Values{}
	q.Set("modules", strings.Join(summaryModules, ","))
	body, status, err := c.apiGet(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), q)
	if err != nil {
		return nil, marketdata.Wrap("quote", symbol, err)
	}

	doc := gjson.ParseBytes(body)
	if e := doc.Get("quoteSummary.error"); apiError(e) != "" || status != http.StatusOK {
		return nil, marketdata.Wrap("quote", symbol, answerErr(status, e))
	}
	result := doc.Get("quoteSummary.result.0")
	if !result.Exists() {
		return nil, marketdata.Wrap("quote", symbol, marketdata.NotFound(errNoData))
	}

	out := make(marketdata.FetchResult, len(fields))
	for _, f := range fields {
		out[f] = lookupField(result, f)
	}
	return out, nil
}

// lookupField returns the first available value among the field's known
// paths, falling back to "<module>.<field>" across all modules.
func lookupField(result gjson.Result, field string) marketdata.Value {
	paths, ok := fieldPaths[field]
	if !ok {
		for _, m := range summaryModules {
			paths = append(paths, m+"."+gjson.Escape(field))
		}
	}
	for _, p := range paths {
		if v := toValue(result.Get(p)); v.Available() {
			return v
		}
	}
	return marketdata.Unavailable
}

// toValue converts a gjson result into a Value. Wrapped {"raw": x} objects
// are unwrapped; null, {} and anything non-scalar are unavailable.
func toValue(r gjson.Result) marketdata.Value {
	switch r.Type {
	case gjson.Number:
		return marketdata.Number(r.Float())
	case gjson.String:
		return marketdata.Text(r.Str)
	case gjson.JSON:
		if r.IsObject() {
			if raw := r.Get("raw"); raw.Exists() && raw.Type != gjson.JSON {
				return toValue(raw)
			}
		}
		return marketdata.Unavailable
	default:
		return marketdata.Unavailable
	}
}

// apiError extracts the description of a Yahoo {"code","description"} error
// object, or "" when there is none.
func apiError(e gjson.Result) string {
	if !e.Exists() || e.Type == gjson.Null {
		return ""
	}
	if d := e.Get("description").String(); d != "" {
		return d
	}
	if c := e.Get("code").String(); c != "" {
		return c
	}
	return e.Raw
}

// answerErr builds the error for an error answer. Yahoo reports unknown
// symbols as 404 or with the code "Not Found"; those and 400s are marked as
// answers so they do not count against the backend's health.
func answerErr(status int, e gjson.Result) error {
	err := fmt.Errorf("unexpected status %d", status)
	if msg := apiError(e); msg != "" {
		err = fmt.Errorf("status %d: %s", status, msg)
	}
	switch {
	case status == http.StatusNotFound, strings.EqualFold(e.Get("code").String(), "Not Found"):
		return marketdata.NotFound(err)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return marketdata.Rejected(err)
	}
	return err
}
