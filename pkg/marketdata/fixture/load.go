package fixture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
)

// file is the YAML layout of a fixture file:
//
//	quotes:
//	  AAPL:
//	    longName: Apple Inc.
//	    currentPrice: 150.25
//	history:
//	  AAPL:
//	    - {date: 2024-01-02, open: 187.15, high: 188.44, low: 183.89, close: 185.64, volume: 82488700}
//	documents:
//	  https://example.com/factsheet.pdf: factsheet.pdf
//
// Document paths are relative to the fixture file.
type file struct {
	Quotes    map[string]map[string]any `yaml:"quotes"`
	History   map[string][]row          `yaml:"history"`
	Documents map[string]string         `yaml:"documents"`
}

type row struct {
	Date     string   `yaml:"date"`
	Open     *float64 `yaml:"open"`
	High     *float64 `yaml:"high"`
	Low      *float64 `yaml:"low"`
	Close    *float64 `yaml:"close"`
	AdjClose *float64 `yaml:"adj_close"`
	Volume   *float64 `yaml:"volume"`
}

// Load reads a fixture file from path.
func Load(path string, opts ...Option) (*Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %q: %w", path, err)
	}
	return LoadFromReader(bytes.NewReader(data), filepath.Dir(path), opts...)
}

// LoadFromReader decodes a fixture from r. Document paths are resolved
// against dir. Unknown YAML keys are rejected.
func LoadFromReader(r io.Reader, dir string, opts ...Option) (*Backend, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("fixture: decode: %w", err)
	}

	b := New(opts...)
	for sym, fields := range f.Quotes {
		q := make(marketdata.FetchResult, len(fields))
		for name, raw := range fields {
			v, err := toValue(raw)
			if err != nil {
				return nil, fmt.Errorf("fixture: quote %s.%s: %w", sym, name, err)
			}
			q[name] = v
		}
		b.SetQuote(sym, q)
	}
	for sym, yrows := range f.History {
		rows := make([]marketdata.Row, 0, len(yrows))
		for i, yr := range yrows {
			ts, err := parseDate(yr.Date)
			if err != nil {
				return nil, fmt.Errorf("fixture: history %s[%d]: %w", sym, i, err)
			}
			rows = append(rows, marketdata.Row{
				Time:     ts,
				Open:     optional(yr.Open),
				High:     optional(yr.High),
				Low:      optional(yr.Low),
				Close:    optional(yr.Close),
				AdjClose: optional(yr.AdjClose),
				Volume:   optional(yr.Volume),
			})
		}
		b.SetHistory(sym, rows)
	}
	for url, rel := range f.Documents {
		p := rel
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("fixture: document %s: %w", url, err)
		}
		b.SetDocument(url, data)
	}
	return b, nil
}

// toValue converts a decoded YAML scalar into a Value.
func toValue(raw any) (marketdata.Value, error) {
	switch v := raw.(type) {
	case nil:
		return marketdata.Unavailable, nil
	case int:
		return marketdata.Number(float64(v)), nil
	case int64:
		return marketdata.Number(float64(v)), nil
	case uint64:
		return marketdata.Number(float64(v)), nil
	case float64:
		return marketdata.Number(v), nil
	case string:
		return marketdata.Text(v), nil
	default:
		return marketdata.Unavailable, fmt.Errorf("unsupported value of type %T", raw)
	}
}

func optional(f *float64) marketdata.Value {
	if f == nil {
		return marketdata.Unavailable
	}
	return marketdata.Number(*f)
}

// parseDate accepts YYYY-MM-DD (UTC) or an RFC 3339 timestamp, whose offset
// is kept as the row's location.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	return t, nil
}
