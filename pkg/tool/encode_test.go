package tool

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestEncode_StructuredRoundTrip(t *testing.T) {
	t.Parallel()
	in := map[string]any{
		"symbol": "AAPL",
		"price":  189.5,
		"sector": nil,
		"nested": map[string]any{"a": []any{1.0, "b"}},
	}
	resp, err := Encode(in, ResultShape{Kind: ShapeStructured}, Request{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if resp.Resource != nil {
		t.Error("structured response carries a resource")
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Structured, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", out, in)
	}
}

func TestEncode_StructuredErrors(t *testing.T) {
	t.Parallel()
	shape := ResultShape{Kind: ShapeStructured}
	if _, err := Encode(nil, shape, Request{}); err == nil {
		t.Error("nil result: expected error")
	}
	if _, err := Encode(math.NaN(), shape, Request{}); err == nil {
		t.Error("NaN result: expected error")
	}
}

func TestEncode_ResourceBinary(t *testing.T) {
	t.Parallel()
	shape := ResultShape{
		Kind:         ShapeResource,
		MediaType:    "application/pdf",
		URIPrefix:    "ui://data/factsheets/",
		SubjectParam: "symbol",
		URISuffix:    ".pdf",
	}
	payload := []byte("%PDF-1.4\x00\xff")
	resp, err := Encode(payload, shape, NewRequest(map[string]any{"symbol": "AAPL"}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res := resp.Resource
	if resp.Kind != ShapeResource || res == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if res.URI != "ui://data/factsheets/AAPL.pdf" {
		t.Errorf("URI = %q", res.URI)
	}
	if res.MediaType != "application/pdf" {
		t.Errorf("MediaType = %q", res.MediaType)
	}
	if !res.IsBinary() || !bytes.Equal(res.Blob, payload) {
		t.Errorf("Blob = %q", res.Blob)
	}
}

func TestEncode_ResourceEmptyBinaryStaysBinary(t *testing.T) {
	t.Parallel()
	shape := ResultShape{Kind: ShapeResource, MediaType: "application/pdf", URIPrefix: "ui://x"}
	resp, err := Encode([]byte(nil), shape, Request{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !resp.Resource.IsBinary() || len(resp.Resource.Blob) != 0 {
		t.Errorf("Blob = %v, want empty non-nil", resp.Resource.Blob)
	}
}

func TestEncode_ResourceTextAndMeta(t *testing.T) {
	t.Parallel()
	meta := map[string]any{"mcpui.dev/ui-preferred-frame-size": []string{"800px", "1000px"}}
	shape := ResultShape{
		Kind:         ShapeResource,
		MediaType:    "text/html",
		URIPrefix:    "ui://data/chart/",
		SubjectParam: "symbol",
		Meta:         meta,
	}
	resp, err := Encode("<html></html>", shape, NewRequest(map[string]any{"symbol": "MSFT"}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res := resp.Resource
	if res.IsBinary() {
		t.Error("text resource reported binary")
	}
	if res.Text != "<html></html>" || res.URI != "ui://data/chart/MSFT" {
		t.Errorf("res = %+v", res)
	}

	res.Meta["extra"] = true
	if _, ok := meta["extra"]; ok {
		t.Error("resource meta aliases the shape's meta")
	}
}

func TestEncode_ResourceWrongType(t *testing.T) {
	t.Parallel()
	shape := ResultShape{Kind: ShapeResource, MediaType: "text/plain"}
	if _, err := Encode(42, shape, Request{}); err == nil {
		t.Error("expected error for int payload")
	}
}

func TestEncode_ResourceMetaSlicesAreNotShared(t *testing.T) {
	t.Parallel()
	shape := ResultShape{
		Kind:         ShapeResource,
		MediaType:    "text/html",
		URIPrefix:    "ui://data/chart/",
		SubjectParam: "symbol",
		Meta: map[string]any{
			"mcpui.dev/ui-preferred-frame-size": []string{"800px", "1000px"},
			"mcpui.dev/ui-initial-render-data":  map[string]any{"ranges": []any{"1mo", "1y"}},
			"series":                            []int{1, 2},
		},
	}
	encode := func(symbol string) *Resource {
		t.Helper()
		resp, err := Encode("<html></html>", shape, NewRequest(map[string]any{"symbol": symbol}))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		return resp.Resource
	}

	first := encode("MSFT")
	first.Meta["mcpui.dev/ui-preferred-frame-size"].([]string)[0] = "10px"
	first.Meta["mcpui.dev/ui-initial-render-data"].(map[string]any)["ranges"].([]any)[0] = "5d"
	first.Meta["series"].([]int)[0] = 99

	second := encode("AAPL")
	want := map[string]any{
		"mcpui.dev/ui-preferred-frame-size": []string{"800px", "1000px"},
		"mcpui.dev/ui-initial-render-data":  map[string]any{"ranges": []any{"1mo", "1y"}},
		"series":                            []int{1, 2},
	}
	if !reflect.DeepEqual(shape.Meta, want) {
		t.Errorf("shape meta mutated through a response: %v", shape.Meta)
	}
	if !reflect.DeepEqual(second.Meta, want) {
		t.Errorf("second response meta = %v", second.Meta)
	}
}
