package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestRegistry_RegisterDuplicate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	h := func(context.Context, Request) (any, error) { return map[string]int{"ok": 1}, nil }

	if err := r.Register(historyDescriptor(), h); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(historyDescriptor(), h)
	var dne *DuplicateNameError
	if !errors.As(err, &dne) {
		t.Fatalf("second Register err = %v, want *DuplicateNameError", err)
	}
	if dne.Name != "get_historical_prices" {
		t.Errorf("Name = %q", dne.Name)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistry_RegisterRejectsMalformed(t *testing.T) {
	t.Parallel()
	h := func(context.Context, Request) (any, error) { return nil, nil }
	tests := []struct {
		name string
		d    Descriptor
		h    Handler
	}{
		{"nil handler", Descriptor{Name: "x"}, nil},
		{"empty name", Descriptor{}, h},
		{"duplicate param", Descriptor{Name: "x", Params: []ParamSpec{{Name: "a"}, {Name: "a"}}}, h},
		{"enum without values", Descriptor{Name: "x", Params: []ParamSpec{{Name: "a", Type: TypeEnum}}}, h},
		{"bad default", Descriptor{Name: "x", Params: []ParamSpec{{Name: "a", Type: TypeEnum, Allowed: []string{"b"}, Default: "c"}}}, h},
		{"precedence unknown", Descriptor{Name: "x", Precedence: []Precedence{{When: []string{"a"}}}}, h},
		{"range not date", Descriptor{Name: "x", Params: []ParamSpec{{Name: "a"}, {Name: "b"}}, Ranges: []DateRange{{Start: "a", End: "b"}}}, h},
		{"resource without media type", Descriptor{Name: "x", Result: ResultShape{Kind: ShapeResource}}, h},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			if err := r.Register(tt.d, tt.h); err == nil {
				t.Fatal("expected error")
			}
			if r.Len() != 0 {
				t.Errorf("Len = %d after failed Register", r.Len())
			}
		})
	}
}

func TestRegistry_UnknownToolSuggestion(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	h := func(context.Context, Request) (any, error) { return "x", nil }
	for _, name := range []string{"get_stock_info", "get_disclaimer"} {
		if err := r.Register(Descriptor{Name: name}, h); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	_, err := r.Resolve("get_stock_inf")
	var ute *UnknownToolError
	if !errors.As(err, &ute) {
		t.Fatalf("err = %v, want *UnknownToolError", err)
	}
	if ute.Suggestion != "get_stock_info" {
		t.Errorf("Suggestion = %q, want get_stock_info", ute.Suggestion)
	}

	_, err = r.Call(context.Background(), "zzz", nil)
	if !errors.As(err, &ute) {
		t.Fatalf("Call err = %v, want *UnknownToolError", err)
	}
	if ute.Suggestion != "" {
		t.Errorf("Suggestion = %q, want none", ute.Suggestion)
	}
}

func TestRegistry_CallValidatesBeforeHandler(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	called := false
	h := func(context.Context, Request) (any, error) {
		called = true
		return map[string]string{}, nil
	}
	if err := r.Register(historyDescriptor(), h); err != nil {
		t.Fatal(err)
	}

	_, err := r.Call(context.Background(), "get_historical_prices", map[string]any{"symbol": "123"})
	var ipe *InvalidParameterError
	if !errors.As(err, &ipe) {
		t.Fatalf("err = %v, want *InvalidParameterError", err)
	}
	if called {
		t.Error("handler ran despite invalid arguments")
	}
}

func TestRegistry_CallPassesNormalisedRequest(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	var got Request
	h := func(_ context.Context, req Request) (any, error) {
		got = req
		return map[string]string{"symbol": req.String("symbol")}, nil
	}
	if err := r.Register(historyDescriptor(), h); err != nil {
		t.Fatal(err)
	}

	resp, err := r.Call(context.Background(), "get_historical_prices", map[string]any{"symbol": "msft"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.String("symbol") != "MSFT" || got.String("period") != "1y" {
		t.Errorf("handler saw symbol=%q period=%q", got.String("symbol"), got.String("period"))
	}
	if resp.Kind != ShapeStructured {
		t.Fatalf("Kind = %v, want structured", resp.Kind)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Structured, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["symbol"] != "MSFT" {
		t.Errorf("body = %v", body)
	}
}

func TestRegistry_CallHandlerError(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	boom := errors.New("boom")
	if err := r.Register(Descriptor{Name: "fail"}, func(context.Context, Request) (any, error) { return nil, boom }); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Call(context.Background(), "fail", nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestRegistry_DescriptorsOrderAndIsolation(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	h := func(context.Context, Request) (any, error) { return "", nil }
	names := []string{"c", "a", "b"}
	for _, n := range names {
		if err := r.Register(Descriptor{Name: n, Params: []ParamSpec{{Name: "p", Type: TypeEnum, Allowed: []string{"x"}}}}, h); err != nil {
			t.Fatal(err)
		}
	}

	ds := r.Descriptors()
	for i, d := range ds {
		if d.Name != names[i] {
			t.Errorf("Descriptors()[%d] = %q, want %q", i, d.Name, names[i])
		}
	}

	ds[0].Params[0].Allowed[0] = "mutated"
	d, ok := r.Descriptor("c")
	if !ok {
		t.Fatal("Descriptor(c) not found")
	}
	if d.Params[0].Allowed[0] != "x" {
		t.Error("registry descriptor mutated through returned copy")
	}
}
