package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Request is the validated, type-coerced argument set of a single call.
// It is produced once by [Validate] and never mutated afterwards.
//
// Values are stored with their normalised Go types: string for string and
// enum parameters, int for TypeInt, float64 for TypeFloat and [time.Time]
// for TypeDate.
type Request struct {
	values map[string]any
}

// NewRequest builds a Request from already-normalised values. It is intended
// for tests and for callers that bypass [Validate] on purpose.
func NewRequest(values map[string]any) Request {
	return Request{values: maps.Clone(values)}
}

// Has reports whether name resolved to a value.
func (r Request) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Lookup returns the normalised value of name.
func (r Request) Lookup(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// String returns the string value of name, or "" when absent.
func (r Request) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

// Int returns the integer value of name, or 0 when absent.
func (r Request) Int(name string) int {
	n, _ := r.values[name].(int)
	return n
}

// Float returns the float value of name, or 0 when absent.
func (r Request) Float(name string) float64 {
	f, _ := r.values[name].(float64)
	return f
}

// Date returns the date value of name.
func (r Request) Date(name string) (time.Time, bool) {
	t, ok := r.values[name].(time.Time)
	return t, ok
}

// Names returns the names of all resolved parameters, sorted.
func (r Request) Names() []string {
	return slices.Sorted(maps.Keys(r.values))
}

// Validate checks raw against the parameters declared by d and returns the
// normalised request.
//
// A JSON null counts as "not supplied". Absent parameters take their default;
// absent required parameters without a default yield a
// [*MissingParameterError]. Keys that d does not declare, values of the wrong
// type and constraint violations yield an [*InvalidParameterError].
//
// After all parameters are resolved, d's [Precedence] rules drop suppressed
// parameters and its [DateRange] rules check date ordering.
func Validate(d Descriptor, raw map[string]any) (Request, error) {
	for _, k := range slices.Sorted(maps.Keys(raw)) {
		if _, ok := d.Param(k); !ok {
			return Request{}, &InvalidParameterError{Name: k, Reason: "unknown parameter"}
		}
	}

	values := make(map[string]any, len(d.Params))
	supplied := make(map[string]bool, len(raw))
	for _, p := range d.Params {
		v, ok := raw[p.Name]
		if ok && v == nil {
			ok = false
		}
		if !ok {
			if p.Default != nil {
				dv, err := p.coerce(p.Default)
				if err != nil {
					return Request{}, &InvalidParameterError{Name: p.Name, Reason: "bad default: " + err.Error()}
				}
				values[p.Name] = dv
				continue
			}
			if p.Required {
				return Request{}, &MissingParameterError{Name: p.Name}
			}
			continue
		}

		cv, err := p.coerce(v)
		if err != nil {
			return Request{}, &InvalidParameterError{Name: p.Name, Reason: err.Error()}
		}
		values[p.Name] = cv
		supplied[p.Name] = true
	}

	for _, pr := range d.Precedence {
		if !slices.ContainsFunc(pr.When, func(n string) bool { return supplied[n] }) {
			continue
		}
		for _, n := range pr.Suppress {
			delete(values, n)
		}
	}

	for _, rg := range d.Ranges {
		start, okStart := values[rg.Start].(time.Time)
		end, okEnd := values[rg.End].(time.Time)
		if okStart && okEnd && !end.After(start) {
			return Request{}, &InvalidParameterError{
				Name:   rg.End,
				Reason: fmt.Sprintf("must be after %s (%s)", rg.Start, start.Format(time.DateOnly)),
			}
		}
	}

	return Request{values: values}, nil
}

// coerce converts a raw argument into the parameter's normalised Go type and
// checks every constraint.
func (p ParamSpec) coerce(v any) (any, error) {
	switch p.Type {
	case TypeString, TypeEnum, TypeDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %s", p.Type, jsonKind(v))
		}
		return p.coerceString(s)
	case TypeInt:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		if err := p.checkRange(f); err != nil {
			return nil, err
		}
		return int(f), nil
	case TypeFloat:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if err := p.checkRange(f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %s", p.Type)
	}
}

func (p ParamSpec) coerceString(s string) (any, error) {
	switch p.Case {
	case CaseUpper:
		s = strings.ToUpper(s)
	case CaseLower:
		s = strings.ToLower(s)
	}

	n := utf8.RuneCountInString(s)
	if p.MinLength > 0 && n < p.MinLength {
		return nil, fmt.Errorf("length %d is below minimum %d", n, p.MinLength)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return nil, fmt.Errorf("length %d exceeds maximum %d", n, p.MaxLength)
	}
	if p.Pattern != nil && !p.Pattern.MatchString(s) {
		return nil, fmt.Errorf("%q does not match pattern %s", s, p.Pattern)
	}

	switch p.Type {
	case TypeEnum:
		if !slices.Contains(p.Allowed, s) {
			return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(p.Allowed, ","))
		}
	case TypeDate:
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a YYYY-MM-DD date", s)
		}
		return t, nil
	}
	return s, nil
}

func (p ParamSpec) checkRange(f float64) error {
	if p.Min != nil && f < *p.Min {
		return fmt.Errorf("%v is below minimum %v", f, *p.Min)
	}
	if p.Max != nil && f > *p.Max {
		return fmt.Errorf("%v exceeds maximum %v", f, *p.Max)
	}
	return nil
}

var errNotNumber = errors.New("expected number")

// toFloat accepts the numeric representations produced by encoding/json
// (float64, or json.Number with UseNumber) as well as Go integer literals.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w, got %q", errNotNumber, n.String())
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w, got %s", errNotNumber, jsonKind(v))
	}
}

// jsonKind names the JSON kind of a decoded value for error messages.
func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
