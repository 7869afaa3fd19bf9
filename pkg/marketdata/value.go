package marketdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type valueKind uint8

const (
	kindUnavailable valueKind = iota
	kindNumber
	kindText
)

// Value is a scalar that an upstream source may or may not have supplied.
// It is either a number, a string, or unavailable. The zero Value is
// unavailable.
//
// Unavailable is distinct from 0 and "": a missing price must never read as
// a price of zero. On the wire an unavailable Value is JSON null.
type Value struct {
	kind valueKind
	num  float64
	str  string
}

// Unavailable is the explicit "no data" marker.
var Unavailable = Value{}

// Number returns a numeric Value. NaN and infinities are not representable in
// JSON and are treated as unavailable.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Unavailable
	}
	return Value{kind: kindNumber, num: f}
}

// Text returns a string Value. The empty string is a valid, available value.
func Text(s string) Value {
	return Value{kind: kindText, str: s}
}

// Available reports whether the upstream supplied v.
func (v Value) Available() bool { return v.kind != kindUnavailable }

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.kind == kindNumber }

// Float returns the numeric value and true, or 0 and false when v is not a
// number.
func (v Value) Float() (float64, bool) {
	if v.kind != kindNumber {
		return 0, false
	}
	return v.num, true
}

// AsString returns the string value and true, or "" and false when v is not
// a string.
func (v Value) AsString() (string, bool) {
	if v.kind != kindText {
		return "", false
	}
	return v.str, true
}

// OrZero returns the number held by v, or 0. Only presentation code may use
// it; data paths keep the unavailable marker.
func (v Value) OrZero() float64 {
	f, _ := v.Float()
	return f
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindText:
		return v.str
	default:
		return "unavailable"
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return json.Marshal(v.num)
	case kindText:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler. It accepts null, a number or a
// string.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Unavailable
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("marketdata: decode value: %w", err)
		}
		*v = Text(s)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("marketdata: decode value: %w", err)
		}
		*v = Number(f)
	}
	return nil
}

// FetchResult maps a requested field name to the value the upstream returned
// for it. Every requested field has an entry; fields the upstream did not
// supply are [Unavailable].
type FetchResult map[string]Value

// Get returns the value of field, or [Unavailable] when it is not present.
func (r FetchResult) Get(field string) Value {
	return r[field]
}
