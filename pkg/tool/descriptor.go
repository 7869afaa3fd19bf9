// Package tool is a small, protocol-agnostic layer for exposing data-fetch
// operations as named, schema-described tools.
//
// A tool is declared once with a [Descriptor] (name, human text, ordered
// [ParamSpec] list and [ResultShape]) and bound to a [Handler] through
// [Registry.Register]. Every call then goes through the same pipeline:
//
//  1. [Registry.Resolve] finds the handler by name.
//  2. [Validate] checks and normalises the raw arguments into a [Request].
//  3. The handler produces a result value.
//  4. [Encode] wraps the result as an [EncodedResponse].
//
// Resolution and validation happen before the handler runs, so a bad call
// never reaches an upstream data source. Descriptors also re-derive a JSON
// Schema via [Descriptor.InputSchema] for capability discovery.
//
// The registry is meant to be populated once during startup and read
// concurrently afterwards.
package tool

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParamType is the semantic type of a tool parameter.
type ParamType int

const (
	// TypeString accepts any JSON string.
	TypeString ParamType = iota

	// TypeInt accepts a JSON number without a fractional part.
	TypeInt

	// TypeFloat accepts any JSON number.
	TypeFloat

	// TypeEnum accepts a JSON string from [ParamSpec.Allowed].
	TypeEnum

	// TypeDate accepts an ISO 8601 calendar date (YYYY-MM-DD). The normalised
	// value is a [time.Time] at midnight UTC.
	TypeDate
)

// String returns the lower-case name of the type.
func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeEnum:
		return "enum"
	case TypeDate:
		return "date"
	default:
		return "unknown"
	}
}

// jsonType maps t onto the JSON Schema "type" keyword.
func (t ParamType) jsonType() string {
	switch t {
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "number"
	default:
		return "string"
	}
}

// CaseFold selects the case normalisation applied to string-like parameters
// before any constraint is checked.
type CaseFold int

const (
	CaseNone CaseFold = iota
	CaseUpper
	CaseLower
)

// ParamSpec declares one tool parameter and its constraints.
type ParamSpec struct {
	// Name is the argument key. Unique within a descriptor.
	Name string

	// Type is the semantic type.
	Type ParamType

	// Description is shown to clients in the discovery schema.
	Description string

	// Required marks the parameter as mandatory. A required parameter with a
	// Default is never reported missing.
	Required bool

	// Default is used when the caller omits the parameter. It must be a value
	// the parameter itself would accept (string for string, enum and date
	// parameters, int for TypeInt, float64 for TypeFloat).
	Default any

	// MinLength and MaxLength bound string-like values in runes. Zero means
	// unbounded.
	MinLength int
	MaxLength int

	// Pattern, when non-nil, must match the (case-folded) value.
	Pattern *regexp.Regexp

	// Allowed lists the accepted values of a TypeEnum parameter.
	Allowed []string

	// Min and Max bound numeric values, inclusive.
	Min *float64
	Max *float64

	// Case folds string-like values before validation.
	Case CaseFold
}

// Precedence declares that supplying any parameter in When suppresses every
// parameter in Suppress, even ones that would otherwise resolve to a default.
type Precedence struct {
	When     []string
	Suppress []string
}

// DateRange declares a Start/End pair of date parameters; when both are
// present End must be strictly after Start.
type DateRange struct {
	Start string
	End   string
}

// ResultKind tags the two branches of an [EncodedResponse].
type ResultKind int

const (
	// ShapeStructured results are encoded as a JSON value.
	ShapeStructured ResultKind = iota

	// ShapeResource results are encoded as an embedded resource with a media
	// type and a synthetic URI.
	ShapeResource
)

// ResultShape describes how a handler's result is encoded.
type ResultShape struct {
	Kind ResultKind

	// MediaType of a resource result, e.g. "text/html".
	MediaType string

	// The resource URI is URIPrefix + value of SubjectParam + URISuffix.
	// With an empty SubjectParam the URI is URIPrefix + URISuffix.
	URIPrefix    string
	SubjectParam string
	URISuffix    string

	// Meta is deep-copied into each resource's metadata.
	Meta map[string]any
}

// Descriptor is the static description of a tool.
type Descriptor struct {
	Name        string
	Title       string
	Description string
	Params      []ParamSpec
	Result      ResultShape
	Precedence  []Precedence
	Ranges      []DateRange
}

// Param returns the spec of the named parameter.
func (d Descriptor) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// clone returns a deep copy of d so that a registered descriptor cannot be
// mutated through the caller's slices and maps.
func (d Descriptor) clone() Descriptor {
	out := d
	out.Params = make([]ParamSpec, len(d.Params))
	for i, p := range d.Params {
		p.Allowed = slices.Clone(p.Allowed)
		out.Params[i] = p
	}
	out.Precedence = make([]Precedence, len(d.Precedence))
	for i, pr := range d.Precedence {
		out.Precedence[i] = Precedence{When: slices.Clone(pr.When), Suppress: slices.Clone(pr.Suppress)}
	}
	out.Ranges = slices.Clone(d.Ranges)
	if d.Result.Meta != nil {
		out.Result.Meta = cloneMeta(d.Result.Meta)
	}
	return out
}

// check verifies that d is internally consistent: a name, unique parameter
// names, defaults that satisfy their own constraints, and precedence/range
// entries that reference declared parameters.
func (d Descriptor) check() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("tool: descriptor must have a non-empty name")
	}
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if p.Name == "" {
			return fmt.Errorf("tool: %s: parameter with empty name", d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool: %s: duplicate parameter %q", d.Name, p.Name)
		}
		seen[p.Name] = true
		if p.Type == TypeEnum && len(p.Allowed) == 0 {
			return fmt.Errorf("tool: %s: enum parameter %q has no allowed values", d.Name, p.Name)
		}
		if p.Default != nil {
			if _, err := p.coerce(p.Default); err != nil {
				return fmt.Errorf("tool: %s: default of %q: %w", d.Name, p.Name, err)
			}
		}
	}
	for _, pr := range d.Precedence {
		for _, n := range slices.Concat(pr.When, pr.Suppress) {
			if !seen[n] {
				return fmt.Errorf("tool: %s: precedence references unknown parameter %q", d.Name, n)
			}
		}
	}
	for _, r := range d.Ranges {
		for _, n := range []string{r.Start, r.End} {
			if p, ok := d.Param(n); !ok || p.Type != TypeDate {
				return fmt.Errorf("tool: %s: date range references %q, which is not a date parameter", d.Name, n)
			}
		}
	}
	if d.Result.Kind == ShapeResource {
		if d.Result.MediaType == "" {
			return fmt.Errorf("tool: %s: resource result needs a media type", d.Name)
		}
		if d.Result.SubjectParam != "" && !seen[d.Result.SubjectParam] {
			return fmt.Errorf("tool: %s: resource subject %q is not a parameter", d.Name, d.Result.SubjectParam)
		}
	}
	return nil
}

// InputSchema derives the JSON Schema advertised for d during capability
// discovery. It never invokes the tool's handler.
func (d Descriptor) InputSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(d.Params)),
	}
	for _, p := range d.Params {
		s.Properties[p.Name] = p.schema()
		if p.Required && p.Default == nil {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// schema renders a single parameter as a JSON Schema property.
func (p ParamSpec) schema() *jsonschema.Schema {
	ps := &jsonschema.Schema{
		Type:        p.Type.jsonType(),
		Description: p.Description,
	}
	if p.MinLength > 0 {
		ps.MinLength = ptr(p.MinLength)
	}
	if p.MaxLength > 0 {
		ps.MaxLength = ptr(p.MaxLength)
	}
	if p.Pattern != nil {
		ps.Pattern = p.Pattern.String()
	}
	if p.Min != nil {
		ps.Minimum = ptr(*p.Min)
	}
	if p.Max != nil {
		ps.Maximum = ptr(*p.Max)
	}
	switch p.Type {
	case TypeEnum:
		for _, a := range p.Allowed {
			ps.Enum = append(ps.Enum, a)
		}
	case TypeDate:
		ps.Format = "date"
	}
	if p.Default != nil {
		if raw, err := json.Marshal(p.Default); err == nil {
			ps.Default = raw
		}
	}
	return ps
}

func ptr[T any](v T) *T { return &v }

// Ticker returns the spec of a required stock-ticker parameter: one to ten
// letters, folded to upper case before the pattern is checked.
func Ticker(name, description string) ParamSpec {
	return ParamSpec{
		Name:        name,
		Type:        TypeString,
		Description: description,
		Required:    true,
		MinLength:   1,
		MaxLength:   10,
		Pattern:     tickerPattern,
		Case:        CaseUpper,
	}
}

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,10}$`)
