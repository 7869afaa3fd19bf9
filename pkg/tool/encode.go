package tool

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// EncodedResponse is the wire-ready form of a handler result. Exactly one of
// Structured or Resource is set, as indicated by Kind.
//
// An EncodedResponse is built once per call and handed straight to the
// transport; it is never retained.
type EncodedResponse struct {
	Kind ResultKind

	// Structured holds the JSON encoding of a structured result.
	Structured json.RawMessage

	// Resource holds a binary or text payload for resource results.
	Resource *Resource
}

// Resource is an embedded non-JSON payload. Blob is set for binary payloads
// (transports base64-encode it); Text is set for text payloads, which pass
// through verbatim.
type Resource struct {
	URI       string
	MediaType string
	Blob      []byte
	Text      string
	Meta      map[string]any
}

// IsBinary reports whether the resource carries a binary payload.
func (r *Resource) IsBinary() bool { return r.Blob != nil }

// Encode wraps result according to shape.
//
// Structured results are marshalled to JSON. Resource results must be a
// []byte (binary) or a string (text); the URI is derived from shape and the
// subject parameter in req.
func Encode(result any, shape ResultShape, req Request) (EncodedResponse, error) {
	switch shape.Kind {
	case ShapeStructured:
		if result == nil {
			return EncodedResponse{}, fmt.Errorf("tool: structured result is nil")
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return EncodedResponse{}, fmt.Errorf("tool: encode structured result: %w", err)
		}
		return EncodedResponse{Kind: ShapeStructured, Structured: raw}, nil

	case ShapeResource:
		res := &Resource{
			URI:       shape.URIPrefix + req.String(shape.SubjectParam) + shape.URISuffix,
			MediaType: shape.MediaType,
			Meta:      cloneMeta(shape.Meta),
		}
		switch payload := result.(type) {
		case []byte:
			if payload == nil {
				payload = []byte{}
			}
			res.Blob = payload
		case string:
			res.Text = payload
		default:
			return EncodedResponse{}, fmt.Errorf("tool: resource result must be []byte or string, got %T", result)
		}
		return EncodedResponse{Kind: ShapeResource, Resource: res}, nil

	default:
		return EncodedResponse{}, fmt.Errorf("tool: unknown result kind %d", shape.Kind)
	}
}

// cloneMeta copies m deeply enough that no slice or map inside the result
// is shared with m. Each response gets its own copy of the descriptor's meta.
func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return cloneMeta(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		if v == nil {
			return v
		}
		return append([]string(nil), v...)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := range rv.Len() {
			out.Index(i).Set(cloneReflect(rv.Index(i)))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
		return out.Interface()
	}
	return v
}

// cloneReflect clones an element of a typed slice or map, keeping its
// static type so it can be stored back.
func cloneReflect(e reflect.Value) reflect.Value {
	if (e.Kind() == reflect.Interface || e.Kind() == reflect.Pointer) && e.IsNil() {
		return e
	}
	c := cloneValue(e.Interface())
	if c == nil {
		return reflect.Zero(e.Type())
	}
	return reflect.ValueOf(c).Convert(e.Type())
}
