package feed

import (
	"reflect"
	"strings"
)

// TypedFilter pairs a structured filter with the Go type its field
// references should be resolved against, mirroring spec.md §4.1's "typed"
// aggregation path: "build a type-based mapping context using the object
// mapper's metadata... else use a default context." Without a Type, the
// filter's keys are used as document field names verbatim (the "default
// context").
type TypedFilter struct {
	Type   reflect.Type
	Fields map[string]interface{}
}

// CompilePipeline turns a ChangeStreamOptions.Filter / TailingQuery.Filter
// value into a compiled aggregation pipeline, per §4.1:
//   - nil            -> nil pipeline (unfiltered)
//   - []map[string]interface{} -> a pre-compiled pipeline, passed through
//   - map[string]interface{}   -> wrapped as a single $match stage
//   - TypedFilter    -> field names resolved against Type, then as above
//
// Any other value is a configuration error.
func CompilePipeline(f Filter) ([]map[string]interface{}, error) {
	switch v := f.(type) {
	case nil:
		return nil, nil
	case []map[string]interface{}:
		return v, nil
	case map[string]interface{}:
		return compileStructuredFilter(v, nil)
	case TypedFilter:
		return compileStructuredFilter(v.Fields, v.Type)
	default:
		return nil, configErrorf("unsupported filter value of type %T", f)
	}
}

func compileStructuredFilter(fields map[string]interface{}, typ reflect.Type) ([]map[string]interface{}, error) {
	resolved := fields
	if typ != nil {
		resolved = resolveFieldNames(fields, typ).(map[string]interface{})
	}
	matchStage := map[string]interface{}{
		"$match": prefixFullDocument(resolved),
	}
	return []map[string]interface{}{matchStage}, nil
}

// prefixFullDocument rewrites every field-reference key in a filter
// document with the literal prefix "fullDocument.", leaving operator keys
// ($and, $or, $gt, ...) untouched, recursively into nested documents and
// into documents nested in arrays — exactly spec.md §4.1 and the
// invariant in §8 ("Filter prefixing").
func prefixFullDocument(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if strings.HasPrefix(k, "$") {
				out[k] = prefixFullDocument(inner)
				continue
			}
			out["fullDocument."+k] = prefixFullDocument(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = prefixFullDocument(inner)
		}
		return out
	default:
		return v
	}
}

// resolveFieldNames renames keys of a structured filter from Go field
// names to their `json` struct-tag document name, one path segment at a
// time (e.g. "FirstName.Nested" resolves "FirstName" against typ's
// fields; "Nested" is passed through as-is — a deliberately small
// resolver, not a full mapping-context walk).
func resolveFieldNames(fields map[string]interface{}, typ reflect.Type) interface{} {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return fields
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if strings.HasPrefix(k, "$") {
			out[k] = v
			continue
		}
		segments := strings.SplitN(k, ".", 2)
		resolvedKey := resolveFieldName(typ, segments[0])
		if len(segments) == 2 {
			resolvedKey = resolvedKey + "." + segments[1]
		}
		out[resolvedKey] = v
	}
	return out
}

// resolveFieldName finds the document field name typ declares for the Go
// field named goName: the `json` tag if present, else the lower-cased Go
// field name; goName itself if no matching field is found.
func resolveFieldName(typ reflect.Type, goName string) string {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name != goName {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			return strings.ToLower(field.Name)
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		if tag == "" {
			return strings.ToLower(field.Name)
		}
		return tag
	}
	return goName
}
