// Package codec marshals between logical row values (as used by table
// façade callers) and the storage parameters/results of the SQL engine.
package codec

import (
	"encoding/json"
	"time"

	"github.com/relvault/relvault/schema"
)

// Encode converts a logical value for column c into a driver-bindable
// parameter, per §4.2: bool -> 0/1, date -> epoch-ms, object/array ->
// JSON text, nil -> NULL, scalars pass through, anything else -> string.
func Encode(c schema.Column, v any) any {
	if v == nil {
		return nil
	}

	switch c.Kind {
	case schema.KindBool:
		switch b := v.(type) {
		case bool:
			if b {
				return int64(1)
			}
			return int64(0)
		default:
			return v
		}
	case schema.KindDate:
		switch t := v.(type) {
		case time.Time:
			return t.UnixMilli()
		case int64:
			return t
		case int:
			return int64(t)
		default:
			return v
		}
	case schema.KindJSON:
		switch v.(type) {
		case string:
			return v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return toString(v)
			}
			return string(b)
		}
	case schema.KindInt, schema.KindReal, schema.KindText:
		return v
	default:
		return toString(v)
	}
}

// Decode converts an engine-returned value for column c back to its
// logical representation, per §4.2. Unknown columns are returned
// unchanged by the caller (Decode is only invoked for known columns).
func Decode(c schema.Column, v any) any {
	if v == nil {
		return nil
	}

	switch c.Kind {
	case schema.KindDate:
		switch ms := v.(type) {
		case int64:
			return time.UnixMilli(ms).UTC()
		case float64:
			return time.UnixMilli(int64(ms)).UTC()
		default:
			return v
		}
	case schema.KindBool:
		switch n := v.(type) {
		case int64:
			return n == 1
		case float64:
			return n == 1
		case bool:
			return n
		default:
			return v
		}
	case schema.KindJSON:
		s, ok := asString(v)
		if !ok {
			return v
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			// Silent fallback to raw text on parse failure, per §4.2.
			return s
		}
		return out
	default:
		return v
	}
}

// DecodeRow decodes every value in row whose key matches a column in t.
// Columns absent from t (e.g. from a raw query) pass through unchanged.
func DecodeRow(t schema.Table, row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if col, ok := t.Column(k); ok {
			out[k] = Decode(col, v)
		} else {
			out[k] = v
		}
	}
	return out
}

// EncodeValues encodes a map of logical column values to driver
// parameters, in the iteration order of columns (stable, matching the
// table's declared column order) for the given column names.
func EncodeValues(t schema.Table, values map[string]any, order []string) []any {
	out := make([]any, len(order))
	for i, name := range order {
		col, ok := t.Column(name)
		if !ok {
			out[i] = values[name]
			continue
		}
		out[i] = Encode(col, values[name])
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
