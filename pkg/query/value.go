package query

import (
	"encoding/json"
	"fmt"
	"time"
)

// CheckLiteral reports whether v can serve as a filter-comparison or
// function-argument literal: nil, strings, booleans, numbers, times, and
// arrays/objects thereof. A failing value degrades the single leaf carrying
// it, not the whole query.
func CheckLiteral(v any) error {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		json.Number, time.Time:
		return nil
	}
	// Arrays and maps are acceptable as long as they serialize. json.Marshal
	// also rejects cycles, channels, and functions.
	if _, err := json.Marshal(v); err != nil {
		return fmt.Errorf("value of type %T is not a representable literal: %w", v, err)
	}
	return nil
}

// Strings converts an array-ish literal to a string slice. It is used by
// targets whose containment operators only accept string elements. The second
// return is false when v is not an array of strings.
func Strings(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// ValidFieldPath reports whether s is a safe dotted field path
// (`segment` or `segment.segment...`, each segment an identifier). Field
// names are interpolated into native query text on every target, so anything
// else is rejected as a structural error rather than risking injection.
func ValidFieldPath(s string) bool {
	if s == "" {
		return false
	}
	segStart := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.':
			if segStart {
				return false
			}
			segStart = true
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			segStart = false
		case c >= '0' && c <= '9':
			if segStart {
				return false
			}
		default:
			return false
		}
	}
	return !segStart
}

// List converts a literal to a generic slice for set-membership operators.
// Scalar values are wrapped in a single-element list.
func List(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	case nil:
		return nil
	default:
		return []any{v}
	}
}
