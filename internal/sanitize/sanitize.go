// Package sanitize provides input sanitizers and key helpers.
//
// All sanitization is input-only: stored values are the sanitized forms.
// Callers feeding untyped maps from a deserializer must pass them through
// SafeMap before merging.
package sanitize

import (
	"math"
	"strconv"
	"strings"
)

// String trims v and returns the result, or "" when the trimmed value is
// empty or v is not a string. The boolean reports whether a usable value
// was produced.
func String(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// TextField trims free-form user text, returning "" for non-strings.
// Unlike String, an empty result is not an error for text fields.
func TextField(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Integer coerces v to an int64. Non-integer numerics are truncated;
// numeric strings are parsed; anything else is rejected.
func Integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(math.Trunc(n)), true
	case float32:
		return Integer(float64(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Integer(f)
		}
		return 0, false
	}
	return 0, false
}

// pollutedKeys are field names that must never be merged from untyped
// input. They carry over from deserializers that accept attacker-shaped
// JSON objects.
var pollutedKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// IsPollutedKey reports whether k is a prototype-pollution key.
func IsPollutedKey(k string) bool {
	_, bad := pollutedKeys[k]
	return bad
}

// SafeMap returns a shallow copy of m with prototype-pollution keys
// stripped, recursing into nested maps. A nil input yields a nil map.
func SafeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsPollutedKey(k) {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = SafeMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// IsPlainMap reports whether v is a plain string-keyed map. Arrays,
// strings, nil and scalars all fail.
func IsPlainMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
