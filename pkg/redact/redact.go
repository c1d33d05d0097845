package redact

import "strings"

const mask = "***"

// Key fragments that mark a field as sensitive.
var sensitiveWords = []string{"password", "token", "secret", "credential", "apikey", "api_key"}

// Sensitive reports whether a field name looks like it carries a secret.
// Bare "key" is deliberately matched too; SDKs routinely use it for API keys.
func Sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range sensitiveWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return strings.Contains(lower, "key")
}

// Value walks a decoded JSON value and masks entries under sensitive keys.
// The input is not modified; maps and slices are copied as needed.
func Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if Sensitive(k) {
				out[k] = mask
			} else {
				out[k] = Value(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	default:
		return v
	}
}
