package masking

import "strings"

// Mask replaces sensitive values before an exchange is stored.
const Mask = "********"

var sensitiveKeys = map[string]struct{}{
	"api_key":  {},
	"key":      {},
	"password": {},
}

func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Sanitize returns a copy of the input with sensitive values masked at any depth.
// The input is never mutated.
func Sanitize(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		if IsSensitiveKey(key) {
			masked[key] = Mask
			continue
		}
		masked[key] = sanitizeValue(value)
	}
	return masked
}

func sanitizeValue(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return Sanitize(cast)
	case map[string]string:
		out := make(map[string]any, len(cast))
		for key, v := range cast {
			if IsSensitiveKey(key) {
				out[key] = Mask
				continue
			}
			out[key] = v
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, Sanitize(item))
		}
		return out
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return value
	}
}
