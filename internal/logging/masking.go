// Package logging provides helpers for masking sensitive data in debug logs.
package logging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// sensitiveHeaders are masked in full when logged.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-access-code": true,
	"cookie":        true,
}

// MaskHeader masks the value of sensitive headers, keeping a short prefix so
// operators can still correlate requests.
func MaskHeader(name, value string) string {
	if !sensitiveHeaders[strings.ToLower(name)] {
		return value
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:8] + "***"
}

// MaskJSONBody masks all string values in a JSON body except those whose
// field names appear in the allowlist. Non-JSON bodies are returned as-is.
// A nil allowlist disables masking entirely.
func MaskJSONBody(body []byte, allowlist []string) []byte {
	if allowlist == nil {
		return body
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, field := range allowlist {
		allowed[strings.ToLower(field)] = true
	}

	masked := maskValue(data, allowed)
	out, err := json.Marshal(masked)
	if err != nil {
		return body
	}
	return out
}

func maskValue(v any, allowed map[string]bool) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, inner := range val {
			if allowed[strings.ToLower(k)] {
				result[k] = inner
				continue
			}
			switch typed := inner.(type) {
			case string:
				result[k] = maskString(typed)
			case map[string]any, []any:
				result[k] = maskValue(typed, allowed)
			default:
				result[k] = inner
			}
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, inner := range val {
			result[i] = maskValue(inner, allowed)
		}
		return result
	default:
		return v
	}
}

func maskString(s string) string {
	if len(s) <= 4 {
		return "***"
	}
	return s[:4] + "***"
}

// FormatBinaryData summarises non-UTF8 payloads instead of logging raw bytes.
func FormatBinaryData(data []byte) string {
	return fmt.Sprintf("<binary data, %d bytes>", len(data))
}
