package telemetry

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Keys containing any of these never reach a span.
var denyKeys = []string{
	"text",
	"username",
	"password",
	"authorization",
	"api_key",
	"token",
	"email",
	"dsn",
}

const maxAttrLen = 256

// SafeAttributes drops sensitive keys, over-long strings and unsupported
// value types.
func SafeAttributes(values map[string]any) []attribute.KeyValue {
	if len(values) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(values))
	for k, v := range values {
		if denied(k) {
			continue
		}
		switch val := v.(type) {
		case string:
			if len(val) > maxAttrLen {
				continue
			}
			attrs = append(attrs, attribute.String(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		}
	}
	return attrs
}

func denied(key string) bool {
	lk := strings.ToLower(key)
	for _, bad := range denyKeys {
		if strings.Contains(lk, bad) {
			return true
		}
	}
	return false
}
