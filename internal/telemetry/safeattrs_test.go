package telemetry

import (
	"testing"
)

func TestSafeAttributesFiltersSecrets(t *testing.T) {
	kvs := map[string]any{
		"emotion.text":  "should drop",
		"username":      "erhan",
		"api_key":       "sk-123",
		"store.dsn":     "postgres://u:p@h/db",
		"safe_key":      "ok",
		"long_string":   string(make([]byte, 600)),
		"score":         0.5,
		"retries":       3,
		"cached":        true,
		"unsupported":   []string{"a"},
		"authorization": "secret",
	}

	attrs := SafeAttributes(kvs)
	got := map[string]bool{}
	for _, a := range attrs {
		got[string(a.Key)] = true
	}
	for _, bad := range []string{"emotion.text", "username", "api_key", "store.dsn", "authorization", "long_string", "unsupported"} {
		if got[bad] {
			t.Fatalf("unexpected attribute %s", bad)
		}
	}
	for _, ok := range []string{"safe_key", "score", "retries", "cached"} {
		if !got[ok] {
			t.Fatalf("missing attribute %s", ok)
		}
	}
}
