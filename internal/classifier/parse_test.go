package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabelScore(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		label string
		score float64
	}{
		{
			name:  "array of predictions",
			raw:   `[{"label":"POSITIVE","score":0.98}]`,
			label: "POSITIVE",
			score: 0.98,
		},
		{
			name:  "array falls back to label_raw",
			raw:   `[{"label_raw":"negative","score":0.7}]`,
			label: "negative",
			score: 0.7,
		},
		{
			name:  "array without label or score",
			raw:   `[{"foo":1}]`,
			label: "unknown",
			score: 0,
		},
		{
			name:  "single object",
			raw:   `{"label":"NEU","score":0.51}`,
			label: "NEU",
			score: 0.51,
		},
		{
			name:  "nested data envelope",
			raw:   `{"data":[[{"label":"LABEL_1","score":0.66}]]}`,
			label: "LABEL_1",
			score: 0.66,
		},
		{
			name:  "flat data envelope",
			raw:   `{"data":[{"label":"positive","score":0.9}]}`,
			label: "positive",
			score: 0.9,
		},
		{
			name:  "leading whitespace",
			raw:   "\n  {\"label\":\"POS\",\"score\":1}",
			label: "POS",
			score: 1,
		},
		{
			name:  "string score",
			raw:   `[{"label":"positive","score":"0.25"}]`,
			label: "positive",
			score: 0.25,
		},
		{
			name:  "sse complete event",
			raw:   "event: generating\ndata: [{\"label\":\"NEG\",\"score\":0.1}]\n\nevent: complete\ndata: [{\"label_raw\":\"POSITIVE\",\"score\":0.93,\"label\":\"positive\"}]\n\n",
			label: "positive",
			score: 0.93,
		},
		{
			name:  "sse crlf and mixed case",
			raw:   "Event: Complete\r\nDATA: [{\"label\":\"negative\",\"score\":0.8}]\r\n",
			label: "negative",
			score: 0.8,
		},
		{
			name:  "sse without complete takes first data line",
			raw:   "event: heartbeat\ndata: {\"label\":\"NEUTRAL\",\"score\":0.4}\ndata: {\"label\":\"POSITIVE\",\"score\":0.9}\n",
			label: "NEUTRAL",
			score: 0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseLabelScore(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.label, p.Label)
			assert.InDelta(t, tt.score, p.Score, 1e-9)
		})
	}
}

func TestParseLabelScoreMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"whitespace":         "   \n",
		"no data line":       "event: complete\n\n",
		"empty data":         "event: complete\ndata:\n",
		"invalid json":       "{not json",
		"null data":          "event: error\ndata: null\n",
		"empty array":        "[]",
		"object wrong shape": `{"result":"ok"}`,
		"non-object item":    `["POSITIVE"]`,
		"bad score":          `{"label":"POS","score":"high"}`,
		"empty data array":   `{"data":[]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLabelScore(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}
