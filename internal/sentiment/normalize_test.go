package sentiment

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Category
	}{
		{name: "positive upper", raw: "POSITIVE", want: Positive},
		{name: "negative lower", raw: "negative", want: Negative},
		{name: "neutral upper", raw: "NEUTRAL", want: Neutral},
		{name: "empty", raw: "", want: Neutral},
		{name: "backend code", raw: "LABEL_0", want: Neutral},
		{name: "short neg", raw: "neg", want: Negative},
		{name: "short pos", raw: "Pos", want: Positive},
		{name: "short neu", raw: "nEu", want: Neutral},
		{name: "localized unknown", raw: "olumsuz", want: Neutral},
		{name: "neg beats pos", raw: "POS_OR_NEG", want: Negative},
		{name: "neg beats neu", raw: "neutral-negative", want: Negative},
		{name: "neu beats pos", raw: "positive/neutral", want: Neutral},
		{name: "unicode", raw: "😀 mutlu", want: Neutral},
		{name: "unicode with match", raw: "çok POSitif", want: Positive},
		{name: "whitespace", raw: "   ", want: Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeOptional(t *testing.T) {
	assert.Equal(t, Neutral, NormalizeOptional(nil))

	label := "Negative"
	assert.Equal(t, Negative, NormalizeOptional(&label))
}

func TestNormalizeIsTotalAndCaseInsensitive(t *testing.T) {
	inputs := []string{
		"", "a", "NEG", "neu", "pos", "LABEL_1", "Olumlu", "nötr", "\x00\xff", "ＮＥＧ",
		strings.Repeat("x", 10000), "positive negative neutral", "İPOS",
	}
	for _, in := range inputs {
		got := Normalize(in)
		require.True(t, got.Valid(), "input %q produced %q", in, got)
		assert.Equal(t, got, Normalize(strings.ToUpper(in)), "upper of %q", in)
		assert.Equal(t, got, Normalize(strings.ToLower(in)), "lower of %q", in)
	}
}

func TestNormalizeConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, Positive, Normalize("positive"))
			}
		}()
	}
	wg.Wait()
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Positive ")
	require.NoError(t, err)
	assert.Equal(t, Positive, c)

	_, err = ParseCategory("pos")
	assert.Error(t, err)

	for _, want := range Categories {
		got, err := ParseCategory(strings.ToUpper(string(want)))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.False(t, Category("mixed").Valid())
}

func TestNewResult(t *testing.T) {
	r := NewResult("LABEL_2", 0.87)
	assert.Equal(t, "LABEL_2", r.LabelRaw)
	assert.InDelta(t, 0.87, r.Score, 1e-9)
	assert.Equal(t, Neutral, r.Label)
}
