// Package sentiment maps backend-specific classifier labels onto the three
// canonical sentiment categories.
package sentiment

import (
	"fmt"
	"slices"
	"strings"
)

// Category is one of the three canonical outcomes.
type Category string

const (
	Negative Category = "negative"
	Neutral  Category = "neutral"
	Positive Category = "positive"
)

// Categories lists every canonical category.
var Categories = []Category{Negative, Neutral, Positive}

// Normalize maps a raw classifier label onto a Category. Matching is a
// case-insensitive substring test checked in the order NEG, NEU, POS; labels
// that match none of them (LABEL_0, "", unknown vocabularies) are neutral.
func Normalize(raw string) Category {
	l := strings.ToUpper(raw)
	switch {
	case strings.Contains(l, "NEG"):
		return Negative
	case strings.Contains(l, "NEU"):
		return Neutral
	case strings.Contains(l, "POS"):
		return Positive
	default:
		return Neutral
	}
}

// NormalizeOptional is Normalize for labels that may be absent.
func NormalizeOptional(raw *string) Category {
	if raw == nil {
		return Normalize("")
	}
	return Normalize(*raw)
}

// ParseCategory parses an exact category name (case-insensitive). Unlike
// Normalize it rejects anything that is not a canonical name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the canonical categories.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

func (c Category) String() string { return string(c) }
