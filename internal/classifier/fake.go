package classifier

import (
	"context"
	"sync/atomic"
)

// Fake returns a fixed prediction, or whatever Script computes. It is used by
// tests and the offline "fake" backend.
type Fake struct {
	Label   string
	Score   float64
	Err     error
	Script  func(text string) (Prediction, error)
	ModelID string

	calls atomic.Int64
}

func NewFake(label string, score float64) *Fake {
	return &Fake{Label: label, Score: score, ModelID: "fake"}
}

func (f *Fake) Classify(ctx context.Context, text string) (Prediction, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if f.Err != nil {
		return Prediction{}, f.Err
	}
	if f.Script != nil {
		return f.Script(text)
	}
	return Prediction{Label: f.Label, Score: f.Score}, nil
}

// Calls returns how many times Classify ran.
func (f *Fake) Calls() int64 { return f.calls.Load() }

func (f *Fake) Model() string {
	if f.ModelID == "" {
		return "fake"
	}
	return f.ModelID
}

func (f *Fake) Backend() string { return "fake" }
func (f *Fake) Close() error    { return nil }
