// Package classifier produces raw (label, score) predictions from a
// pretrained sentiment model. Normalization into categories happens in the
// sentiment package.
package classifier

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable reports that the model could not be reached or loaded.
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrMalformedResponse reports a model response that could not be parsed.
	ErrMalformedResponse = errors.New("malformed classifier response")
)

// Prediction is the raw output of a model for one text.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	// Cached is set when the prediction came from the prediction cache.
	Cached bool `json:"-"`
}

// Classifier is a long-lived handle to one pretrained model.
type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
	// Model returns the configured model identifier.
	Model() string
	// Backend returns the backend name (gradio, onnx, fake).
	Backend() string
	Close() error
}

// UpstreamError is returned when a remote model answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedResponse}, args...)...)
}
