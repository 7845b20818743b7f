package classifier

import (
	"fmt"
	"strings"

	"github.com/straja-ai/emotion/internal/config"
)

// New builds the backend named by cfg.Backend.
func New(cfg config.ClassifierConfig) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "gradio":
		g, err := NewGradio(cfg.Gradio, cfg.ModelID)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "onnx":
		m, err := NewONNX(cfg.ONNX, cfg.ModelID)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "fake":
		f := NewFake(cfg.Fake.Label, cfg.Fake.Score)
		f.ModelID = cfg.ModelID
		return f, nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}
