package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/emotion/internal/config"
)

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default().Classifier

	c, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gradio", c.Backend())
	assert.Equal(t, config.DefaultModelID, c.Model())

	cfg.Backend = "fake"
	cfg.Fake = config.FakeConfig{Label: "POSITIVE", Score: 0.8}
	c, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "fake", c.Backend())
	assert.Equal(t, config.DefaultModelID, c.Model())

	p, err := c.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, Prediction{Label: "POSITIVE", Score: 0.8}, p)

	cfg.Backend = "tensorflow"
	_, err = New(cfg)
	assert.Error(t, err)
}
