package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "gradio", cfg.Classifier.Backend)
	assert.Equal(t, DefaultModelID, cfg.Classifier.ModelID)
	assert.Equal(t, DefaultGradioBaseURL, cfg.Classifier.Gradio.BaseURL)
	assert.Equal(t, 3, cfg.Classifier.Gradio.MaxRetries)
	assert.Equal(t, 700*time.Millisecond, cfg.Classifier.Gradio.RetryDelay)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "metadata", cfg.Logging.ActivationLevel)
	require.NoError(t, Validate(cfg))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emotion.yaml")
	data := `
server:
  addr: ":9090"
classifier:
  backend: onnx
  model_id: cardiffnlp/twitter-roberta-base-sentiment
  onnx:
    models_dir: /var/lib/models
    seq_len: 256
  gradio:
    retry_delay: 2s
store:
  type: postgres
  dsn: postgres://emotion@localhost/emotion
cache:
  type: redis
  ttl: 1m
activation:
  sinks:
    - type: file_jsonl
      path: /tmp/events.jsonl
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	clearEnv(t)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "onnx", cfg.Classifier.Backend)
	assert.Equal(t, "cardiffnlp/twitter-roberta-base-sentiment", cfg.Classifier.ModelID)
	assert.Equal(t, "/var/lib/models", cfg.Classifier.ONNX.ModelsDir)
	assert.Equal(t, 256, cfg.Classifier.ONNX.SeqLen)
	assert.Equal(t, 2*time.Second, cfg.Classifier.Gradio.RetryDelay)
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	require.Len(t, cfg.Activation.Sinks, 1)
	require.NoError(t, Validate(cfg))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_ID", "nlptown/bert-base-multilingual-uncased-sentiment")
	t.Setenv("PORT", "10000")
	t.Setenv("EMOTION_SERVICE_BASE_URL", "https://example.hf.space")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/emotion")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "nlptown/bert-base-multilingual-uncased-sentiment", cfg.Classifier.ModelID)
	assert.Equal(t, "0.0.0.0:10000", cfg.Server.Addr)
	assert.Equal(t, "https://example.hf.space", cfg.Classifier.Gradio.BaseURL)
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, "postgres://u:p@db/emotion", cfg.Store.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Classifier.Backend = "bogus" },
			wantErr: "classifier.backend",
		},
		{
			name:    "empty model id",
			mutate:  func(c *Config) { c.Classifier.ModelID = " " },
			wantErr: "classifier.model_id",
		},
		{
			name:    "gradio bad scheme",
			mutate:  func(c *Config) { c.Classifier.Gradio.BaseURL = "ftp://example.com" },
			wantErr: "http or https",
		},
		{
			name: "onnx model escapes models dir",
			mutate: func(c *Config) {
				c.Classifier.Backend = "onnx"
				c.Classifier.ModelID = "../etc"
			},
			wantErr: "must not contain",
		},
		{
			name: "fake score out of range",
			mutate: func(c *Config) {
				c.Classifier.Backend = "fake"
				c.Classifier.Fake.Score = 1.5
			},
			wantErr: "classifier.fake.score",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Store.Type = "postgres" },
			wantErr: "store.dsn",
		},
		{
			name:    "unknown cache",
			mutate:  func(c *Config) { c.Cache.Type = "memcached" },
			wantErr: "cache.type",
		},
		{
			name:    "bad activation level",
			mutate:  func(c *Config) { c.Logging.ActivationLevel = "everything" },
			wantErr: "activation_level",
		},
		{
			name: "webhook without url",
			mutate: func(c *Config) {
				c.Activation.Sinks = []ActivationSinkConfig{{Type: "webhook"}}
			},
			wantErr: "missing url",
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
			},
			wantErr: "endpoint is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNil(t *testing.T) {
	assert.Error(t, Validate(nil))
}
