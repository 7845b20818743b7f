package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.port":                    "PORT",
	"classifier.backend":             "CLASSIFIER_BACKEND",
	"classifier.model_id":            "MODEL_ID",
	"classifier.gradio.base_url":     "EMOTION_SERVICE_BASE_URL",
	"classifier.onnx.models_dir":     "MODELS_DIR",
	"classifier.onnx.shared_library": "ONNXRUNTIME_SHARED_LIBRARY_PATH",
	"store.dsn":                      "DATABASE_URL",
	"cache.redis.addr":               "REDIS_ADDR",
	"cache.redis.password":           "REDIS_PASSWORD",
	"logging.level":                  "LOG_LEVEL",
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if port := strings.TrimSpace(v.GetString("server.port")); port != "" {
		cfg.Server.Addr = "0.0.0.0:" + port
	}
	setString(v, "classifier.backend", &cfg.Classifier.Backend)
	setString(v, "classifier.model_id", &cfg.Classifier.ModelID)
	setString(v, "classifier.gradio.base_url", &cfg.Classifier.Gradio.BaseURL)
	setString(v, "classifier.onnx.models_dir", &cfg.Classifier.ONNX.ModelsDir)
	setString(v, "classifier.onnx.shared_library", &cfg.Classifier.ONNX.SharedLibraryPath)
	if setString(v, "store.dsn", &cfg.Store.DSN) && cfg.Store.Type == "memory" {
		cfg.Store.Type = "postgres"
	}
	setString(v, "cache.redis.addr", &cfg.Cache.Redis.Addr)
	setString(v, "cache.redis.password", &cfg.Cache.Redis.Password)
	setString(v, "logging.level", &cfg.Logging.Level)
	return nil
}

func setString(v *viper.Viper, key string, dst *string) bool {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" {
		return false
	}
	*dst = val
	return true
}
