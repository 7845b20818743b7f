package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.MaxRequestBodyBytes < 0 {
		return errors.New("server.max_request_body_bytes must not be negative")
	}

	if err := validateClassifierConfig(cfg.Classifier); err != nil {
		return err
	}
	if err := validateStoreConfig(cfg.Store); err != nil {
		return err
	}
	if err := validateCacheConfig(cfg.Cache); err != nil {
		return err
	}
	if err := validateLoggingConfig(cfg.Logging); err != nil {
		return err
	}
	if err := validateActivationConfig(cfg.Activation); err != nil {
		return err
	}
	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateClassifierConfig(c ClassifierConfig) error {
	if strings.TrimSpace(c.ModelID) == "" {
		return errors.New("classifier.model_id must be set")
	}
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "gradio":
		if err := validateHTTPURL("classifier.gradio.base_url", c.Gradio.BaseURL); err != nil {
			return err
		}
		if strings.ContainsAny(c.Gradio.APIName, "/?#") {
			return fmt.Errorf("classifier.gradio.api_name %q must be a bare name", c.Gradio.APIName)
		}
		if c.Gradio.MaxRetries < 1 {
			return errors.New("classifier.gradio.max_retries must be at least 1")
		}
	case "onnx":
		if strings.TrimSpace(c.ONNX.ModelsDir) == "" {
			return errors.New("classifier.onnx.models_dir must be set")
		}
		if strings.Contains(c.ModelID, "..") {
			return fmt.Errorf("classifier.model_id %q must not contain '..'", c.ModelID)
		}
	case "fake":
		if c.Fake.Score < 0 || c.Fake.Score > 1 {
			return fmt.Errorf("classifier.fake.score must be within [0,1], got %v", c.Fake.Score)
		}
	default:
		return fmt.Errorf("classifier.backend must be gradio, onnx or fake, got %q", c.Backend)
	}
	return nil
}

func validateStoreConfig(s StoreConfig) error {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "memory":
		return nil
	case "postgres":
		if strings.TrimSpace(s.DSN) == "" {
			return errors.New("store.dsn must be set for postgres store")
		}
		return nil
	default:
		return fmt.Errorf("store.type must be memory or postgres, got %q", s.Type)
	}
}

func validateCacheConfig(c CacheConfig) error {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "none", "memory":
		return nil
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("cache.redis.addr must be set for redis cache")
		}
		return nil
	default:
		return fmt.Errorf("cache.type must be none, memory or redis, got %q", c.Type)
	}
}

func validateLoggingConfig(l LoggingConfig) error {
	switch strings.ToLower(strings.TrimSpace(l.ActivationLevel)) {
	case "", "metadata", "redacted", "full":
	default:
		return fmt.Errorf("logging.activation_level must be metadata, redacted or full, got %q", l.ActivationLevel)
	}
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", l.Format)
	}
	return nil
}

func validateActivationConfig(a ActivationConfig) error {
	for i, s := range a.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "stdout":
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("activation sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("activation sink %d (webhook) missing url", i)
			}
			if err := validateHTTPURL(fmt.Sprintf("activation sink %d (webhook) url", i), s.URL); err != nil {
				return err
			}
		default:
			return fmt.Errorf("activation sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not a valid url", field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https", field)
	}
	return nil
}
