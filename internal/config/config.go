package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModelID       = "savasy/bert-base-turkish-sentiment-cased"
	DefaultGradioBaseURL = "https://mustafaep-emotion-analyzer.hf.space"
)

// Config holds the emotion analyzer configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
	Activation ActivationConfig `yaml:"activation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr                string        `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	MaxRequestBodyBytes int64         `yaml:"max_request_body_bytes"`
	MaxInFlightRequests int           `yaml:"max_in_flight_requests"`
	ReadHeaderTimeout   time.Duration `yaml:"read_header_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
}

// ClassifierConfig selects the backend that produces (label, score) pairs.
type ClassifierConfig struct {
	Backend string       `yaml:"backend"`  // gradio | onnx | fake
	ModelID string       `yaml:"model_id"` // pretrained model identifier
	Gradio  GradioConfig `yaml:"gradio"`
	ONNX    ONNXConfig   `yaml:"onnx"`
	Fake    FakeConfig   `yaml:"fake"`
}

type GradioConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIName          string        `yaml:"api_name"` // e.g. "analyze" -> /gradio_api/call/analyze
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

type ONNXConfig struct {
	ModelsDir         string `yaml:"models_dir"` // model_id is resolved below this directory
	SharedLibraryPath string `yaml:"shared_library_path"`
	SeqLen            int    `yaml:"seq_len"`
}

type FakeConfig struct {
	Label string  `yaml:"label"`
	Score float64 `yaml:"score"`
}

type StoreConfig struct {
	Type     string `yaml:"type"` // memory | postgres
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type CacheConfig struct {
	Type       string        `yaml:"type"` // none | memory | redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type LoggingConfig struct {
	Level           string `yaml:"level"`            // debug | info | warn | error
	Format          string `yaml:"format"`           // json | console
	ActivationLevel string `yaml:"activation_level"` // metadata | redacted | full
}

type ActivationConfig struct {
	QueueSize int                    `yaml:"queue_size"`
	Workers   int                    `yaml:"workers"`
	Sinks     []ActivationSinkConfig `yaml:"sinks"`
}

type ActivationSinkConfig struct {
	Type      string            `yaml:"type"` // stdout | file_jsonl | webhook
	Path      string            `yaml:"path"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	TimeoutMs int               `yaml:"timeout_ms"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
}

// Load reads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := defaultConfig()
	applyDefaults(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Classifier: ClassifierConfig{
			Backend: "gradio",
			ModelID: DefaultModelID,
			Gradio: GradioConfig{
				BaseURL:    DefaultGradioBaseURL,
				APIName:    "analyze",
				MaxRetries: 3,
				RetryDelay: 700 * time.Millisecond,
			},
		},
		Store: StoreConfig{
			Type: "memory",
		},
		Cache: CacheConfig{
			Type: "memory",
		},
		Logging: LoggingConfig{
			Level:           "info",
			Format:          "json",
			ActivationLevel: "metadata",
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxRequestBodyBytes <= 0 {
		cfg.Server.MaxRequestBodyBytes = 64 * 1024
	}
	if cfg.Server.MaxInFlightRequests <= 0 {
		cfg.Server.MaxInFlightRequests = 64
	}
	if cfg.Server.ReadHeaderTimeout <= 0 {
		cfg.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Classifier.Backend == "" {
		cfg.Classifier.Backend = "gradio"
	}
	if cfg.Classifier.ModelID == "" {
		cfg.Classifier.ModelID = DefaultModelID
	}
	if cfg.Classifier.Gradio.BaseURL == "" {
		cfg.Classifier.Gradio.BaseURL = DefaultGradioBaseURL
	}
	if cfg.Classifier.Gradio.APIName == "" {
		cfg.Classifier.Gradio.APIName = "analyze"
	}
	if cfg.Classifier.Gradio.MaxRetries <= 0 {
		cfg.Classifier.Gradio.MaxRetries = 3
	}
	if cfg.Classifier.Gradio.RetryDelay <= 0 {
		cfg.Classifier.Gradio.RetryDelay = 700 * time.Millisecond
	}
	if cfg.Classifier.Gradio.Timeout <= 0 {
		cfg.Classifier.Gradio.Timeout = 30 * time.Second
	}
	if cfg.Classifier.Gradio.MaxResponseBytes <= 0 {
		cfg.Classifier.Gradio.MaxResponseBytes = 1024 * 1024
	}
	if cfg.Classifier.ONNX.ModelsDir == "" {
		cfg.Classifier.ONNX.ModelsDir = "models"
	}
	if cfg.Classifier.ONNX.SeqLen <= 0 {
		cfg.Classifier.ONNX.SeqLen = 128
	}
	if cfg.Classifier.Fake.Label == "" {
		cfg.Classifier.Fake.Label = "neutral"
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.MaxConns <= 0 {
		cfg.Store.MaxConns = 8
	}

	if cfg.Cache.Type == "" {
		cfg.Cache.Type = "memory"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 1024
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = "localhost:6379"
	}
	if cfg.Cache.Redis.KeyPrefix == "" {
		cfg.Cache.Redis.KeyPrefix = "emotion:"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.ActivationLevel == "" {
		cfg.Logging.ActivationLevel = "metadata"
	}

	if cfg.Activation.QueueSize <= 0 {
		cfg.Activation.QueueSize = 1000
	}
	if cfg.Activation.Workers <= 0 {
		cfg.Activation.Workers = 1
	}

	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "emotion"
	}
}
