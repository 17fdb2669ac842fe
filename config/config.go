package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the facequant service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Quantizer  QuantizerConfig  `yaml:"quantizer"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Reducer    ReducerConfig    `yaml:"reducer"`
	Encoder    EncoderConfig    `yaml:"encoder"`
	Cache      CacheConfig      `yaml:"cache"`
	Batch      BatchConfig      `yaml:"batch"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       float64       `yaml:"rate_limit"` // Requests per second (0 = disabled)
	RateBurst       int           `yaml:"rate_burst"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// QuantizerConfig holds the logarithmic compression parameters.
type QuantizerConfig struct {
	Base float64 `yaml:"base"`
	Bias float64 `yaml:"bias"`
}

// ThresholdsConfig holds one match threshold per representation.
type ThresholdsConfig struct {
	Quantized float64 `yaml:"quantized"`
	Reduced   float64 `yaml:"reduced"`
}

// ReducerConfig holds the PCA projection configuration.
type ReducerConfig struct {
	ModelPath string `yaml:"model_path"` // Empty disables reduction
}

// EncoderConfig holds face encoder configuration.
type EncoderConfig struct {
	Provider         string        `yaml:"provider"` // "remote", "mock"
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	Dimension        int           `yaml:"dimension"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryMaxElapsed  time.Duration `yaml:"retry_max_elapsed"`
	BreakerFailures  uint32        `yaml:"breaker_failures"`
	BreakerOpenAfter time.Duration `yaml:"breaker_open_timeout"`
}

// CacheConfig holds embedding cache configuration.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
	Persist bool          `yaml:"persist"`
	Path    string        `yaml:"path"` // Defaults to .facequant/cache.db
}

// BatchConfig holds batch embedding configuration.
type BatchConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Workers  int      `yaml:"workers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "localhost:8000",
			MaxUploadBytes:  10 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       0,
			RateBurst:       20,
			AllowedOrigins:  []string{"*"},
		},
		Quantizer: QuantizerConfig{
			Base: 1.00049,
			Bias: 50,
		},
		Thresholds: ThresholdsConfig{
			Quantized: 1.0,
			Reduced:   7.0,
		},
		Encoder: EncoderConfig{
			Provider:         "remote",
			BaseURL:          "http://localhost:8500",
			Model:            "buffalo_l",
			Dimension:        512,
			Timeout:          30 * time.Second,
			RetryMaxElapsed:  10 * time.Second,
			BreakerFailures:  5,
			BreakerOpenAfter: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: false,
			MaxSize: 1000,
			TTL:     10 * time.Minute,
			Persist: false,
		},
		Batch: BatchConfig{
			Includes: []string{"**/*.jpg", "**/*.jpeg", "**/*.png", "**/*.gif", "**/*.JPG", "**/*.JPEG", "**/*.PNG"},
			Excludes: []string{"**/.git/**", "**/.facequant/**", "**/__MACOSX/**"},
			Workers:  4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for facequant.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "facequant.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".facequant", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail at request time.
func (c *Config) Validate() error {
	if !(c.Quantizer.Base > 1) {
		return fmt.Errorf("quantizer.base must be > 1, got %v", c.Quantizer.Base)
	}
	if !(c.Thresholds.Quantized > 0) {
		return fmt.Errorf("thresholds.quantized must be > 0, got %v", c.Thresholds.Quantized)
	}
	if !(c.Thresholds.Reduced > 0) {
		return fmt.Errorf("thresholds.reduced must be > 0, got %v", c.Thresholds.Reduced)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	switch c.Encoder.Provider {
	case "remote":
		if c.Encoder.BaseURL == "" {
			return fmt.Errorf("encoder.base_url is required for the remote provider")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown encoder provider: %s", c.Encoder.Provider)
	}
	if c.Encoder.Dimension < 0 {
		return fmt.Errorf("encoder.dimension must not be negative")
	}
	if c.Cache.Enabled && c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive")
	}
	return nil
}

// CacheDBPath returns the path to the persistent embedding cache.
func CacheDBPath(dir string) string {
	return filepath.Join(dir, ".facequant", "cache.db")
}

// EnsureDataDir ensures the .facequant directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".facequant"), 0755)
}
