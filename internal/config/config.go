// Package config handles application configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Provider  ProviderConfig  `yaml:"provider"`
	Throttle  ThrottleConfig  `yaml:"throttle"`
	Cache     CacheConfig     `yaml:"cache"`
	Duplicate DuplicateConfig `yaml:"duplicate_detection"`
	Queue     QueueConfig     `yaml:"job_queue"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port              int `yaml:"port"`
	RequestsPerMinute int `yaml:"requests_per_minute"` // inbound API limit
}

type StoreConfig struct {
	Driver    string `yaml:"driver"` // sqlite, redis, memory
	Path      string `yaml:"path"`   // for sqlite
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

type ProviderConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

type ThrottleConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
	RequestsPerDay    int `yaml:"requests_per_day"`
	BurstLimit        int `yaml:"burst_limit"`
	QueueCapacity     int `yaml:"queue_capacity"`
}

type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	FastLayerSize int           `yaml:"fast_layer_size"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type DuplicateConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ConfidenceFloor     float64 `yaml:"confidence_floor"`
	BatchSize           int     `yaml:"batch_size"`
	PivotLanguage       string  `yaml:"pivot_language"`
}

type QueueConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Retention    time.Duration `yaml:"retention"`
	MaxNotifications int       `yaml:"max_notifications"`
}

type AnalyzerConfig struct {
	InFlightPollInterval time.Duration `yaml:"inflight_poll_interval"`
	InFlightTimeout      time.Duration `yaml:"inflight_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			RequestsPerMinute: 120,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "./data/trustlens.db",
		},
		Provider: ProviderConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Throttle: ThrottleConfig{
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			RequestsPerDay:    10000,
			BurstLimit:        10,
			QueueCapacity:     100,
		},
		Cache: CacheConfig{
			TTL:           24 * time.Hour,
			FastLayerSize: 1024,
			SweepInterval: time.Hour,
		},
		Duplicate: DuplicateConfig{
			SimilarityThreshold: 0.8,
			ConfidenceFloor:     0.6,
			BatchSize:           5,
			PivotLanguage:       "en",
		},
		Queue: QueueConfig{
			TickInterval:     5 * time.Second,
			Retention:        24 * time.Hour,
			MaxNotifications: 100,
		},
		Analyzer: AnalyzerConfig{
			InFlightPollInterval: 500 * time.Millisecond,
			InFlightTimeout:      30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (run with -generate-config to create one)", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate environment variables
	content := interpolateEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// GenerateSample creates a sample configuration file.
func GenerateSample(path string) error {
	sample := `# Trustlens Configuration
# See documentation for all options

server:
  port: 8080
  requests_per_minute: 120

store:
  driver: sqlite  # sqlite, redis or memory
  path: ./data/trustlens.db
  # redis_addr: localhost:6379
  # redis_db: 0

provider:
  provider: openai  # openai or anthropic
  model: gpt-4o-mini
  api_key: ${OPENAI_API_KEY}

  # For Anthropic Claude:
  # provider: anthropic
  # model: claude-3-haiku-20240307
  # api_key: ${ANTHROPIC_API_KEY}

throttle:
  requests_per_minute: 60
  requests_per_hour: 1000
  requests_per_day: 10000
  burst_limit: 10
  queue_capacity: 100

cache:
  ttl: 24h
  fast_layer_size: 1024
  sweep_interval: 1h

duplicate_detection:
  similarity_threshold: 0.8
  confidence_floor: 0.6
  batch_size: 5
  pivot_language: en

job_queue:
  tick_interval: 5s
  retention: 24h
  max_notifications: 100

analyzer:
  inflight_poll_interval: 500ms
  inflight_timeout: 30s

logging:
  level: info  # debug, info, warn, error
  format: json # json or text
`
	return os.WriteFile(path, []byte(sample), 0644)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Store.Driver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if c.Store.Driver == "redis" && c.Store.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required for the redis store driver")
	}

	validProviders := map[string]bool{"openai": true, "anthropic": true}
	if !validProviders[c.Provider.Provider] {
		return fmt.Errorf("unsupported analysis provider: %s", c.Provider.Provider)
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("%s API key is required", c.Provider.Provider)
	}

	if c.Throttle.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive")
	}
	if c.Throttle.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be positive")
	}

	if c.Duplicate.SimilarityThreshold <= 0 || c.Duplicate.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0,1]")
	}
	if c.Duplicate.ConfidenceFloor < 0 || c.Duplicate.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor must be in [0,1]")
	}

	return nil
}

// interpolateEnvVars replaces ${VAR_NAME} with environment variable values.
func interpolateEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match // Keep original if not set
	})
}
