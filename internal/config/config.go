package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the civiciq API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// PostgresConfig holds complaint store connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds the vector pool / broadcast store settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds redis key settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// BroadcastConfig holds live-update channel settings.
type BroadcastConfig struct {
	Channel string `yaml:"channel"`
}

// AIConfig holds classifier and embedding provider settings.
type AIConfig struct {
	Gemini          GeminiConfig `yaml:"gemini"`
	OpenAI          OpenAIConfig `yaml:"openai"`
	EmbeddingDriver string       `yaml:"embedding_driver"` // gemini, openai (default: gemini)
	Dimensions      int          `yaml:"dimensions"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey          string `yaml:"api_key"`
	ClassifierModel string `yaml:"classifier_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
}

// OpenAIConfig holds OpenAI-compatible embedding provider settings.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// PipelineConfig holds intake pipeline tuning. These values are exposed via
// Snapshot and read fresh at the start of each pipeline run.
type PipelineConfig struct {
	RateLimitMax        int     `yaml:"rate_limit_max"`
	RateLimitWindowSec  int     `yaml:"rate_limit_window_sec"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	SeverityWeightLow   float64 `yaml:"severity_weight_low"`
	SeverityWeightMed   float64 `yaml:"severity_weight_medium"`
	SeverityWeightHigh  float64 `yaml:"severity_weight_high"`
	CallTimeoutSec      int     `yaml:"call_timeout_sec"`
	PipelineTimeoutSec  int     `yaml:"pipeline_timeout_sec"`
	RescoreIntervalSec  int     `yaml:"rescore_interval_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "civiciq:"
	}
	if c.Broadcast.Channel == "" {
		c.Broadcast.Channel = "civiciq:events"
	}
	if c.AI.EmbeddingDriver == "" {
		c.AI.EmbeddingDriver = "gemini"
	}
	if c.AI.Gemini.ClassifierModel == "" {
		c.AI.Gemini.ClassifierModel = "gemini-1.5-flash"
	}
	if c.AI.Gemini.EmbeddingModel == "" {
		c.AI.Gemini.EmbeddingModel = "text-embedding-004"
	}
	if c.AI.Dimensions <= 0 {
		c.AI.Dimensions = 768
	}
	if c.Pipeline.RateLimitMax <= 0 {
		c.Pipeline.RateLimitMax = 5
	}
	if c.Pipeline.RateLimitWindowSec <= 0 {
		c.Pipeline.RateLimitWindowSec = 3600
	}
	if c.Pipeline.SimilarityThreshold <= 0 {
		c.Pipeline.SimilarityThreshold = 0.85
	}
	if c.Pipeline.SeverityWeightLow <= 0 {
		c.Pipeline.SeverityWeightLow = 1
	}
	if c.Pipeline.SeverityWeightMed <= 0 {
		c.Pipeline.SeverityWeightMed = 5
	}
	if c.Pipeline.SeverityWeightHigh <= 0 {
		c.Pipeline.SeverityWeightHigh = 10
	}
	if c.Pipeline.CallTimeoutSec <= 0 {
		c.Pipeline.CallTimeoutSec = 10
	}
	if c.Pipeline.PipelineTimeoutSec <= 0 {
		c.Pipeline.PipelineTimeoutSec = 20
	}
	if c.Pipeline.RescoreIntervalSec <= 0 {
		c.Pipeline.RescoreIntervalSec = 3600
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	switch c.AI.EmbeddingDriver {
	case "gemini", "openai":
		// ok
	default:
		return fmt.Errorf("ai.embedding_driver must be \"gemini\" or \"openai\", got %q", c.AI.EmbeddingDriver)
	}
	if c.Pipeline.SimilarityThreshold >= 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be below 1, got %v", c.Pipeline.SimilarityThreshold)
	}
	return nil
}

// RateLimitWindow returns the admission window as a duration.
func (c *PipelineConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
