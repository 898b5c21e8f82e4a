// Package config provides configuration management for the paper evaluation
// pipeline.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the paper evaluation pipeline.
type Config struct {
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains model gateway settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Pipeline contains batch orchestration settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Scoring contains rubric, tier, and rescaling settings.
	Scoring ScoringConfig `mapstructure:"scoring"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`
	// Namespace is the metric name prefix.
	Namespace string `mapstructure:"namespace"`
}

// LLMConfig holds model gateway configuration.
type LLMConfig struct {
	// Provider is the model provider (openai, anthropic, gemini, ollama).
	Provider string `mapstructure:"provider"`
	// Temperature is the sampling temperature for summarization and scoring.
	Temperature float32 `mapstructure:"temperature"`
	// TriageTemperature is the sampling temperature for relevance triage.
	TriageTemperature float32 `mapstructure:"triage_temperature"`
	// MaxTokens caps completion length for summarization and scoring.
	MaxTokens int `mapstructure:"max_tokens"`
	// TriageMaxTokens caps completion length for triage calls.
	TriageMaxTokens int `mapstructure:"triage_max_tokens"`
	// Timeout is the timeout for a single model call.
	Timeout time.Duration `mapstructure:"timeout"`
	// Retry controls backoff on transient provider failures.
	Retry RetryConfig `mapstructure:"retry"`
	// RateLimitRPS is the outbound request rate limit; zero disables limiting.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	// RateLimitBurst is the burst size for the rate limiter.
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	// Gemini contains Google Gemini-specific settings.
	Gemini GeminiConfig `mapstructure:"gemini"`
	// Ollama contains local Ollama settings.
	Ollama OllamaConfig `mapstructure:"ollama"`
}

// RetryConfig holds exponential backoff settings for model calls.
type RetryConfig struct {
	// Multiplier is the exponential growth factor between waits.
	Multiplier float64 `mapstructure:"multiplier"`
	// MinWait is the wait before the first retry.
	MinWait time.Duration `mapstructure:"min_wait"`
	// MaxWait caps the wait between retries.
	MaxWait time.Duration `mapstructure:"max_wait"`
	// MaxAttempts is the total number of attempts, including the first call.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from PAPEREVAL_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from PAPEREVAL_LLM_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini-specific settings.
type GeminiConfig struct {
	// APIKey is the Gemini API key (loaded from PAPEREVAL_LLM_GEMINI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Gemini model name.
	Model string `mapstructure:"model"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	// Endpoint is the Ollama base URL.
	Endpoint string `mapstructure:"endpoint"`
	// Model is the Ollama model identifier.
	Model string `mapstructure:"model"`
}

// PipelineConfig holds batch orchestration configuration.
type PipelineConfig struct {
	// SummaryBatchSize is the default number of papers per summarization batch.
	SummaryBatchSize int `mapstructure:"summary_batch_size"`
	// ScoreBatchSize is the default number of papers per scoring batch.
	ScoreBatchSize int `mapstructure:"score_batch_size"`
	// RefreshBatchSize is the batch size used when force-reprocessing.
	RefreshBatchSize int `mapstructure:"refresh_batch_size"`
}

// ScoringConfig holds rubric, tier, and rescaling configuration.
type ScoringConfig struct {
	// Dimensions defines the rubric dimensions and their integer ranges.
	Dimensions []DimensionConfig `mapstructure:"dimensions"`
	// Tiers defines the tier cut lines, highest threshold first.
	Tiers []TierConfig `mapstructure:"tiers"`
	// MinReasoningLength is the minimum length of the reasoning field.
	MinReasoningLength int `mapstructure:"min_reasoning_length"`
	// SummaryTruncateLength caps the summary text included in scoring prompts.
	SummaryTruncateLength int `mapstructure:"summary_truncate_length"`
	// Rescale controls statistical score rescaling.
	Rescale RescaleConfig `mapstructure:"rescale"`
}

// DimensionConfig defines one rubric dimension.
type DimensionConfig struct {
	// Name is the canonical dimension name.
	Name string `mapstructure:"name"`
	// Min is the inclusive lower bound.
	Min int `mapstructure:"min"`
	// Max is the inclusive upper bound.
	Max int `mapstructure:"max"`
}

// TierConfig defines one tier cut line.
type TierConfig struct {
	// Tier is the tier letter.
	Tier string `mapstructure:"tier"`
	// MinScore is the minimum composite score for the tier.
	MinScore int `mapstructure:"min_score"`
}

// RescaleConfig holds statistical rescaling settings.
type RescaleConfig struct {
	// Enabled turns rescaling on.
	Enabled bool `mapstructure:"enabled"`
	// Mode is "global" or "grouped".
	Mode string `mapstructure:"mode"`
	// TargetMean is the mean scores are shifted toward.
	TargetMean float64 `mapstructure:"target_mean"`
	// TargetStd is the standard deviation scores are stretched toward.
	TargetStd float64 `mapstructure:"target_std"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAPEREVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-eval-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv("PAPEREVAL_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv("PAPEREVAL_LLM_ANTHROPIC_API_KEY")
	cfg.LLM.Gemini.APIKey = os.Getenv("PAPEREVAL_LLM_GEMINI_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "papereval")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "paper_eval_service")
	// Default to "require" for production security. Use PAPEREVAL_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "papereval")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.triage_temperature", 0.1)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.triage_max_tokens", 100)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.retry.multiplier", 2)
	v.SetDefault("llm.retry.min_wait", "5s")
	v.SetDefault("llm.retry.max_wait", "90s")
	v.SetDefault("llm.retry.max_attempts", 8)
	v.SetDefault("llm.rate_limit_rps", 0.0)
	v.SetDefault("llm.rate_limit_burst", 1)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.anthropic.model", "claude-3-5-sonnet-latest")
	v.SetDefault("llm.anthropic.base_url", "")
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.ollama.endpoint", "http://localhost:11434")
	v.SetDefault("llm.ollama.model", "llama3.1:8b")

	// Pipeline defaults
	v.SetDefault("pipeline.summary_batch_size", 10)
	v.SetDefault("pipeline.score_batch_size", 10)
	v.SetDefault("pipeline.refresh_batch_size", 100)

	// Scoring defaults
	v.SetDefault("scoring.dimensions", []map[string]interface{}{
		{"name": "novelty", "min": 0, "max": 3},
		{"name": "utility", "min": 0, "max": 1},
		{"name": "results", "min": 0, "max": 2},
		{"name": "access", "min": 0, "max": 1},
	})
	v.SetDefault("scoring.tiers", []map[string]interface{}{
		{"tier": "S", "min_score": 7},
		{"tier": "A", "min_score": 5},
		{"tier": "B", "min_score": 4},
		{"tier": "C", "min_score": 2},
		{"tier": "D", "min_score": 0},
	})
	v.SetDefault("scoring.min_reasoning_length", 8)
	v.SetDefault("scoring.summary_truncate_length", 1500)
	v.SetDefault("scoring.rescale.enabled", false)
	v.SetDefault("scoring.rescale.mode", "global")
	v.SetDefault("scoring.rescale.target_mean", 3.5)
	v.SetDefault("scoring.rescale.target_std", 1.5)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate retry config
	if c.LLM.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("llm retry max_attempts must be positive")
	}
	if c.LLM.Retry.Multiplier < 1 {
		return fmt.Errorf("llm retry multiplier must be >= 1")
	}
	if c.LLM.Retry.MinWait <= 0 || c.LLM.Retry.MaxWait < c.LLM.Retry.MinWait {
		return fmt.Errorf("llm retry waits are invalid: min %s, max %s", c.LLM.Retry.MinWait, c.LLM.Retry.MaxWait)
	}

	// Validate pipeline batch sizes
	if c.Pipeline.SummaryBatchSize <= 0 {
		return fmt.Errorf("pipeline summary_batch_size must be positive")
	}
	if c.Pipeline.ScoreBatchSize <= 0 {
		return fmt.Errorf("pipeline score_batch_size must be positive")
	}
	if c.Pipeline.RefreshBatchSize <= 0 {
		return fmt.Errorf("pipeline refresh_batch_size must be positive")
	}

	// Validate scoring config
	if len(c.Scoring.Dimensions) == 0 {
		return fmt.Errorf("at least one scoring dimension is required")
	}
	for _, d := range c.Scoring.Dimensions {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("scoring dimension name cannot be empty")
		}
		if d.Min > d.Max {
			return fmt.Errorf("scoring dimension %q has min %d > max %d", d.Name, d.Min, d.Max)
		}
	}
	if len(c.Scoring.Tiers) == 0 {
		return fmt.Errorf("at least one tier is required")
	}
	if c.Scoring.MinReasoningLength < 0 {
		return fmt.Errorf("scoring min_reasoning_length cannot be negative")
	}
	if c.Scoring.SummaryTruncateLength <= 0 {
		return fmt.Errorf("scoring summary_truncate_length must be positive")
	}

	switch strings.ToLower(c.Scoring.Rescale.Mode) {
	case "global", "grouped":
	default:
		return fmt.Errorf("invalid rescale mode: %s", c.Scoring.Rescale.Mode)
	}
	if c.Scoring.Rescale.Enabled && c.Scoring.Rescale.TargetStd <= 0 {
		return fmt.Errorf("rescale target_std must be positive when rescaling is enabled")
	}

	return nil
}
