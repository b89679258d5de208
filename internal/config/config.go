package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/storage"
)

// Config is the complete runtime configuration.
type Config struct {
	Database       DatabaseConfig
	Redis          RedisConfig
	Cache          CacheConfig
	LLM            LLMConfig
	Classification ClassificationConfig
	Server         ServerConfig
	Logging        LoggingConfig
}

// DatabaseConfig selects the rule store backend.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// RedisConfig points at the shared cache. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig controls categorization caching.
type CacheConfig struct {
	Prefix string
	TTL    time.Duration
}

// LLMConfig configures the external classifier.
type LLMConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	RetryDelay        time.Duration
	MaxRetries        int
	MaxTokens         int
	Seed              int
	RequestsPerMinute int
	Temperature       float64
}

// ClassificationConfig tunes the rule pass.
type ClassificationConfig struct {
	ConfidenceThreshold   float64
	ContainmentConfidence float64
	FuzzyEnabled          bool
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", storage.DriverSQLite)
	v.SetDefault("database.dsn", DefaultDatabasePath())
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.prefix", "ai_cache")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.max_tokens", 1500)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.seed", 12345)
	v.SetDefault("llm.requests_per_minute", 60)
	v.SetDefault("classification.confidence_threshold", 0.8)
	v.SetDefault("classification.containment_confidence", 0.8)
	v.SetDefault("classification.fuzzy_enabled", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load builds a validated Config from v. Keys missing from v fall back to
// their defaults, and the API key falls back to OPENAI_API_KEY.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			Prefix: v.GetString("cache.prefix"),
			TTL:    v.GetDuration("cache.ttl"),
		},
		LLM: LLMConfig{
			APIKey:            v.GetString("llm.api_key"),
			Model:             v.GetString("llm.model"),
			BaseURL:           v.GetString("llm.base_url"),
			Timeout:           v.GetDuration("llm.timeout"),
			RetryDelay:        v.GetDuration("llm.retry_delay"),
			MaxRetries:        v.GetInt("llm.max_retries"),
			MaxTokens:         v.GetInt("llm.max_tokens"),
			Seed:              v.GetInt("llm.seed"),
			RequestsPerMinute: v.GetInt("llm.requests_per_minute"),
			Temperature:       v.GetFloat64("llm.temperature"),
		},
		Classification: ClassificationConfig{
			ConfidenceThreshold:   v.GetFloat64("classification.confidence_threshold"),
			ContainmentConfidence: v.GetFloat64("classification.containment_confidence"),
			FuzzyEnabled:          v.GetBool("classification.fuzzy_enabled"),
		},
		Server:  ServerConfig{Addr: v.GetString("server.addr")},
		Logging: LoggingConfig{Level: v.GetString("logging.level"), Format: v.GetString("logging.format")},
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Database.Driver == storage.DriverSQLite {
		cfg.Database.DSN = ExpandPath(cfg.Database.DSN)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case storage.DriverSQLite, storage.DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", common.ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn", common.ErrMissingConfig)
	}
	if !inUnitInterval(c.Classification.ConfidenceThreshold) {
		return fmt.Errorf("%w: confidence_threshold %v outside (0, 1]", common.ErrInvalidConfig, c.Classification.ConfidenceThreshold)
	}
	if !inUnitInterval(c.Classification.ContainmentConfidence) {
		return fmt.Errorf("%w: containment_confidence %v outside (0, 1]", common.ErrInvalidConfig, c.Classification.ContainmentConfidence)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache.ttl must be positive", common.ErrInvalidConfig)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("%w: llm.timeout must be positive", common.ErrInvalidConfig)
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxTokens < 0 || c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: llm limits must not be negative", common.ErrInvalidConfig)
	}
	if c.Logging.Format != "" && c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: logging.format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

func inUnitInterval(f float64) bool {
	return f > 0 && f <= 1
}
