package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/compliance-intelligence/internal/cache"
	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/feedback"
	"github.com/Veraticus/compliance-intelligence/internal/fuzzy"
	"github.com/Veraticus/compliance-intelligence/internal/learning"
	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/reasoning"
)

// Config is the complete runtime configuration.
type Config struct {
	Logging   LoggingConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Reasoning ReasoningConfig
	Cache     CacheConfig
	Learning  LearningConfig
	Feedback  FeedbackConfig
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// ReasoningConfig configures the external reasoning service.
type ReasoningConfig struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	Temperature   float64
	MaxTokens     int
	RateLimit     int
	MaxConcurrent int
}

// FuzzyConfig holds the near-duplicate acceptance rule.
type FuzzyConfig struct {
	MinScore        float64
	MinSharedTokens int
	MaxCandidates   int
}

// CacheConfig configures the solution cache.
type CacheConfig struct {
	Fuzzy        FuzzyConfig
	WaitTimeout  time.Duration
	SuccessPrior float64
	Alpha        float64
}

// LearningConfig configures the learning cycle and its scheduler.
type LearningConfig struct {
	Interval      time.Duration
	Lookback      time.Duration
	MinSampleSize int
	Incremental   bool
}

// FeedbackConfig configures feedback collection and archival.
type FeedbackConfig struct {
	Retention time.Duration
	QueueSize int
}

// SetDefaults registers default values for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", defaultDatabasePath())

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("reasoning.provider", "anthropic")
	v.SetDefault("reasoning.model", "claude-sonnet-4-5")
	v.SetDefault("reasoning.max_tokens", 1024)
	v.SetDefault("reasoning.temperature", 0.2)
	v.SetDefault("reasoning.rate_limit", 50)
	v.SetDefault("reasoning.max_concurrent", 4)
	v.SetDefault("reasoning.timeout", 60*time.Second)

	v.SetDefault("cache.success_prior", model.DefaultSuccessPrior)
	v.SetDefault("cache.alpha", cache.DefaultAlpha)
	v.SetDefault("cache.wait_timeout", 30*time.Second)
	v.SetDefault("cache.fuzzy.min_shared_tokens", cache.DefaultMinSharedTokens)
	v.SetDefault("cache.fuzzy.min_score", cache.DefaultMinScore)
	v.SetDefault("cache.fuzzy.max_candidates", fuzzy.DefaultMaxCandidates)

	v.SetDefault("learning.interval", learning.DefaultInterval)
	v.SetDefault("learning.lookback", learning.DefaultLookback)
	v.SetDefault("learning.min_sample_size", learning.DefaultMinSampleSize)
	v.SetDefault("learning.incremental", false)

	v.SetDefault("feedback.retention", feedback.DefaultRetention)
	v.SetDefault("feedback.queue_size", feedback.DefaultQueueSize)
}

// Load reads the configuration from v, applying defaults for unset keys.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Reasoning: ReasoningConfig{
			Provider:      v.GetString("reasoning.provider"),
			APIKey:        v.GetString("reasoning.api_key"),
			Model:         v.GetString("reasoning.model"),
			BaseURL:       v.GetString("reasoning.base_url"),
			Timeout:       v.GetDuration("reasoning.timeout"),
			Temperature:   v.GetFloat64("reasoning.temperature"),
			MaxTokens:     v.GetInt("reasoning.max_tokens"),
			RateLimit:     v.GetInt("reasoning.rate_limit"),
			MaxConcurrent: v.GetInt("reasoning.max_concurrent"),
		},
		Cache: CacheConfig{
			Fuzzy: FuzzyConfig{
				MinScore:        v.GetFloat64("cache.fuzzy.min_score"),
				MinSharedTokens: v.GetInt("cache.fuzzy.min_shared_tokens"),
				MaxCandidates:   v.GetInt("cache.fuzzy.max_candidates"),
			},
			WaitTimeout:  v.GetDuration("cache.wait_timeout"),
			SuccessPrior: v.GetFloat64("cache.success_prior"),
			Alpha:        v.GetFloat64("cache.alpha"),
		},
		Learning: LearningConfig{
			Interval:      v.GetDuration("learning.interval"),
			Lookback:      v.GetDuration("learning.lookback"),
			MinSampleSize: v.GetInt("learning.min_sample_size"),
			Incremental:   v.GetBool("learning.incremental"),
		},
		Feedback: FeedbackConfig{
			Retention: v.GetDuration("feedback.retention"),
			QueueSize: v.GetInt("feedback.queue_size"),
		},
	}

	// Fall back to the provider's conventional environment variable.
	if cfg.Reasoning.APIKey == "" && cfg.Reasoning.Provider == "anthropic" {
		cfg.Reasoning.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Database.Path == "" {
		return invalid("database.path is required")
	}
	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout must be positive")
	}
	if c.Reasoning.Provider != "anthropic" {
		return invalid("unsupported reasoning.provider %q", c.Reasoning.Provider)
	}
	if c.Reasoning.MaxTokens <= 0 {
		return invalid("reasoning.max_tokens must be positive")
	}
	if c.Reasoning.Temperature < 0 || c.Reasoning.Temperature > 1 {
		return invalid("reasoning.temperature must be within [0, 1]")
	}
	if c.Reasoning.RateLimit < 0 || c.Reasoning.MaxConcurrent < 0 {
		return invalid("reasoning.rate_limit and reasoning.max_concurrent must not be negative")
	}
	if c.Cache.Alpha <= 0 || c.Cache.Alpha > 1 {
		return invalid("cache.alpha must be within (0, 1]")
	}
	if c.Cache.SuccessPrior < 0 || c.Cache.SuccessPrior > 1 {
		return invalid("cache.success_prior must be within [0, 1]")
	}
	if c.Cache.Fuzzy.MinScore < 0 || c.Cache.Fuzzy.MinScore > 1 {
		return invalid("cache.fuzzy.min_score must be within [0, 1]")
	}
	if c.Cache.Fuzzy.MinSharedTokens <= 0 {
		return invalid("cache.fuzzy.min_shared_tokens must be positive")
	}
	if c.Learning.Interval <= 0 || c.Learning.Lookback <= 0 {
		return invalid("learning.interval and learning.lookback must be positive")
	}
	if c.Learning.MinSampleSize <= 0 {
		return invalid("learning.min_sample_size must be positive")
	}
	if c.Feedback.Retention <= 0 {
		return invalid("feedback.retention must be positive")
	}
	if c.Feedback.QueueSize <= 0 {
		return invalid("feedback.queue_size must be positive")
	}
	return nil
}

// ReasoningOptions converts the reasoning section into reasoning.Config.
func (c *Config) ReasoningOptions() reasoning.Config {
	return reasoning.Config{
		Provider:      c.Reasoning.Provider,
		APIKey:        c.Reasoning.APIKey,
		Model:         c.Reasoning.Model,
		BaseURL:       c.Reasoning.BaseURL,
		Timeout:       c.Reasoning.Timeout,
		Temperature:   c.Reasoning.Temperature,
		MaxTokens:     c.Reasoning.MaxTokens,
		RateLimit:     c.Reasoning.RateLimit,
		MaxConcurrent: c.Reasoning.MaxConcurrent,
	}
}

// CacheOptions converts the cache section into cache.Options.
func (c *Config) CacheOptions(logger *slog.Logger) cache.Options {
	return cache.Options{
		Logger:          logger,
		WaitTimeout:     c.Cache.WaitTimeout,
		Alpha:           c.Cache.Alpha,
		SuccessPrior:    c.Cache.SuccessPrior,
		MinScore:        c.Cache.Fuzzy.MinScore,
		MinSharedTokens: c.Cache.Fuzzy.MinSharedTokens,
		MaxCandidates:   c.Cache.Fuzzy.MaxCandidates,
	}
}

// LearningOptions converts the learning section into learning.Options.
func (c *Config) LearningOptions(logger *slog.Logger) learning.Options {
	return learning.Options{
		Logger:        logger,
		Lookback:      c.Learning.Lookback,
		MinSampleSize: c.Learning.MinSampleSize,
		BaselinePrior: c.Cache.SuccessPrior,
		Incremental:   c.Learning.Incremental,
	}
}

// FeedbackOptions converts the feedback section into feedback.Options.
func (c *Config) FeedbackOptions(logger *slog.Logger) feedback.Options {
	return feedback.Options{
		Logger:    logger,
		QueueSize: c.Feedback.QueueSize,
		Retention: c.Feedback.Retention,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cie.db"
	}
	return filepath.Join(home, ".local", "share", "cie", "cie.db")
}
