// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/salesops/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Crawl4AI Crawl4AIConfig `yaml:"crawl4ai" mapstructure:"crawl4ai"`
	Agent    AgentConfig    `yaml:"agent" mapstructure:"agent"`
	Events   EventsConfig   `yaml:"events" mapstructure:"events"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Crawl4AIConfig holds discovery provider settings.
type Crawl4AIConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	// CrawlIntervalSecs throttles deep crawls against the provider.
	CrawlIntervalSecs int `yaml:"crawl_interval_secs" mapstructure:"crawl_interval_secs"`
	// BreakerFailureThreshold is the consecutive provider failures that open
	// the circuit; BreakerResetTimeoutSecs is how long it stays open.
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetTimeoutSecs int `yaml:"breaker_reset_timeout_secs" mapstructure:"breaker_reset_timeout_secs"`
}

// AgentConfig configures the discovery pipeline.
type AgentConfig struct {
	MaxResults         int     `yaml:"max_results" mapstructure:"max_results"`
	MinFitScore        float64 `yaml:"min_fit_score" mapstructure:"min_fit_score"`
	CrawlTopN          int     `yaml:"crawl_top_n" mapstructure:"crawl_top_n"`
	CrawlMaxPages      int     `yaml:"crawl_max_pages" mapstructure:"crawl_max_pages"`
	ApprovalExpiryDays int     `yaml:"approval_expiry_days" mapstructure:"approval_expiry_days"`
}

// EventsConfig configures event handler retries.
type EventsConfig struct {
	RetryMaxAttempts      int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryMultiplier       float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitterFraction   float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SALESOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "salesops.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("crawl4ai.base_url", "http://localhost:8001")
	v.SetDefault("crawl4ai.crawl_interval_secs", 2)
	v.SetDefault("crawl4ai.breaker_failure_threshold", 5)
	v.SetDefault("crawl4ai.breaker_reset_timeout_secs", 30)
	v.SetDefault("agent.max_results", 100)
	v.SetDefault("agent.min_fit_score", 40)
	v.SetDefault("agent.crawl_top_n", 10)
	v.SetDefault("agent.crawl_max_pages", 5)
	v.SetDefault("agent.approval_expiry_days", 7)
	v.SetDefault("events.retry_max_attempts", 1)
	v.SetDefault("events.retry_initial_backoff_ms", 200)
	v.SetDefault("events.retry_max_backoff_ms", 2000)
	v.SetDefault("events.retry_multiplier", 2.0)
	v.SetDefault("events.retry_jitter_fraction", 0.25)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that have no workable fallback.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
