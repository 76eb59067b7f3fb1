package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Upstream API
	UpstreamBaseURL string        `mapstructure:"SOFASCORE_BASE_URL"`
	MaxRetries      int           `mapstructure:"MAX_RETRIES"`
	ConnectTimeout  time.Duration `mapstructure:"CONNECT_TIMEOUT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// Proxies (host:port:username:password, comma-separated)
	Proxies []string `mapstructure:"PROXIES"`

	// Request pacing
	MinRequestInterval   time.Duration `mapstructure:"MIN_REQUEST_INTERVAL"`
	JitterMin            time.Duration `mapstructure:"JITTER_MIN"`
	JitterMax            time.Duration `mapstructure:"JITTER_MAX"`
	BackoffMin           time.Duration `mapstructure:"BACKOFF_MIN"`
	BackoffMax           time.Duration `mapstructure:"BACKOFF_MAX"`
	RateLimitCooldownMin time.Duration `mapstructure:"RATE_LIMIT_COOLDOWN_MIN"`
	RateLimitCooldownMax time.Duration `mapstructure:"RATE_LIMIT_COOLDOWN_MAX"`

	// Refresh scheduling
	RefreshInterval           time.Duration `mapstructure:"REFRESH_INTERVAL"`
	DegradedIntervalMultiplier int          `mapstructure:"DEGRADED_INTERVAL_MULTIPLIER"`
	SkipInitialFetch          bool          `mapstructure:"SKIP_INITIAL_FETCH"`

	// Failure thresholds
	DegradedThreshold   int `mapstructure:"DEGRADED_THRESHOLD"`
	CriticalThreshold   int `mapstructure:"CRITICAL_THRESHOLD"`
	ForceResetThreshold int `mapstructure:"FORCE_RESET_THRESHOLD"`

	// Staleness policy
	LiveStaleAfter         time.Duration `mapstructure:"LIVE_STALE_AFTER"`
	ScheduledStaleAfter    time.Duration `mapstructure:"SCHEDULED_STALE_AFTER"`
	ScheduledRetentionDays int           `mapstructure:"SCHEDULED_RETENTION_DAYS"`

	// Storage
	StorageBackend string `mapstructure:"STORAGE_BACKEND"` // "file" or "redis"
	DataDir        string `mapstructure:"DATA_DIR"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	// Incidents enrichment circuit breaker
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`
	ExternalAPITimeout      time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("CORS_ORIGINS", "*")

	viper.SetDefault("SOFASCORE_BASE_URL", "https://api.sofascore.com/api/v1")
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("CONNECT_TIMEOUT", "10s")
	viper.SetDefault("REQUEST_TIMEOUT", "30s")

	viper.SetDefault("PROXIES", "")

	viper.SetDefault("MIN_REQUEST_INTERVAL", "1s")
	viper.SetDefault("JITTER_MIN", "1s")
	viper.SetDefault("JITTER_MAX", "3s")
	viper.SetDefault("BACKOFF_MIN", "3s")
	viper.SetDefault("BACKOFF_MAX", "6s")
	viper.SetDefault("RATE_LIMIT_COOLDOWN_MIN", "10s")
	viper.SetDefault("RATE_LIMIT_COOLDOWN_MAX", "20s")

	viper.SetDefault("REFRESH_INTERVAL", "3m")
	viper.SetDefault("DEGRADED_INTERVAL_MULTIPLIER", 2)
	viper.SetDefault("SKIP_INITIAL_FETCH", false)

	viper.SetDefault("DEGRADED_THRESHOLD", 3)
	viper.SetDefault("CRITICAL_THRESHOLD", 5)
	viper.SetDefault("FORCE_RESET_THRESHOLD", 10)

	viper.SetDefault("LIVE_STALE_AFTER", "5m")
	viper.SetDefault("SCHEDULED_STALE_AFTER", "6h")
	viper.SetDefault("SCHEDULED_RETENTION_DAYS", 7)

	viper.SetDefault("STORAGE_BACKEND", "file")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")

	viper.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)
	viper.SetDefault("EXTERNAL_API_TIMEOUT", "10s")

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := viper.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	// Parse proxy list from comma-separated string
	config.Proxies = nil
	if proxyStr := viper.GetString("PROXIES"); proxyStr != "" {
		for _, p := range strings.Split(proxyStr, ",") {
			if p = strings.TrimSpace(p); p != "" {
				config.Proxies = append(config.Proxies, p)
			}
		}
	}

	if config.JitterMax < config.JitterMin {
		return nil, fmt.Errorf("JITTER_MAX (%s) must not be below JITTER_MIN (%s)", config.JitterMax, config.JitterMin)
	}
	if config.BackoffMax < config.BackoffMin {
		return nil, fmt.Errorf("BACKOFF_MAX (%s) must not be below BACKOFF_MIN (%s)", config.BackoffMax, config.BackoffMin)
	}

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
