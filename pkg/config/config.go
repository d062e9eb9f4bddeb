package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Builds database (durable client-side store)
	BuildsDBPath string `mapstructure:"BUILDS_DB_PATH"`

	// Redis (normalized pool cache)
	RedisURL string `mapstructure:"REDIS_URL"`

	// Solver endpoints
	SolverStreamURL string        `mapstructure:"SOLVER_STREAM_URL"`
	SolverBatchURL  string        `mapstructure:"SOLVER_BATCH_URL"`
	SolverTimeout   time.Duration `mapstructure:"SOLVER_TIMEOUT"`

	// Projection feeds
	FeedBaseURL       string        `mapstructure:"FEED_BASE_URL"`
	FeedTimeout       time.Duration `mapstructure:"FEED_TIMEOUT"`
	FeedRefreshCron   string        `mapstructure:"FEED_REFRESH_CRON"`
	FeedRatePerMinute int           `mapstructure:"FEED_RATE_PER_MINUTE"`
	PoolCacheTTL      time.Duration `mapstructure:"POOL_CACHE_TTL"`

	// Optimization defaults
	MaxLineups         int `mapstructure:"MAX_LINEUPS"`
	DefaultTimeLimitMs int `mapstructure:"DEFAULT_TIME_LIMIT_MS"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BUILDS_DB_PATH", "builds.db")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("SOLVER_STREAM_URL", "http://localhost:9000/solve/stream")
	viper.SetDefault("SOLVER_BATCH_URL", "http://localhost:9000/solve")
	viper.SetDefault("SOLVER_TIMEOUT", "120s")
	viper.SetDefault("FEED_BASE_URL", "http://localhost:9090/data")
	viper.SetDefault("FEED_TIMEOUT", "15s")
	viper.SetDefault("FEED_REFRESH_CRON", "@every 30m")
	viper.SetDefault("FEED_RATE_PER_MINUTE", 10)
	viper.SetDefault("POOL_CACHE_TTL", "10m")
	viper.SetDefault("MAX_LINEUPS", 150)
	viper.SetDefault("DEFAULT_TIME_LIMIT_MS", 30000)
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")

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

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
