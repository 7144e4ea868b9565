// pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Config represents the runtime configuration of the cleaner
type Config struct {
	// Optional database connections; nil when not configured
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig

	// Pipeline settings
	WorkerPoolSize int // 0 means use runtime.NumCPU()

	// Report store
	ReportStoreDriver string // postgres or sqlite; empty disables persistence
	ReportStoreDSN    string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		WorkerPoolSize:    getEnvAsInt("WORKER_POOL_SIZE", 0),
		ReportStoreDriver: strings.ToLower(getEnv("REPORT_STORE_DRIVER", "")),
		ReportStoreDSN:    getEnv("REPORT_STORE_DSN", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
	}

	// Database groups are optional; a group is skipped when its first required variable is unset
	if os.Getenv("SNOWFLAKE_ACCOUNT") != "" {
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load Snowflake configuration")
		}
		cfg.Snowflake = snowConfig
	}

	if os.Getenv("POSTGRES_USER") != "" {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load PostgreSQL configuration")
		}
		cfg.Postgres = pgConfig
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures the configuration is consistent
func (c *Config) Validate() error {
	if c.WorkerPoolSize < 0 {
		return errors.New("worker pool size cannot be negative")
	}

	switch c.ReportStoreDriver {
	case "":
	case "postgres", "sqlite":
		if c.ReportStoreDSN == "" {
			return errors.Newf("REPORT_STORE_DSN is required for report store driver %q", c.ReportStoreDriver)
		}
	default:
		return errors.Newf("unsupported report store driver %q", c.ReportStoreDriver)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf("unsupported log level %q", c.LogLevel)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return errors.Newf("unsupported log format %q", c.LogFormat)
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
