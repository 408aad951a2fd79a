// Package config provides configuration parsing and management for occugridd.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the service including:
//   - HTTP listen address
//   - Data directory for the day-bucketed occupancy logs
//   - Latest-result backend selection (memory or redis) and Redis settings
//   - Detection thresholds (human temperature window, baseline margin,
//     cluster size bounds)
//   - Logging configuration (level, format)
//   - TLS configuration (cert, key, CA files)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/occugrid/occugrid/pkg/tls"
)

// Config holds all occugridd configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	DataDir string

	LatestBackend string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	TLS tls.Config

	MinHumanTemp   float64
	MaxHumanTemp   float64
	BaselineMargin float64
	MinClusterSize int
	MaxClusterSize int

	MaxBodyBytes int64
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided. Exits the process on invalid configuration.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8090"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.DataDir, "data-dir", getEnv("DATA_DIR", "data"), "Directory for day-bucketed occupancy logs")

	flag.StringVar(&cfg.LatestBackend, "latest-backend", getEnv("LATEST_BACKEND", "memory"), "Latest-result backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 30*time.Minute), "Redis latest-result TTL")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.Float64Var(&cfg.MinHumanTemp, "min-human-temp", getEnvFloat("MIN_HUMAN_TEMP", 30.0), "Lower bound of the human temperature window (Celsius)")
	flag.Float64Var(&cfg.MaxHumanTemp, "max-human-temp", getEnvFloat("MAX_HUMAN_TEMP", 45.0), "Upper bound of the human temperature window (Celsius)")
	flag.Float64Var(&cfg.BaselineMargin, "baseline-margin", getEnvFloat("BASELINE_MARGIN", 0.5), "Required margin above room baseline (Celsius)")
	flag.IntVar(&cfg.MinClusterSize, "min-cluster-size", getEnvInt("MIN_CLUSTER_SIZE", 3), "Minimum warm-cluster size counted as a person")
	flag.IntVar(&cfg.MaxClusterSize, "max-cluster-size", getEnvInt("MAX_CLUSTER_SIZE", 200), "Maximum warm-cluster size counted as a person")

	flag.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", getEnvInt64("MAX_BODY_BYTES", 1<<20), "Maximum accepted upload body size in bytes")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data-dir cannot be empty")
	}

	if c.LatestBackend != "memory" && c.LatestBackend != "redis" {
		return fmt.Errorf("invalid latest-backend %q (must be memory or redis)", c.LatestBackend)
	}
	if c.LatestBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis-addr is required when latest-backend=redis")
	}

	if c.MinHumanTemp >= c.MaxHumanTemp {
		return fmt.Errorf("min-human-temp (%.1f) must be below max-human-temp (%.1f)", c.MinHumanTemp, c.MaxHumanTemp)
	}
	if c.BaselineMargin < 0 {
		return fmt.Errorf("baseline-margin cannot be negative")
	}

	if c.MinClusterSize < 1 {
		return fmt.Errorf("min-cluster-size must be >= 1")
	}
	if c.MaxClusterSize < c.MinClusterSize {
		return fmt.Errorf("max-cluster-size (%d) < min-cluster-size (%d)", c.MaxClusterSize, c.MinClusterSize)
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max-body-bytes must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level %q (must be debug, info, warn, or error)", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format %q (must be text or json)", c.LogFormat)
	}

	return c.TLS.Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var i int64
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
