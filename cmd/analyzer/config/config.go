// Package config provides configuration parsing and management for the
// analyzer.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the analyzer including:
//   - Run identification and source locations (meter, estimator, resource)
//   - Alignment parameters (resolution, window, precedence, watts-per-core)
//   - Integration parameters (gap limit, worker count)
//   - Storage backend settings (memory or Redis)
//   - Serving, logging, and TLS configuration
//
// A YAML run manifest can be supplied via --manifest; manifest values
// override flag and environment values for the run parameters they name.
//
// Supported configuration sources (in order of precedence):
//  1. Run manifest file
//  2. Command-line flags
//  3. Environment variables
//  4. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/riiali/green-microbench/pkg/ingest"
	"github.com/riiali/green-microbench/pkg/timeline"
	"github.com/riiali/green-microbench/pkg/tls"
)

// Config holds all analyzer configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	TLS           tls.Config

	RunID        string
	ManifestFile string
	OutputFile   string
	Serve        bool
	RunTimeout   time.Duration
	FetchTimeout time.Duration

	MeterPath            string
	MeterTimestampPath   string
	MeterValuePath       string
	MeterTimestampFormat string
	MeterSkew            time.Duration

	EstimatorPath            string
	EstimatorTimestampPath   string
	EstimatorValuePath       string
	EstimatorTimestampFormat string

	ResourcePath         string
	ResourceServiceLabel string

	Resolution   time.Duration
	Window       time.Duration
	Precedence   string
	WattsPerCore float64

	MaxGap              time.Duration
	Workers             int
	MaxRejectedFraction float64
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided. Validation happens in Validate, after any manifest has been
// applied.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8083"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis report TTL")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server and source fetches")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for peer verification")

	flag.StringVar(&cfg.RunID, "run-id", getEnv("RUN_ID", ""), "Run identifier (required)")
	flag.StringVar(&cfg.ManifestFile, "manifest", getEnv("MANIFEST", ""), "YAML run manifest file")
	flag.StringVar(&cfg.OutputFile, "output", getEnv("OUTPUT", ""), "Write the report JSON to this file ('-' for stdout)")
	flag.BoolVar(&cfg.Serve, "serve", getEnvBool("SERVE", true), "Serve the report over HTTP after the run")
	flag.DurationVar(&cfg.RunTimeout, "run-timeout", getEnvDuration("RUN_TIMEOUT", 2*time.Minute), "Timeout for one analysis run")
	flag.DurationVar(&cfg.FetchTimeout, "fetch-timeout", getEnvDuration("FETCH_TIMEOUT", 30*time.Second), "Timeout for fetching URL sources")

	flag.StringVar(&cfg.MeterPath, "meter-path", getEnv("METER_PATH", ""), "Plug-meter NDJSON file or URL (required)")
	flag.StringVar(&cfg.MeterTimestampPath, "meter-ts-path", getEnv("METER_TS_PATH", ""), "gjson path to the meter timestamp (default ts)")
	flag.StringVar(&cfg.MeterValuePath, "meter-value-path", getEnv("METER_VALUE_PATH", ""), "gjson path to the meter power value (default power_w)")
	flag.StringVar(&cfg.MeterTimestampFormat, "meter-ts-format", getEnv("METER_TS_FORMAT", ""), "Meter timestamp format: rfc3339, unix, unix_milli")
	flag.DurationVar(&cfg.MeterSkew, "meter-skew", getEnvDuration("METER_SKEW", 2*time.Second), "Tolerated meter timestamp regression")

	flag.StringVar(&cfg.EstimatorPath, "estimator-path", getEnv("ESTIMATOR_PATH", ""), "Estimator JSON file or URL (required)")
	flag.StringVar(&cfg.EstimatorTimestampPath, "estimator-ts-path", getEnv("ESTIMATOR_TS_PATH", ""), "gjson path to the estimator timestamp (default ts)")
	flag.StringVar(&cfg.EstimatorValuePath, "estimator-value-path", getEnv("ESTIMATOR_VALUE_PATH", ""), "gjson path to the estimator power value (default power_w)")
	flag.StringVar(&cfg.EstimatorTimestampFormat, "estimator-ts-format", getEnv("ESTIMATOR_TS_FORMAT", ""), "Estimator timestamp format: rfc3339, unix, unix_milli")

	flag.StringVar(&cfg.ResourcePath, "resource-path", getEnv("RESOURCE_PATH", ""), "Resource monitor JSON file or URL")
	flag.StringVar(&cfg.ResourceServiceLabel, "resource-service-label", getEnv("RESOURCE_SERVICE_LABEL", ""), "Metric label holding the service name (default service)")

	flag.DurationVar(&cfg.Resolution, "resolution", getEnvDuration("RESOLUTION", 0), "Timeline resolution (0 = auto-detect)")
	flag.DurationVar(&cfg.Window, "window", getEnvDuration("WINDOW", 5*time.Second), "Nearest-neighbor estimate window")
	flag.StringVar(&cfg.Precedence, "precedence", getEnv("PRECEDENCE", string(timeline.PrecedenceEstimateFirst)), "Weight source precedence: estimate-first, resource-first, estimate-only, resource-only")
	flag.Float64Var(&cfg.WattsPerCore, "watts-per-core", getEnvFloat("WATTS_PER_CORE", 1.0), "Power-equivalent weight per CPU core")

	flag.DurationVar(&cfg.MaxGap, "max-gap", getEnvDuration("MAX_GAP", 0), "Widest inter-frame interval still integrated (0 = 3x resolution)")
	flag.IntVar(&cfg.Workers, "workers", getEnvInt("WORKERS", 0), "Integration worker count (0 = GOMAXPROCS)")
	flag.Float64Var(&cfg.MaxRejectedFraction, "max-rejected", getEnvFloat("MAX_REJECTED", ingest.DefaultMaxRejectedFraction), "Per-source rejected record fraction that aborts the run")

	flag.Parse()

	return cfg
}

var runIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// Validate checks the configuration after flags, environment, and any
// manifest have been merged.
func (c *Config) Validate() error {
	if c.RunID == "" {
		return fmt.Errorf("run-id is required")
	}
	if !runIDRegex.MatchString(c.RunID) {
		return fmt.Errorf("invalid run-id %q (must be alphanumeric with dash/underscore, 1-253 chars)", c.RunID)
	}

	if c.MeterPath == "" {
		return fmt.Errorf("meter-path is required")
	}
	if c.EstimatorPath == "" && c.Precedence != string(timeline.PrecedenceResourceOnly) {
		return fmt.Errorf("estimator-path is required unless precedence is resource-only")
	}
	if c.ResourcePath == "" && (c.Precedence == string(timeline.PrecedenceResourceOnly) || c.Precedence == string(timeline.PrecedenceResourceFirst)) {
		return fmt.Errorf("resource-path is required when precedence is %s", c.Precedence)
	}

	if !timeline.Precedence(c.Precedence).Valid() {
		return fmt.Errorf("invalid precedence %q", c.Precedence)
	}
	if c.WattsPerCore <= 0 {
		return fmt.Errorf("watts-per-core must be > 0")
	}
	if c.MaxRejectedFraction < 0 || c.MaxRejectedFraction >= 1 {
		return fmt.Errorf("max-rejected must be in [0, 1)")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 2 * time.Minute
	}

	switch c.Storage {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid storage backend %q (must be memory or redis)", c.Storage)
	}

	if err := c.TLS.Validate(); err != nil {
		return err
	}

	if !c.Serve && c.OutputFile == "" {
		return fmt.Errorf("output is required when serve is disabled")
	}

	return nil
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
