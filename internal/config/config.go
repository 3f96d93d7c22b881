// Package config loads and validates the logrelay configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the LRL_ prefix (e.g. LRL_SHIPPER_ENDPOINT
// overrides shipper.endpoint in the YAML). This layering allows the same binary
// to run with a config.yaml in local development and with pure environment
// variables in containerized deployments.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Shipper   ShipperConfig   `mapstructure:"shipper"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds the admin HTTP server configuration. The admin API
// carries no authentication of its own and is expected to bind to a private
// address behind whatever gateway handles identity.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// RootDir is the content root; the trail file lives at FilePath under it.
	RootDir string `mapstructure:"root_dir"`
	// FilePath is the trail file location relative to RootDir.
	FilePath string `mapstructure:"file_path"`
	// MaxRecords caps the trail size; oldest records are evicted past it.
	MaxRecords int `mapstructure:"max_records"`
	// RetentionDays drives the periodic age-based rotation. 0 disables it.
	RetentionDays int `mapstructure:"retention_days"`
	// CaptureReadOperations records GET requests on the admin API too.
	CaptureReadOperations bool `mapstructure:"capture_read_operations"`
	// CaptureFailedRequests records requests that ended in a 4xx/5xx status.
	CaptureFailedRequests bool `mapstructure:"capture_failed_requests"`
}

// ShipperConfig holds remote log shipping configuration
type ShipperConfig struct {
	// Enabled gates shipping; it defaults to true so configuring an endpoint
	// is enough to turn shipping on.
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the base URL of the Loki-compatible push service. Empty
	// means console-only logging.
	Endpoint string `mapstructure:"endpoint"`
	// Environment is attached to every shipped batch as a stream label.
	Environment string `mapstructure:"environment"`
	// FlushDelay is the coalescing window between the first buffered line and
	// the flush that delivers it.
	FlushDelay time.Duration `mapstructure:"flush_delay"`
	// Timeout bounds one push request.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yaml in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/logrelay")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("LRL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind environment variables for nested structures.
	// This is necessary because AutomaticEnv() doesn't work well with Unmarshal()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the loaded configuration for values that would only fail
// later at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Audit.MaxRecords < 1 {
		return fmt.Errorf("audit.max_records must be positive, got %d", c.Audit.MaxRecords)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative, got %d", c.Audit.RetentionDays)
	}
	if c.Shipper.Endpoint != "" {
		u, err := url.Parse(c.Shipper.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("shipper.endpoint must be an absolute URL, got %q", c.Shipper.Endpoint)
		}
	}
	if c.Telemetry.Metrics.Enabled {
		if p := c.Telemetry.Metrics.PrometheusPort; p < 1 || p > 65535 {
			return fmt.Errorf("telemetry.metrics.prometheus_port must be between 1 and 65535, got %d", p)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Audit trail defaults
	v.SetDefault("audit.root_dir", ".")
	v.SetDefault("audit.file_path", "content/auth/logs/admin-activity.json")
	v.SetDefault("audit.max_records", 1000)
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.capture_read_operations", false)
	v.SetDefault("audit.capture_failed_requests", false)

	// Shipper defaults. Enabled defaults true so setting an endpoint is all
	// it takes to start shipping.
	v.SetDefault("shipper.enabled", true)
	v.SetDefault("shipper.endpoint", "")
	v.SetDefault("shipper.environment", "development")
	v.SetDefault("shipper.flush_delay", "1s")
	v.SetDefault("shipper.timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Telemetry defaults
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
}

// bindEnvVars explicitly binds every configuration key so nested values
// survive Unmarshal when supplied purely through the environment.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",

		// Audit trail
		"audit.root_dir",
		"audit.file_path",
		"audit.max_records",
		"audit.retention_days",
		"audit.capture_read_operations",
		"audit.capture_failed_requests",

		// Shipper
		"shipper.enabled",
		"shipper.endpoint",
		"shipper.environment",
		"shipper.flush_delay",
		"shipper.timeout",

		// Logging
		"logging.level",
		"logging.format",
		"logging.output",

		// Telemetry
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}
