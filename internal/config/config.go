// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level portal configuration.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Poller    PollerConfig    `yaml:"poller"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GatewayConfig holds settings for the portal's upstream API gateway.
type GatewayConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	MaxRPS    float64       `yaml:"max_rps"` // 0 = unlimited
}

// AuthConfig selects how gateway requests are authenticated.
type AuthConfig struct {
	Mode string `yaml:"mode"` // "none", "api_key", "oauth2", "sigv4"

	APIKey       string `yaml:"api_key"`        // api_key mode
	APIKeyHeader string `yaml:"api_key_header"` // defaults to x-api-key

	// oauth2 mode (client credentials)
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// sigv4 mode
	Region  string `yaml:"region"`
	Service string `yaml:"service"` // defaults to execute-api
}

// CacheConfig holds transport response cache settings.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxSize    int           `yaml:"max_size"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// DatabaseConfig holds SQLite settings for the local usage history.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// PollerConfig controls the background usage poller.
type PollerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// MonitorConfig holds the local monitor HTTP settings.
type MonitorConfig struct {
	Addr string `yaml:"addr"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Timeout:   30 * time.Second,
			UserAgent: "devportal",
		},
		Auth: AuthConfig{
			Mode:         "none",
			APIKeyHeader: "x-api-key",
			Service:      "execute-api",
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxSize:    1_000,
			DefaultTTL: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			DSN: "devportal.db",
		},
		Poller: PollerConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Monitor: MonitorConfig{
			Addr: "127.0.0.1:8090",
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// Fields absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("config: gateway.base_url is required")
	}
	switch c.Auth.Mode {
	case "", "none", "api_key", "oauth2", "sigv4":
	default:
		return fmt.Errorf("config: unknown auth.mode %q", c.Auth.Mode)
	}
	if c.Auth.Mode == "oauth2" && (c.Auth.TokenURL == "" || c.Auth.ClientID == "") {
		return fmt.Errorf("config: auth.mode oauth2 requires token_url and client_id")
	}
	if c.Auth.Mode == "sigv4" && c.Auth.Region == "" {
		return fmt.Errorf("config: auth.mode sigv4 requires region")
	}
	if c.Poller.Enabled && c.Poller.Interval <= 0 {
		return fmt.Errorf("config: poller.interval must be positive")
	}
	return nil
}
