// Package config provides configuration management for the passthrough
// proxy. Configuration is loaded from a YAML file, with environment
// variables overriding individual fields for container deployments.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the downstream (host-facing) HTTP transport.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// UpstreamConfig configures the upstream (target-facing) WebSocket
// transport.
type UpstreamConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// MetricsConfig configures the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"service_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	SampleFraction float64 `yaml:"sample_fraction"`
}

// Config holds the complete proxy configuration.
type Config struct {
	// Server settings for the downstream-facing transport.
	Server ServerConfig `yaml:"server"`

	// Upstream settings for the target-facing transport.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Hooks is the ordered list of hook names to install in the chain, head
	// first. Hook construction itself is external to this package (spec
	// Non-goals treat hook implementations as out-of-core); a caller
	// resolves these names against its own registry before building the
	// chain.
	Hooks []string `yaml:"hooks"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures the optional OTel exporter.
	Tracing TracingConfig `yaml:"tracing"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from the YAML file at path, then applies
// environment variable overrides, validates, and returns the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns a Config populated with the proxy's built-in defaults,
// overridden in turn by file contents and environment variables.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Upstream: UpstreamConfig{
			HandshakeTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Tracing: TracingConfig{
			ServiceName:    "mcp-passthrough",
			SampleFraction: 1.0,
		},
		LogLevel: "info",
	}
}

// applyEnvOverrides mutates cfg in place with any set environment
// variables, taking precedence over file contents.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PASSTHROUGH_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := parseDurationEnv("PASSTHROUGH_SERVER_READ_TIMEOUT"); ok {
		cfg.Server.ReadTimeout = v
	}
	if v, ok := parseDurationEnv("PASSTHROUGH_SERVER_WRITE_TIMEOUT"); ok {
		cfg.Server.WriteTimeout = v
	}
	if v := os.Getenv("PASSTHROUGH_UPSTREAM_URL"); v != "" {
		cfg.Upstream.URL = v
	}
	if v := os.Getenv("PASSTHROUGH_HOOKS"); v != "" {
		cfg.Hooks = splitCommaSeparated(v)
	}
	if v := os.Getenv("PASSTHROUGH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("PASSTHROUGH_TRACING_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.OTLPEndpoint = v
		cfg.Tracing.Enabled = true
	}
	if v := os.Getenv("PASSTHROUGH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// splitCommaSeparated parses a comma-separated string into a trimmed,
// empty-filtered slice. Returns nil for an empty input.
func splitCommaSeparated(value string) []string {
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseDurationEnv reads and parses key as a duration; ok is false when the
// variable is unset or invalid.
func parseDurationEnv(key string) (time.Duration, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false
	}
	return d, true
}

// String returns a debug-friendly representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %+v, Upstream: %+v, Hooks: %v, Metrics: %+v, Tracing: %+v, LogLevel: %s}",
		c.Server, c.Upstream, c.Hooks, c.Metrics, c.Tracing, c.LogLevel,
	)
}
