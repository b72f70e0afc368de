package config

import (
	"fmt"
	"net/url"
)

// Validate checks that the configuration is complete and internally
// consistent. It returns an error if required fields are missing or values
// are invalid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := validateUpstream(cfg); err != nil {
		return fmt.Errorf("invalid upstream config: %w", err)
	}
	if err := validateMetrics(cfg); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	if err := validateTracing(cfg); err != nil {
		return fmt.Errorf("invalid tracing config: %w", err)
	}
	if err := validateLogLevel(cfg); err != nil {
		return err
	}

	return nil
}

// isLocalhost returns true if host is localhost or a loopback address,
// with or without a port.
func isLocalhost(host string) bool {
	if host == "localhost" || host == "127.0.0.1" {
		return true
	}
	if len(host) > len("localhost:") && host[:len("localhost:")] == "localhost:" {
		return true
	}
	if len(host) > len("127.0.0.1:") && host[:len("127.0.0.1:")] == "127.0.0.1:" {
		return true
	}
	return false
}

// validateServer validates the downstream transport's fields.
func validateServer(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	if cfg.Server.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must be non-negative")
	}
	return nil
}

// validateUpstream validates the upstream transport's fields. An empty URL
// is allowed: the context then runs in hook-only mode (spec.md §4.5).
func validateUpstream(cfg *Config) error {
	if cfg.Upstream.URL == "" {
		return nil
	}

	parsed, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return fmt.Errorf("invalid upstream.url: %w", err)
	}
	if !parsed.IsAbs() {
		return fmt.Errorf("upstream.url must be an absolute URL")
	}
	switch parsed.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("upstream.url must use the ws or wss scheme")
	}
	if parsed.Scheme == "ws" && !isLocalhost(parsed.Host) {
		return fmt.Errorf("upstream.url must use wss for non-localhost hosts")
	}
	if cfg.Upstream.HandshakeTimeout <= 0 {
		return fmt.Errorf("upstream.handshake_timeout must be positive")
	}
	return nil
}

// validateMetrics validates the metrics exposition settings.
func validateMetrics(cfg *Config) error {
	if !cfg.Metrics.Enabled {
		return nil
	}
	if cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enabled is true")
	}
	return nil
}

// validateTracing validates the OTel exporter settings.
func validateTracing(cfg *Config) error {
	if !cfg.Tracing.Enabled {
		return nil
	}
	if cfg.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when tracing.enabled is true")
	}
	if cfg.Tracing.ServiceName == "" {
		return fmt.Errorf("tracing.service_name is required when tracing.enabled is true")
	}
	if cfg.Tracing.SampleFraction < 0 || cfg.Tracing.SampleFraction > 1 {
		return fmt.Errorf("tracing.sample_fraction must be between 0 and 1")
	}
	return nil
}

// validateLogLevel validates the configured slog level name.
func validateLogLevel(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}
}
