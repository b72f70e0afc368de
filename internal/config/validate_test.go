package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a valid configuration for testing. Tests override
// specific fields as needed.
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Upstream: UpstreamConfig{
			URL:              "wss://target.example.com/mcp",
			HandshakeTimeout: 10 * time.Second,
		},
		Metrics:  MetricsConfig{},
		Tracing:  TracingConfig{},
		LogLevel: "info",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		config      *Config
		wantErr     bool
		errContains string
	}{
		{name: "valid config with all required fields", config: validConfig(), wantErr: false},
		{
			name: "empty server addr",
			config: func() *Config {
				c := validConfig()
				c.Server.Addr = ""
				return c
			}(),
			wantErr:     true,
			errContains: "addr",
		},
		{
			name: "negative read timeout",
			config: func() *Config {
				c := validConfig()
				c.Server.ReadTimeout = -1 * time.Second
				return c
			}(),
			wantErr:     true,
			errContains: "read_timeout",
		},
		{
			name: "zero idle timeout is valid",
			config: func() *Config {
				c := validConfig()
				c.Server.IdleTimeout = 0
				return c
			}(),
			wantErr: false,
		},
		{
			name: "negative idle timeout is invalid",
			config: func() *Config {
				c := validConfig()
				c.Server.IdleTimeout = -1 * time.Second
				return c
			}(),
			wantErr:     true,
			errContains: "idle_timeout",
		},
		{
			name: "empty upstream URL is valid (hook-only mode)",
			config: func() *Config {
				c := validConfig()
				c.Upstream.URL = ""
				return c
			}(),
			wantErr: false,
		},
		{
			name: "http upstream scheme is invalid",
			config: func() *Config {
				c := validConfig()
				c.Upstream.URL = "https://target.example.com"
				return c
			}(),
			wantErr:     true,
			errContains: "ws or wss",
		},
		{
			name: "ws scheme requires localhost",
			config: func() *Config {
				c := validConfig()
				c.Upstream.URL = "ws://target.example.com"
				return c
			}(),
			wantErr:     true,
			errContains: "wss",
		},
		{
			name: "ws scheme allowed for localhost",
			config: func() *Config {
				c := validConfig()
				c.Upstream.URL = "ws://localhost:9000"
				return c
			}(),
			wantErr: false,
		},
		{
			name: "metrics enabled without addr is invalid",
			config: func() *Config {
				c := validConfig()
				c.Metrics.Enabled = true
				c.Metrics.Addr = ""
				return c
			}(),
			wantErr:     true,
			errContains: "metrics.addr",
		},
		{
			name: "tracing enabled without endpoint is invalid",
			config: func() *Config {
				c := validConfig()
				c.Tracing.Enabled = true
				return c
			}(),
			wantErr:     true,
			errContains: "otlp_endpoint",
		},
		{
			name: "tracing sample fraction out of range",
			config: func() *Config {
				c := validConfig()
				c.Tracing.Enabled = true
				c.Tracing.OTLPEndpoint = "http://localhost:4318"
				c.Tracing.ServiceName = "proxy"
				c.Tracing.SampleFraction = 1.5
				return c
			}(),
			wantErr:     true,
			errContains: "sample_fraction",
		},
		{
			name: "invalid log level",
			config: func() *Config {
				c := validConfig()
				c.LogLevel = "verbose"
				return c
			}(),
			wantErr:     true,
			errContains: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.config)

			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() error = nil, want error")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Validate() error = %q, want to contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	t.Parallel()

	if err := Validate(nil); err == nil {
		t.Error("Validate(nil) should return error")
	}
}
