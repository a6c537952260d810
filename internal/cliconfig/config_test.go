package cliconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/pkg/frame"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Sink != SinkSQLite {
		t.Errorf("Sink = %v, want sqlite", cfg.Sink)
	}
	if cfg.Validation != "compat" {
		t.Errorf("Validation = %v, want compat", cfg.Validation)
	}
	if cfg.NestedPolicy != "literal" {
		t.Errorf("NestedPolicy = %v, want literal", cfg.NestedPolicy)
	}
	if cfg.MaxFrameBytes != 64<<10 {
		t.Errorf("MaxFrameBytes = %v, want 64KiB", cfg.MaxFrameBytes)
	}
	if cfg.FlushInterval != time.Second {
		t.Errorf("FlushInterval = %v, want 1s", cfg.FlushInterval)
	}
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Peer = "127.0.0.1:9000"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with peer", func(c *Config) {}, false},
		{"missing peer", func(c *Config) { c.Peer = "" }, true},
		{"strict validation", func(c *Config) { c.Validation = "strict" }, false},
		{"unknown validation", func(c *Config) { c.Validation = "loose" }, true},
		{"restart policy", func(c *Config) { c.NestedPolicy = "restart" }, false},
		{"unknown nested policy", func(c *Config) { c.NestedPolicy = "ignore" }, true},
		{"default frame cap", func(c *Config) { c.MaxFrameBytes = 0 }, false},
		{"unbounded frames", func(c *Config) { c.MaxFrameBytes = -1 }, false},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, true},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, true},
		{"zero flush interval", func(c *Config) { c.FlushInterval = 0 }, true},
		{"reconnect max below min", func(c *Config) { c.ReconnectMax = c.ReconnectMin / 2 }, true},
		{"http without url", func(c *Config) { c.Sink = SinkHTTP }, true},
		{"http with url", func(c *Config) { c.Sink = SinkHTTP; c.ServiceURL = "http://ingest" }, false},
		{"redis without url", func(c *Config) { c.Sink = SinkRedis }, true},
		{"redis with url", func(c *Config) { c.Sink = SinkRedis; c.RedisURL = "redis://localhost:6379" }, false},
		{"sqlite without path", func(c *Config) { c.SQLitePath = "" }, true},
		{"unknown sink", func(c *Config) { c.Sink = "kafka" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Validate_Normalizes(t *testing.T) {
	cfg := validConfig()
	cfg.Sink = " HTTP "
	cfg.ServiceURL = "http://ingest.local/"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Sink != SinkHTTP {
		t.Errorf("Sink = %q, want http", cfg.Sink)
	}
	if cfg.ServiceURL != "http://ingest.local" {
		t.Errorf("ServiceURL = %q, want trailing slash removed", cfg.ServiceURL)
	}
}

func TestConfig_Validate_MaxFrameBytes(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero selects default", 0, frame.DefaultMaxFrameBytes},
		{"negative disables", -1, -1},
		{"explicit cap", 128, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.MaxFrameBytes = tt.in
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if cfg.MaxFrameBytes != tt.want {
				t.Errorf("MaxFrameBytes = %d, want %d", cfg.MaxFrameBytes, tt.want)
			}
		})
	}
}
