package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/pkg/frame"
)

// Sink names accepted by the sink setting.
const (
	SinkSQLite = "sqlite"
	SinkHTTP   = "http"
	SinkRedis  = "redis"
)

// Defaults for settings without a natural zero value.
const (
	DefaultSQLitePath  = "tickship.db"
	DefaultTable       = "ticks"
	DefaultRedisStream = "tickship:ticks"
)

// Config holds CLI configuration for tickship.
type Config struct {
	// Transport
	Peer            string
	DialTimeout     time.Duration
	ReadBufferBytes int
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration
	Once            bool

	// Decoding
	Validation    string
	NestedPolicy  string
	MaxFrameBytes int

	// Dispatch
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration

	// Sinks
	Sink        string
	SQLitePath  string
	Table       string
	ServiceURL  string
	AuthKey     string
	HTTPTimeout time.Duration
	RedisURL    string
	RedisStream string
	RedisMaxLen int64

	StatusDir   string
	MetricsAddr string

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DialTimeout:     10 * time.Second,
		ReadBufferBytes: 32 << 10,
		ReconnectMin:    500 * time.Millisecond,
		ReconnectMax:    10 * time.Second,
		Validation:      frame.ModeCompat.String(),
		NestedPolicy:    frame.NestedLiteral.String(),
		MaxFrameBytes:   frame.DefaultMaxFrameBytes,
		QueueSize:       4096,
		BatchSize:       256,
		FlushInterval:   time.Second,
		Sink:            SinkSQLite,
		SQLitePath:      DefaultSQLitePath,
		Table:           DefaultTable,
		HTTPTimeout:     15 * time.Second,
		RedisStream:     DefaultRedisStream,
		LogLevel:        "info",
		LogFormat:       "console",
		LogMaxSizeMB:    100,
		LogMaxBackups:   3,
		LogMaxAgeDays:   28,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for errors and normalizes values.
func (c *Config) Validate() error {
	if c.Peer == "" {
		return invalid("peer is required")
	}

	if _, err := frame.ParseMode(c.Validation); err != nil {
		return invalid("%v", err)
	}
	if _, err := frame.ParseNestedPolicy(c.NestedPolicy); err != nil {
		return invalid("%v", err)
	}
	// Same meaning as tickship.Config: zero selects the default cap and a
	// negative value disables it.
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = frame.DefaultMaxFrameBytes
	}

	if c.DialTimeout <= 0 {
		return invalid("dial timeout must be positive")
	}
	if c.ReconnectMin <= 0 {
		return invalid("reconnect min must be positive")
	}
	if c.ReconnectMax < c.ReconnectMin {
		return invalid("reconnect max %s is below reconnect min %s", c.ReconnectMax, c.ReconnectMin)
	}
	if c.ReadBufferBytes <= 0 {
		return invalid("read buffer bytes must be positive")
	}
	if c.QueueSize <= 0 {
		return invalid("queue size must be positive")
	}
	if c.BatchSize <= 0 {
		return invalid("batch size must be positive")
	}
	if c.FlushInterval <= 0 {
		return invalid("flush interval must be positive")
	}

	c.Sink = strings.ToLower(strings.TrimSpace(c.Sink))
	switch c.Sink {
	case SinkSQLite:
		if c.SQLitePath == "" {
			return invalid("sqlite path is required for the sqlite sink")
		}
		if c.Table == "" {
			c.Table = DefaultTable
		}
	case SinkHTTP:
		// Ensure no trailing slash
		c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
		if c.ServiceURL == "" {
			return invalid("service url is required for the http sink")
		}
		if c.HTTPTimeout <= 0 {
			return invalid("http timeout must be positive")
		}
	case SinkRedis:
		if c.RedisURL == "" {
			return invalid("redis url is required for the redis sink")
		}
		if c.RedisMaxLen < 0 {
			return invalid("redis max len must not be negative")
		}
	default:
		return invalid("unknown sink %q (want sqlite, http or redis)", c.Sink)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil || c.LogLevel == "" {
		return invalid("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return invalid("unknown log format %q (want console or json)", c.LogFormat)
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value, zero included, if present and flag not changed.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setInt64 sets an int64 value if positive and flag not changed.
func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination.
// Non-positive values are ignored unless signed is set.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int, signed bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 && !signed {
		return nil
	}
	*dst = i
	return nil
}

// setInt64FromString parses a string to int64 and sets the destination if positive.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
