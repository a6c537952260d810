package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Peer            string `toml:"peer"`
	DialTimeout     string `toml:"dial_timeout"`
	ReadBufferBytes int    `toml:"read_buffer_bytes"`
	ReconnectMin    string `toml:"reconnect_min"`
	ReconnectMax    string `toml:"reconnect_max"`
	Once            *bool  `toml:"once"`

	Validation    string `toml:"validation"`
	NestedPolicy  string `toml:"nested_policy"`
	MaxFrameBytes *int   `toml:"max_frame_bytes"`

	QueueSize     int    `toml:"queue_size"`
	BatchSize     int    `toml:"batch_size"`
	FlushInterval string `toml:"flush_interval"`

	Sink        string `toml:"sink"`
	SQLitePath  string `toml:"sqlite_path"`
	Table       string `toml:"table"`
	ServiceURL  string `toml:"service_url"`
	AuthKey     string `toml:"auth_key"`
	HTTPTimeout string `toml:"http_timeout"`
	RedisURL    string `toml:"redis_url"`
	RedisStream string `toml:"redis_stream"`
	RedisMaxLen int64  `toml:"redis_max_len"`

	StatusDir   string `toml:"status_dir"`
	MetricsAddr string `toml:"metrics_addr"`

	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.tickship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tickship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("peer", fc.Peer, &cfg.Peer)
	s.setString("validation", fc.Validation, &cfg.Validation)
	s.setString("nested-policy", fc.NestedPolicy, &cfg.NestedPolicy)
	s.setString("sink", fc.Sink, &cfg.Sink)
	s.setString("sqlite-path", fc.SQLitePath, &cfg.SQLitePath)
	s.setString("table", fc.Table, &cfg.Table)
	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("redis-url", fc.RedisURL, &cfg.RedisURL)
	s.setString("redis-stream", fc.RedisStream, &cfg.RedisStream)
	s.setString("status-dir", fc.StatusDir, &cfg.StatusDir)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"dial-timeout", fc.DialTimeout, &cfg.DialTimeout},
		{"reconnect-min", fc.ReconnectMin, &cfg.ReconnectMin},
		{"reconnect-max", fc.ReconnectMax, &cfg.ReconnectMax},
		{"flush-interval", fc.FlushInterval, &cfg.FlushInterval},
		{"http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("read-buffer-bytes", fc.ReadBufferBytes, &cfg.ReadBufferBytes)
	s.setInt("queue-size", fc.QueueSize, &cfg.QueueSize)
	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setInt("log-max-size", fc.LogMaxSizeMB, &cfg.LogMaxSizeMB)
	s.setInt("log-max-backups", fc.LogMaxBackups, &cfg.LogMaxBackups)
	s.setInt("log-max-age", fc.LogMaxAgeDays, &cfg.LogMaxAgeDays)
	s.setIntPtr("max-frame-bytes", fc.MaxFrameBytes, &cfg.MaxFrameBytes)
	s.setInt64("redis-max-len", fc.RedisMaxLen, &cfg.RedisMaxLen)

	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
