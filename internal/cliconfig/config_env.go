package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "TICKSHIP_"

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

// ApplyEnvConfig applies TICKSHIP_* environment variables to cfg.
// It respects flags that have been explicitly set (changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("peer", env("PEER"), &cfg.Peer)
	s.setString("validation", env("VALIDATION"), &cfg.Validation)
	s.setString("nested-policy", env("NESTED_POLICY"), &cfg.NestedPolicy)
	s.setString("sink", env("SINK"), &cfg.Sink)
	s.setString("sqlite-path", env("SQLITE_PATH"), &cfg.SQLitePath)
	s.setString("table", env("TABLE"), &cfg.Table)
	s.setString("service-url", env("SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", env("AUTH_KEY"), &cfg.AuthKey)
	s.setString("redis-url", env("REDIS_URL"), &cfg.RedisURL)
	s.setString("redis-stream", env("REDIS_STREAM"), &cfg.RedisStream)
	s.setString("status-dir", env("STATUS_DIR"), &cfg.StatusDir)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)
	s.setString("log-file", env("LOG_FILE"), &cfg.LogFile)

	if err := s.setDuration("dial-timeout", env("DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-min", env("RECONNECT_MIN"), &cfg.ReconnectMin); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-max", env("RECONNECT_MAX"), &cfg.ReconnectMax); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", env("FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	ints := []struct {
		flag   string
		key    string
		dst    *int
		signed bool
	}{
		{"read-buffer-bytes", "READ_BUFFER_BYTES", &cfg.ReadBufferBytes, false},
		{"max-frame-bytes", "MAX_FRAME_BYTES", &cfg.MaxFrameBytes, true},
		{"queue-size", "QUEUE_SIZE", &cfg.QueueSize, false},
		{"batch-size", "BATCH_SIZE", &cfg.BatchSize, false},
		{"log-max-size", "LOG_MAX_SIZE_MB", &cfg.LogMaxSizeMB, false},
		{"log-max-backups", "LOG_MAX_BACKUPS", &cfg.LogMaxBackups, false},
		{"log-max-age", "LOG_MAX_AGE_DAYS", &cfg.LogMaxAgeDays, false},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, env(i.key), i.dst, i.signed); err != nil {
			return err
		}
	}
	if err := s.setInt64FromString("redis-max-len", env("REDIS_MAX_LEN"), &cfg.RedisMaxLen); err != nil {
		return err
	}

	s.setBoolFromString("once", env("ONCE"), &cfg.Once)

	return nil
}
