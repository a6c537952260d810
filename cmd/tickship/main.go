package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/tickship/internal/adapters/metrics"
	"github.com/bft-labs/tickship/internal/cliconfig"
	"github.com/bft-labs/tickship/internal/ports"
	"github.com/bft-labs/tickship/pkg/log"
	"github.com/bft-labs/tickship/pkg/tickship"
	"github.com/bft-labs/tickship/plugins/configwatcher"
)

const helpDescription = `
Read a peer's [timestamp,value] record stream and persist every record.

Highlights:
  - Frames are reassembled across arbitrary chunk boundaries.
  - Persistence never blocks ingest: a full queue drops, a failed write is logged.
  - Sinks: SQLite (default), an HTTP ingest service, or a Redis stream.
  - Configure via file, env (TICKSHIP_*), or flags; log_level reloads live.
`

var exampleUsage = strings.TrimSpace(`
  tickship --peer tcp://127.0.0.1:9000 --sqlite-path ticks.db
  tickship --peer ws://feed.local:8080/ticks --sink redis --redis-url redis://localhost:6379/0
  tickship --peer file:capture.txt --once --validation strict
  tickship --config $HOME/.tickship/config.toml --metrics-addr :9102
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "tickship",
		Short:         "Persist a peer's bracket-framed record stream",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			} else {
				cfgFile = ""
			}

			// Environment overrides the file; flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			zl, closer, err := cliconfig.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			return run(cmd.Context(), cfg, cfgFile, zl)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.tickship/config.toml)")

	f.StringVar(&cfg.Peer, "peer", cfg.Peer, "upstream address: tcp://host:port, host:port, ws://, wss://, file:path or - for stdin")
	f.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connection attempt timeout")
	f.IntVar(&cfg.ReadBufferBytes, "read-buffer-bytes", cfg.ReadBufferBytes, "bytes per read from the peer")
	f.DurationVar(&cfg.ReconnectMin, "reconnect-min", cfg.ReconnectMin, "initial reconnect backoff")
	f.DurationVar(&cfg.ReconnectMax, "reconnect-max", cfg.ReconnectMax, "maximum reconnect backoff")
	f.BoolVar(&cfg.Once, "once", cfg.Once, "process one stream and exit instead of reconnecting")

	f.StringVar(&cfg.Validation, "validation", cfg.Validation, "payload validation: compat or strict")
	f.StringVar(&cfg.NestedPolicy, "nested-policy", cfg.NestedPolicy, "'[' inside a frame: literal or restart")
	f.IntVar(&cfg.MaxFrameBytes, "max-frame-bytes", cfg.MaxFrameBytes, "abandon frames larger than this (0 selects the default, negative disables)")

	f.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "persistence queue capacity")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "records per sink write")
	f.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "flush a partial batch after this long")

	f.StringVar(&cfg.Sink, "sink", cfg.Sink, "record sink: sqlite, http or redis")
	f.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	f.StringVar(&cfg.Table, "table", cfg.Table, "SQLite table name")
	f.StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "base URL of the HTTP ingest service")
	f.StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for the HTTP ingest service")
	f.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "HTTP request timeout")
	f.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for the redis sink")
	f.StringVar(&cfg.RedisStream, "redis-stream", cfg.RedisStream, "Redis stream key")
	f.Int64Var(&cfg.RedisMaxLen, "redis-max-len", cfg.RedisMaxLen, "trim the stream to this many entries (0 keeps everything)")

	f.StringVar(&cfg.StatusDir, "status-dir", cfg.StatusDir, "directory for status.json (disabled when empty)")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus /metrics on this address (disabled when empty)")

	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file with rotation")
	f.IntVar(&cfg.LogMaxSizeMB, "log-max-size", cfg.LogMaxSizeMB, "rotate the log file after this many MB")
	f.IntVar(&cfg.LogMaxBackups, "log-max-backups", cfg.LogMaxBackups, "rotated log files to keep")
	f.IntVar(&cfg.LogMaxAgeDays, "log-max-age", cfg.LogMaxAgeDays, "days to keep rotated log files")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tickship: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, cfgFile string, zl zerolog.Logger) error {
	logger := log.NewZerologAdapterWithLogger(zl)

	logCfg := cfg
	if len(logCfg.AuthKey) > 0 {
		logCfg.AuthKey = "*****"
	}
	zl.Info().Interface("config", logCfg).Msg("configuration")

	sink, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	if c, ok := sink.(ports.SinkCloser); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Error("close sink", log.Err(err))
			}
		}()
	}

	opts := []tickship.Option{
		tickship.WithSink(sink),
		tickship.WithLogger(logger),
		configwatcher.WithDefaultConfigWatcher(),
	}

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	metricsDone := make(chan error, 1)
	if cfg.MetricsAddr != "" {
		collector, err := metrics.NewCollector(prometheus.NewRegistry())
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		opts = append(opts, tickship.WithMetrics(collector))
		go func() { metricsDone <- collector.Serve(metricsCtx, cfg.MetricsAddr, logger) }()
	} else {
		close(metricsDone)
	}

	ts, err := tickship.New(facadeConfig(cfg, cfgFile), opts...)
	if err != nil {
		return fmt.Errorf("create tickship: %w", err)
	}

	if err := ts.Start(ctx); err != nil {
		return fmt.Errorf("start tickship: %w", err)
	}

	runErr := ts.Wait(ctx)
	if errors.Is(runErr, context.Canceled) {
		logger.Info("received signal, stopping")
		// ErrNotRunning means the run is already winding down by itself.
		if err := ts.Stop(); err != nil && !errors.Is(err, tickship.ErrNotRunning) {
			return fmt.Errorf("stop tickship: %w", err)
		}
		runErr = ts.Wait(context.Background())
	}

	stats := ts.Stats()
	logger.Info("finished",
		log.Uint64("frames", stats.Decoder.Frames),
		log.Uint64("records", stats.Decoder.Records),
		log.Uint64("rejected", stats.Decoder.Rejected),
		log.Uint64("persisted", stats.Persist.RecordsPersisted),
		log.Uint64("failed", stats.Persist.RecordsFailed),
		log.Uint64("dropped", stats.Persist.RecordsDropped),
	)

	stopMetrics()
	if err := <-metricsDone; err != nil {
		logger.Error("metrics listener", log.Err(err))
	}

	if runErr != nil {
		return runErr
	}
	if ts.Status() == tickship.StateCrashed {
		return errors.New("tickship crashed")
	}
	return nil
}

// facadeConfig carries the CLI settings into the library. Decoder settings
// travel only this way.
func facadeConfig(cfg cliconfig.Config, cfgFile string) tickship.Config {
	return tickship.Config{
		Peer:            cfg.Peer,
		DialTimeout:     cfg.DialTimeout,
		ReadBufferBytes: cfg.ReadBufferBytes,
		ReconnectMin:    cfg.ReconnectMin,
		ReconnectMax:    cfg.ReconnectMax,
		Once:            cfg.Once,
		Validation:      cfg.Validation,
		NestedPolicy:    cfg.NestedPolicy,
		MaxFrameBytes:   cfg.MaxFrameBytes,
		QueueSize:       cfg.QueueSize,
		BatchSize:       cfg.BatchSize,
		FlushInterval:   cfg.FlushInterval,
		StatusDir:       cfg.StatusDir,
		ConfigPath:      cfgFile,
	}
}
