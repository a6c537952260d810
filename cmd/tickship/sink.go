package main

import (
	"fmt"
	"net/http"

	httpAdapter "github.com/bft-labs/tickship/internal/adapters/http"
	"github.com/bft-labs/tickship/internal/adapters/redis"
	"github.com/bft-labs/tickship/internal/adapters/sqlite"
	"github.com/bft-labs/tickship/internal/cliconfig"
	"github.com/bft-labs/tickship/internal/ports"
	"github.com/bft-labs/tickship/pkg/log"
)

// buildSink constructs the sink selected by a validated config.
func buildSink(cfg cliconfig.Config, logger log.Logger) (ports.RecordSink, error) {
	switch cfg.Sink {
	case cliconfig.SinkSQLite:
		store, err := sqlite.Open(sqlite.Config{
			Path:   cfg.SQLitePath,
			Table:  cfg.Table,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite sink ready",
			log.String("path", cfg.SQLitePath),
			log.String("table", store.Table()))
		return store, nil

	case cliconfig.SinkHTTP:
		sender := httpAdapter.NewRecordSender(&http.Client{Timeout: cfg.HTTPTimeout}, httpAdapter.SenderConfig{
			ServiceURL: cfg.ServiceURL,
			AuthKey:    cfg.AuthKey,
			Peer:       cfg.Peer,
		})
		logger.Info("http sink ready", log.String("service_url", cfg.ServiceURL))
		return sender, nil

	case cliconfig.SinkRedis:
		sink, err := redis.New(redis.Config{
			URL:    cfg.RedisURL,
			Stream: cfg.RedisStream,
			MaxLen: cfg.RedisMaxLen,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("redis sink ready", log.String("stream", sink.Stream()))
		return sink, nil

	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
