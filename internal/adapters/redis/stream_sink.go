// Package redis appends records to a Redis stream with XADD.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/internal/ports"
)

// DefaultStream is the default stream key.
const DefaultStream = "tickship:ticks"

// DefaultTimeout is the default per-call timeout.
const DefaultTimeout = 5 * time.Second

// Config configures the stream sink.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Stream is the stream key (default: tickship:ticks).
	Stream string
	// MaxLen trims the stream to at most MaxLen entries. Zero keeps everything.
	MaxLen int64
	// Timeout is the per-call timeout (default 5s).
	Timeout time.Duration
}

// StreamSink writes each record as a stream entry with "timestamp" and
// "value" fields.
type StreamSink struct {
	config Config
	client *goredis.Client
}

var _ ports.BatchSink = (*StreamSink)(nil)

// New creates a stream sink. It does not contact the server.
func New(cfg Config) (*StreamSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis sink requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis sink: invalid URL: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxLen < 0 {
		return nil, fmt.Errorf("max len must be >= 0, got %d", cfg.MaxLen)
	}

	return &StreamSink{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

func (s *StreamSink) args(tick domain.Tick) *goredis.XAddArgs {
	return &goredis.XAddArgs{
		Stream: s.config.Stream,
		MaxLen: s.config.MaxLen,
		Values: []any{
			"timestamp", strconv.FormatInt(tick.Timestamp, 10),
			"value", strconv.FormatInt(int64(tick.Value), 10),
		},
	}
}

// Persist appends one entry.
func (s *StreamSink) Persist(ctx context.Context, rec domain.Record) error {
	tick, err := domain.ParseTick(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.client.XAdd(ctx, s.args(tick)).Err(); err != nil {
		return fmt.Errorf("redis: xadd %s: %w", s.config.Stream, err)
	}
	return nil
}

// PersistBatch pipelines one XADD per record that converts. Records that do
// not convert are skipped and reported in the returned error. The count is
// the number of leading XADDs that succeeded.
func (s *StreamSink) PersistBatch(ctx context.Context, batch *domain.Batch) (int, error) {
	if batch.Empty() {
		return 0, nil
	}

	ticks, convErr := batch.Ticks()
	if len(ticks) == 0 {
		return 0, convErr
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	pipe := s.client.Pipeline()
	for _, tick := range ticks {
		pipe.XAdd(ctx, s.args(tick))
	}

	cmds, err := pipe.Exec(ctx)
	written := 0
	for _, cmd := range cmds {
		if cmd.Err() != nil {
			break
		}
		written++
	}
	if err != nil {
		return written, errors.Join(fmt.Errorf("redis: xadd %s: %w", s.config.Stream, err), convErr)
	}
	return written, convErr
}

// Stream returns the stream key.
func (s *StreamSink) Stream() string {
	return s.config.Stream
}

// Close releases sink resources.
func (s *StreamSink) Close() error {
	return s.client.Close()
}
