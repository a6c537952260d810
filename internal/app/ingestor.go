package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/internal/ports"
	"github.com/bft-labs/tickship/pkg/frame"
	"github.com/bft-labs/tickship/pkg/log"
)

// DefaultReadBufferBytes is the size of the per-connection read buffer.
const DefaultReadBufferBytes = 32 << 10

// IngestorConfig contains configuration for the read loop.
type IngestorConfig struct {
	ReadBufferBytes int
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration

	// Once stops after the first stream ends instead of reconnecting.
	Once bool

	// DecoderOptions are applied to the decoder created for each connection.
	DecoderOptions []frame.Option
}

// Submitter accepts decoded records without blocking.
type Submitter interface {
	Submit(rec domain.Record) error
}

// IngestEventEmitter is called on connection changes and rejected frames.
type IngestEventEmitter interface {
	OnConnected(peer string)
	OnDisconnected(peer string, err error)
	OnFramesRejected(count uint64)
}

// Ingestor reads the upstream stream, decodes frames and submits records.
// Each connection gets a fresh decoder; an unterminated frame is discarded
// when its connection ends.
type Ingestor struct {
	config  IngestorConfig
	dialer  ports.Dialer
	out     Submitter
	metrics ports.Metrics
	logger  log.Logger
	emitter IngestEventEmitter

	mu          sync.Mutex
	total       frame.Stats
	connections uint64
}

// NewIngestor creates an ingestor. metrics and emitter may be nil.
func NewIngestor(
	config IngestorConfig,
	dialer ports.Dialer,
	out Submitter,
	metrics ports.Metrics,
	logger log.Logger,
	emitter IngestEventEmitter,
) *Ingestor {
	if config.ReadBufferBytes <= 0 {
		config.ReadBufferBytes = DefaultReadBufferBytes
	}
	if config.ReconnectMin <= 0 {
		config.ReconnectMin = DefaultBackoffInitial
	}
	if config.ReconnectMax <= 0 {
		config.ReconnectMax = DefaultBackoffMax
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Ingestor{
		config:  config,
		dialer:  dialer,
		out:     out,
		metrics: metrics,
		logger:  log.OrNoop(logger).With(log.String("peer", dialer.Addr())),
		emitter: emitter,
	}
}

// Run connects and decodes until ctx ends. In Once mode it returns after the
// first stream: nil when the peer closed it cleanly, otherwise the error.
// Otherwise it reconnects with exponential backoff and returns ctx.Err().
func (in *Ingestor) Run(ctx context.Context) error {
	bo := newBackoff(in.config.ReconnectMin, in.config.ReconnectMax)

	for {
		connected, err := in.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if in.config.Once {
			return err
		}
		if connected {
			bo.Reset()
		}

		if err != nil {
			in.logger.Warn("connection failed, reconnecting",
				log.Err(err),
				log.Duration("backoff", bo.Current()),
			)
		} else {
			in.logger.Info("stream closed by peer, reconnecting",
				log.Duration("backoff", bo.Current()),
			)
		}
		in.metrics.Reconnect()

		if err := bo.Wait(ctx); err != nil {
			return err
		}
	}
}

// session handles one connection. connected reports whether Dial succeeded.
func (in *Ingestor) session(ctx context.Context) (connected bool, err error) {
	conn, err := in.dialer.Dial(ctx)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", in.dialer.Addr(), err)
	}
	defer conn.Close()

	// Unblocks Read on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	in.mu.Lock()
	in.connections++
	in.mu.Unlock()

	in.logger.Info("connected")
	if in.emitter != nil {
		in.emitter.OnConnected(in.dialer.Addr())
	}

	err = in.read(ctx, conn)

	if in.emitter != nil {
		in.emitter.OnDisconnected(in.dialer.Addr(), err)
	}
	return true, err
}

func (in *Ingestor) read(ctx context.Context, conn io.Reader) error {
	opts := append([]frame.Option{frame.WithLogger(in.logger)}, in.config.DecoderOptions...)
	dec := frame.NewDecoder(opts...)
	buf := make([]byte, in.config.ReadBufferBytes)

	var prev frame.Stats
	for {
		n, rerr := conn.Read(buf)
		if n > 0 {
			dec.FeedFunc(buf[:n], in.submit)

			cur := dec.Stats()
			in.observe(cur.Sub(prev))
			prev = cur
		}

		if rerr == nil {
			continue
		}

		if dropped := dec.Reset(); dropped > 0 {
			in.logger.Debug("discarded unterminated frame at end of stream",
				log.Int("bytes", dropped))
		}
		switch {
		case errors.Is(rerr, io.EOF):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("read %s: %w", in.dialer.Addr(), rerr)
		}
	}
}

// submit ignores ErrQueueFull; the dispatcher already logged and counted it.
func (in *Ingestor) submit(rec domain.Record) {
	_ = in.out.Submit(rec)
}

func (in *Ingestor) observe(delta frame.Stats) {
	in.mu.Lock()
	in.total = in.total.Add(delta)
	in.mu.Unlock()

	in.metrics.ObserveDecoder(delta)
	if delta.Rejected > 0 && in.emitter != nil {
		in.emitter.OnFramesRejected(delta.Rejected)
	}
}

// Stats returns decoder counters summed over all connections.
func (in *Ingestor) Stats() frame.Stats {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.total
}

// Connections returns the number of successful dials.
func (in *Ingestor) Connections() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.connections
}
