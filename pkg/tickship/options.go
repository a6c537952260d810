package tickship

import (
	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/internal/ports"
	"github.com/bft-labs/tickship/pkg/frame"
	"github.com/bft-labs/tickship/pkg/log"
)

// Re-exported types so callers can implement sinks and dialers without
// importing internal packages.
type (
	// Record is one decoded frame, kept as the text received on the wire.
	Record = domain.Record

	// Batch is an ordered group of records handed to a BatchSink.
	Batch = domain.Batch

	// Status holds the persistence counters saved after each flush.
	Status = domain.Status

	// Sink persists one record at a time.
	Sink = ports.RecordSink

	// BatchSink persists a whole batch, skipping records that do not
	// convert, and reports how many records were stored.
	BatchSink = ports.BatchSink

	// Dialer opens a connection to the upstream peer.
	Dialer = ports.Dialer

	// StatusRepository loads and saves the status snapshot.
	StatusRepository = ports.StatusRepository

	// Metrics receives counter deltas from the pipeline.
	Metrics = ports.Metrics

	// Logger is the structured logging interface from pkg/log.
	Logger = log.Logger

	// DecoderStats are the frame decoder counters.
	DecoderStats = frame.Stats
)

// Option configures optional behavior of Tickship.
type Option func(*options)

type options struct {
	sink           Sink
	dialer         Dialer
	statusRepo     StatusRepository
	metrics        Metrics
	logger         Logger
	eventHandler   EventHandler
	plugins        []Plugin
	decoderOptions []frame.Option
}

func defaultOptions() options {
	return options{
		metrics: ports.NopMetrics{},
		logger:  log.NoopLogger{},
	}
}

// WithSink sets the record sink. It is required.
func WithSink(sink Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithDialer replaces the dialer built from Config.Peer.
func WithDialer(dialer Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithStatusRepository replaces the status.json file selected by
// Config.StatusDir.
func WithStatusRepository(repo StatusRepository) Option {
	return func(o *options) {
		o.statusRepo = repo
	}
}

// WithMetrics sets the metrics sink.
// If not provided, metrics are discarded.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = log.OrNoop(logger)
	}
}

// WithEventHandler sets a handler for tickship events.
// Events are called synchronously from the worker goroutines.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when Tickship starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithDecoderOptions appends decoder options after the ones derived from
// Config, so they take precedence. Use it to install a custom validator.
func WithDecoderOptions(opts ...frame.Option) Option {
	return func(o *options) {
		o.decoderOptions = append(o.decoderOptions, opts...)
	}
}
