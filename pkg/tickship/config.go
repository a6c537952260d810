package tickship

import (
	"fmt"
	"time"

	"github.com/bft-labs/tickship/internal/adapters/transport"
	"github.com/bft-labs/tickship/internal/app"
	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/pkg/frame"
)

// Config holds the settings of an embedded Tickship instance.
// Zero values are replaced by SetDefaults.
type Config struct {
	// Peer is the upstream address: tcp://host:port, host:port, ws://,
	// wss://, file:///path or "-" for stdin. Ignored when WithDialer is used.
	Peer string

	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration

	// ReadBufferBytes is the size of each read from the peer.
	ReadBufferBytes int

	// ReconnectMin and ReconnectMax bound the reconnect backoff.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// Once stops the instance after the first stream ends instead of
	// reconnecting.
	Once bool

	// Validation selects the payload check: "compat" (default) or "strict".
	Validation string

	// NestedPolicy selects what '[' inside a frame does: "literal"
	// (default) or "restart".
	NestedPolicy string

	// MaxFrameBytes caps a single open frame. Zero selects
	// frame.DefaultMaxFrameBytes; a negative value disables the cap.
	MaxFrameBytes int

	// QueueSize is the capacity of the persistence queue.
	QueueSize int

	// BatchSize and FlushInterval trigger flushes to the sink.
	BatchSize     int
	FlushInterval time.Duration

	// StatusDir, when set, receives status.json after every flush.
	StatusDir string

	// ConfigPath is the file the embedding application loaded its settings
	// from. It is only handed to plugins.
	ConfigPath string
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = transport.DefaultDialTimeout
	}
	if c.ReadBufferBytes <= 0 {
		c.ReadBufferBytes = app.DefaultReadBufferBytes
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = app.DefaultBackoffInitial
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = app.DefaultBackoffMax
	}
	if c.Validation == "" {
		c.Validation = frame.ModeCompat.String()
	}
	if c.NestedPolicy == "" {
		c.NestedPolicy = frame.NestedLiteral.String()
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = frame.DefaultMaxFrameBytes
	}
	if c.QueueSize <= 0 {
		c.QueueSize = app.DefaultQueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = app.DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = app.DefaultFlushInterval
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
// It does not check Peer; New does that when no dialer is injected.
func (c *Config) Validate() error {
	if c.ReconnectMin > c.ReconnectMax {
		return fmt.Errorf("%w: reconnect_min %s exceeds reconnect_max %s",
			ErrInvalidConfig, c.ReconnectMin, c.ReconnectMax)
	}
	if _, err := frame.ParseMode(c.Validation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := frame.ParseNestedPolicy(c.NestedPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.BatchSize > c.QueueSize {
		return fmt.Errorf("%w: batch size %d exceeds queue size %d",
			ErrInvalidConfig, c.BatchSize, c.QueueSize)
	}
	return nil
}

// decoderOptions converts the frame settings. Call after Validate.
func (c *Config) decoderOptions() []frame.Option {
	mode, _ := frame.ParseMode(c.Validation)
	policy, _ := frame.ParseNestedPolicy(c.NestedPolicy)
	maxFrame := c.MaxFrameBytes
	if maxFrame < 0 {
		maxFrame = 0
	}
	return []frame.Option{
		frame.WithValidator(frame.ForMode(mode)),
		frame.WithNestedPolicy(policy),
		frame.WithMaxFrameBytes(maxFrame),
	}
}

// Errors returned by the facade. They alias the internal sentinels so
// errors.Is works across package boundaries.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrQueueFull       = domain.ErrQueueFull
	ErrUnsupportedPeer = domain.ErrUnsupportedPeer
)
