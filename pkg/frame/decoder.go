package frame

import (
	"fmt"
	"strings"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/pkg/log"
)

// Record is a decoded frame payload. See domain.Record.
type Record = domain.Record

const (
	openDelim  = '['
	closeDelim = ']'
)

// DefaultMaxFrameBytes caps the payload of a single open frame.
const DefaultMaxFrameBytes = 64 << 10

// NestedPolicy controls what an open delimiter inside an open frame does.
type NestedPolicy int

const (
	// NestedLiteral keeps the '[' as payload data and leaves the frame open.
	NestedLiteral NestedPolicy = iota

	// NestedRestart abandons the bytes buffered so far and starts a new
	// frame at the nested '['.
	NestedRestart
)

// String returns the configuration name of the policy.
func (p NestedPolicy) String() string {
	switch p {
	case NestedLiteral:
		return "literal"
	case NestedRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// ParseNestedPolicy parses a configuration value. The empty string selects NestedLiteral.
func ParseNestedPolicy(s string) (NestedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "literal":
		return NestedLiteral, nil
	case "restart":
		return NestedRestart, nil
	default:
		return NestedLiteral, fmt.Errorf("unknown nested policy %q (want literal or restart)", s)
	}
}

// Stats counts decoder activity since construction.
type Stats struct {
	Bytes        uint64 // bytes fed
	Frames       uint64 // frames closed by ']'
	Records      uint64 // frames accepted and emitted
	Rejected     uint64 // frames that failed validation
	Nested       uint64 // '[' seen inside an open frame
	Abandoned    uint64 // open frames dropped for exceeding the size cap
	StrayClosers uint64 // ']' seen outside a frame
}

// Sub returns the counter deltas s - prev.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Bytes:        s.Bytes - prev.Bytes,
		Frames:       s.Frames - prev.Frames,
		Records:      s.Records - prev.Records,
		Rejected:     s.Rejected - prev.Rejected,
		Nested:       s.Nested - prev.Nested,
		Abandoned:    s.Abandoned - prev.Abandoned,
		StrayClosers: s.StrayClosers - prev.StrayClosers,
	}
}

// Add returns the counter sums s + o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Bytes:        s.Bytes + o.Bytes,
		Frames:       s.Frames + o.Frames,
		Records:      s.Records + o.Records,
		Rejected:     s.Rejected + o.Rejected,
		Nested:       s.Nested + o.Nested,
		Abandoned:    s.Abandoned + o.Abandoned,
		StrayClosers: s.StrayClosers + o.StrayClosers,
	}
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithValidator replaces the default compat validator.
func WithValidator(v Validator) Option {
	return func(d *Decoder) {
		if v != nil {
			d.validator = v
		}
	}
}

// WithNestedPolicy sets how a '[' inside an open frame is handled.
func WithNestedPolicy(p NestedPolicy) Option {
	return func(d *Decoder) {
		d.nested = p
	}
}

// WithMaxFrameBytes caps the payload of an open frame. Zero disables the cap.
func WithMaxFrameBytes(n int) Option {
	return func(d *Decoder) {
		if n >= 0 {
			d.maxFrame = n
		}
	}
}

// WithLogger sets the logger used for dropped-frame diagnostics.
func WithLogger(l log.Logger) Option {
	return func(d *Decoder) {
		d.logger = log.OrNoop(l)
	}
}

// Decoder is a two-state (idle, in-frame) tokenizer. One Decoder serves one
// stream; it is not safe for concurrent use.
type Decoder struct {
	validator Validator
	nested    NestedPolicy
	maxFrame  int
	logger    log.Logger

	// inFrame and buf survive across Feed calls.
	inFrame bool
	buf     []byte
	stats   Stats
}

// NewDecoder returns an idle decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		validator: CompatValidator{},
		nested:    NestedLiteral,
		maxFrame:  DefaultMaxFrameBytes,
		logger:    log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed decodes chunk and returns the records it completed, in the order
// their closing delimiter appeared.
func (d *Decoder) Feed(chunk []byte) []Record {
	var out []Record
	d.FeedFunc(chunk, func(r Record) {
		out = append(out, r)
	})
	return out
}

// FeedFunc decodes chunk and calls emit synchronously for each completed
// record before returning. chunk is not retained.
func (d *Decoder) FeedFunc(chunk []byte, emit func(Record)) {
	d.stats.Bytes += uint64(len(chunk))

	for _, b := range chunk {
		if d.inFrame {
			d.buf = append(d.buf, b)
		}

		switch b {
		case openDelim:
			d.open()
		case closeDelim:
			if !d.inFrame {
				d.stats.StrayClosers++
				d.logger.Debug("close delimiter outside frame ignored")
				continue
			}
			d.close(emit)
			continue
		}

		if d.inFrame && d.maxFrame > 0 && len(d.buf) > d.maxFrame {
			d.abandon()
		}
	}
}

func (d *Decoder) open() {
	if !d.inFrame {
		d.inFrame = true
		return
	}

	d.stats.Nested++
	if d.nested == NestedRestart {
		d.logger.Warn("open delimiter inside frame, restarting frame",
			log.Bytes("discarded", d.buf[:len(d.buf)-1]))
		d.buf = d.buf[:0]
		return
	}
	d.logger.Warn("open delimiter inside frame, kept as data",
		log.Int("buffered", len(d.buf)))
}

func (d *Decoder) close(emit func(Record)) {
	// buf ends with the ']' appended above.
	payload := d.buf[:len(d.buf)-1]
	d.inFrame = false
	d.stats.Frames++

	rec, err := d.decode(payload)
	if err != nil {
		d.stats.Rejected++
		d.logger.Warn("frame rejected",
			log.Err(err),
			log.Bytes("payload", payload))
		d.buf = d.buf[:0]
		return
	}
	d.buf = d.buf[:0]

	d.stats.Records++
	emit(rec)
}

func (d *Decoder) decode(payload []byte) (Record, error) {
	if err := d.validator.Validate(payload); err != nil {
		return Record{}, err
	}
	return split(payload)
}

func (d *Decoder) abandon() {
	d.stats.Abandoned++
	d.logger.Warn("open frame exceeds size limit, abandoned",
		log.Int("limit", d.maxFrame))
	d.inFrame = false
	d.buf = d.buf[:0]
}

// InFrame reports whether a frame is currently open.
func (d *Decoder) InFrame() bool {
	return d.inFrame
}

// Buffered returns the number of bytes held for the open frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any open frame and returns the decoder to idle. It returns
// the number of buffered payload bytes that were dropped. Call it when the
// stream ends; an unterminated frame is never emitted.
func (d *Decoder) Reset() int {
	n := len(d.buf)
	d.inFrame = false
	d.buf = d.buf[:0]
	return n
}

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}
