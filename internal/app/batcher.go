package app

import (
	"time"

	"github.com/bft-labs/tickship/internal/domain"
)

// Batcher groups records for a flush. It is owned by the dispatcher worker.
type Batcher struct {
	batch         *domain.Batch
	maxRecords    int
	flushInterval time.Duration
	lastFlush     time.Time
	now           func() time.Time
}

// NewBatcher creates a batcher that flushes at maxRecords records or after
// flushInterval has passed since the previous flush. maxRecords <= 1 makes
// every record its own flush.
func NewBatcher(maxRecords int, flushInterval time.Duration) *Batcher {
	if maxRecords < 1 {
		maxRecords = 1
	}
	return &Batcher{
		batch:         domain.NewBatch(),
		maxRecords:    maxRecords,
		flushInterval: flushInterval,
		lastFlush:     time.Now(),
		now:           time.Now,
	}
}

// Add appends a record. It returns true when the size trigger is reached.
func (b *Batcher) Add(r domain.Record) bool {
	b.batch.Add(r)
	return b.batch.Size() >= b.maxRecords
}

// ShouldFlush reports whether the interval trigger has fired for a
// non-empty batch.
func (b *Batcher) ShouldFlush() bool {
	if b.batch.Empty() {
		return false
	}
	return b.flushInterval > 0 && b.now().Sub(b.lastFlush) >= b.flushInterval
}

// Batch returns the current batch.
func (b *Batcher) Batch() *domain.Batch {
	return b.batch
}

// Reset clears the batch and records the flush time.
func (b *Batcher) Reset() {
	b.batch.Reset()
	b.lastFlush = b.now()
}

// HasPending returns true if records are waiting to be flushed.
func (b *Batcher) HasPending() bool {
	return !b.batch.Empty()
}
