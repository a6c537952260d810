package ports

import (
	"context"

	"github.com/bft-labs/tickship/internal/domain"
)

// RecordSink persists decoded records. Delivery is at most once: the
// dispatcher logs a failed Persist and moves on without retrying.
type RecordSink interface {
	Persist(ctx context.Context, rec domain.Record) error
}

// BatchSink is implemented by sinks that can write several records in one
// round trip. When a RecordSink also satisfies BatchSink the dispatcher
// prefers PersistBatch.
//
// PersistBatch skips records that fail domain.ParseTick and reports them in
// the returned error. It returns n, the number of records written: the first
// n ticks of batch.Ticks. Everything else in the batch is lost.
type BatchSink interface {
	RecordSink
	PersistBatch(ctx context.Context, batch *domain.Batch) (int, error)
}

// SinkCloser is implemented by sinks holding resources that must be released
// on shutdown.
type SinkCloser interface {
	Close() error
}
