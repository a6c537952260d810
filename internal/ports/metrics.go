package ports

import "github.com/bft-labs/tickship/pkg/frame"

// Metrics receives counter deltas from the ingest and dispatch loops.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveDecoder adds the decoder counter deltas for one read.
	ObserveDecoder(delta frame.Stats)

	// RecordDropped counts a record dropped because the queue was full.
	RecordDropped()

	// ObserveFlush counts the outcome of one sink flush.
	ObserveFlush(persisted, failed int)

	// Reconnect counts a dial attempt that followed a lost or failed connection.
	Reconnect()

	// SetQueueDepth reports the current number of queued records.
	SetQueueDepth(n int)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveDecoder(frame.Stats) {}
func (NopMetrics) RecordDropped()             {}
func (NopMetrics) ObserveFlush(int, int)      {}
func (NopMetrics) Reconnect()                 {}
func (NopMetrics) SetQueueDepth(int)          {}
