package domain

import "time"

// Status is the operator-facing snapshot persisted after each flush.
// It is informational only; the stream cannot be replayed from it.
type Status struct {
	Peer string `json:"peer"`

	RecordsPersisted uint64 `json:"records_persisted"`
	RecordsFailed    uint64 `json:"records_failed"`
	RecordsDropped   uint64 `json:"records_dropped"`

	// LastTimestamp is the timestamp text of the last persisted record.
	LastTimestamp string `json:"last_timestamp,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateAfterFlush records the outcome of a flush.
func (s *Status) UpdateAfterFlush(persisted, failed int, last *Record, now time.Time) {
	s.RecordsPersisted += uint64(persisted)
	s.RecordsFailed += uint64(failed)
	if last != nil && persisted > 0 {
		s.LastTimestamp = last.Timestamp
	}
	s.UpdatedAt = now
}
