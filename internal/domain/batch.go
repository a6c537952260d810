package domain

import "errors"

// Batch is an ordered group of records handed to a sink together.
// Records keep the order in which their closing delimiter was observed.
type Batch struct {
	// Records holds the batched records in arrival order.
	Records []Record

	// TotalBytes is the sum of the wire sizes of all records.
	TotalBytes int
}

// NewBatch creates a new empty batch.
func NewBatch() *Batch {
	return &Batch{
		Records: make([]Record, 0),
	}
}

// Add appends a record to the batch.
func (b *Batch) Add(r Record) {
	b.Records = append(b.Records, r)
	b.TotalBytes += len(r.Timestamp) + len(r.Value) + 3
}

// Size returns the number of records in the batch.
func (b *Batch) Size() int {
	return len(b.Records)
}

// Empty returns true if the batch has no records.
func (b *Batch) Empty() bool {
	return len(b.Records) == 0
}

// Reset clears the batch for reuse.
func (b *Batch) Reset() {
	b.Records = b.Records[:0]
	b.TotalBytes = 0
}

// Ticks converts the batch for storage. Records that do not convert are
// skipped and their errors joined; the rest keep batch order.
func (b *Batch) Ticks() ([]Tick, error) {
	ticks := make([]Tick, 0, len(b.Records))
	var errs []error
	for _, rec := range b.Records {
		tick, err := ParseTick(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks, errors.Join(errs...)
}

// LastWritten returns the record behind the n-th tick produced by Ticks, or
// nil when n is out of range. A sink that reports n records written has
// stored exactly that prefix of Ticks.
func (b *Batch) LastWritten(n int) *Record {
	if n <= 0 {
		return nil
	}
	seen := 0
	for i := range b.Records {
		if _, err := ParseTick(b.Records[i]); err != nil {
			continue
		}
		seen++
		if seen == n {
			return &b.Records[i]
		}
	}
	return nil
}
