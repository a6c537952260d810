package domain

import (
	"fmt"
	"math"
	"strconv"
)

// MaxValue is the exclusive upper bound of a record value.
const MaxValue = 1_000_000

// Record is a validated frame payload split into its two comma-separated
// components. Text is preserved exactly as received; no numeric parsing is
// performed by the decoder.
type Record struct {
	// Timestamp is the nanosecond timestamp text (first field).
	Timestamp string

	// Value is the value text (second field).
	Value string
}

// String renders the record in wire form.
func (r Record) String() string {
	return "[" + r.Timestamp + "," + r.Value + "]"
}

// Tick is a Record converted to the persisted column types.
type Tick struct {
	// Timestamp is nanoseconds since the Unix epoch.
	Timestamp int64

	// Value is in [0, MaxValue).
	Value int32
}

// ConversionError reports a record whose text does not fit the persisted shape.
type ConversionError struct {
	Record Record
	Field  string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s of %s: %v", e.Field, e.Record, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ParseTick converts a record's text into typed columns.
// Timestamps must be non-negative and fit in int64; values must lie in [0, MaxValue).
func ParseTick(r Record) (Tick, error) {
	ts, err := strconv.ParseInt(r.Timestamp, 10, 64)
	if err != nil {
		return Tick{}, &ConversionError{Record: r, Field: "timestamp", Err: err}
	}
	if ts < 0 {
		return Tick{}, &ConversionError{Record: r, Field: "timestamp", Err: fmt.Errorf("negative timestamp %d", ts)}
	}

	v, err := strconv.ParseInt(r.Value, 10, 32)
	if err != nil {
		return Tick{}, &ConversionError{Record: r, Field: "value", Err: err}
	}
	if v < 0 || v >= MaxValue || v > math.MaxInt32 {
		return Tick{}, &ConversionError{Record: r, Field: "value", Err: fmt.Errorf("value %d out of range [0, %d)", v, MaxValue)}
	}

	return Tick{Timestamp: ts, Value: int32(v)}, nil
}
