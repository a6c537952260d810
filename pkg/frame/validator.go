package frame

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bft-labs/tickship/internal/domain"
)

// ErrRejected matches every *RejectError via errors.Is.
var ErrRejected = errors.New("frame rejected")

// RejectError describes why a frame payload was not turned into a record.
type RejectError struct {
	Reason  string
	Payload string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("frame rejected: %s", e.Reason)
}

// Is reports whether target is ErrRejected.
func (e *RejectError) Is(target error) bool {
	return target == ErrRejected
}

func reject(reason string, payload []byte) error {
	return &RejectError{Reason: reason, Payload: string(payload)}
}

// Validator decides whether a frame payload becomes a record.
// The payload excludes both delimiters and must not be retained.
type Validator interface {
	Validate(payload []byte) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(payload []byte) error

// Validate calls f(payload).
func (f ValidatorFunc) Validate(payload []byte) error {
	return f(payload)
}

// Mode selects one of the built-in validators.
type Mode int

const (
	// ModeCompat accepts payloads containing a digit-comma-digit sequence anywhere.
	ModeCompat Mode = iota

	// ModeStrict accepts only <digits>,<digits> with the value below domain.MaxValue.
	ModeStrict
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeCompat:
		return "compat"
	case ModeStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseMode parses a configuration value. The empty string selects ModeCompat.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "compat":
		return ModeCompat, nil
	case "strict":
		return ModeStrict, nil
	default:
		return ModeCompat, fmt.Errorf("unknown validation mode %q (want compat or strict)", s)
	}
}

// ForMode returns the built-in validator for m.
func ForMode(m Mode) Validator {
	if m == ModeStrict {
		return StrictValidator{}
	}
	return CompatValidator{}
}

// CompatValidator is a substring test: the payload passes if it contains a
// single digit, a comma and a single digit in sequence anywhere. Leading or
// trailing garbage and extra commas are not rejected.
type CompatValidator struct{}

// Validate implements Validator.
func (CompatValidator) Validate(payload []byte) error {
	for i := 0; i+2 < len(payload); i++ {
		if isDigit(payload[i]) && payload[i+1] == ',' && isDigit(payload[i+2]) {
			return nil
		}
	}
	return reject("no digit,digit sequence", payload)
}

// StrictValidator checks the full record grammar.
type StrictValidator struct{}

// Validate implements Validator.
func (StrictValidator) Validate(payload []byte) error {
	i := bytes.IndexByte(payload, ',')
	if i < 0 {
		return reject("missing comma", payload)
	}
	ts, val := payload[:i], payload[i+1:]
	if !allDigits(ts) {
		return reject("timestamp is not a decimal integer", payload)
	}
	if !allDigits(val) {
		return reject("value is not a decimal integer", payload)
	}
	if _, err := strconv.ParseInt(string(ts), 10, 64); err != nil {
		return reject("timestamp out of range", payload)
	}
	v, err := strconv.ParseUint(string(val), 10, 32)
	if err != nil || v >= domain.MaxValue {
		return reject("value out of range", payload)
	}
	return nil
}

// split turns an accepted payload into a record. The timestamp is the text
// before the first comma and the value runs to the next comma or the end.
func split(payload []byte) (Record, error) {
	i := bytes.IndexByte(payload, ',')
	if i < 0 {
		return Record{}, reject("missing comma", payload)
	}
	val := payload[i+1:]
	if j := bytes.IndexByte(val, ','); j >= 0 {
		val = val[:j]
	}
	return Record{Timestamp: string(payload[:i]), Value: string(val)}, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func allDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if !isDigit(c) {
			return false
		}
	}
	return true
}
