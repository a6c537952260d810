package domain

import "errors"

// Domain errors represent error conditions in the tickship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("tickship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("tickship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("tickship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("tickship: invalid configuration")

	// ErrQueueFull is reported when a record is dropped because the
	// persistence queue has no room.
	ErrQueueFull = errors.New("tickship: persistence queue full")

	// ErrUnsupportedPeer is returned for peer addresses with an unknown scheme.
	ErrUnsupportedPeer = errors.New("tickship: unsupported peer address")
)
