package tickship

import (
	"context"
	"time"
)

// State is the lifecycle state of a Tickship instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ConnectionEvent is emitted when a peer connection opens or closes.
// Err is nil on connect and on a clean end of stream.
type ConnectionEvent struct {
	Peer      string
	Connected bool
	Err       error
}

// PersistSuccessEvent is emitted after a flush stored at least one record.
type PersistSuccessEvent struct {
	Count    int
	Duration time.Duration
}

// PersistErrorEvent is emitted when a flush failed for Count records.
// The records are not retried.
type PersistErrorEvent struct {
	Err   error
	Count int
}

// RecordDroppedEvent is emitted when the persistence queue was full.
type RecordDroppedEvent struct {
	Record Record
}

// FramesRejectedEvent is emitted after a read in which Count frames failed
// validation.
type FramesRejectedEvent struct {
	Count uint64
}

// EventHandler receives tickship events.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnConnection(ConnectionEvent)
	OnPersistSuccess(PersistSuccessEvent)
	OnPersistError(PersistErrorEvent)
	OnRecordDropped(RecordDroppedEvent)
	OnFramesRejected(FramesRejectedEvent)
}

// BaseEventHandler implements EventHandler with no-ops.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)       {}
func (BaseEventHandler) OnConnection(ConnectionEvent)         {}
func (BaseEventHandler) OnPersistSuccess(PersistSuccessEvent) {}
func (BaseEventHandler) OnPersistError(PersistErrorEvent)     {}
func (BaseEventHandler) OnRecordDropped(RecordDroppedEvent)   {}
func (BaseEventHandler) OnFramesRejected(FramesRejectedEvent) {}

// PluginConfig is handed to every plugin on Initialize.
type PluginConfig struct {
	// Peer is the address of the upstream peer.
	Peer string

	// StatusDir is where status.json is written, if enabled.
	StatusDir string

	// ConfigPath is the application's configuration file, if any.
	ConfigPath string

	Logger Logger
}

// Plugin extends a Tickship instance with optional behavior.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called on Start. ctx is cancelled on Stop.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called on Stop in reverse registration order.
	Shutdown(ctx context.Context) error
}

// Stats is a point-in-time view of pipeline counters.
type Stats struct {
	Decoder     DecoderStats
	Persist     Status
	QueueLen    int
	Connections uint64
}
