package tickship

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/tickship/internal/adapters/fs"
	"github.com/bft-labs/tickship/internal/adapters/transport"
	"github.com/bft-labs/tickship/internal/app"
	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/pkg/frame"
	"github.com/bft-labs/tickship/pkg/log"
)

// Tickship ingests one peer's record stream into a sink.
// Use New to create an instance, then Start to begin ingesting.
type Tickship struct {
	config     Config
	opts       options
	lifecycle  *app.Lifecycle
	ingestor   *app.Ingestor
	dispatcher *app.Dispatcher
	logger     log.Logger
	plugins    []Plugin

	mu        sync.Mutex
	pluginsUp bool
	done      chan struct{}
	runErr    error
}

// New creates a Tickship instance in StateStopped.
// It returns an error if the configuration is invalid, no sink was given,
// or the peer address cannot be dialed by any transport.
func New(cfg Config, opts ...Option) (*Tickship, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.sink == nil {
		return nil, fmt.Errorf("%w: a sink is required", ErrInvalidConfig)
	}

	dialer := o.dialer
	if dialer == nil {
		if cfg.Peer == "" {
			return nil, fmt.Errorf("%w: peer is required", ErrInvalidConfig)
		}
		d, err := transport.NewDialer(cfg.Peer, cfg.DialTimeout)
		if err != nil {
			return nil, err
		}
		dialer = d
	}

	statusRepo := o.statusRepo
	if statusRepo == nil && cfg.StatusDir != "" {
		statusRepo = fs.NewStatusFileRepository(cfg.StatusDir)
	}

	logger := o.logger
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	dispatcher := app.NewDispatcher(app.DispatcherConfig{
		QueueSize:     cfg.QueueSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Peer:          dialer.Addr(),
	}, o.sink, statusRepo, o.metrics, logger, emitter)

	decoderOpts := append(cfg.decoderOptions(), o.decoderOptions...)
	ingestor := app.NewIngestor(app.IngestorConfig{
		ReadBufferBytes: cfg.ReadBufferBytes,
		ReconnectMin:    cfg.ReconnectMin,
		ReconnectMax:    cfg.ReconnectMax,
		Once:            cfg.Once,
		DecoderOptions:  decoderOpts,
	}, dialer, dispatcher, o.metrics, logger, emitter)

	return &Tickship{
		config:     cfg,
		opts:       o,
		lifecycle:  app.NewLifecycle(logger, emitter),
		ingestor:   ingestor,
		dispatcher: dispatcher,
		logger:     logger,
		plugins:    o.plugins,
	}, nil
}

// Start launches the ingest and dispatch workers and returns.
// ctx bounds the lifetime of the run; cancelling it stops ingest the same
// way Stop does, except that plugins stay up until Stop is called.
func (t *Tickship) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := t.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		Peer:       t.config.Peer,
		StatusDir:  t.config.StatusDir,
		ConfigPath: t.config.ConfigPath,
		Logger:     t.logger,
	}
	for i, p := range t.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			t.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			// Unwind the plugins that did come up.
			t.shutdownPlugins(t.plugins[:i])
			_ = t.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		t.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}
	t.pluginsUp = true

	done := make(chan struct{})
	t.done = done
	t.runErr = nil

	// The dispatcher outlives the ingestor so it can drain the queue.
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(runCtx))
	dispatched := make(chan struct{})
	t.lifecycle.Go(func() {
		defer close(dispatched)
		_ = t.dispatcher.Run(dispatchCtx)
	})

	t.lifecycle.Go(func() {
		defer close(done)

		if err := t.lifecycle.TransitionTo(app.StateRunning, "workers started"); err != nil {
			// Stop() won the race; nothing to run.
			stopDispatch()
			<-dispatched
			return
		}

		err := t.ingestor.Run(runCtx)
		stopDispatch()
		<-dispatched
		t.finish(err, runCtx.Err() != nil)
	})

	return nil
}

// finish records the result of a run. cancelled reports whether the run
// context was done when the ingestor returned.
func (t *Tickship) finish(err error, cancelled bool) {
	if err != nil && !cancelled {
		t.logger.Error("ingest failed", log.Err(err))
		t.mu.Lock()
		t.runErr = err
		t.stopPlugins()
		t.mu.Unlock()
		_ = t.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return
	}

	reason := "stream ended"
	if cancelled {
		reason = "context cancelled"
	}
	// Fails when Stop() already moved to Stopping; Stop then owns shutdown.
	if t.lifecycle.TransitionTo(app.StateStopping, reason) != nil {
		return
	}
	t.mu.Lock()
	t.stopPlugins()
	t.mu.Unlock()
	_ = t.lifecycle.TransitionTo(app.StateStopped, reason)
}

// Stop cancels ingest, drains queued records into the sink and shuts
// plugins down. It waits up to 30 seconds for the workers and returns
// ErrShutdownTimeout if they did not finish.
func (t *Tickship) Stop() error {
	t.mu.Lock()
	if !t.lifecycle.CanStop() {
		t.mu.Unlock()
		return ErrNotRunning
	}
	if err := t.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.lifecycle.Cancel()
	err := t.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	t.mu.Lock()
	t.stopPlugins()
	t.mu.Unlock()

	if err != nil {
		_ = t.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = t.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Wait blocks until the current run ends or ctx is done. It returns the
// error that crashed the run, nil for a clean end, or ctx.Err().
// Wait returns ErrNotRunning if Start was never called.
func (t *Tickship) Wait(ctx context.Context) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return ErrNotRunning
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runErr
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (t *Tickship) Status() State {
	return convertState(t.lifecycle.State())
}

// Stats returns the pipeline counters.
func (t *Tickship) Stats() Stats {
	return Stats{
		Decoder:     t.ingestor.Stats(),
		Persist:     t.dispatcher.Status(),
		QueueLen:    t.dispatcher.QueueLen(),
		Connections: t.ingestor.Connections(),
	}
}

// Submit enqueues rec directly, bypassing the decoder. It never blocks and
// returns ErrQueueFull when the record was dropped.
func (t *Tickship) Submit(rec Record) error {
	return t.dispatcher.Submit(rec)
}

// stopPlugins shuts down all plugins once per run. Caller holds t.mu.
func (t *Tickship) stopPlugins() {
	if !t.pluginsUp {
		return
	}
	t.pluginsUp = false
	t.shutdownPlugins(t.plugins)
}

// shutdownPlugins shuts down plugins in reverse order.
func (t *Tickship) shutdownPlugins(plugins []Plugin) {
	ctx, cancel := context.WithTimeout(context.Background(), app.DrainTimeout)
	defer cancel()

	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			t.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			continue
		}
		t.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnConnected(peer string) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnection(ConnectionEvent{Peer: peer, Connected: true})
}

func (e *eventEmitterWrapper) OnDisconnected(peer string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnection(ConnectionEvent{Peer: peer, Err: err})
}

func (e *eventEmitterWrapper) OnFramesRejected(count uint64) {
	if e.handler == nil {
		return
	}
	e.handler.OnFramesRejected(FramesRejectedEvent{Count: count})
}

func (e *eventEmitterWrapper) OnPersistSuccess(count int, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnPersistSuccess(PersistSuccessEvent{Count: count, Duration: duration})
}

func (e *eventEmitterWrapper) OnPersistError(err error, count int) {
	if e.handler == nil {
		return
	}
	e.handler.OnPersistError(PersistErrorEvent{Err: err, Count: count})
}

func (e *eventEmitterWrapper) OnRecordDropped(rec domain.Record) {
	if e.handler == nil {
		return
	}
	e.handler.OnRecordDropped(RecordDroppedEvent{Record: rec})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"frame": {frame.Version, frame.MinCompatibleVersion},
		"log":   {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible reports whether version >= minVersion.
// Both are "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
