// Package tickship persists a peer's bracket-framed record stream.
//
// Example usage:
//
//	store, err := sqlite.Open(sqlite.Config{Path: "ticks.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg := tickship.Config{Peer: "tcp://127.0.0.1:9000"}
//	if err := tickship.Run(ctx, cfg, tickship.WithSink(store)); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks. Applications that need lifecycle control, events or plugins
// use pkg/tickship directly.
package tickship

import (
	"context"
	"errors"

	facade "github.com/bft-labs/tickship/pkg/tickship"
)

// Config holds the pipeline settings. See pkg/tickship.Config.
type Config = facade.Config

// Option configures optional behavior. See pkg/tickship.Option.
type Option = facade.Option

// WithSink sets the record sink. It is required.
var WithSink = facade.WithSink

// WithLogger sets the structured logger.
var WithLogger = facade.WithLogger

// Run ingests until ctx is cancelled, or until the stream ends when
// cfg.Once is set. Queued records are drained into the sink before it
// returns. Cancellation is not an error.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	ts, err := facade.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := ts.Start(ctx); err != nil {
		return err
	}

	err = ts.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		if stopErr := ts.Stop(); stopErr != nil && !errors.Is(stopErr, facade.ErrNotRunning) {
			return stopErr
		}
		err = ts.Wait(context.Background())
	}
	return err
}
