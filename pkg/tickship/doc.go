// Package tickship embeds the tick ingest pipeline in another application.
//
// A Tickship instance dials one upstream peer, decodes the bracket-framed
// record stream with [frame.Decoder] and hands every record to a [Sink]
// through a bounded queue. The producer never blocks on the sink: a full
// queue drops the record, and a failed write is logged and not retried.
//
// # Usage
//
//	ts, err := tickship.New(tickship.Config{Peer: "tcp://127.0.0.1:9000"},
//	    tickship.WithSink(store),
//	    tickship.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := ts.Start(ctx); err != nil {
//	    return err
//	}
//	defer ts.Stop()
//
// # Lifecycle
//
// Instances move through Stopped, Starting, Running, Stopping and Crashed.
// Start returns once the workers are launched. Stop cancels the ingestor,
// lets the dispatcher drain what is still queued and shuts plugins down in
// reverse registration order. In Once mode the instance stops by itself
// when the peer closes the stream; use Wait to block until then.
//
// # Events
//
// An [EventHandler] registered with [WithEventHandler] is called
// synchronously from the worker goroutines. Embed [BaseEventHandler] to
// implement only the callbacks you need.
//
// # Plugins
//
// A [Plugin] is initialized on Start, in registration order, and shut down
// on Stop. See plugins/configwatcher for the built-in log level reloader.
package tickship
