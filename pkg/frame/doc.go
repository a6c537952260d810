// Package frame decodes bracket-delimited records from a chunked byte stream.
//
// Peers emit records as ASCII frames of the form
//
//	[1468009895549670789,397807]
//
// separated by arbitrary filler bytes, usually newlines. Transports deliver
// the stream in chunks whose boundaries bear no relation to frame
// boundaries. A [Decoder] carries its state across calls, so feeding any
// partition of a stream yields exactly the records that feeding the whole
// stream at once would.
//
// # Usage
//
//	dec := frame.NewDecoder(frame.WithLogger(logger))
//	for {
//	    n, err := conn.Read(buf)
//	    dec.FeedFunc(buf[:n], func(r frame.Record) {
//	        dispatcher.Submit(r)
//	    })
//	    if err != nil {
//	        break
//	    }
//	}
//	dec.Reset() // an unterminated frame is discarded, never emitted
//
// The decoder owns no I/O and never returns an error for byte content.
// Frames that fail validation are logged, counted in [Stats] and dropped.
//
// # Validation
//
// [ModeCompat] accepts any payload that contains a digit, a comma and a
// digit in sequence. This is deliberately weak: "x5,3y" is accepted. It
// matches the behavior existing consumers were built against.
// [ModeStrict] requires the whole payload to be <digits>,<digits> with the
// value below 1,000,000.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package frame
