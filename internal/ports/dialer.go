package ports

import (
	"context"
	"io"
)

// Dialer opens a connection to the upstream feed.
// Each successful Dial yields an independent stream; the caller closes it.
type Dialer interface {
	// Dial blocks until the stream is open or ctx is done.
	Dial(ctx context.Context) (io.ReadCloser, error)

	// Addr returns the peer address for logs and status.
	Addr() string
}
