// Package transport opens the upstream byte stream over TCP, WebSocket or
// a local file.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/internal/ports"
)

// DefaultDialTimeout bounds connection setup when no timeout is configured.
const DefaultDialTimeout = 10 * time.Second

// NewDialer picks a dialer from the peer address scheme:
//
//	tcp://host:port or host:port   TCP
//	ws://... or wss://...          WebSocket, one chunk per message
//	file:///path or file:path      local file ("-" is stdin)
func NewDialer(peer string, timeout time.Duration) (ports.Dialer, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	scheme, rest, found := strings.Cut(peer, "://")
	if !found {
		if path, ok := strings.CutPrefix(peer, "file:"); ok {
			return NewFileDialer(path), nil
		}
		if _, _, err := net.SplitHostPort(peer); err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPeer, peer)
		}
		return NewTCPDialer(peer, timeout), nil
	}

	switch strings.ToLower(scheme) {
	case "tcp":
		return NewTCPDialer(rest, timeout), nil
	case "ws", "wss":
		return NewWebSocketDialer(peer, timeout), nil
	case "file":
		return NewFileDialer(rest), nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", domain.ErrUnsupportedPeer, scheme)
	}
}

// TCPDialer connects to a TCP feed.
type TCPDialer struct {
	addr   string
	dialer net.Dialer
}

// NewTCPDialer creates a dialer for host:port.
func NewTCPDialer(addr string, timeout time.Duration) *TCPDialer {
	return &TCPDialer{
		addr:   addr,
		dialer: net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second},
	}
}

// Dial opens a TCP connection.
func (d *TCPDialer) Dial(ctx context.Context) (io.ReadCloser, error) {
	return d.dialer.DialContext(ctx, "tcp", d.addr)
}

// Addr returns the peer address.
func (d *TCPDialer) Addr() string {
	return "tcp://" + d.addr
}

// FileDialer replays a captured stream from disk.
type FileDialer struct {
	path string
}

// NewFileDialer creates a dialer for path. "-" reads standard input.
func NewFileDialer(path string) *FileDialer {
	return &FileDialer{path: path}
}

// Dial opens the file.
func (d *FileDialer) Dial(ctx context.Context) (io.ReadCloser, error) {
	if d.path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(d.path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Addr returns the file address.
func (d *FileDialer) Addr() string {
	return "file:" + d.path
}
