package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer connects to a WebSocket feed. Message boundaries carry no
// meaning: each message is handed to the decoder as one more chunk.
type WebSocketDialer struct {
	url    string
	dialer websocket.Dialer
}

// NewWebSocketDialer creates a dialer for a ws:// or wss:// URL.
func NewWebSocketDialer(url string, timeout time.Duration) *WebSocketDialer {
	return &WebSocketDialer{
		url: url,
		dialer: websocket.Dialer{
			HandshakeTimeout: timeout,
		},
	}
}

// Dial performs the WebSocket handshake.
func (d *WebSocketDialer) Dial(ctx context.Context) (io.ReadCloser, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return &wsStream{conn: conn}, nil
}

// Addr returns the WebSocket URL.
func (d *WebSocketDialer) Addr() string {
	return d.url
}

// wsStream flattens a sequence of messages into an io.Reader.
type wsStream struct {
	conn *websocket.Conn
	cur  io.Reader
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.cur == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.cur = r
		}

		n, err := s.cur.Read(p)
		if errors.Is(err, io.EOF) {
			s.cur = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
