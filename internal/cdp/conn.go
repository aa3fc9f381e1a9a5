// Package cdp implements the connection core of a Chrome DevTools Protocol
// client: one WebSocket, correlated commands and fanned-out events.
package cdp

import (
	"context"

	"github.com/coder/websocket"
)

// DefaultReadLimit is the largest frame accepted from the browser.
// Screenshots and large DOM dumps routinely exceed the websocket default.
const DefaultReadLimit = 10 << 20

// Conn is the duplex transport owned by a Handler.
// *websocket.Conn satisfies it; tests substitute in-memory fakes.
type Conn interface {
	// Read returns the next frame.
	Read(ctx context.Context) (websocket.MessageType, []byte, error)

	// Write sends one frame.
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error

	// Close closes the connection with a status code and reason.
	Close(code websocket.StatusCode, reason string) error
}

// pinger is implemented by transports that support control-frame pings.
type pinger interface {
	Ping(ctx context.Context) error
}

// Dialer opens a transport to a resolved WebSocket URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// WebSocketDialer returns a Dialer that raises the read limit of every
// connection it opens to readLimit bytes.
func WebSocketDialer(readLimit int64) Dialer {
	return func(ctx context.Context, url string) (Conn, error) {
		conn, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, &NetworkError{Op: "dial", Addr: url, Err: err}
		}
		conn.SetReadLimit(readLimit)
		return conn, nil
	}
}
