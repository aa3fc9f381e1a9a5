package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

var errMockClosed = errors.New("connection closed")

// mockConn implements Conn. Frames are delivered through readCh; if respond
// is set, its output for every written command is queued as the reply.
type mockConn struct {
	mu       sync.Mutex
	readCh   chan []byte
	written  [][]byte
	writeErr error
	respond  func(Command) []byte
	closed   bool
	closeCh  chan struct{}
	dropped  bool
	dropCh   chan struct{}
}

func newMockConn(messages ...[]byte) *mockConn {
	m := &mockConn{
		readCh:  make(chan []byte, len(messages)+100),
		closeCh: make(chan struct{}),
		dropCh:  make(chan struct{}),
	}
	for _, msg := range messages {
		m.readCh <- msg
	}
	return m
}

// newEchoMockConn replies to every command with the given raw result.
func newEchoMockConn(result string) *mockConn {
	m := newMockConn()
	m.respond = func(cmd Command) []byte {
		return []byte(fmt.Sprintf(`{"id":%d,"result":%s}`, cmd.ID, result))
	}
	return m
}

func (m *mockConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case msg := <-m.readCh:
		return websocket.MessageText, msg, nil
	case <-m.closeCh:
		return 0, nil, errMockClosed
	case <-m.dropCh:
		return 0, nil, errors.New("EOF")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (m *mockConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errMockClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, data)

	if m.respond != nil {
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			return err
		}
		if reply := m.respond(cmd); reply != nil {
			m.readCh <- reply
		}
	}
	return nil
}

func (m *mockConn) Close(code websocket.StatusCode, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closeCh)
	}
	return nil
}

// queue delivers a frame to the handler's receive loop.
func (m *mockConn) queue(data string) {
	m.readCh <- []byte(data)
}

// drop simulates the browser going away.
func (m *mockConn) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dropped {
		m.dropped = true
		close(m.dropCh)
	}
}

func (m *mockConn) getWritten() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmds := make([]Command, 0, len(m.written))
	for _, data := range m.written {
		var cmd Command
		_ = json.Unmarshal(data, &cmd)
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// pingConn adds ping support to mockConn.
type pingConn struct {
	*mockConn
	pingErr error
	pings   int
}

func (p *pingConn) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pings++
	return p.pingErr
}

func (p *pingConn) setPingErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingErr = err
}

func (p *pingConn) pingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pings
}

// staticResolver always resolves to url and records what it was asked.
type staticResolver struct {
	mu       sync.Mutex
	url      string
	err      error
	port     int
	targetID string
	calls    int
}

func (r *staticResolver) Resolve(ctx context.Context, port int, targetID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.port = port
	r.targetID = targetID
	return r.url, r.err
}

// connectHandler builds a handler over conn, connects it and closes it when
// the test ends.
func connectHandler(t *testing.T, conn Conn, opts ...func(*Config)) *Handler {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Resolver = &staticResolver{url: "ws://localhost:9222"}
	cfg.Dialer = func(ctx context.Context, url string) (Conn, error) { return conn, nil }
	for _, opt := range opts {
		opt(&cfg)
	}

	h := NewHandler(cfg)
	t.Cleanup(func() { _ = h.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Connect(ctx))
	return h
}

func withTimeout(d time.Duration) func(*Config) {
	return func(c *Config) { c.CommandTimeout = d }
}
