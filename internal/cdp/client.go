package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Handler owns one CDP websocket. It correlates commands with their
// responses and dispatches events to registered listeners.
//
// A Handler connects at most once. After the transport terminates or Close
// is called the handler is done; create a new one to reconnect.
type Handler struct {
	cfg Config
	log *zap.Logger

	commands *correlator
	events   *dispatcher
	queue    *eventQueue

	// connectMu serialises Connect.
	connectMu sync.Mutex
	mu        sync.Mutex // guards conn and url
	conn      Conn
	url       string
	writeMu   sync.Mutex

	closed    atomic.Bool
	closing   atomic.Bool // set by the first Close
	closedCh  chan struct{}
	closeOnce sync.Once
	closeErr  error
	closeMu   sync.Mutex

	// loops tracks the receive loop, the dispatch worker and the heartbeat.
	loops sync.WaitGroup
}

// NewHandler creates an unconnected handler.
func NewHandler(cfg Config) *Handler {
	cfg = cfg.withDefaults()
	log := cfg.Logger.With(zap.Int("port", cfg.Port), zap.String("target", cfg.TargetID))
	log.Debug("handler initialized")

	return &Handler{
		cfg:      cfg,
		log:      log,
		commands: newCorrelator(),
		events:   newDispatcher(log),
		queue:    newEventQueue(cfg.EventQueueSize, log),
		closedCh: make(chan struct{}),
	}
}

// Connect resolves the websocket address, dials it and starts the receive
// loop. On failure the handler stays unconnected and Connect may be retried.
func (h *Handler) Connect(ctx context.Context) error {
	h.connectMu.Lock()
	defer h.connectMu.Unlock()

	if h.closed.Load() {
		return ErrConnectionClosed
	}
	if h.getConn() != nil {
		return ErrAlreadyConnected
	}

	url, err := h.cfg.Resolver.Resolve(ctx, h.cfg.Port, h.cfg.TargetID)
	if err != nil {
		return &ConnectError{Op: "resolve", Port: h.cfg.Port, Err: err}
	}

	h.log.Info("connecting", zap.String("url", url))
	conn, err := h.cfg.Dialer(ctx, url)
	if err != nil {
		if !errors.Is(err, ErrNetwork) {
			err = &NetworkError{Op: "dial", Addr: url, Err: err}
		}
		return &ConnectError{Op: "dial", Port: h.cfg.Port, Err: err}
	}

	p, canPing := conn.(pinger)
	keepalive := h.cfg.PingInterval > 0 && canPing
	if h.cfg.PingInterval > 0 && !canPing {
		h.log.Warn("heartbeat disabled: transport does not support ping")
	}

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client closing")
		return ErrConnectionClosed
	}
	h.conn = conn
	h.url = url
	h.loops.Add(2)
	if keepalive {
		h.loops.Add(1)
	}
	h.mu.Unlock()

	go h.readLoop(conn)
	go h.dispatchLoop()
	if keepalive {
		go h.heartbeat(conn, p, h.cfg.PingInterval)
	}

	h.log.Debug("websocket connection established")
	return nil
}

// ExecuteCommand sends cmd and waits for its response, bounded by the
// configured CommandTimeout. cmd.ID is overwritten.
//
// A protocol-level error reply is a successful exchange: it is returned as a
// *Response whose Err method reports it.
func (h *Handler) ExecuteCommand(ctx context.Context, cmd Command) (*Response, error) {
	return h.ExecuteCommandTimeout(ctx, cmd, h.cfg.CommandTimeout)
}

// ExecuteCommandTimeout is ExecuteCommand with a per-call timeout.
// A non-positive timeout selects the configured default.
func (h *Handler) ExecuteCommandTimeout(ctx context.Context, cmd Command, timeout time.Duration) (*Response, error) {
	if h.closed.Load() {
		return nil, h.closedError()
	}
	conn := h.getConn()
	if conn == nil {
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = h.cfg.CommandTimeout
	}

	id, respCh := h.commands.reserve()
	cmd.ID = id

	data, err := json.Marshal(cmd)
	if err != nil {
		h.commands.remove(id)
		return nil, errors.Wrapf(err, "failed to marshal command %s", cmd.Method)
	}

	// A sooner caller deadline is the window that applies.
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = max(left, 0)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h.writeMu.Lock()
	err = conn.Write(ctx, websocket.MessageText, data)
	h.writeMu.Unlock()
	if err != nil {
		h.commands.remove(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{ID: id, Method: cmd.Method, Timeout: timeout}
		}
		return nil, &NetworkError{Op: "write", Addr: h.address(), Err: err}
	}

	select {
	case res := <-respCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.resp, nil
	case <-ctx.Done():
		h.commands.remove(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.log.Debug("command timed out", zap.Int64("id", id), zap.String("method", cmd.Method))
			return nil, &TimeoutError{ID: id, Method: cmd.Method, Timeout: timeout}
		}
		return nil, errors.Wrapf(ctx.Err(), "command %d (%s) canceled", id, cmd.Method)
	case <-h.closedCh:
		h.commands.remove(id)
		select {
		case res := <-respCh:
			if res.err == nil {
				return res.resp, nil
			}
		default:
		}
		return nil, h.closedError()
	}
}

// Call sends a command and returns its result, turning a protocol error
// reply into a *Error.
func (h *Handler) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	resp, err := h.ExecuteCommand(ctx, Command{Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// RegisterCallback registers l for events named eventName and returns the
// callback id. A temporary callback is removed after its first invocation.
//
// Listeners run on the handler's dispatch goroutine, one at a time, in
// registration order. They may call any Handler method except Close.
func (h *Handler) RegisterCallback(eventName string, l Listener, temporary bool) int64 {
	id := h.events.register(eventName, l, temporary)
	h.log.Debug("callback registered",
		zap.Int64("callback", id),
		zap.String("method", eventName),
		zap.Bool("temporary", temporary))
	return id
}

// On is RegisterCallback for a plain function.
func (h *Handler) On(eventName string, fn func(Event)) int64 {
	return h.RegisterCallback(eventName, ListenerFunc(fn), false)
}

// Once registers fn as a temporary callback.
func (h *Handler) Once(eventName string, fn func(Event)) int64 {
	return h.RegisterCallback(eventName, ListenerFunc(fn), true)
}

// RemoveCallback unregisters a callback. Returns false if id is unknown.
func (h *Handler) RemoveCallback(id int64) bool {
	return h.events.remove(id)
}

// ClearCallbacks unregisters every callback. Ids are not reused afterwards.
func (h *Handler) ClearCallbacks() {
	h.events.clear()
}

// Callbacks returns a snapshot of the registry keyed by callback id.
func (h *Handler) Callbacks() map[int64]Callback {
	return h.events.snapshot()
}

// NetworkLogs returns every Network.requestWillBeSent event received so far,
// oldest first, whether or not anyone listened for it.
func (h *Handler) NetworkLogs() []Event {
	return h.events.network.All()
}

// Dialog returns the JavaScript dialog currently open in the target, if any.
func (h *Handler) Dialog() (Event, bool) {
	return h.events.currentDialog()
}

// Ping sends a websocket ping and waits for the pong.
func (h *Handler) Ping(ctx context.Context) error {
	conn := h.getConn()
	if conn == nil {
		return ErrNotConnected
	}
	p, ok := conn.(pinger)
	if !ok {
		return ErrPingUnsupported
	}
	if err := p.Ping(ctx); err != nil {
		return &NetworkError{Op: "ping", Addr: h.address(), Err: err}
	}
	return nil
}

// NextCommandID returns the id the next command will be assigned.
func (h *Handler) NextCommandID() int64 {
	return h.commands.next()
}

// NextCallbackID returns the id the next callback will be assigned.
func (h *Handler) NextCallbackID() int64 {
	return h.events.next()
}

// PendingCommands returns the number of commands awaiting a response.
func (h *Handler) PendingCommands() int {
	return h.commands.pending()
}

// Connected reports whether Connect succeeded and the handler is not closed.
func (h *Handler) Connected() bool {
	return h.getConn() != nil && !h.closed.Load()
}

// Close clears all callbacks, closes the connection and waits for the
// receive loop to exit. Safe to call more than once.
func (h *Handler) Close() error {
	if h.closing.Swap(true) {
		h.loops.Wait()
		return nil
	}
	h.closed.Store(true)
	h.closeOnce.Do(func() { close(h.closedCh) })
	h.events.clear()

	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client closing")
	}

	h.loops.Wait()
	h.commands.failAll(ErrConnectionClosed)
	h.log.Info("websocket connection closed")
	return err
}

// Done is closed once the connection is closed, by either side.
func (h *Handler) Done() <-chan struct{} {
	return h.closedCh
}

// Err returns the error that terminated the connection, if the browser side
// went away rather than Close being called.
func (h *Handler) Err() error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	return h.closeErr
}

func (h *Handler) String() string {
	return fmt.Sprintf("Handler(port=%d)", h.cfg.Port)
}

func (h *Handler) getConn() Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

func (h *Handler) address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

func (h *Handler) closedError() error {
	if err := h.Err(); err != nil {
		return errors.WithMessagef(ErrConnectionClosed, "%v", err)
	}
	return ErrConnectionClosed
}

// readLoop reads frames in arrival order. Responses are resolved here;
// events are recorded here and handed to the dispatch worker.
func (h *Handler) readLoop(conn Conn) {
	defer h.loops.Done()
	defer h.queue.close()

	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			h.terminate(err)
			return
		}

		resp, evt, err := parseMessage(data)
		if err != nil {
			if errors.Is(err, errUnknownFormat) {
				h.log.Debug("ignoring frame with neither id nor method")
			} else {
				h.log.Warn("failed to parse frame", zap.Error(err), zap.String("frame", truncate(data, 200)))
			}
			continue
		}

		if resp != nil {
			if !h.commands.resolve(resp) {
				h.log.Debug("dropping response with no waiter", zap.Int64("id", resp.ID))
			}
			continue
		}

		h.events.record(*evt)
		h.queue.push(*evt)
	}
}

// dispatchLoop invokes listeners for queued events, one event at a time.
func (h *Handler) dispatchLoop() {
	defer h.loops.Done()
	for {
		evt, ok := h.queue.pop()
		if !ok {
			return
		}
		h.events.dispatch(evt)
	}
}

// terminate marks the handler done after a transport failure and fails
// every outstanding command.
func (h *Handler) terminate(err error) {
	if !h.closed.Swap(true) {
		h.closeMu.Lock()
		h.closeErr = err
		h.closeMu.Unlock()
		h.log.Info("connection lost", zap.Error(err))
	}
	h.closeOnce.Do(func() { close(h.closedCh) })
	h.commands.failAll(h.closedError())
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
