package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNetwork matches any *NetworkError.
	ErrNetwork = errors.New("network error")

	// ErrInvalidResponse matches any *InvalidResponseError.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrTimeout matches any *TimeoutError.
	ErrTimeout = errors.New("command timed out")

	// ErrConnectionClosed is returned to every waiter that was outstanding when
	// the transport terminated, and to any call made after Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNotConnected is returned by commands issued before Connect.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by a second Connect on the same handler.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrPingUnsupported is returned by Ping when the transport has no ping.
	ErrPingUnsupported = errors.New("transport does not support ping")
)

// NetworkError is a transport-level failure: the HTTP request to the
// debugging endpoint, the websocket dial, or a socket write.
type NetworkError struct {
	Op   string
	Addr string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// InvalidResponseError is a well-formed HTTP exchange whose body does not
// carry what the resolver needs.
type InvalidResponseError struct {
	URL    string
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid response from %s: %s", e.URL, e.Reason)
}

// Is reports whether target is ErrInvalidResponse.
func (e *InvalidResponseError) Is(target error) bool { return target == ErrInvalidResponse }

// TimeoutError reports a command whose response did not arrive in time.
type TimeoutError struct {
	ID      int64
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %d (%s) timed out after %v", e.ID, e.Method, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Unwrap lets callers match context.DeadlineExceeded as well.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// ConnectError is returned by Connect. Op is "resolve" or "dial".
type ConnectError struct {
	Op   string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect port %d: %s: %v", e.Port, e.Op, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
