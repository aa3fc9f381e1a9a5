package cdp

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Command is an outbound CDP command. ID is assigned by the Handler;
// any value set by the caller is overwritten.
type Command struct {
	ID        int64  `json:"id"`
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Response is the reply correlated to a Command by ID.
type Response struct {
	ID        int64           `json:"id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Err returns the protocol error carried by the response, or nil.
func (r *Response) Err() error {
	if r == nil || r.Error == nil {
		return nil
	}
	return r.Error
}

// Event is an unsolicited notification from the browser.
type Event struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Clone returns a copy that shares no memory with evt.
func (evt Event) Clone() Event {
	c := evt
	if evt.Params != nil {
		c.Params = append(json.RawMessage(nil), evt.Params...)
	}
	return c
}

// Error represents a CDP protocol error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

// message is used internally to determine message type during parsing.
// ID is a pointer so that a literal id of 0 is still recognised.
type message struct {
	ID        *int64          `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// errUnknownFormat is returned for JSON objects that are neither responses
// nor events.
var errUnknownFormat = errors.New("unknown CDP message format")

// parseMessage parses a raw CDP frame and returns either a Response or Event.
// Returns (response, nil, nil) for command responses.
// Returns (nil, event, nil) for events.
// Returns (nil, nil, error) for parse errors and unclassifiable frames.
func parseMessage(data []byte) (*Response, *Event, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse CDP message")
	}

	if msg.Method != "" {
		return nil, &Event{
			Method:    msg.Method,
			Params:    msg.Params,
			SessionID: msg.SessionID,
		}, nil
	}

	if msg.ID != nil {
		return &Response{
			ID:        *msg.ID,
			Result:    msg.Result,
			Error:     msg.Error,
			SessionID: msg.SessionID,
		}, nil, nil
	}

	return nil, nil, errUnknownFormat
}
