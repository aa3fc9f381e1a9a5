package cdp

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMessage_Response(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantID     int64
		wantResult string
	}{
		{
			name:       "object result",
			input:      `{"id":1,"result":{"frameId":"ABC123"}}`,
			wantID:     1,
			wantResult: `{"frameId":"ABC123"}`,
		},
		{
			name:       "string result",
			input:      `{"id":7,"result":"success"}`,
			wantID:     7,
			wantResult: `"success"`,
		},
		{
			name:       "null result",
			input:      `{"id":42,"result":null}`,
			wantID:     42,
			wantResult: `null`,
		},
		{
			name:       "zero id is still a response",
			input:      `{"id":0,"result":{}}`,
			wantID:     0,
			wantResult: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, evt, err := parseMessage([]byte(tt.input))
			if err != nil {
				t.Fatalf("parseMessage() error = %v", err)
			}
			if evt != nil {
				t.Errorf("expected event to be nil, got %+v", evt)
			}
			if resp == nil {
				t.Fatal("expected response, got nil")
			}
			if resp.ID != tt.wantID {
				t.Errorf("expected ID %d, got %d", tt.wantID, resp.ID)
			}
			if string(resp.Result) != tt.wantResult {
				t.Errorf("expected result %s, got %s", tt.wantResult, string(resp.Result))
			}
			if resp.Err() != nil {
				t.Errorf("expected no protocol error, got %v", resp.Err())
			}
		})
	}
}

func TestParseMessage_ResponseWithError(t *testing.T) {
	t.Parallel()

	input := `{"id":3,"error":{"code":-32601,"message":"'Foo.bar' wasn't found"}}`

	resp, evt, err := parseMessage([]byte(input))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if evt != nil {
		t.Errorf("expected event to be nil, got %+v", evt)
	}
	if resp == nil || resp.Error == nil {
		t.Fatalf("expected response with error, got %+v", resp)
	}

	var cdpErr *Error
	if !errors.As(resp.Err(), &cdpErr) {
		t.Fatalf("expected *Error from Err(), got %T", resp.Err())
	}
	if cdpErr.Code != -32601 {
		t.Errorf("expected code -32601, got %d", cdpErr.Code)
	}
}

func TestParseMessage_Event(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantMethod  string
		wantParams  string
		wantSession string
	}{
		{
			name:       "network request",
			input:      `{"method":"Network.requestWillBeSent","params":{"requestId":"1"}}`,
			wantMethod: "Network.requestWillBeSent",
			wantParams: `{"requestId":"1"}`,
		},
		{
			name:        "session scoped event",
			input:       `{"method":"Page.loadEventFired","params":{"timestamp":1.5},"sessionId":"S1"}`,
			wantMethod:  "Page.loadEventFired",
			wantParams:  `{"timestamp":1.5}`,
			wantSession: "S1",
		},
		{
			name:       "method wins over id",
			input:      `{"id":5,"method":"Target.targetCreated","params":{}}`,
			wantMethod: "Target.targetCreated",
			wantParams: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, evt, err := parseMessage([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			if resp != nil {
				t.Errorf("expected response to be nil, got %+v", resp)
			}
			if evt == nil {
				t.Fatal("expected event, got nil")
			}
			if evt.Method != tt.wantMethod {
				t.Errorf("expected method %s, got %s", tt.wantMethod, evt.Method)
			}
			if string(evt.Params) != tt.wantParams {
				t.Errorf("expected params %s, got %s", tt.wantParams, string(evt.Params))
			}
			if evt.SessionID != tt.wantSession {
				t.Errorf("expected session %q, got %q", tt.wantSession, evt.SessionID)
			}
		})
	}
}

func TestParseMessage_Rejects(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"not json":       `not json`,
		"truncated":      `{`,
		"empty":          ``,
		"fractional id":  `{"id":1.5,"result":{}}`,
		"neither":        `{"foo":"bar"}`,
		"empty object":   `{}`,
		"array instead":  `[1,2,3]`,
		"string id only": `{"id":"x"}`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp, evt, err := parseMessage([]byte(input))
			if err == nil {
				t.Errorf("expected error, got resp=%+v evt=%+v", resp, evt)
			}
		})
	}
}

func TestParseMessage_UnknownFormatIsDistinguishable(t *testing.T) {
	t.Parallel()

	_, _, err := parseMessage([]byte(`{"foo":"bar"}`))
	if !errors.Is(err, errUnknownFormat) {
		t.Errorf("expected errUnknownFormat, got %v", err)
	}

	_, _, err = parseMessage([]byte(`not json`))
	if errors.Is(err, errUnknownFormat) {
		t.Error("malformed JSON should not be reported as unknown format")
	}
}

func TestCommand_Marshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cmd      Command
		expected string
	}{
		{
			name:     "without params",
			cmd:      Command{ID: 1, Method: "Network.enable"},
			expected: `{"id":1,"method":"Network.enable"}`,
		},
		{
			name:     "with params and session",
			cmd:      Command{ID: 2, Method: "Page.navigate", Params: map[string]string{"url": "about:blank"}, SessionID: "S1"},
			expected: `{"id":2,"method":"Page.navigate","params":{"url":"about:blank"},"sessionId":"S1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tt.cmd)
			if err != nil {
				t.Fatalf("failed to marshal: %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, string(data))
			}
		})
	}
}

func TestEvent_CloneDoesNotShareParams(t *testing.T) {
	t.Parallel()

	orig := Event{Method: "Network.requestWillBeSent", Params: json.RawMessage(`{"a":1}`)}
	c := orig.Clone()
	orig.Params[2] = 'b'

	if string(c.Params) != `{"a":1}` {
		t.Errorf("clone changed with original: %s", c.Params)
	}
}

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      Error
		expected string
	}{
		{
			name:     "without data",
			err:      Error{Code: -32000, Message: "Target closed"},
			expected: "cdp error -32000: Target closed",
		},
		{
			name:     "with data",
			err:      Error{Code: -32602, Message: "Invalid params", Data: "missing 'url'"},
			expected: "cdp error -32602: Invalid params (missing 'url')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func FuzzParseMessage(f *testing.F) {
	f.Add([]byte(`{"id":1,"result":{}}`))
	f.Add([]byte(`{"id":1,"error":{"code":-1,"message":"error"}}`))
	f.Add([]byte(`{"method":"Network.requestWillBeSent","params":{}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"id":0}`))
	f.Add([]byte(`not json`))
	f.Add([]byte(``))

	f.Fuzz(func(t *testing.T, data []byte) {
		resp, evt, err := parseMessage(data)
		if err == nil && (resp == nil) == (evt == nil) {
			t.Fatalf("expected exactly one of response or event for %q", data)
		}
	})
}
