package cdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeBrowser serves /json/version and a websocket endpoint that answers
// every command with {"echo": method}. Network.enable additionally emits a
// Network.requestWillBeSent event before its reply.
func newFakeBrowser(t *testing.T) *httptest.Server {
	t.Helper()

	wsDone := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Browser":              "FakeChrome/1.0",
			"webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/browser/fake",
		})
	})
	mux.HandleFunc("/devtools/browser/fake", func(w http.ResponseWriter, r *http.Request) {
		defer close(wsDone)

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := context.Background()
		for {
			var cmd Command
			if err := wsjson.Read(ctx, c, &cmd); err != nil {
				return
			}
			if cmd.Method == "Network.enable" {
				_ = wsjson.Write(ctx, c, map[string]any{
					"method": EventRequestWillBeSent,
					"params": map[string]string{"requestId": "R1"},
				})
			}
			_ = wsjson.Write(ctx, c, map[string]any{
				"id":     cmd.ID,
				"result": map[string]string{"echo": cmd.Method},
			})
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		select {
		case <-wsDone:
		case <-time.After(5 * time.Second):
			t.Error("fake browser websocket handler did not exit")
		}
	})
	return srv
}

func TestIntegration_HandlerOverRealWebSocket(t *testing.T) {
	t.Parallel()

	srv := newFakeBrowser(t)
	host, port := hostPort(t, srv.URL)

	h := NewHandler(Config{Host: host, Port: port, CommandTimeout: 5 * time.Second})
	t.Cleanup(func() { _ = h.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, h.Connect(ctx))
	require.True(t, h.Connected())

	events := make(chan Event, 1)
	h.Once(EventRequestWillBeSent, func(e Event) { events <- e })

	result, err := h.Call(ctx, "Network.enable", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"Network.enable"}`, string(result))

	select {
	case e := <-events:
		assert.JSONEq(t, `{"requestId":"R1"}`, string(e.Params))
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	logs := h.NetworkLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, EventRequestWillBeSent, logs[0].Method)

	require.NoError(t, h.Ping(ctx))

	resp, err := h.ExecuteCommand(ctx, Command{Method: "Page.enable"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.ID)
}
