package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/grantcarthew/cdpconn/internal/cdp"
)

// fakeBrowser serves the DevTools HTTP endpoints and a websocket that
// answers every command with {"echo": method}. A few methods also emit
// events before replying:
//
//	Page.enable    -> Page.loadEventFired
//	Page.navigate  -> Network.requestWillBeSent for params.url
//
// Methods starting with "Bad." are answered with a protocol error.
type fakeBrowser struct {
	srv  *httptest.Server
	host string
	port int
}

func newFakeBrowser(t *testing.T) *fakeBrowser {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Browser":              "FakeChrome/1.0",
			"Protocol-Version":     "1.3",
			"webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/browser/fake",
		})
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]cdp.Target{
			{ID: "W1", Type: "service_worker", Title: "sw", URL: "https://example.com/sw.js"},
			{ID: "P1", Type: "page", Title: "Blank", URL: "about:blank",
				WebSocketURL: "ws://" + r.Host + "/devtools/page/P1"},
		})
	})
	mux.HandleFunc("/devtools/", serveDevTools)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return &fakeBrowser{srv: srv, host: u.Hostname(), port: port}
}

// flags returns the connection flags pointing at the fake.
func (f *fakeBrowser) flags() []string {
	return []string{"--host=" + f.host, "--port=" + strconv.Itoa(f.port)}
}

func serveDevTools(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.CloseNow()

	ctx := context.Background()
	for {
		var cmd struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := wsjson.Read(ctx, c, &cmd); err != nil {
			return
		}

		switch cmd.Method {
		case "Page.enable":
			_ = wsjson.Write(ctx, c, map[string]any{
				"method": "Page.loadEventFired",
				"params": map[string]any{"timestamp": 1},
			})
		case "Page.navigate":
			var p struct {
				URL string `json:"url"`
			}
			_ = json.Unmarshal(cmd.Params, &p)
			_ = wsjson.Write(ctx, c, map[string]any{
				"method": cdp.EventRequestWillBeSent,
				"params": map[string]any{
					"requestId": "1",
					"type":      "Document",
					"request":   map[string]string{"method": "GET", "url": p.URL},
				},
			})
		}

		if strings.HasPrefix(cmd.Method, "Bad.") {
			_ = wsjson.Write(ctx, c, map[string]any{
				"id":    cmd.ID,
				"error": map[string]any{"code": -32601, "message": "'" + cmd.Method + "' wasn't found"},
			})
			continue
		}

		result := map[string]any{"echo": cmd.Method}
		if len(cmd.Params) > 0 {
			result["params"] = cmd.Params
		}
		_ = wsjson.Write(ctx, c, map[string]any{"id": cmd.ID, "result": result})
	}
}
