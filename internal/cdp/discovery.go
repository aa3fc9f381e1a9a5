package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BrowserTarget is the target id that selects the browser-wide endpoint.
const BrowserTarget = "browser"

// DefaultHost is where the debugging endpoint is looked up.
const DefaultHost = "localhost"

// Resolver turns a debugging port and target id into a WebSocket URL.
type Resolver interface {
	Resolve(ctx context.Context, port int, targetID string) (string, error)
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(ctx context.Context, port int, targetID string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, port int, targetID string) (string, error) {
	return f(ctx, port, targetID)
}

// Target represents a CDP target (page, worker, etc).
type Target struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Description  string `json:"description,omitempty"`
	WebSocketURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo contains browser version information from /json/version.
type VersionInfo struct {
	Browser         string `json:"Browser"`
	ProtocolVersion string `json:"Protocol-Version"`
	UserAgent       string `json:"User-Agent"`
	V8Version       string `json:"V8-Version"`
	WebKitVersion   string `json:"WebKit-Version"`
	WebSocketURL    string `json:"webSocketDebuggerUrl"`
}

// HTTPResolver resolves addresses against the browser's HTTP debugging
// endpoint.
type HTTPResolver struct {
	// Host defaults to DefaultHost.
	Host string
	// Client defaults to http.DefaultClient, which has no timeout; the
	// context passed to Resolve bounds the request.
	Client *http.Client
}

// Resolve implements Resolver. The browser-wide target is looked up through
// /json/version; page targets map directly onto /devtools/page/<id>.
func (r *HTTPResolver) Resolve(ctx context.Context, port int, targetID string) (string, error) {
	host := r.host()
	if targetID == "" || targetID == BrowserTarget {
		info, err := fetchVersion(ctx, r.client(), host, port)
		if err != nil {
			return "", err
		}
		return info.WebSocketURL, nil
	}
	return fmt.Sprintf("ws://%s:%d/devtools/page/%s", host, port, targetID), nil
}

func (r *HTTPResolver) host() string {
	if r == nil || r.Host == "" {
		return DefaultHost
	}
	return r.Host
}

func (r *HTTPResolver) client() *http.Client {
	if r == nil || r.Client == nil {
		return http.DefaultClient
	}
	return r.Client
}

// FetchVersion retrieves browser version info from the CDP endpoint.
// A response without webSocketDebuggerUrl is an *InvalidResponseError.
func FetchVersion(ctx context.Context, host string, port int) (*VersionInfo, error) {
	return fetchVersion(ctx, http.DefaultClient, host, port)
}

func fetchVersion(ctx context.Context, client *http.Client, host string, port int) (*VersionInfo, error) {
	url := fmt.Sprintf("http://%s:%d/json/version", host, port)

	var info VersionInfo
	if err := getJSON(ctx, client, url, &info); err != nil {
		return nil, err
	}
	if info.WebSocketURL == "" {
		return nil, &InvalidResponseError{URL: url, Reason: "missing webSocketDebuggerUrl"}
	}
	return &info, nil
}

// FetchTargets retrieves the list of available targets from the CDP endpoint.
func FetchTargets(ctx context.Context, host string, port int) ([]Target, error) {
	url := fmt.Sprintf("http://%s:%d/json", host, port)

	var targets []Target
	if err := getJSON(ctx, http.DefaultClient, url, &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// FindPageTarget returns the first page-type target from the list.
func FindPageTarget(targets []Target) *Target {
	for i := range targets {
		if targets[i].Type == "page" {
			return &targets[i]
		}
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &NetworkError{Op: "GET", Addr: url, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &NetworkError{Op: "GET", Addr: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &InvalidResponseError{URL: url, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read", Addr: url, Err: err}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &InvalidResponseError{URL: url, Reason: fmt.Sprintf("parse body: %v", err)}
	}
	return nil
}
