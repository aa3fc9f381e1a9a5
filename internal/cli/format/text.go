package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/grantcarthew/cdpconn/internal/cdp"
)

// Color helper functions that respect color.NoColor flag
func colorize(c color.Attribute, s string) string {
	return color.New(c).Sprint(s)
}

func colorFprint(w io.Writer, c color.Attribute, s string) {
	color.New(c).Fprint(w, s)
}

func colorFprintf(w io.Writer, c color.Attribute, format string, args ...any) {
	color.New(c).Fprintf(w, format, args...)
}

// OutputOptions controls text formatting behavior.
type OutputOptions struct {
	UseColor bool // Enable ANSI color codes
}

// NewOutputOptions returns output options based on flags and environment.
// Priority: jsonOutput > noColorFlag > NO_COLOR env > TTY detection.
func NewOutputOptions(jsonOutput bool, noColorFlag bool) OutputOptions {
	if jsonOutput || noColorFlag {
		return OutputOptions{UseColor: false}
	}

	if os.Getenv("NO_COLOR") != "" {
		return OutputOptions{UseColor: false}
	}

	return OutputOptions{
		UseColor: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// ActionSuccess outputs "OK" for successful action commands.
func ActionSuccess(w io.Writer) error {
	_, err := fmt.Fprintln(w, "OK")
	return err
}

// ActionError outputs "Error: <message>" for failed action commands.
func ActionError(w io.Writer, msg string, opts OutputOptions) error {
	if opts.UseColor {
		colorFprint(w, color.FgRed, "Error:")
		fmt.Fprintf(w, " %s\n", msg)
	} else {
		fmt.Fprintf(w, "Error: %s\n", msg)
	}
	return nil
}

// label writes "name: value" with the name highlighted.
func label(w io.Writer, name, value string, opts OutputOptions) {
	if value == "" {
		return
	}
	if opts.UseColor {
		colorFprint(w, color.FgCyan, name+":")
		fmt.Fprintf(w, " %s\n", value)
	} else {
		fmt.Fprintf(w, "%s: %s\n", name, value)
	}
}

// Version outputs /json/version information in text format.
func Version(w io.Writer, info *cdp.VersionInfo, opts OutputOptions) error {
	label(w, "Browser", info.Browser, opts)
	label(w, "Protocol", info.ProtocolVersion, opts)
	label(w, "User-Agent", info.UserAgent, opts)
	label(w, "V8", info.V8Version, opts)
	label(w, "WebKit", info.WebKitVersion, opts)
	label(w, "WebSocket", info.WebSocketURL, opts)
	return nil
}

// Targets outputs one target per line.
// Format: TYPE ID TITLE (URL)
func Targets(w io.Writer, targets []cdp.Target, opts OutputOptions) error {
	for _, t := range targets {
		typ := t.Type
		if opts.UseColor {
			typ = colorize(color.FgCyan, typ)
		}
		if _, err := fmt.Fprintf(w, "%s %s %s (%s)\n", typ, t.ID, t.Title, t.URL); err != nil {
			return err
		}
	}
	return nil
}

// Response outputs a command response: the indented result, or the
// protocol error.
func Response(w io.Writer, resp *cdp.Response, opts OutputOptions) error {
	if resp.Error != nil {
		return ActionError(w, resp.Error.Error(), opts)
	}
	if len(resp.Result) == 0 {
		return ActionSuccess(w)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Result, "", "  "); err != nil {
		buf.Reset()
		buf.Write(resp.Result)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// Event outputs a single event on one line.
// Format: METHOD PARAMS [session]
func Event(w io.Writer, e cdp.Event, opts OutputOptions) error {
	method := e.Method
	if opts.UseColor {
		method = colorize(color.FgYellow, method)
	}

	params := compact(e.Params)
	if e.SessionID != "" {
		_, err := fmt.Fprintf(w, "%s %s [%s]\n", method, params, e.SessionID)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s\n", method, params)
	return err
}

// Request is the subset of Network.requestWillBeSent params shown by Requests.
type Request struct {
	RequestID string `json:"requestId"`
	Type      string `json:"type"`
	Request   struct {
		Method string `json:"method"`
		URL    string `json:"url"`
	} `json:"request"`
}

// Requests outputs recorded Network.requestWillBeSent events.
// Format: METHOD URL (type)
func Requests(w io.Writer, events []cdp.Event, opts OutputOptions) error {
	for _, e := range events {
		var r Request
		if err := json.Unmarshal(e.Params, &r); err != nil {
			return err
		}

		if opts.UseColor {
			switch r.Request.Method {
			case "GET":
				colorFprint(w, color.FgGreen, r.Request.Method)
			case "POST":
				colorFprint(w, color.FgBlue, r.Request.Method)
			case "PUT", "PATCH":
				colorFprint(w, color.FgYellow, r.Request.Method)
			case "DELETE":
				colorFprint(w, color.FgRed, r.Request.Method)
			default:
				fmt.Fprint(w, r.Request.Method)
			}
			fmt.Fprintf(w, " %s", r.Request.URL)
			if r.Type != "" {
				colorFprintf(w, color.FgHiBlack, " (%s)", r.Type)
			}
			fmt.Fprintln(w)
			continue
		}

		if r.Type != "" {
			fmt.Fprintf(w, "%s %s (%s)\n", r.Request.Method, r.Request.URL, r.Type)
		} else {
			fmt.Fprintf(w, "%s %s\n", r.Request.Method, r.Request.URL)
		}
	}
	return nil
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
