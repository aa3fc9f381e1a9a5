package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grantcarthew/cdpconn/internal/cdp"
	"github.com/grantcarthew/cdpconn/internal/cli/format"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session over one connection",
	Long: `Opens one connection and reads commands line by line, from the terminal or
from a piped script. Any line containing a dot is sent as a CDP command:

  Runtime.evaluate {"expression":"document.title"}

Type "help" for the shell's own commands.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context(), "")
	if err != nil {
		return outputError(err.Error())
	}
	defer sess.Close()

	sh := newShell(sess, os.Stdout)
	if isStdinTTY() {
		return sh.runInteractive(cmd.Context())
	}
	return sh.runScript(cmd.Context(), os.Stdin)
}

// isStdinTTY returns true if stdin is a terminal.
func isStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// shellCommands lists shell commands for abbreviation matching.
var shellCommands = []string{"exit", "quit", "help", "history", "on", "once", "off", "callbacks", "network", "dialog", "ping"}

// expandAbbreviation expands a command prefix to a full command name.
// Returns the expanded command and true if exactly one match found.
func expandAbbreviation(prefix string, commands []string) (string, bool) {
	prefix = strings.ToLower(prefix)
	var matches []string
	for _, cmd := range commands {
		if cmd == prefix {
			return cmd, true
		}
		if strings.HasPrefix(cmd, prefix) {
			matches = append(matches, cmd)
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return "", false
}

// lockedWriter serialises writes from the prompt loop and event listeners.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type shell struct {
	sess    *session
	out     *lockedWriter
	opts    format.OutputOptions
	history []string
}

func newShell(sess *session, out io.Writer) *shell {
	return &shell{
		sess: sess,
		out:  &lockedWriter{w: out},
		opts: format.NewOutputOptions(false, NoColor),
	}
}

// runInteractive reads lines with editing and history until exit or EOF.
func (s *shell) runInteractive(ctx context.Context) error {
	l := liner.NewLiner()
	defer l.Close()

	l.SetCtrlCAborts(true)
	l.SetCompleter(s.complete)

	for {
		line, err := l.Prompt(s.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		l.AppendHistory(line)

		if s.handleLine(ctx, line) || ctx.Err() != nil {
			return nil
		}
	}
}

// runScript executes lines from r. Blank lines and lines starting with #
// are skipped.
func (s *shell) runScript(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if s.handleLine(ctx, line) || ctx.Err() != nil {
			return nil
		}
	}
	return sc.Err()
}

// prompt names the target and flags an open JavaScript dialog.
func (s *shell) prompt() string {
	name := s.sess.endpoint.host + ":" + strconv.Itoa(s.sess.endpoint.port)
	if _, open := s.sess.Dialog(); open {
		return fmt.Sprintf("cdpconn [%s dialog]> ", name)
	}
	return fmt.Sprintf("cdpconn [%s]> ", name)
}

func (s *shell) complete(line string) []string {
	var out []string
	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd, strings.ToLower(line)) {
			out = append(out, cmd)
		}
	}
	return out
}

func (s *shell) errorf(msg string, args ...any) {
	_ = format.ActionError(s.out, fmt.Sprintf(msg, args...), s.opts)
}

// handleLine runs one line. Returns true when the shell should exit.
func (s *shell) handleLine(ctx context.Context, line string) bool {
	s.history = append(s.history, line)

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	// Anything with a dot is a protocol method.
	if strings.Contains(fields[0], ".") {
		s.execute(ctx, line)
		return false
	}

	if fields[0] == "?" {
		fields[0] = "help"
	}
	cmd, ok := expandAbbreviation(fields[0], shellCommands)
	if !ok {
		s.errorf("unknown command: %s", fields[0])
		return false
	}

	switch cmd {
	case "exit", "quit":
		return true
	case "help":
		s.printHelp()
	case "history":
		for i, h := range s.history {
			fmt.Fprintf(s.out, "  %d  %s\n", i+1, h)
		}
	case "on", "once":
		if len(fields) != 2 {
			s.errorf("usage: %s <event>", cmd)
			return false
		}
		id := s.sess.RegisterCallback(fields[1], s.printer(), cmd == "once")
		fmt.Fprintf(s.out, "callback %d\n", id)
	case "off":
		if len(fields) != 2 {
			s.errorf("usage: off <callback id>")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || !s.sess.RemoveCallback(id) {
			s.errorf("unknown callback: %s", fields[1])
			return false
		}
		_ = format.ActionSuccess(s.out)
	case "callbacks":
		s.printCallbacks()
	case "network":
		if err := format.Requests(s.out, s.sess.NetworkLogs(), s.opts); err != nil {
			s.errorf("%v", err)
		}
	case "dialog":
		if e, open := s.sess.Dialog(); open {
			_ = format.Event(s.out, e, s.opts)
		} else {
			fmt.Fprintln(s.out, "no dialog open")
		}
	case "ping":
		if err := s.sess.Ping(ctx); err != nil {
			s.errorf("%v", err)
			return false
		}
		_ = format.ActionSuccess(s.out)
	}
	return false
}

// execute sends "Method [params]" and prints the response.
func (s *shell) execute(ctx context.Context, line string) {
	method, rest, _ := strings.Cut(line, " ")
	command := cdp.Command{Method: method}

	var params jsonObject
	if err := params.Set(rest); err != nil {
		s.errorf("%v", err)
		return
	}
	if len(params) > 0 {
		command.Params = params
	}

	resp, err := s.sess.ExecuteCommand(ctx, command)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	_ = format.Response(s.out, resp, s.opts)
}

// printer returns a listener that writes each event to the shell output.
func (s *shell) printer() cdp.Listener {
	return cdp.ListenerFunc(func(e cdp.Event) {
		_ = format.Event(s.out, e, s.opts)
	})
}

func (s *shell) printCallbacks() {
	callbacks := s.sess.Callbacks()
	if len(callbacks) == 0 {
		fmt.Fprintln(s.out, "no callbacks")
		return
	}

	ids := make([]int64, 0, len(callbacks))
	for id := range callbacks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var buf bytes.Buffer
	for _, id := range ids {
		cb := callbacks[id]
		if cb.Temporary {
			fmt.Fprintf(&buf, "  %d  %s (once)\n", id, cb.EventName)
		} else {
			fmt.Fprintf(&buf, "  %d  %s\n", id, cb.EventName)
		}
	}
	_, _ = s.out.Write(buf.Bytes())
}

func (s *shell) printHelp() {
	fmt.Fprint(s.out, `
Protocol commands:
  Domain.method [json]   Send a command, e.g. Page.navigate {"url":"https://example.com"}

Shell commands (unique prefixes accepted):
  on <event>       Print every <event>
  once <event>     Print the next <event> only
  off <id>         Remove a callback
  callbacks        List registered callbacks
  network          Show captured Network.requestWillBeSent events
  dialog           Show the open JavaScript dialog, if any
  ping             Websocket ping
  history          Show command history
  help, ?          Show this help
  exit, quit       Close the connection and exit

`)
}
