package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/grantcarthew/cdpconn/internal/browser"
	"github.com/grantcarthew/cdpconn/internal/cdp"
)

// Version is set at build time.
var Version = "dev"

// Debug enables verbose debug output.
var Debug bool

// JSONOutput enables JSON output format (default is text).
var JSONOutput bool

// NoColor disables color output.
var NoColor bool

// Connection flags.
var (
	Host        string
	Port        int
	TargetID    string
	Timeout     time.Duration
	Keepalive   time.Duration
	Launch      bool
	Headless    bool
	BrowserKind string
)

var rootCmd = &cobra.Command{
	Use:   "cdpconn",
	Short: "Talk to a browser over the Chrome DevTools Protocol",
	Long: `cdpconn opens a single DevTools websocket to a Chromium-based browser,
sends commands, and prints responses, events and captured network requests.

The browser must be running with --remote-debugging-port, or use --launch to
start one.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&Host, "host", cdp.DefaultHost, "DevTools host")
	flags.IntVar(&Port, "port", cdp.DefaultPort, "DevTools port")
	flags.StringVar(&TargetID, "target", "", `Target id to attach to ("page" picks the first page, empty uses the browser endpoint)`)
	flags.DurationVar(&Timeout, "timeout", cdp.DefaultCommandTimeout, "Per-command timeout")
	flags.DurationVar(&Keepalive, "keepalive", 0, "Websocket ping interval; a missed pong ends the session (0 disables)")
	flags.BoolVar(&Launch, "launch", false, "Launch a browser on --port before connecting")
	flags.BoolVar(&Headless, "headless", false, "Launch the browser headless (with --launch)")
	flags.StringVar(&BrowserKind, "browser", "chrome", "Browser to launch: chrome or edge (with --launch)")
	flags.BoolVar(&Debug, "debug", false, "Enable verbose debug output")
	flags.BoolVar(&JSONOutput, "json", false, "Output in JSON format (default is text)")
	flags.BoolVar(&NoColor, "no-color", false, "Disable color output")
	rootCmd.SetVersionTemplate("cdpconn version {{.Version}}\n")
}

// debugf logs a debug message if debug mode is enabled.
func debugf(format string, args ...any) {
	if Debug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// newLogger returns the handler logger: a development logger on --debug,
// otherwise a no-op.
func newLogger() *zap.Logger {
	if !Debug {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	if shouldUseColor() {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	log, err := cfg.Build()
	if err != nil {
		debugf("build logger: %v", err)
		return zap.NewNop()
	}
	return log
}

// Execute runs the root command, cancelling its context on interrupt.
// Supports command abbreviation via unique prefix matching.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) > 0 {
		if expanded := tryExpandCommand(args[0]); expanded != "" {
			args[0] = expanded
		}
	}
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// tryExpandCommand attempts to expand a command abbreviation.
// Returns the expanded command if exactly one match is found, empty string otherwise.
func tryExpandCommand(prefix string) string {
	var matches []string
	for _, cmd := range rootCmd.Commands() {
		name := cmd.Name()
		if name == prefix {
			return ""
		}
		if len(prefix) < len(name) && name[:len(prefix)] == prefix {
			matches = append(matches, name)
		}
	}

	if len(matches) == 1 {
		return matches[0]
	}
	return ""
}

// executeArgs runs a command with the given arguments and resets every flag
// to its default afterwards, so repeated calls start fresh.
func executeArgs(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)

	cmd, _, findErr := rootCmd.Find(args)
	if findErr != nil {
		cmd = rootCmd
	}

	resetFlags := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			// Set on a slice flag that was already set appends.
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}

	resetFlags(cmd.Flags())
	resetFlags(cmd.PersistentFlags())
	for parent := cmd.Parent(); parent != nil; parent = parent.Parent() {
		resetFlags(parent.PersistentFlags())
	}

	return err
}

// printedError is an error whose message has already been written to stderr.
type printedError struct {
	msg string
}

func (e *printedError) Error() string {
	return e.msg
}

// IsPrintedError reports whether err was already reported to the user.
func IsPrintedError(err error) bool {
	var p *printedError
	return errors.As(err, &p)
}

// isStdoutTTY returns true if stdout is a terminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// outputJSON writes a JSON response to the given writer.
// Pretty prints if stdout is a TTY, compact otherwise.
func outputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if isStdoutTTY() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

// outputSuccess writes a successful response to stdout.
// Uses text format by default, JSON if --json flag is set.
// For action commands (no data), outputs "OK" in text mode.
func outputSuccess(data any) error {
	if JSONOutput {
		resp := map[string]any{
			"ok": true,
		}
		if data != nil {
			resp["data"] = data
		}
		return outputJSON(os.Stdout, resp)
	}

	if data == nil {
		if shouldUseColor() {
			color.New(color.FgGreen).Fprintln(os.Stdout, "OK")
		} else {
			fmt.Fprintln(os.Stdout, "OK")
		}
		return nil
	}

	_, err := fmt.Fprintf(os.Stdout, "%v\n", data)
	return err
}

// outputError writes an error response to stderr and returns an error.
// Uses text format by default, JSON if --json flag is set.
func outputError(msg string) error {
	if JSONOutput {
		resp := map[string]any{
			"ok":    false,
			"error": msg,
		}
		_ = outputJSON(os.Stderr, resp)
	} else if shouldUseColor() {
		color.New(color.FgRed).Fprint(os.Stderr, "Error:")
		fmt.Fprintf(os.Stderr, " %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	return &printedError{msg: msg}
}

// shouldUseColor determines if color output should be used based on flags and environment.
func shouldUseColor() bool {
	if JSONOutput || NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// launchOptions builds browser launch options from the connection flags.
func launchOptions() (browser.LaunchOptions, error) {
	kind, err := browser.ParseKind(BrowserKind)
	if err != nil {
		return browser.LaunchOptions{}, err
	}
	return browser.LaunchOptions{Kind: kind, Headless: Headless, Port: Port}, nil
}
