package cli

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpconn/internal/cdp"
	"github.com/grantcarthew/cdpconn/internal/cli/format"
)

var watchCmd = &cobra.Command{
	Use:   "watch <event>...",
	Short: "Print CDP events as they arrive",
	Long: `Registers a listener for each event name and prints matching events until
interrupted, --duration elapses, or (with --once) every listener has fired.

Events are only sent for enabled domains; use --enable to turn them on:
  cdpconn --target page watch Page.loadEventFired --enable Page --once`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchOnce     bool
	watchDuration time.Duration
	watchEnable   []string
)

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Remove each listener after its first event")
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (0 waits until interrupted)")
	watchCmd.Flags().StringSliceVar(&watchEnable, "enable", nil, "Domains to enable first, e.g. Page,Network (repeatable, CSV-supported)")
	rootCmd.AddCommand(watchCmd)
}

// enableMethod turns "Page" into "Page.enable"; full method names pass through.
func enableMethod(domain string) string {
	if strings.Contains(domain, ".") {
		return domain
	}
	return domain + ".enable"
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := openSession(ctx, "")
	if err != nil {
		return outputError(err.Error())
	}
	defer sess.Close()

	// Listeners run on the handler's dispatch goroutine; done releases any
	// blocked send before Close waits for that goroutine.
	done := make(chan struct{})
	defer close(done)

	events := make(chan cdp.Event, 64)
	forward := cdp.ListenerFunc(func(e cdp.Event) {
		select {
		case events <- e:
		case <-done:
		}
	})
	for _, name := range args {
		id := sess.RegisterCallback(name, forward, watchOnce)
		debugf("listening for %s (callback %d)", name, id)
	}

	for _, domain := range watchEnable {
		if _, err := sess.Call(ctx, enableMethod(domain), nil); err != nil {
			return outputError(err.Error())
		}
	}

	var deadline <-chan time.Time
	if watchDuration > 0 {
		timer := time.NewTimer(watchDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	opts := format.NewOutputOptions(JSONOutput, NoColor)
	remaining := len(args)
	for {
		select {
		case e := <-events:
			if JSONOutput {
				err = outputJSON(os.Stdout, e)
			} else {
				err = format.Event(os.Stdout, e, opts)
			}
			if err != nil {
				return outputError(err.Error())
			}
			if watchOnce {
				if remaining--; remaining == 0 {
					return nil
				}
			}
		case <-deadline:
			return nil
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			if err := sess.Err(); err != nil {
				return outputError(err.Error())
			}
			return nil
		}
	}
}
