package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpconn/internal/cdp"
	"github.com/grantcarthew/cdpconn/internal/cli/format"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Capture outgoing network requests",
	Long: `Enables the Network domain on a page target, optionally navigates to --url,
waits for --duration, then prints every Network.requestWillBeSent event the
connection recorded.

Without --target the first page target is used.`,
	Args: cobra.NoArgs,
	RunE: runNetwork,
}

var (
	networkURL      string
	networkDuration time.Duration
)

func init() {
	networkCmd.Flags().StringVar(&networkURL, "url", "", "Navigate to this URL after enabling the Network domain")
	networkCmd.Flags().DurationVar(&networkDuration, "duration", 2*time.Second, "How long to capture")
	rootCmd.AddCommand(networkCmd)
}

func runNetwork(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := openSession(ctx, pageTarget)
	if err != nil {
		return outputError(err.Error())
	}
	defer sess.Close()

	if _, err := sess.Call(ctx, "Network.enable", nil); err != nil {
		return outputError(err.Error())
	}

	if networkURL != "" {
		debugf("navigating to %s", networkURL)
		if _, err := sess.Call(ctx, "Page.navigate", map[string]string{"url": networkURL}); err != nil {
			return outputError(err.Error())
		}
	}

	timer := time.NewTimer(networkDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-sess.Done():
	}

	logs := sess.NetworkLogs()
	debugf("captured %d requests", len(logs))

	if JSONOutput {
		if logs == nil {
			logs = []cdp.Event{}
		}
		return outputSuccess(logs)
	}
	return format.Requests(os.Stdout, logs, format.NewOutputOptions(JSONOutput, NoColor))
}
