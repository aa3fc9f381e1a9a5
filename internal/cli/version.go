package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpconn/internal/cli/format"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show browser version information",
	Long:  "Fetches /json/version from the DevTools endpoint: browser, protocol version and the browser websocket URL.",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	ep, err := openEndpoint(cmd.Context())
	if err != nil {
		return outputError(err.Error())
	}
	defer ep.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), Timeout)
	defer cancel()

	info, err := ep.version(ctx)
	if err != nil {
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputSuccess(info)
	}
	return format.Version(os.Stdout, info, format.NewOutputOptions(JSONOutput, NoColor))
}
