package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpconn/internal/cdp"
	"github.com/grantcarthew/cdpconn/internal/cli/format"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List debuggable targets",
	Long:  "Fetches /json from the DevTools endpoint. Use a target id with --target to attach to it.",
	Args:  cobra.NoArgs,
	RunE:  runTargets,
}

var targetsType string

func init() {
	targetsCmd.Flags().StringVar(&targetsType, "type", "", "Only show targets of this type (page, iframe, service_worker, ...)")
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	ep, err := openEndpoint(cmd.Context())
	if err != nil {
		return outputError(err.Error())
	}
	defer ep.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), Timeout)
	defer cancel()

	targets, err := ep.targets(ctx)
	if err != nil {
		return outputError(err.Error())
	}

	if targetsType != "" {
		filtered := targets[:0]
		for _, t := range targets {
			if t.Type == targetsType {
				filtered = append(filtered, t)
			}
		}
		targets = filtered
	}

	if JSONOutput {
		if targets == nil {
			targets = []cdp.Target{}
		}
		return outputSuccess(targets)
	}
	return format.Targets(os.Stdout, targets, format.NewOutputOptions(JSONOutput, NoColor))
}
