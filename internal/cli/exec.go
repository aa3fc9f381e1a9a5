package cli

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpconn/internal/cdp"
	"github.com/grantcarthew/cdpconn/internal/cli/format"
)

var execCmd = &cobra.Command{
	Use:   "exec <method>",
	Short: "Execute a CDP command",
	Long: `Sends one command over the DevTools websocket and prints the response.

Examples:
  cdpconn exec Browser.getVersion
  cdpconn --target page exec Runtime.evaluate --params '{"expression":"1+1"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

var (
	execParams  jsonObject
	execSession string
)

func init() {
	execCmd.Flags().Var(&execParams, "params", "Command params as a JSON object")
	execCmd.Flags().StringVar(&execSession, "session", "", "Session id for flattened target sessions")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context(), "")
	if err != nil {
		return outputError(err.Error())
	}
	defer sess.Close()

	command := cdp.Command{Method: args[0], SessionID: execSession}
	if len(execParams) > 0 {
		command.Params = execParams
	}
	debugf("exec %s params=%s", command.Method, execParams.String())

	resp, err := sess.ExecuteCommand(cmd.Context(), command)
	if err != nil {
		return outputError(err.Error())
	}
	if resp.Error != nil {
		return outputError(resp.Error.Error())
	}

	if JSONOutput {
		return outputSuccess(resp)
	}
	return format.Response(os.Stdout, resp, format.NewOutputOptions(JSONOutput, NoColor))
}

// jsonObject is a pflag.Value holding a raw JSON object.
type jsonObject json.RawMessage

func (v *jsonObject) String() string {
	return string(*v)
}

func (v *jsonObject) Set(s string) error {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 {
		*v = nil
		return nil
	}
	if !json.Valid(trimmed) {
		return errors.Errorf("invalid JSON: %s", s)
	}
	if trimmed[0] != '{' {
		return errors.New("params must be a JSON object")
	}
	*v = jsonObject(trimmed)
	return nil
}

func (v *jsonObject) Type() string {
	return "json"
}

// MarshalJSON emits the object verbatim.
func (v jsonObject) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}
