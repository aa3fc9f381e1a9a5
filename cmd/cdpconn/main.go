package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/grantcarthew/cdpconn/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// Command handlers print their own errors; cobra's are printed here.
		if !cli.IsPrintedError(err) {
			if cli.JSONOutput {
				_ = json.NewEncoder(os.Stderr).Encode(map[string]any{
					"ok":    false,
					"error": err.Error(),
				})
			} else {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			}
		}
		os.Exit(1)
	}
}
