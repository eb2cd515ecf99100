package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if globalFlags.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"name": "cwmcp", "version": version})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cwmcp", version)
	return nil
}
