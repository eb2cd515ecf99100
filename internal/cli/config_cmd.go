package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"cwmcp/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default cwmcp_config.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print effective config as YAML (API key redacted)",
	RunE:  runConfigPrint,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPrintCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "cwmcp_config.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.WriteTemplate(path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return exitWith(ExitGenericError, "ERROR: "+path+" already exists; remove it or pick another path")
		}
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Set MCP_API_KEY in your environment or add api_key to the file.")
	return nil
}

func runConfigPrint(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(logger, nil)
	if err != nil {
		return err
	}

	snap := config.SnapshotConfig(cfg)
	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	data, err := snap.YAML()
	if err != nil {
		return err
	}
	fmt.Fprint(out, string(data))
	return nil
}
