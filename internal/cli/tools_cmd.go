package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cwmcp/internal/config"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools and whether the current config exposes them",
	RunE:  runTools,
}

type toolRow struct {
	Tool     string `json:"tool"`
	Enabled  bool   `json:"enabled"`
	PlanMode bool   `json:"plan_mode"`
}

func runTools(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(logger, nil)
	if err != nil {
		return err
	}

	caps := config.Capabilities(cfg)
	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		rows := make([]toolRow, 0, len(caps))
		for _, c := range caps {
			rows = append(rows, toolRow{Tool: c.Tool, Enabled: c.Enabled, PlanMode: c.PlanMode})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	st := newStyles(out, false)
	fmt.Fprintln(out, st.sectionHeader("Tools:"))
	for _, c := range caps {
		state := st.ok("enabled")
		if !c.Enabled {
			state = st.dim("disabled")
		}
		line := fmt.Sprintf("  %-36s %s", c.Tool, state)
		if c.PlanMode {
			line += st.dim("  (plan mode)")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
