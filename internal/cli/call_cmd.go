package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cwmcp/internal/config"
	"cwmcp/internal/gateway"
	"cwmcp/internal/mcp"
	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
)

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-arguments|-]",
	Short: "Invoke one tool directly and print its result envelope",
	Long: "Invoke one tool without an MCP host. Arguments are a JSON object; " +
		"pass - to read them from stdin.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

var callBaseURL string

func init() {
	callCmd.Flags().StringVar(&callBaseURL, "base-url", "", "diagram service base URL")
}

func runCall(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	overrides := &config.Overrides{}
	if cmd.Flags().Changed("base-url") {
		overrides.BaseURL = &callBaseURL
	}
	cfg, err := loadConfig(logger, overrides)
	if err != nil {
		return err
	}

	tool := args[0]
	var env model.Envelope
	if !config.Enabled(cfg, tool) {
		env = model.Fail(protocol.ErrorCodeInvalidField, "tool not available: "+tool)
	} else {
		raw := ""
		if len(args) == 2 {
			raw = args[1]
		}
		if raw == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return exitWith(ExitGenericError, "ERROR: reading arguments: "+err.Error())
			}
			raw = string(data)
		}
		toolArgs, err := mcp.ParseArguments(raw)
		if err != nil {
			env = model.Fail(protocol.ErrorCodeInvalidField, err.Error())
		} else {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			client := newGatewayClient(cfg, logger)
			env = newTools(client, logger).Call(ctx, tool, toolArgs)
			if env.Failed() {
				logger.Debug("tool failed", zap.String("tool", tool), zap.String("base_url", client.BaseURL()))
			}
		}
	}

	out := cmd.OutOrStdout()
	st := newStyles(out, globalFlags.JSON)
	if st.enabled {
		printEnvelope(out, st, tool, env)
	} else {
		fmt.Fprintln(out, env.Indented())
	}

	if env.Failed() {
		code := ""
		if env.Error != nil {
			code = env.Error.Code
		}
		msg := ""
		if hint := gateway.ActionableMessageForCode(code); hint != "" {
			msg = "hint: " + hint
		}
		return exitWith(ExitToolFailed, msg)
	}
	return nil
}

func printEnvelope(w io.Writer, st styles, tool string, env model.Envelope) {
	fmt.Fprintln(w, st.sectionHeader(tool))
	if env.Failed() && env.Error != nil {
		fmt.Fprintln(w, st.errPrefix(), env.Error.Code+": "+env.Error.Message)
	} else {
		fmt.Fprintln(w, st.ok("ok"))
		keys := make([]string, 0, len(env.Data))
		for k := range env.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintln(w, st.kv(k, summarize(env.Data[k])))
		}
	}
	for _, warning := range env.Warnings {
		fmt.Fprintln(w, st.warnPrefix(), warning)
	}
}

// summarize keeps long values such as prompts or diagram code on one line.
func summarize(v interface{}) string {
	const limit = 120
	s := fmt.Sprintf("%v", v)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	if len(s) > limit {
		s = s[:limit] + " ..."
	}
	return s
}
