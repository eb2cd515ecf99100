package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cwmcp/internal/config"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitGenericError  = 1
	ExitConfigInvalid = 2
	ExitBindFailure   = 3
	ExitToolFailed    = 4
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "cwmcp",
	Short: "Local MCP server for ContextWeave diagram generation",
	Long: "cwmcp exposes the ContextWeave diagram service as MCP tools. " +
		"Run without a subcommand to serve over stdio.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "config file path (default: cwmcp_config.{json,toml,yaml})")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "machine-readable output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "debug logging on stderr")
	addServeFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Use ExitCode to map the returned error.
func Execute() error {
	return rootCmd.Execute()
}

// exitError carries a process exit code through cobra's RunE.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitWith(code int, msg string) error {
	return &exitError{code: code, msg: msg}
}

// ExitCode returns the exit code for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitGenericError
}

// newLogger builds a production zap logger on stderr. Stdout stays reserved
// for the stdio transport and command output.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if globalFlags.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func loadConfig(logger *zap.Logger, overrides *config.Overrides) (config.Config, error) {
	cfg, err := config.Load(config.Options{
		ConfigPath: globalFlags.ConfigPath,
		Logger:     logger,
		Overrides:  overrides,
	})
	if err != nil {
		return cfg, exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	return cfg, nil
}
