package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cwmcp/internal/config"
	"cwmcp/internal/gateway"
	"cwmcp/internal/mcp"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagram tools over MCP (stdio or Streamable HTTP)",
	RunE:  runServe,
}

var (
	serveTransport string
	serveListen    string
	serveMCPPath   string
	serveBaseURL   string
)

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serveTransport, "transport", transportStdio, "MCP transport: stdio|http")
	cmd.Flags().StringVar(&serveListen, "listen", "", "host:port for the http transport (default 127.0.0.1:8088)")
	cmd.Flags().StringVar(&serveMCPPath, "mcp-path", "", "HTTP path of the MCP endpoint (default /mcp)")
	cmd.Flags().StringVar(&serveBaseURL, "base-url", "", "diagram service base URL")
}

// serveOverrides turns explicitly set flags into config overrides.
func serveOverrides(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	if cmd.Flags().Changed("listen") {
		o.ListenAddr = &serveListen
	}
	if cmd.Flags().Changed("mcp-path") {
		o.MCPPath = &serveMCPPath
	}
	if cmd.Flags().Changed("base-url") {
		o.BaseURL = &serveBaseURL
	}
	return o
}

func newGatewayClient(cfg config.Config, logger *zap.Logger) *gateway.Client {
	return gateway.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout(), gateway.WithLogger(logger))
}

func newTools(client *gateway.Client, logger *zap.Logger) *mcp.Tools {
	return mcp.NewTools(client, mcp.WithLogger(logger))
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveTransport != transportStdio && serveTransport != transportHTTP {
		return exitWith(ExitGenericError, "ERROR: unknown transport: "+serveTransport)
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(logger, serveOverrides(cmd))
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		logger.Warn("no API key configured; the diagram service will likely reject calls")
	}

	client := newGatewayClient(cfg, logger)
	server := mcp.NewServer(cfg, newTools(client, logger), mcp.ServerOptions{
		Version: version,
		Logger:  logger,
	})
	logger.Info("tools registered",
		zap.Strings("tools", server.Registered()),
		zap.String("base_url", client.BaseURL()),
		zap.String("transport", serveTransport))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveTransport == transportStdio {
		return server.ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return exitWith(ExitBindFailure, "ERROR: server bind failure: "+err.Error())
	}
	mcpURL := fmt.Sprintf("http://%s%s", listener.Addr().String(), cfg.MCPPath)

	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		emitNDJSON(out, "server_started", map[string]interface{}{
			"url":       mcpURL,
			"transport": "mcp_streamable_http",
			"tools":     server.Registered(),
		})
	} else {
		st := newStyles(out, false)
		fmt.Fprintln(out, st.banner(), st.dim(version))
		fmt.Fprintln(out)
		fmt.Fprintln(out, st.sectionHeader("MCP endpoint:"))
		fmt.Fprintln(out, st.kv("URL", mcpURL))
		fmt.Fprintln(out, st.kv("Service", client.BaseURL()))
		fmt.Fprintln(out, st.kv("Tools", fmt.Sprintf("%d registered", len(server.Registered()))))
		fmt.Fprintln(out)
	}

	return server.Serve(ctx, listener)
}

func emitNDJSON(w io.Writer, event string, data map[string]interface{}) {
	out := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"event": event,
		"data":  data,
	}
	_ = json.NewEncoder(w).Encode(out)
}
