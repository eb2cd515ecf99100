package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"cwmcp/internal/config"
)

const ServerName = "cwmcp"

// DefaultAllowedOrigins are the browser origins accepted on the HTTP
// transport. Requests without an Origin header are always accepted.
var DefaultAllowedOrigins = []string{"http://localhost", "http://127.0.0.1"}

// ServerOptions for running the MCP server.
type ServerOptions struct {
	Version        string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server exposes Tools over MCP. Only tools enabled in the capability table
// are registered.
type Server struct {
	cfg            config.Config
	tools          *Tools
	mcp            *server.MCPServer
	registered     []string
	allowedOrigins []string
	logger         *zap.Logger
}

func NewServer(cfg config.Config, tools *Tools, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	origins := opts.AllowedOrigins
	if origins == nil {
		origins = DefaultAllowedOrigins
	}

	s := &Server{
		cfg:            cfg,
		tools:          tools,
		allowedOrigins: origins,
		logger:         logger,
	}
	s.mcp = server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions(cfg)),
	)

	for _, c := range config.Capabilities(cfg) {
		if !c.Enabled {
			logger.Debug("tool disabled", zap.String("tool", c.Tool))
			continue
		}
		def, ok := tools.definition(c.Tool)
		if !ok {
			logger.Warn("tool has no handler", zap.String("tool", c.Tool))
			continue
		}
		s.mcp.AddTool(toolSpec(def), s.handlerFor(def.Name))
		s.registered = append(s.registered, def.Name)
	}
	return s
}

// Registered returns the registered tool names in capability order.
func (s *Server) Registered() []string {
	return append([]string(nil), s.registered...)
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolSpec(def toolDefinition) mcpgo.Tool {
	opts := []mcpgo.ToolOption{mcpgo.WithDescription(def.Description)}
	for _, p := range def.Params {
		propOpts := []mcpgo.PropertyOption{mcpgo.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcpgo.Required())
		}
		opts = append(opts, mcpgo.WithString(p.Name, propOpts...))
	}
	return mcpgo.NewTool(def.Name, opts...)
}

// handlerFor adapts a tool to the MCP runtime. The envelope is returned as
// indented JSON text and never as a Go error.
func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		env := s.tools.Call(ctx, name, req.GetArguments())
		result := mcpgo.NewToolResultText(env.Indented())
		result.IsError = env.Failed()
		return result, nil
	}
}

// ServeStdio blocks serving JSON-RPC over in/out until ctx is cancelled or
// in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handler returns the HTTP handler serving Streamable HTTP on the MCP path.
func (s *Server) Handler() http.Handler {
	streamable := server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(s.cfg.MCPPath))
	mux := http.NewServeMux()
	mux.Handle(s.cfg.MCPPath, s.originGuard(streamable))
	return mux
}

// Serve blocks while handling HTTP. Cancel ctx to initiate graceful shutdown;
// in-flight requests are allowed to drain.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) originGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" && !originAllowed(origin, s.allowedOrigins) {
			s.logger.Warn("origin rejected", zap.String("origin", origin))
			writeCanonicalError(w, http.StatusForbidden, "FORBIDDEN_ORIGIN", "origin not allowed: "+origin)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed matches scheme and host, ignoring the port unless the
// allowlist entry names one.
func originAllowed(origin string, allowed []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	withPort := strings.ToLower(u.Scheme + "://" + u.Host)
	withoutPort := strings.ToLower(u.Scheme + "://" + u.Hostname())
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimRight(strings.TrimSpace(a), "/"))
		if a == withPort || a == withoutPort {
			return true
		}
	}
	return false
}

func writeCanonicalError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func serverInstructions(cfg config.Config) string {
	var b strings.Builder
	b.WriteString("cwmcp generates ContextWeave (D2) diagrams through a remote service.\n")
	b.WriteString("Use run_contextweave_generation for new diagrams and edit_contextweave to change the current one.\n")
	b.WriteString("Pass working_dir so the session id is kept in .last_session_id between calls.\n")
	if cfg.EnablePlanMode {
		b.WriteString("Only when the user asks to plan first: call get_outline_prompt, write the outline JSON into a markdown file, then call generate_contextweave_from_outline.\n")
	}
	return b.String()
}
