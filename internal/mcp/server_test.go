package mcp

import (
	"bufio"
	"context"
	"io"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"cwmcp/internal/config"
	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
)

func rpc(t *testing.T, s *server.MCPServer, id int, method string, params interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp := s.HandleMessage(context.Background(), raw)
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

func initialize(t *testing.T, s *server.MCPServer) {
	t.Helper()
	resp := rpc(t, s, 1, "initialize", map[string]interface{}{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": "test", "version": "0"},
	})
	if _, ok := resp["result"]; !ok {
		t.Fatalf("initialize failed: %#v", resp)
	}
}

func listedTools(t *testing.T, s *server.MCPServer) map[string]map[string]interface{} {
	t.Helper()
	resp := rpc(t, s, 2, "tools/list", map[string]interface{}{})
	result, _ := resp["result"].(map[string]interface{})
	items, _ := result["tools"].([]interface{})
	out := map[string]map[string]interface{}{}
	for _, item := range items {
		tool, _ := item.(map[string]interface{})
		name, _ := tool["name"].(string)
		out[name] = tool
	}
	return out
}

func TestNewServer_RegistersFromCapabilityTable(t *testing.T) {
	cfg := config.Default()
	s := NewServer(cfg, newTestTools(&fakeGateway{}, t.TempDir()), ServerOptions{Version: "test"})
	initialize(t, s.MCPServer())

	tools := listedTools(t, s.MCPServer())
	if len(tools) != 7 || len(s.Registered()) != 7 {
		t.Fatalf("expected 7 tools, got %d listed / %v", len(tools), s.Registered())
	}
	if s.Registered()[0] != protocol.ToolNameRunGeneration {
		t.Fatalf("unexpected registration order: %v", s.Registered())
	}

	edit := tools[protocol.ToolNameEdit]
	schema, _ := edit["inputSchema"].(map[string]interface{})
	required, _ := schema["required"].([]interface{})
	if len(required) != 1 || required[0] != "user_request" {
		t.Fatalf("unexpected required list: %#v", schema["required"])
	}
}

func TestNewServer_PlanModeOff(t *testing.T) {
	cfg := config.Default()
	cfg.EnablePlanMode = false
	s := NewServer(cfg, newTestTools(&fakeGateway{}, t.TempDir()), ServerOptions{})
	initialize(t, s.MCPServer())

	tools := listedTools(t, s.MCPServer())
	if len(tools) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(tools))
	}
	for _, name := range []string{protocol.ToolNameOutlinePrompt, protocol.ToolNameGenerateFromOutline} {
		if _, ok := tools[name]; ok {
			t.Fatalf("%s must not be registered with plan mode off", name)
		}
	}
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	resp := rpc(t, s, 3, "tools/call", map[string]interface{}{"name": name, "arguments": args})
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("tools/call failed: %#v", resp)
	}
	isError, _ := result["isError"].(bool)
	content, _ := result["content"].([]interface{})
	if len(content) != 1 {
		t.Fatalf("expected one content item, got %#v", result["content"])
	}
	item, _ := content[0].(map[string]interface{})
	text, _ := item["text"].(string)
	return text, isError
}

func TestToolsCall_ReturnsEnvelopeText(t *testing.T) {
	gw := &fakeGateway{respond: respondOK(map[string]interface{}{protocol.FieldSessionID: "s-1"})}
	s := NewServer(config.Default(), newTestTools(gw, t.TempDir()), ServerOptions{})
	initialize(t, s.MCPServer())

	text, isError := callTool(t, s.MCPServer(), protocol.ToolNameEdit, map[string]interface{}{
		"user_request": "add a node",
		"session_id":   "s-1",
	})
	if isError {
		t.Fatalf("unexpected error result: %s", text)
	}
	var env model.Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		t.Fatalf("result text is not an envelope: %v\n%s", err, text)
	}
	if !env.IsOK() {
		t.Fatalf("expected ok envelope, got %s", text)
	}
	if !strings.Contains(text, "\n  \"") {
		t.Fatalf("expected indented JSON, got %s", text)
	}
}

func TestToolsCall_ErrorEnvelopeSetsIsError(t *testing.T) {
	gw := &fakeGateway{respond: func(string, map[string]interface{}) model.Envelope {
		return model.Fail(protocol.ErrorCodePaymentRequired, "http status 402: no credit")
	}}
	s := NewServer(config.Default(), newTestTools(gw, t.TempDir()), ServerOptions{})
	initialize(t, s.MCPServer())

	text, isError := callTool(t, s.MCPServer(), protocol.ToolNameEdit, map[string]interface{}{
		"user_request": "x",
		"session_id":   "s",
	})
	if !isError {
		t.Fatalf("expected isError, got %s", text)
	}
	var env model.Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error == nil || env.Error.Code != protocol.ErrorCodePaymentRequired {
		t.Fatalf("unexpected envelope: %s", text)
	}
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		origin string
		want   bool
	}{
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8088", true},
		{"https://localhost", false},
		{"https://evil.example", false},
		{"null", false},
	}
	for _, tc := range cases {
		if got := originAllowed(tc.origin, DefaultAllowedOrigins); got != tc.want {
			t.Fatalf("originAllowed(%q)=%t want %t", tc.origin, got, tc.want)
		}
	}
	if !originAllowed("https://app.example:8443", []string{"https://app.example:8443"}) {
		t.Fatal("explicit port entry must match")
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	s := NewServer(config.Default(), newTestTools(&fakeGateway{}, t.TempDir()), ServerOptions{})
	handler := s.Handler()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`
	req := httptest.NewRequest(http.MethodPost, protocol.DefaultMCPPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "FORBIDDEN_ORIGIN") {
		t.Fatalf("expected canonical error code, got %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, protocol.DefaultMCPPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Origin", "http://localhost:3000")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code == http.StatusForbidden {
		t.Fatalf("localhost origin must pass, body=%s", rr.Body.String())
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := NewServer(config.Default(), newTestTools(&fakeGateway{}, t.TempDir()), ServerOptions{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeStdio_AnswersInitialize(t *testing.T) {
	s := NewServer(config.Default(), newTestTools(&fakeGateway{}, t.TempDir()), ServerOptions{Version: "test"})
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeStdio(ctx, inR, outW) }()

	go func() {
		_, _ = io.WriteString(inW, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`+"\n")
	}()

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(outR).ReadString('\n')
		lines <- line
	}()
	select {
	case line := <-lines:
		var resp map[string]interface{}
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		result, _ := resp["result"].(map[string]interface{})
		info, _ := result["serverInfo"].(map[string]interface{})
		if info["name"] != ServerName {
			t.Fatalf("unexpected initialize result: %s", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no response on stdout")
	}

	cancel()
	_ = inW.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stdio server did not stop")
	}
}
