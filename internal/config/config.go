package config

import (
	"time"

	"cwmcp/internal/protocol"
)

// FieldSource indicates where a config value originates.
type FieldSource string

const (
	SourceDefault FieldSource = "default"
	SourceFile    FieldSource = "file"
	SourceEnv     FieldSource = "env"
	SourceFlag    FieldSource = "flag"
)

// Recognized config file keys. Each also accepts its camelCase spelling.
const (
	KeyBaseURL        = "base_url"
	KeyAPIKey         = "api_key"
	KeyEnablePlanMode = "enable_plan_mode"
	KeyTimeoutSeconds = "timeout_seconds"
	KeyListenAddr     = "listen_addr"
	KeyMCPPath        = "mcp_path"
)

var camelKeys = map[string]string{
	KeyBaseURL:        "baseUrl",
	KeyAPIKey:         "apiKey",
	KeyEnablePlanMode: "enablePlanMode",
	KeyTimeoutSeconds: "timeoutSeconds",
	KeyListenAddr:     "listenAddr",
	KeyMCPPath:        "mcpPath",
}

// Config is resolved once at startup and passed by value afterwards.
type Config struct {
	BaseURL        string
	APIKey         string
	EnablePlanMode bool
	TimeoutSeconds int
	ListenAddr     string
	MCPPath        string

	// ConfigFile is the first readable config file, empty when none was found.
	ConfigFile string
	Sources    map[string]FieldSource
}

func Default() Config {
	return Config{
		BaseURL:        protocol.DefaultBaseURL,
		EnablePlanMode: true,
		TimeoutSeconds: protocol.DefaultTimeoutSeconds,
		ListenAddr:     protocol.DefaultListenAddr,
		MCPPath:        protocol.DefaultMCPPath,
		Sources: map[string]FieldSource{
			KeyBaseURL:        SourceDefault,
			KeyAPIKey:         SourceDefault,
			KeyEnablePlanMode: SourceDefault,
			KeyTimeoutSeconds: SourceDefault,
			KeyListenAddr:     SourceDefault,
			KeyMCPPath:        SourceDefault,
		},
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) setSource(key string, src FieldSource) {
	if c.Sources == nil {
		c.Sources = map[string]FieldSource{}
	}
	c.Sources[key] = src
}
