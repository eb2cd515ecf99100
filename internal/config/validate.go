package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"cwmcp/internal/protocol"
)

// Validate checks the resolved config. Errors carry an actionable hint so
// the CLI can exit with ExitConfigInvalid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("CONFIG_INVALID: nil config")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CONFIG_INVALID: base_url=%q must be an http(s) URL\nSet env: %s=http://host:port", cfg.BaseURL, protocol.EnvBaseURL)
	}
	if cfg.TimeoutSeconds <= 0 {
		return fmt.Errorf("CONFIG_INVALID: timeout_seconds=%d must be positive\nSet env: %s=%d", cfg.TimeoutSeconds, protocol.EnvTimeoutSeconds, protocol.DefaultTimeoutSeconds)
	}
	if !strings.HasPrefix(cfg.MCPPath, "/") {
		return fmt.Errorf("CONFIG_INVALID: mcp_path=%q must start with /", cfg.MCPPath)
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return fmt.Errorf("CONFIG_INVALID: listen_addr=%q: %v", cfg.ListenAddr, err)
	}
	return nil
}
