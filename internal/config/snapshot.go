package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"cwmcp/internal/protocol"
)

// Snapshot is the printable form of Config. It never carries the API key.
type Snapshot struct {
	BaseURL        string                 `yaml:"base_url" json:"base_url"`
	APIKey         string                 `yaml:"api_key" json:"api_key"`
	EnablePlanMode bool                   `yaml:"enable_plan_mode" json:"enable_plan_mode"`
	TimeoutSeconds int                    `yaml:"timeout_seconds" json:"timeout_seconds"`
	ListenAddr     string                 `yaml:"listen_addr" json:"listen_addr"`
	MCPPath        string                 `yaml:"mcp_path" json:"mcp_path"`
	ConfigFile     string                 `yaml:"config_file,omitempty" json:"config_file,omitempty"`
	Sources        map[string]FieldSource `yaml:"sources" json:"sources"`
}

func SnapshotConfig(cfg Config) Snapshot {
	sources := make(map[string]FieldSource, len(cfg.Sources))
	for k, v := range cfg.Sources {
		sources[k] = v
	}
	return Snapshot{
		BaseURL:        cfg.BaseURL,
		APIKey:         redactSecret(cfg.APIKey, cfg.Sources[KeyAPIKey], cfg.ConfigFile),
		EnablePlanMode: cfg.EnablePlanMode,
		TimeoutSeconds: cfg.TimeoutSeconds,
		ListenAddr:     cfg.ListenAddr,
		MCPPath:        cfg.MCPPath,
		ConfigFile:     cfg.ConfigFile,
		Sources:        sources,
	}
}

func redactSecret(value string, src FieldSource, file string) string {
	if value == "" {
		return ""
	}
	if src == SourceEnv {
		return "<from env " + protocol.EnvAPIKey + ">"
	}
	if file != "" {
		return "<from config file>"
	}
	return "<set>"
}

func (s Snapshot) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// WriteTemplate writes DefaultYAML to path unless a file already exists there.
func WriteTemplate(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(DefaultYAML); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
