package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"cwmcp/internal/protocol"
)

// Extensions probed for each candidate base path, in order.
var fileExtensions = []string{".json", ".toml", ".yaml", ".yml"}

// Options for loading config. Zero values select the process defaults.
type Options struct {
	// ConfigPath is tried before the candidates. A path without a known
	// extension is probed like a candidate base.
	ConfigPath string
	// Candidates are base paths without extension. Nil means DefaultCandidates.
	Candidates []string
	// DotEnvFiles nil means .env.local then .env.
	DotEnvFiles []string
	Getenv      func(string) string
	Logger      *zap.Logger
	// Overrides apply last. Nil means no CLI overrides.
	Overrides *Overrides
}

// Overrides holds CLI flag values that take precedence over env, file and
// defaults. Only non-nil fields are applied.
type Overrides struct {
	BaseURL    *string
	ListenAddr *string
	MCPPath    *string
}

// DefaultCandidates returns the config base paths: the working directory,
// the user config directory, then next to the executable.
func DefaultCandidates() []string {
	bases := []string{"cwmcp_config"}
	if dir, err := os.UserConfigDir(); err == nil {
		bases = append(bases, filepath.Join(dir, "cwmcp", "config"))
	}
	if exe, err := os.Executable(); err == nil {
		bases = append(bases, filepath.Join(filepath.Dir(exe), "cwmcp_config"))
	}
	return bases
}

// Load builds config with precedence: defaults → dotenv → config file → env
// → Overrides. The API key is taken from the first file that carries one;
// every other file value comes from the first readable file only.
func Load(opts Options) (Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := Default()

	dotenv := opts.DotEnvFiles
	if dotenv == nil {
		dotenv = []string{".env.local", ".env"}
	}
	if err := loadDotEnvFiles(dotenv...); err != nil {
		logger.Warn("dotenv files ignored", zap.Error(err))
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	keyFound := false
	for _, path := range candidateFiles(opts) {
		values, err := readConfigFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("config file ignored", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		if cfg.ConfigFile == "" {
			cfg.ConfigFile = path
			applyFile(&cfg, values, logger)
		}
		if !keyFound {
			if key, ok := lookupString(values, KeyAPIKey); ok {
				cfg.APIKey = key
				cfg.setSource(KeyAPIKey, SourceFile)
				keyFound = true
			}
		}
	}
	if cfg.ConfigFile == "" {
		logger.Warn("no config file found, using defaults")
	}

	applyEnv(&cfg, getenv, logger)
	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if err := Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func candidateFiles(opts Options) []string {
	var bases []string
	var files []string
	if p := strings.TrimSpace(opts.ConfigPath); p != "" {
		if hasKnownExtension(p) {
			files = append(files, p)
		} else {
			bases = append(bases, p)
		}
	}
	if opts.Candidates == nil {
		bases = append(bases, DefaultCandidates()...)
	} else {
		bases = append(bases, opts.Candidates...)
	}
	for _, base := range bases {
		for _, ext := range fileExtensions {
			files = append(files, base+ext)
		}
	}
	return files
}

func hasKnownExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range fileExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// readConfigFile decodes a flat key/value config file by extension.
func readConfigFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &values); err != nil {
			return nil, fmt.Errorf("malformed TOML in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("malformed YAML in %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("malformed JSON in %s: %w", path, err)
		}
	}
	if values == nil {
		values = map[string]interface{}{}
	}
	return values, nil
}

func applyFile(cfg *Config, values map[string]interface{}, logger *zap.Logger) {
	if v, ok := lookupString(values, KeyBaseURL); ok {
		cfg.BaseURL = v
		cfg.setSource(KeyBaseURL, SourceFile)
	}
	if v, ok := lookupString(values, KeyListenAddr); ok {
		cfg.ListenAddr = v
		cfg.setSource(KeyListenAddr, SourceFile)
	}
	if v, ok := lookupString(values, KeyMCPPath); ok {
		cfg.MCPPath = v
		cfg.setSource(KeyMCPPath, SourceFile)
	}
	if raw, ok := lookup(values, KeyEnablePlanMode); ok {
		if v, ok := toBool(raw); ok {
			cfg.EnablePlanMode = v
			cfg.setSource(KeyEnablePlanMode, SourceFile)
		} else {
			logger.Warn("config key ignored", zap.String("key", KeyEnablePlanMode), zap.Any("value", raw))
		}
	}
	if raw, ok := lookup(values, KeyTimeoutSeconds); ok {
		if v, ok := toInt(raw); ok {
			cfg.TimeoutSeconds = v
			cfg.setSource(KeyTimeoutSeconds, SourceFile)
		} else {
			logger.Warn("config key ignored", zap.String("key", KeyTimeoutSeconds), zap.Any("value", raw))
		}
	}
}

func applyEnv(cfg *Config, getenv func(string) string, logger *zap.Logger) {
	if v := strings.TrimSpace(getenv(protocol.EnvBaseURL)); v != "" {
		cfg.BaseURL = v
		cfg.setSource(KeyBaseURL, SourceEnv)
	}
	if v := strings.TrimSpace(getenv(protocol.EnvAPIKey)); v != "" {
		cfg.APIKey = v
		cfg.setSource(KeyAPIKey, SourceEnv)
	}
	if v := strings.TrimSpace(getenv(protocol.EnvEnablePlanMode)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnablePlanMode = b
			cfg.setSource(KeyEnablePlanMode, SourceEnv)
		} else {
			logger.Warn("env value ignored", zap.String("env", protocol.EnvEnablePlanMode), zap.String("value", v))
		}
	}
	if v := strings.TrimSpace(getenv(protocol.EnvTimeoutSeconds)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSeconds = n
			cfg.setSource(KeyTimeoutSeconds, SourceEnv)
		} else {
			logger.Warn("env value ignored", zap.String("env", protocol.EnvTimeoutSeconds), zap.String("value", v))
		}
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.BaseURL != nil {
		cfg.BaseURL = *o.BaseURL
		cfg.setSource(KeyBaseURL, SourceFlag)
	}
	if o.ListenAddr != nil {
		cfg.ListenAddr = *o.ListenAddr
		cfg.setSource(KeyListenAddr, SourceFlag)
	}
	if o.MCPPath != nil {
		cfg.MCPPath = *o.MCPPath
		cfg.setSource(KeyMCPPath, SourceFlag)
	}
}

func lookup(values map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := values[key]; ok && v != nil {
		return v, true
	}
	if camel, ok := camelKeys[key]; ok {
		if v, ok := values[camel]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(values map[string]interface{}, key string) (string, bool) {
	raw, ok := lookup(values, key)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func toBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}

func toInt(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}
