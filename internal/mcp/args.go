package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
)

func assertNoUnknownArguments(args map[string]interface{}, allowed map[string]struct{}) error {
	for key := range args {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("unknown argument: %s", key)
		}
	}
	return nil
}

func allowedSet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// parseRequiredString reports presence separately so callers can tell a
// missing field from a malformed one.
func parseRequiredString(args map[string]interface{}, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", true, fmt.Errorf("%s must be a string", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", true, fmt.Errorf("%s must be a non-empty string", key)
	}
	return value, true, nil
}

// parseOptionalString treats a JSON null like an absent key.
func parseOptionalString(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(value), nil
}

// parseInputSequence accepts the JSON-encoded list form hosts send, or an
// already decoded list. The literal input is echoed back on failure.
func parseInputSequence(args map[string]interface{}, key string) ([]interface{}, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []interface{}:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var seq []interface{}
		if err := json.Unmarshal([]byte(v), &seq); err != nil {
			return nil, fmt.Errorf("%s must be a valid JSON list string. Got: %s", key, v)
		}
		return seq, nil
	default:
		encoded, _ := json.Marshal(v)
		return nil, fmt.Errorf("%s must be a valid JSON list string. Got: %s", key, encoded)
	}
}

// ParseArguments decodes a JSON object of tool arguments. An empty string
// means no arguments.
func ParseArguments(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
