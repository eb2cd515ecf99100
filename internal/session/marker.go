// Package session resolves which remote session an operation targets and
// caches the last known session id per working directory in a marker file.
//
// The marker has no locking: two invocations against the same directory can
// interleave their read and write. Continuity is best effort.
package session

import (
	"os"
	"path/filepath"
	"strings"

	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
)

// MarkerPath returns the marker file location for dir.
func MarkerPath(dir string) string {
	return filepath.Join(dir, protocol.MarkerFileName)
}

// Resolve picks the session id for an operation: a non-empty explicitID
// wins, then the marker in workingDir, then nothing.
func Resolve(explicitID, workingDir string) (string, bool) {
	if id := strings.TrimSpace(explicitID); id != "" {
		return id, true
	}
	if strings.TrimSpace(workingDir) == "" {
		return "", false
	}
	return ReadMarker(workingDir)
}

// ReadMarker returns the trimmed marker content. Any read failure counts as
// an absent marker.
func ReadMarker(dir string) (string, bool) {
	data, err := os.ReadFile(MarkerPath(dir))
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false
	}
	return id, true
}

// WriteMarker creates dir if needed and overwrites its marker with id.
func WriteMarker(dir, id string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", model.Errorf(protocol.ErrorCodeCreateDirError, "create session directory", err)
	}
	path := MarkerPath(dir)
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", model.Errorf(protocol.ErrorCodeWriteError, "write session marker", err)
	}
	return path, nil
}
