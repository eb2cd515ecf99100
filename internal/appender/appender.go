// Package appender writes the results of successful remote operations back to
// local files. Failures here are soft: they become envelope warnings and never
// change an ok status.
package appender

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
	"cwmcp/internal/session"
)

// ArtifactBlock is the markdown appended to a source document for svgURL.
func ArtifactBlock(svgURL string) string {
	return fmt.Sprintf("\n\n## Generated Diagram\n![D2 Diagram](%s)\n\n[Download SVG](%s)", svgURL, svgURL)
}

// Appender applies the local side effects of tool results.
type Appender struct {
	logger *zap.Logger
}

// New returns an Appender logging to logger. nil means no logging.
func New(logger *zap.Logger) *Appender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Appender{logger: logger}
}

// PersistSession writes env's session id to the marker in dir and records
// session_file_path. It does nothing unless env is ok and carries an id.
func (a *Appender) PersistSession(dir string, env *model.Envelope) {
	if env == nil || !env.IsOK() || strings.TrimSpace(dir) == "" {
		return
	}
	id, ok := env.String(protocol.FieldSessionID)
	if !ok {
		return
	}
	path, err := session.WriteMarker(dir, id)
	if err != nil {
		a.logger.Warn("session marker not saved", zap.String("dir", dir), zap.Error(err))
		env.Warn("Failed to save session ID to %s: %v", session.MarkerPath(dir), err)
		return
	}
	env.Set(protocol.FieldSessionFilePath, path)
}

// AppendArtifact appends the artifact block to filePath when env is ok and
// carries an svg_url. Existing content is never rewritten.
func (a *Appender) AppendArtifact(filePath string, env *model.Envelope) {
	if env == nil || !env.IsOK() {
		return
	}
	svgURL, ok := env.String(protocol.FieldSVGURL)
	if !ok {
		return
	}
	if err := appendText(filePath, ArtifactBlock(svgURL)); err != nil {
		a.logger.Warn("artifact link not appended", zap.String("file", filePath), zap.Error(err))
		env.Warn("Failed to append diagram link to %s: %v", filePath, err)
	}
}

func appendText(path, text string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteCode stores code as dir/diagram.cw, creating dir if needed. The file is
// replaced atomically so an interrupted export never leaves a partial file.
func WriteCode(dir, code string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", model.Errorf(protocol.ErrorCodeCreateDirError, fmt.Sprintf("Failed to create directory %s", dir), err)
	}
	target := filepath.Join(dir, protocol.CodeFileName)
	f, err := os.CreateTemp(dir, protocol.CodeFileName+".*.tmp")
	if err != nil {
		return "", model.Errorf(protocol.ErrorCodeWriteError, fmt.Sprintf("Failed to write %s", target), err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.WriteString(code); err != nil {
		_ = f.Close()
		return "", model.Errorf(protocol.ErrorCodeWriteError, fmt.Sprintf("Failed to write %s", target), err)
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return "", model.Errorf(protocol.ErrorCodeWriteError, fmt.Sprintf("Failed to write %s", target), err)
	}
	if err := f.Close(); err != nil {
		return "", model.Errorf(protocol.ErrorCodeWriteError, fmt.Sprintf("Failed to write %s", target), err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", model.Errorf(protocol.ErrorCodeWriteError, fmt.Sprintf("Failed to write %s", target), err)
	}
	return target, nil
}
