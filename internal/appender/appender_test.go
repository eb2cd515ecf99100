package appender

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
	"cwmcp/internal/session"
)

func okEnvelope(fields map[string]interface{}) model.Envelope {
	return model.OK(fields)
}

func TestPersistSession_WritesMarker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	env := okEnvelope(map[string]interface{}{protocol.FieldSessionID: "sess-9"})

	New(nil).PersistSession(dir, &env)

	if !env.IsOK() || len(env.Warnings) != 0 {
		t.Fatalf("unexpected envelope: %#v", env)
	}
	if got, _ := env.String(protocol.FieldSessionFilePath); got != session.MarkerPath(dir) {
		t.Fatalf("unexpected session_file_path: %q", got)
	}
	if id, ok := session.ReadMarker(dir); !ok || id != "sess-9" {
		t.Fatalf("marker not written: %q ok=%t", id, ok)
	}
}

func TestPersistSession_SkipsErrorsAndMissingID(t *testing.T) {
	dir := t.TempDir()

	failed := model.Fail(protocol.ErrorCodeAPIError, "boom")
	New(nil).PersistSession(dir, &failed)
	noID := okEnvelope(map[string]interface{}{"svg_url": "x"})
	New(nil).PersistSession(dir, &noID)

	if _, err := os.Stat(session.MarkerPath(dir)); !os.IsNotExist(err) {
		t.Fatalf("marker must not exist, stat err=%v", err)
	}
	if _, ok := noID.String(protocol.FieldSessionFilePath); ok {
		t.Fatal("session_file_path must not be set without a session id")
	}
}

func TestPersistSession_FailureBecomesWarning(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	env := okEnvelope(map[string]interface{}{protocol.FieldSessionID: "sess-1"})

	New(nil).PersistSession(filepath.Join(blocker, "sub"), &env)

	if env.Status != protocol.StatusOK || env.Error != nil {
		t.Fatalf("persistence failure must not flip status: %#v", env)
	}
	if len(env.Warnings) != 1 || !strings.Contains(env.Warnings[0], "Failed to save session ID") {
		t.Fatalf("expected one warning, got %#v", env.Warnings)
	}
}

func TestAppendArtifact_AppendsBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outline.md")
	original := "# Outline\n```json\n{}\n```"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := okEnvelope(map[string]interface{}{protocol.FieldSVGURL: "https://cdn.example/d.svg"})

	New(nil).AppendArtifact(path, &env)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := original + ArtifactBlock("https://cdn.example/d.svg")
	if string(data) != want {
		t.Fatalf("unexpected content:\n%s", data)
	}
	if len(env.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %#v", env.Warnings)
	}
}

func TestAppendArtifact_NoURLLeavesFileAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outline.md")
	if err := os.WriteFile(path, []byte("body"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := okEnvelope(nil)
	New(nil).AppendArtifact(path, &env)

	data, _ := os.ReadFile(path)
	if string(data) != "body" {
		t.Fatalf("file must be untouched, got %q", data)
	}
}

func TestAppendArtifact_MissingFileBecomesWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.md")
	env := okEnvelope(map[string]interface{}{protocol.FieldSVGURL: "u"})

	New(nil).AppendArtifact(path, &env)

	if !env.IsOK() {
		t.Fatalf("status must stay ok: %#v", env)
	}
	if len(env.Warnings) != 1 {
		t.Fatalf("expected one warning, got %#v", env.Warnings)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("append must not create the source document")
	}
}

func TestWriteCode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), protocol.DefaultCodeDir)

	path, err := WriteCode(dir, "a -> b")
	if err != nil {
		t.Fatalf("write code: %v", err)
	}
	if path != filepath.Join(dir, protocol.CodeFileName) {
		t.Fatalf("unexpected path: %s", path)
	}
	if _, err := WriteCode(dir, "x -> y"); err != nil {
		t.Fatalf("overwrite code: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "x -> y" {
		t.Fatalf("unexpected content: %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestWriteCode_CreateDirError(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	_, err := WriteCode(filepath.Join(blocker, "out"), "code")
	if code := model.CodeOf(err); code != protocol.ErrorCodeCreateDirError {
		t.Fatalf("expected CREATE_DIR_ERROR, got %q (%v)", code, err)
	}
}
