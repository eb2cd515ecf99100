package session

import (
	"os"
	"path/filepath"
	"testing"

	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
	"pgregory.net/rapid"
)

func writeMarkerFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, protocol.MarkerFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
}

func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeMarkerFile(t, dir, "Y\n")

	if id, ok := Resolve("X", dir); !ok || id != "X" {
		t.Fatalf("explicit id should win, got %q ok=%t", id, ok)
	}
	if id, ok := Resolve("", dir); !ok || id != "Y" {
		t.Fatalf("expected marker id, got %q ok=%t", id, ok)
	}
	if id, ok := Resolve("", t.TempDir()); ok || id != "" {
		t.Fatalf("expected no session, got %q ok=%t", id, ok)
	}
	if id, ok := Resolve("  ", ""); ok || id != "" {
		t.Fatalf("expected no session without dir, got %q ok=%t", id, ok)
	}
}

func TestResolve_ExplicitAlwaysWinsProperty(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		explicit := rapid.StringMatching(`[a-z0-9-]{1,24}`).Draw(rt, "explicit")
		marker := rapid.StringMatching(`[a-z0-9 \n-]{0,24}`).Draw(rt, "marker")
		if err := os.WriteFile(MarkerPath(dir), []byte(marker), 0o644); err != nil {
			rt.Fatalf("write marker: %v", err)
		}
		if id, ok := Resolve(explicit, dir); !ok || id != explicit {
			rt.Fatalf("got %q ok=%t want %q", id, ok, explicit)
		}
	})
}

func TestReadMarker_BlankAndUnreadableAreAbsent(t *testing.T) {
	dir := t.TempDir()
	writeMarkerFile(t, dir, "  \n\t")
	if _, ok := ReadMarker(dir); ok {
		t.Fatal("blank marker must count as absent")
	}

	blocked := t.TempDir()
	if err := os.Mkdir(MarkerPath(blocked), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, ok := ReadMarker(blocked); ok {
		t.Fatal("unreadable marker must count as absent")
	}
}

func TestWriteMarker_CreatesDirAndOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "work")

	path, err := WriteMarker(dir, "first")
	if err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if path != MarkerPath(dir) {
		t.Fatalf("unexpected path: %s", path)
	}
	if _, err := WriteMarker(dir, "second"); err != nil {
		t.Fatalf("overwrite marker: %v", err)
	}
	if id, ok := ReadMarker(dir); !ok || id != "second" {
		t.Fatalf("expected overwritten id, got %q ok=%t", id, ok)
	}
}

func TestWriteMarker_DirectoryBlockedByFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	_, err := WriteMarker(filepath.Join(blocker, "sub"), "id")
	if code := model.CodeOf(err); code != protocol.ErrorCodeCreateDirError {
		t.Fatalf("expected CREATE_DIR_ERROR, got %q (%v)", code, err)
	}
}
