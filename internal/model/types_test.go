package model

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"cwmcp/internal/protocol"
)

func TestEnvelope_UnmarshalKeepsRemoteFields(t *testing.T) {
	var env Envelope
	raw := `{"status":"ok","session_id":"s-1","svg_url":"http://x/y.svg","warnings":["slow"]}`
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !env.IsOK() {
		t.Fatalf("expected ok envelope, got %#v", env)
	}
	if id, ok := env.String(protocol.FieldSessionID); !ok || id != "s-1" {
		t.Fatalf("unexpected session id: %q ok=%t", id, ok)
	}
	if _, exists := env.Data[protocol.FieldStatus]; exists {
		t.Fatalf("status must not leak into data: %#v", env.Data)
	}
	if len(env.Warnings) != 1 || env.Warnings[0] != "slow" {
		t.Fatalf("unexpected warnings: %#v", env.Warnings)
	}
}

func TestEnvelope_ErrorStatusWithoutDetailGetsAPIError(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"status":"error","session_id":"s-1"}`), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.Code != protocol.ErrorCodeAPIError {
		t.Fatalf("expected API_ERROR, got %#v", env.Error)
	}
	if env.Data != nil {
		t.Fatalf("error envelope must not carry data: %#v", env.Data)
	}
}

func TestEnvelope_ErrorObjectForcesErrorStatus(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"error":{"code":"QUOTA","message":"out of credits"}}`), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Status != protocol.StatusError {
		t.Fatalf("expected error status, got %q", env.Status)
	}
	if env.Error.Code != "QUOTA" || env.Error.Message != "out of credits" {
		t.Fatalf("unexpected error info: %#v", env.Error)
	}
}

func TestEnvelope_RejectsNonObject(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`"just a string"`), &env); err == nil {
		t.Fatal("expected error for non-object body")
	}
}

func TestEnvelope_MarshalFlattensData(t *testing.T) {
	env := OK(map[string]interface{}{"file_path": "/tmp/diagram.cw"})
	env.Warn("could not save %s", "marker")

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(env.Indented()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["status"] != "ok" || decoded["file_path"] != "/tmp/diagram.cw" {
		t.Fatalf("unexpected encoding: %#v", decoded)
	}
	if _, ok := decoded["error"]; ok {
		t.Fatalf("ok envelope must not carry error: %#v", decoded)
	}
	warnings, _ := decoded["warnings"].([]interface{})
	if len(warnings) != 1 || warnings[0] != "could not save marker" {
		t.Fatalf("unexpected warnings: %#v", decoded["warnings"])
	}
}

func TestEnvelope_SetIsNoopOnError(t *testing.T) {
	env := Fail(protocol.ErrorCodeNoSession, "no session")
	env.Set("session_id", "x")
	if env.Data != nil {
		t.Fatalf("expected no data on error envelope, got %#v", env.Data)
	}
	raw := env.Indented()
	if strings.Contains(raw, "session_id") {
		t.Fatalf("error envelope leaked data: %s", raw)
	}
}

func TestEnvelope_WarnKeepsStatus(t *testing.T) {
	env := OK(nil)
	env.Warn("first")
	env.Warn("second")
	if !env.IsOK() || len(env.Warnings) != 2 {
		t.Fatalf("unexpected envelope after warnings: %#v", env)
	}
}

func TestFailErr_UsesCodedErrorCode(t *testing.T) {
	err := Errorf(protocol.ErrorCodeReadError, "read input", os.ErrPermission)
	env := FailErr(protocol.ErrorCodeAPIError, err)
	if env.Error.Code != protocol.ErrorCodeReadError {
		t.Fatalf("expected READ_ERROR, got %q", env.Error.Code)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Fatal("coded error should unwrap to its cause")
	}

	plain := FailErr(protocol.ErrorCodeAPIError, errors.New("boom"))
	if plain.Error.Code != protocol.ErrorCodeAPIError || plain.Error.Message != "boom" {
		t.Fatalf("unexpected fallback envelope: %#v", plain.Error)
	}
}
