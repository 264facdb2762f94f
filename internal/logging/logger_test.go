// Package logging tests for the structured logger.
package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// newTestLogger builds a logger writing into a buffer, bypassing the
// global instance so tests stay independent.
func newTestLogger(minLevel LogLevel) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &Logger{out: buf, minLevel: minLevel}, buf
}

// TestInfoProducesJSON verifies entries are valid JSON with the fields set.
func TestInfoProducesJSON(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)

	l.Info("drain finished", map[string]interface{}{"succeeded": 3})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}

	if entry.Level != "INFO" {
		t.Errorf("expected INFO level, got %s", entry.Level)
	}
	if entry.Message != "drain finished" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if entry.Context["succeeded"] != float64(3) {
		t.Errorf("expected context succeeded=3, got %v", entry.Context["succeeded"])
	}
	if entry.Timestamp == "" {
		t.Error("expected timestamp to be set")
	}
}

// TestMinLevelFilters verifies entries below the minimum level are dropped.
func TestMinLevelFilters(t *testing.T) {
	l, buf := newTestLogger(LevelWarn)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("expected warn to pass, got %q", out)
	}
}

// TestErrorIncludesCause verifies the error field is populated.
func TestErrorIncludesCause(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)

	l.Error("sync failed", errTest)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry.Error != "boom" {
		t.Errorf("expected error field boom, got %q", entry.Error)
	}
}

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "boom" }
