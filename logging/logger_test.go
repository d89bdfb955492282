package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.name, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected unknown level to fail")
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriterLogger(&buf, Config{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("NewWriterLogger failed: %v", err)
	}
	log.Named("pendant").Info("command", "cmd", "jog+")
	log.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("Invalid JSON record: %v", err)
	}
	if rec["component"] != "pendant" || rec["cmd"] != "jog+" || rec["msg"] != "command" {
		t.Errorf("Unexpected record %v", rec)
	}
}

func TestDebugWriter(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewWriterLogger(&buf, Config{Level: "debug"})
	log.DebugWriter()("[TIMING] STATE v1=0 v2=1\n")
	if !strings.Contains(buf.String(), "[TIMING] STATE v1=0 v2=1") {
		t.Errorf("Debug line not logged: %q", buf.String())
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stepjog.log")
	log, err := NewLogger(Config{Output: "file", OutputPath: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	log.Info("hello")
	if err := log.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if _, err := NewLogger(Config{Output: "file"}); err == nil {
		t.Error("Expected missing output_path to fail")
	}
	if _, err := NewLogger(Config{Output: "syslog"}); err == nil {
		t.Error("Expected unknown output to fail")
	}
}
