package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)

	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger = WithComponent(logger, "importer")
	logger.Info("posts imported", Int("count", 4), String("path", "/tmp/export file.xml"))

	line := buf.String()
	if !strings.Contains(line, "INFO importer: posts imported") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "count=4") {
		t.Fatalf("missing count attr: %q", line)
	}
	if !strings.Contains(line, `path="/tmp/export file.xml"`) {
		t.Fatalf("expected quoted path attr: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)

	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger.Info("suppressed")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info line should be suppressed: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)

	logger := slog.New(newConsoleHandler(&buf, lvl, false)).WithGroup("job")
	logger.Info("claimed", String("kind", "download_images"))

	if !strings.Contains(buf.String(), "job.kind=download_images") {
		t.Fatalf("expected flattened group key: %q", buf.String())
	}
}

func TestJSONHandlerRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)

	logger := slog.New(newJSONHandler(&buf, lvl, false))
	logger.Error("boom", Error(errTest))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if payload["msg"] != "boom" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["level"] != "error" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatal("missing ts key")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("ignored")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
}

var errTest = errSentinel("test failure")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
