package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voicelog/internal/config"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("new logger failed: %v", err)
	}
	defer closer.Close()

	logger.Info("dropped")
	logger.Warn("kept", "component", "queue")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if record["msg"] != "kept" || record["component"] != "queue" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestNewWritesLogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "voicelog.log")
	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "debug", Format: "text", File: path}, &buf)
	if err != nil {
		t.Fatalf("new logger failed: %v", err)
	}

	logger.Debug("hello file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") || !strings.Contains(buf.String(), "hello file") {
		t.Fatalf("expected record in both sinks, file=%q stdout=%q", data, buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	if _, _, err := New(config.LogConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
