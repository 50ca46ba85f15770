package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tailor/internal/config"
	"tailor/internal/logging"
	"tailor/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(data)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon ready")

	content := readLog(t, filepath.Join(cfg.LogDir(), logging.LogFileName))
	if !strings.Contains(content, `"msg":"daemon ready"`) {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleFormatsComponentSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithAsset(context.Background(), "clip.mov")
	ctx = services.WithOperation(ctx, "speed")
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "engine"))
	log.Info("transform complete", logging.String("output", "clip_speed.mov"), logging.Error(errors.New("x y")))

	content := readLog(t, logPath)
	for _, fragment := range []string{"INFO engine: transform complete", "[clip.mov/speed]", "output=clip_speed.mov", `error="x y"`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("probe")
	if content := readLog(t, logPath); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller in debug output, got %q", content)
	}
}

func TestJSONFormatRenamesKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "warn", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("filtered")
	logging.WarnWithContext(logger, "analysis unavailable", "analysis_unavailable", logging.Duration("elapsed", time.Second))

	lines := strings.Split(strings.TrimSpace(readLog(t, logPath)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warning line, got %d lines", len(lines))
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if record["level"] != "warn" || record["ts"] == nil || record["event_type"] != "analysis_unavailable" || record["impact"] == nil {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestTeeHandlerDuplicatesRecords(t *testing.T) {
	var info, debug bytes.Buffer
	h := logging.TeeHandler(
		nil,
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With("component", "test")
	logger.Debug("only debug")
	logger.Info("both")

	if strings.Contains(info.String(), "only debug") || !strings.Contains(info.String(), "both") {
		t.Fatalf("unexpected info output %q", info.String())
	}
	if !strings.Contains(debug.String(), "only debug") || !strings.Contains(debug.String(), "component=test") {
		t.Fatalf("unexpected debug output %q", debug.String())
	}
	if _, ok := logging.TeeHandler(nil).(logging.NoopHandler); !ok {
		t.Fatal("expected NoopHandler when no handlers are live")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "tailor-old.log")
	current := filepath.Join(dir, "tailor.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		past := time.Now().AddDate(0, 0, -30)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), dir, "tailor*.log", 7, current)
	if removed != 1 {
		t.Fatalf("expected one file removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err %v", err)
	}
	for _, path := range []string{current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}
