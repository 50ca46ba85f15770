package main

import (
	"fmt"
	"strings"
	"testing"

	"tailor/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []api.DependencyStatus{
		{Name: "FFmpeg", Available: false, Detail: `binary "ffmpeg" not found`},
		{Name: "FFprobe", Available: true, Optional: true, Detail: "ffprobe version 7.1"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR] 1 of 2 unavailable") {
		t.Fatalf("unexpected summary %q", lines[0])
	}
	if !strings.Contains(lines[1], `[ERROR] binary "ffmpeg" not found`) {
		t.Fatalf("unexpected ffmpeg line %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (ffprobe version 7.1)") {
		t.Fatalf("unexpected ffprobe line %q", lines[2])
	}

	optionalMissing := dependencyLines([]api.DependencyStatus{{Name: "FFprobe", Optional: true, Detail: "missing"}}, false)
	if !strings.Contains(optionalMissing[0], "[WARN]") || !strings.Contains(optionalMissing[1], "[WARN] missing") {
		t.Fatalf("optional dependency should only warn: %q", optionalMissing)
	}
}
