package deps

import (
	"context"
	"testing"

	"tailor/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	present := testsupport.WriteScript(t, "present", "exit 0")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be reported, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}
}

func TestEngineRequirements(t *testing.T) {
	reqs := EngineRequirements("ffmpeg", "ffprobe")
	if len(reqs) != 2 || reqs[0].Optional || !reqs[1].Optional {
		t.Fatalf("unexpected requirements %+v", reqs)
	}
}

func TestVersion(t *testing.T) {
	bin := testsupport.WriteScript(t, "ffmpeg", "echo 'ffmpeg version 7.1 Copyright'\necho 'built with gcc'")
	line, err := Version(context.Background(), bin)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if line != "ffmpeg version 7.1 Copyright" {
		t.Fatalf("unexpected version line %q", line)
	}
}
