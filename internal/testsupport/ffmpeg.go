package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// lastArg assigns the final positional argument (the output path) to $out.
const lastArg = "for out; do :; done\n"

// WriteScript writes an executable /bin/sh script with body into a fresh temp
// directory and returns its path.
func WriteScript(t testing.TB, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body
	if !strings.HasSuffix(script, "\n") {
		script += "\n"
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}

// FakeFFmpeg is a stand-in engine that writes a small payload to its output
// argument and records every invocation.
type FakeFFmpeg struct {
	Binary    string
	callsPath string
}

// NewFakeFFmpeg writes a succeeding fake engine.
func NewFakeFFmpeg(t testing.TB) *FakeFFmpeg {
	t.Helper()
	calls := filepath.Join(t.TempDir(), "calls.log")
	body := lastArg +
		fmt.Sprintf("echo \"$out\" >> %q\n", calls) +
		"printf 'transcoded-frames' > \"$out\"\n"
	return &FakeFFmpeg{Binary: WriteScript(t, "ffmpeg", body), callsPath: calls}
}

// Calls returns the output paths the fake was invoked with, in order.
func (f *FakeFFmpeg) Calls(t testing.TB) []string {
	t.Helper()
	data, err := os.ReadFile(f.callsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read calls: %v", err)
	}
	return strings.Fields(string(data))
}

// FailingFFmpeg writes a partial output, prints stderr and exits with code.
func FailingFFmpeg(t testing.TB, stderr string, code int) string {
	t.Helper()
	body := lastArg +
		"printf 'half' > \"$out\"\n" +
		fmt.Sprintf("printf '%%s' %q >&2\n", stderr) +
		fmt.Sprintf("exit %d\n", code)
	return WriteScript(t, "ffmpeg", body)
}

// SlowFFmpeg records its pid in pidFile, starts writing output, then sleeps
// far longer than any test timeout.
func SlowFFmpeg(t testing.TB, pidFile string) string {
	t.Helper()
	body := lastArg +
		fmt.Sprintf("echo $$ > %q\n", pidFile) +
		"printf 'partial' > \"$out\"\n" +
		"exec sleep 30\n"
	return WriteScript(t, "ffmpeg", body)
}

// EmptyOutputFFmpeg exits 0 after creating an empty output file.
func EmptyOutputFFmpeg(t testing.TB) string {
	t.Helper()
	return WriteScript(t, "ffmpeg", lastArg+": > \"$out\"\nexit 0\n")
}
