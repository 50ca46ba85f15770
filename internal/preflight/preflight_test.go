package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tailor/internal/testsupport"
)

type checkerFunc func(context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckService(t *testing.T) {
	ok := CheckService(context.Background(), "svc", checkerFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got %+v", ok)
	}
	bad := CheckService(context.Background(), "svc", checkerFunc(func(context.Context) error { return errors.New("401 bad key") }))
	if bad.Passed || bad.Detail != "401 bad key" {
		t.Fatalf("unexpected failure result %+v", bad)
	}
	slow := CheckService(context.Background(), "svc", checkerFunc(func(context.Context) error { return context.DeadlineExceeded }))
	if slow.Passed || slow.Detail != "health check timed out (service unresponsive)" {
		t.Fatalf("unexpected timeout result %+v", slow)
	}
	if disabled := CheckService(context.Background(), "svc", nil); !disabled.Passed {
		t.Fatal("nil checker should pass as disabled")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, Services{}); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_StubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	results := RunAll(context.Background(), cfg, Services{})
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, failed: %+v", failed)
	}
	// media + state + ffmpeg + ffprobe
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
}

func TestRunAll_MissingFFmpegFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	cfg.Engine.FFmpegBinary = "tailor-missing-ffmpeg"
	cfg.Engine.FFprobeBinary = "tailor-missing-ffprobe"

	failed := Failed(RunAll(context.Background(), cfg, Services{
		Analysis: checkerFunc(func(context.Context) error { return nil }),
	}))
	if len(failed) != 1 || failed[0].Name != "FFmpeg" {
		t.Fatalf("only the required ffmpeg should fail, got %+v", failed)
	}
}
