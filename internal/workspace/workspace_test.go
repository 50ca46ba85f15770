package workspace_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tailor/internal/testsupport"
	"tailor/internal/versions"
	"tailor/internal/workspace"
)

func TestOpenWiresPipeline(t *testing.T) {
	fake := testsupport.NewFakeFFmpeg(t)
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpeg(fake.Binary))
	ctx := context.Background()

	ws, err := workspace.Open(ctx, cfg, nil, workspace.ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })

	if _, err := ws.Importer.Import(ctx, "clip.mp4", bytes.NewReader(testsupport.VideoBytes(512))); err != nil {
		t.Fatalf("Import: %v", err)
	}
	out, err := ws.Pipeline.HandleCommand(ctx, "clip.mp4", "make it grayscale")
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if out.Version.Filename != "clip_bw.mp4" {
		t.Fatalf("unexpected version %+v", out.Version)
	}
	if ws.AssetOf("clip_bw.mp4") != "clip.mp4" || ws.AssetOf("other.mp4") != "other.mp4" {
		t.Fatal("AssetOf should map derived names to their asset")
	}
	if svc := ws.Services(); svc.Analysis != nil || svc.Mirror != nil {
		t.Fatalf("disabled collaborators should not be probed: %+v", svc)
	}
}

func TestOpenExclusiveLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := workspace.Open(ctx, cfg, nil, workspace.ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := workspace.Open(ctx, cfg, nil, workspace.ReadWrite); !errors.Is(err, workspace.ErrLocked) {
		t.Fatalf("expected ErrLocked for second writer, got %v", err)
	}
	if _, err := workspace.Open(ctx, cfg, nil, workspace.ReadOnly); !errors.Is(err, workspace.ErrLocked) {
		t.Fatalf("expected ErrLocked for reader while writer holds lock, got %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, err := workspace.Open(ctx, cfg, nil, workspace.ReadWrite)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	_ = again.Close()
}

func TestOpenSharedReaders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	writer, err := workspace.Open(ctx, cfg, nil, workspace.ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := writer.Importer.Import(ctx, "clip.mp4", bytes.NewReader(testsupport.VideoBytes(512))); err != nil {
		t.Fatalf("Import: %v", err)
	}
	_ = writer.Close()

	a, err := workspace.Open(ctx, cfg, nil, workspace.ReadOnly)
	if err != nil {
		t.Fatalf("first reader: %v", err)
	}
	defer a.Close()
	b, err := workspace.Open(ctx, cfg, nil, workspace.ReadOnly)
	if err != nil {
		t.Fatalf("second reader: %v", err)
	}
	defer b.Close()

	for _, ws := range []*workspace.Workspace{a, b} {
		if _, err := ws.Store.Get("clip.mp4"); err != nil {
			t.Fatalf("reader should see imported asset: %v", err)
		}
	}
	if _, err := a.Importer.Import(ctx, "other.mp4", bytes.NewReader(testsupport.VideoBytes(512))); !errors.Is(err, versions.ErrReadOnly) {
		t.Fatalf("expected read-only rejection, got %v", err)
	}
}

func TestOpenSweepsInterruptedOutputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.MediaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stray := filepath.Join(cfg.Paths.MediaDir, ".clip_bw.partial-1234.mp4")
	if err := os.WriteFile(stray, []byte("half"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := workspace.Open(context.Background(), cfg, nil, workspace.ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Fatal("expected partial output to be removed")
	}
	if ws.Store.Len() != 0 {
		t.Fatalf("partial output must not be adopted, store has %d", ws.Store.Len())
	}
}
