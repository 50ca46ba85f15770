package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tailor/internal/ingest"
	"tailor/internal/metrics"
	"tailor/internal/services"
	"tailor/internal/testsupport"
	"tailor/internal/versions"
)

func newImporter(t *testing.T, opts ...ingest.Option) (*ingest.Importer, *versions.Store) {
	t.Helper()
	store, err := versions.Open(context.Background(), versions.Options{Dir: filepath.Join(t.TempDir(), "media")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return ingest.New(store, opts...), store
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

func TestImportRegistersRoot(t *testing.T) {
	m := metrics.New()
	importer, store := newImporter(t, ingest.WithMetrics(m))

	v, err := importer.Import(context.Background(), "clip.mov", bytes.NewReader(testsupport.VideoBytes(20000)))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !v.IsRoot() || v.Asset != "clip.mov" || v.SizeBytes != 20000 {
		t.Fatalf("unexpected version %+v", v)
	}
	data, err := os.ReadFile(store.Path(v))
	if err != nil || !bytes.Equal(data, testsupport.VideoBytes(20000)) {
		t.Fatalf("stored content mismatch: %v", err)
	}
	if names := entries(t, store.Dir()); len(names) != 1 {
		t.Fatalf("expected no scratch files, found %v", names)
	}
	expected := `
# HELP tailor_imports_total Uploaded originals by outcome
# TYPE tailor_imports_total counter
tailor_imports_total{outcome="success"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "tailor_imports_total"); err != nil {
		t.Fatalf("unexpected import metrics: %v", err)
	}
}

func TestImportRejectsDisallowedExtension(t *testing.T) {
	importer, store := newImporter(t)
	_, err := importer.Import(context.Background(), "notes.txt", strings.NewReader("hello"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("nothing should be registered")
	}
}

func TestImportRejectsNonVideoContent(t *testing.T) {
	importer, store := newImporter(t)
	_, err := importer.Import(context.Background(), "fake.mp4", strings.NewReader("this is plain text, not a movie"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if names := entries(t, store.Dir()); len(names) != 0 {
		t.Fatalf("rejected upload left files behind: %v", names)
	}
}

func TestImportRejectsDuplicateName(t *testing.T) {
	importer, _ := newImporter(t)
	ctx := context.Background()
	if _, err := importer.Import(ctx, "a.mp4", bytes.NewReader(testsupport.VideoBytes(64))); err != nil {
		t.Fatalf("first import: %v", err)
	}
	_, err := importer.Import(ctx, "a.mp4", bytes.NewReader(testsupport.VideoBytes(64)))
	if !errors.Is(err, services.ErrDuplicateVersion) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestImportEnforcesSizeLimit(t *testing.T) {
	importer, store := newImporter(t, ingest.WithMaxBytes(1024))
	_, err := importer.Import(context.Background(), "big.mp4", bytes.NewReader(testsupport.VideoBytes(4096)))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if names := entries(t, store.Dir()); len(names) != 0 {
		t.Fatalf("oversized upload left files behind: %v", names)
	}
}

func TestImportStripsDirectories(t *testing.T) {
	importer, store := newImporter(t)
	v, err := importer.Import(context.Background(), "../../etc/clip.mp4", bytes.NewReader(testsupport.VideoBytes(64)))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if v.Filename != "clip.mp4" || filepath.Dir(store.Path(v)) != store.Dir() {
		t.Fatalf("upload escaped the media dir: %+v", v)
	}
}

func TestImportFile(t *testing.T) {
	importer, store := newImporter(t)
	src := filepath.Join(t.TempDir(), "holiday.mkv")
	testsupport.WriteVideo(t, src, 10000)

	v, err := importer.ImportFile(context.Background(), src)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if v.Filename != "holiday.mkv" || v.SizeBytes != 10000 {
		t.Fatalf("unexpected version %+v", v)
	}
	if _, err := os.Stat(store.Path(v)); err != nil {
		t.Fatalf("expected copy in media dir: %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("source should be left in place")
	}
}

func TestCheckName(t *testing.T) {
	for _, name := range []string{"a.mp4", "B.MOV", "c.webm", "d.m4v"} {
		if err := ingest.CheckName(name); err != nil {
			t.Fatalf("CheckName(%q): %v", name, err)
		}
	}
	for _, name := range []string{"", "a.gif", ".hidden.mp4", "noext"} {
		if err := ingest.CheckName(name); err == nil {
			t.Fatalf("CheckName(%q) should fail", name)
		}
	}
}
