package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tailor/internal/metrics"
	"tailor/internal/versions"
)

type request struct {
	method string
	path   string
	meta   string
}

type fakeS3 struct {
	mu       sync.Mutex
	requests []request
	status   int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, request{method: r.Method, path: r.URL.Path, meta: r.Header.Get("X-Amz-Meta-Operation")})
	status := f.status
	f.mu.Unlock()
	if status != 0 {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}
	w.Header().Set("ETag", `"abc123"`)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) recorded() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func newPublisher(t *testing.T, fake *fakeS3, m *metrics.Recorder) *Publisher {
	t.Helper()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	p, err := New(context.Background(), Config{Bucket: "media", Endpoint: server.URL, Prefix: "edits/"}, WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func writeVersion(t *testing.T) (versions.Version, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip_bw.mp4")
	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	return versions.Version{Asset: "clip.mp4", Filename: "clip_bw.mp4", Parent: "clip.mp4", Operation: "bw"}, path
}

func TestPublishUploadsUnderPrefix(t *testing.T) {
	fake := &fakeS3{}
	p := newPublisher(t, fake, metrics.New())
	v, path := writeVersion(t)

	location, err := p.Publish(context.Background(), v, path)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if location != "s3://media/edits/clip_bw.mp4" {
		t.Fatalf("unexpected location %q", location)
	}
	reqs := fake.recorded()
	if len(reqs) != 1 || reqs[0].method != http.MethodPut || reqs[0].path != "/media/edits/clip_bw.mp4" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	if reqs[0].meta != "bw" {
		t.Fatalf("expected operation metadata, got %q", reqs[0].meta)
	}
}

func TestPublishReportsFailure(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	p := newPublisher(t, fake, nil)
	v, path := writeVersion(t)

	_, err := p.Publish(context.Background(), v, path)
	if err == nil || !strings.Contains(err.Error(), "edits/clip_bw.mp4") {
		t.Fatalf("expected upload error naming the key, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	fake := &fakeS3{}
	p := newPublisher(t, fake, nil)
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	reqs := fake.recorded()
	if len(reqs) != 1 || reqs[0].method != http.MethodHead || reqs[0].path != "/media" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{"a.MP4": "video/mp4", "b.mov": "video/quicktime", "c": "application/octet-stream"}
	for name, want := range cases {
		if got := contentType(name); got != want {
			t.Fatalf("contentType(%q) = %q, want %q", name, got, want)
		}
	}
}
