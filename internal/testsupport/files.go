package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is the start of an ISO base media file: a 24-byte ftyp box with
// brand mp42. Enough for container sniffers to classify the file as video.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00,
	'm', 'p', '4', '2', 'i', 's', 'o', 'm',
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeWithPrefix(t, path, nil, size)
}

// WriteVideo writes an MP4-looking file of size bytes (at least the header).
func WriteVideo(t testing.TB, path string, size int64) {
	t.Helper()
	writeWithPrefix(t, path, mp4Header, size)
}

// VideoBytes returns size bytes that begin with an MP4 header.
func VideoBytes(size int) []byte {
	if size < len(mp4Header) {
		size = len(mp4Header)
	}
	out := make([]byte, size)
	copy(out, mp4Header)
	for i := len(mp4Header); i < size; i++ {
		out[i] = 0x42
	}
	return out
}

func writeWithPrefix(t testing.TB, path string, prefix []byte, size int64) {
	t.Helper()

	if size < int64(len(prefix)) {
		size = int64(len(prefix))
	}
	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if len(prefix) > 0 {
		if _, err := f.Write(prefix); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size - int64(len(prefix))
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
