package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTooLarge is returned when a stream exceeds the caller's size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Digest identifies written content.
type Digest struct {
	Size   int64
	SHA256 string
}

// WriteVerified streams r into a new file at dst, syncs it, then re-reads it
// and compares size and SHA-256 with what was streamed. dst is removed on any
// failure. A limit <= 0 means unlimited.
func WriteVerified(dst string, r io.Reader, limit int64) (Digest, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Digest{}, err
	}
	fail := func(err error) (Digest, error) {
		_ = out.Close()
		_ = os.Remove(dst)
		return Digest{}, err
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), src)
	if err != nil {
		return fail(err)
	}
	if limit > 0 && written > limit {
		return fail(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit))
	}
	if err := out.Sync(); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return Digest{}, err
	}

	streamed := hasher.Sum(nil)
	onDisk, size, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return Digest{}, err
	}
	if size != written {
		_ = os.Remove(dst)
		return Digest{}, fmt.Errorf("copy size mismatch: streamed %d bytes, wrote %d bytes", written, size)
	}
	if !bytes.Equal(streamed, onDisk) {
		_ = os.Remove(dst)
		return Digest{}, errors.New("copy hash mismatch: file corrupted during write")
	}
	return Digest{Size: written, SHA256: hex.EncodeToString(onDisk)}, nil
}

// CopyVerified copies src to a new file at dst with WriteVerified and checks
// the result against the source size.
func CopyVerified(src, dst string, limit int64) (Digest, error) {
	in, err := os.Open(src)
	if err != nil {
		return Digest{}, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return Digest{}, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Digest{}, fmt.Errorf("%s is not a regular file", src)
	}
	if limit > 0 && info.Size() > limit {
		return Digest{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, src, info.Size())
	}
	digest, err := WriteVerified(dst, in, limit)
	if err != nil {
		return Digest{}, err
	}
	if digest.Size != info.Size() {
		_ = os.Remove(dst)
		return Digest{}, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), digest.Size)
	}
	return digest, nil
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return nil, 0, err
	}
	return hasher.Sum(nil), n, nil
}
