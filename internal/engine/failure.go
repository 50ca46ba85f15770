package engine

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
)

// Failure describes an engine run that produced no usable output. Marker is
// services.ErrEngineFailure, services.ErrTimeout, or the context error when
// the caller gave up.
type Failure struct {
	Marker    error
	Operation string
	Input     string
	ExitCode  int
	Stderr    string
	Err       error
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %s on %s", f.Marker, f.Operation, f.Input)
	if f.ExitCode >= 0 {
		fmt.Fprintf(&b, " (exit %d)", f.ExitCode)
	}
	if f.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(f.Stderr)
	} else if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the classification marker and the underlying cause.
func (f *Failure) Unwrap() []error {
	errs := make([]error, 0, 2)
	if f.Marker != nil {
		errs = append(errs, f.Marker)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// Diagnostic returns the truncated engine stderr tail, or the cause when the
// engine printed nothing.
func (f *Failure) Diagnostic() string {
	if f.Stderr != "" {
		return f.Stderr
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return fmt.Sprint(f.Marker)
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = 1
	}
	return &tailBuffer{limit: limit, buf: make([]byte, 0, limit)}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if n >= t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		return n, nil
	}
	if overflow := len(t.buf) + n - t.limit; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// String returns the retained tail as trimmed, valid UTF-8. A multi-byte rune
// cut at the front of the window is dropped rather than mangled.
func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(bytes.ToValidUTF8(t.buf, nil)))
}
