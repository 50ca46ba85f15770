package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleeper   func(time.Duration)
}

// Analysis sits on the request path, so retries stay short.
func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 3, baseDelay: 500 * time.Millisecond, maxDelay: 4 * time.Second}
}

func (p retryPolicy) do(ctx context.Context, call func() (string, error)) (string, error) {
	attempts := max(p.attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var content string
		content, err = call()
		if err == nil {
			return content, nil
		}
		delay, ok := p.delay(ctx, err, attempt)
		if !ok || attempt == attempts {
			break
		}
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return "", fmt.Errorf("%w: %w", ctxErr, err)
	}
	if attempts > 1 && retryable(err) {
		return "", &exhaustedError{attempts: attempts, err: err}
	}
	return "", err
}

type exhaustedError struct {
	attempts int
	err      error
}

func (e *exhaustedError) Error() string {
	return "failed after " + strconv.Itoa(e.attempts) + " attempts: " + e.err.Error()
}

func (e *exhaustedError) Unwrap() error { return e.err }

func (p retryPolicy) delay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if ctx.Err() != nil || !retryable(err) {
		return 0, false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return min(statusErr.RetryAfter, p.maxDelay), true
	}
	delay := p.baseDelay
	for i := 1; i < attempt && delay < p.maxDelay; i++ {
		delay *= 2
	}
	return min(delay, p.maxDelay), true
}

// retryable reports whether err is transient: 408, 429, 5xx, network
// timeouts, or a model that returned nothing.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	var empty *EmptyContentError
	if errors.As(err, &empty) {
		return empty.Refusal == ""
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (p retryPolicy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d, true
		}
	}
	return 0, false
}
