package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tailor/internal/config"
	"tailor/internal/versions"
)

const userAgent = "tailor/0.1"

// Service defines the notification surface used by the pipeline and CLI.
type Service interface {
	NotifyVersionCreated(ctx context.Context, v versions.Version) error
	NotifyEditFailed(ctx context.Context, asset, command string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether s delivers anything.
func Enabled(s Service) bool {
	_, noop := s.(noopService)
	return s != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyVersionCreated(ctx context.Context, v versions.Version) error {
	message := fmt.Sprintf("%s is ready (%s of %s)", v.Filename, v.Operation, v.Parent)
	if v.Operation == "" {
		message = fmt.Sprintf("%s was added", v.Filename)
	}
	return n.send(ctx, payload{
		title:   "Tailor - Edit Ready",
		message: message,
		tags:    []string{"tailor", "edit", "completed"},
	})
}

func (n *ntfyService) NotifyEditFailed(ctx context.Context, asset, command string, err error) error {
	var builder strings.Builder
	builder.WriteString("Edit failed for ")
	builder.WriteString(strings.TrimSpace(asset))
	if command = strings.TrimSpace(command); command != "" {
		fmt.Fprintf(&builder, " (%q)", command)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Tailor - Edit Failed",
		message:  builder.String(),
		tags:     []string{"tailor", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Tailor - Test",
		message:  "Notification system test",
		tags:     []string{"tailor", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyVersionCreated(context.Context, versions.Version) error  { return nil }
func (noopService) NotifyEditFailed(context.Context, string, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
