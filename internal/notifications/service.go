package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DanHUMassMed/sumtube/internal/config"
)

const userAgent = "Sumtube/0.1.0"

// Event identifies the kind of notification being published.
type Event string

const (
	EventQueueItemAdded  Event = "queue_item_added"
	EventReportCompleted Event = "report_completed"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event-specific values used to build the message body.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		sendReports: cfg.Notifications.Reports,
		sendErrors:  cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	sendReports bool
	sendErrors  bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.build(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) build(event Event, payload Payload) (message, bool) {
	switch event {
	case EventQueueItemAdded:
		if !n.sendReports {
			return message{}, false
		}
		return message{
			title: "Sumtube - Queued",
			body:  fmt.Sprintf("Queued video: %s", payloadString(payload, "title")),
			tags:  []string{"sumtube", "queue", "added"},
		}, true
	case EventReportCompleted:
		if !n.sendReports {
			return message{}, false
		}
		body := fmt.Sprintf("Report ready: %s", payloadString(payload, "title"))
		if report := payloadString(payload, "report_path"); report != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, report)
		}
		return message{
			title:    "Sumtube - Report Complete",
			body:     body,
			tags:     []string{"sumtube", "report", "completed"},
			priority: "high",
		}, true
	case EventError:
		if !n.sendErrors {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("Error")
		if contextLabel := payloadString(payload, "context"); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if err, ok := payload["error"].(error); ok && err != nil {
			builder.WriteString(strings.TrimSpace(err.Error()))
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Sumtube - Error",
			body:     builder.String(),
			tags:     []string{"sumtube", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Sumtube - Test",
			body:     "Notification system test",
			tags:     []string{"sumtube", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	if value, ok := payload[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
