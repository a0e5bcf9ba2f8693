package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
)

const userAgent = "reelsmith/0.1.0"

// Event enumerates the run milestones worth a push notification.
type Event string

const (
	EventRunCompleted   Event = "run_completed"
	EventRunFailed      Event = "run_failed"
	EventFallbackUsed   Event = "fallback_used"
	EventUnknownOutcome Event = "unknown_outcome"
	EventTest           Event = "test"
)

// Payload carries event fields. Keys are documented per event in Publish.
type Payload map[string]any

// Service defines the notification surface exposed to the pipeline and CLI.
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
	if !strings.Contains(topic, "://") {
		topic = "https://ntfy.sh/" + strings.TrimPrefix(topic, "/")
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventRunCompleted:   cfg.Notifications.RunCompleted,
			EventRunFailed:      cfg.Notifications.Failures,
			EventFallbackUsed:   cfg.Notifications.Fallbacks,
			EventUnknownOutcome: true,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

// Publish formats and sends event. Payload keys:
//
//	run_completed:   variant, counter, post_id, duration
//	run_failed:      variant, stage, error
//	fallback_used:   from, variant, error
//	unknown_outcome: run_id, variant, error
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, p Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		body := fmt.Sprintf("Posted %s #%s", p.str("variant"), p.str("counter"))
		if id := p.str("post_id"); id != "" {
			body += "\nPost: " + id
		}
		if d := p.str("duration"); d != "" {
			body += "\nTook " + d
		}
		return message{title: "reelsmith - Posted", body: body, tags: []string{"reelsmith", "posted"}}, true
	case EventRunFailed:
		return message{
			title:    "reelsmith - Run Failed",
			body:     fmt.Sprintf("%s run failed at %s: %s", p.str("variant"), p.str("stage"), p.str("error")),
			tags:     []string{"reelsmith", "error", "alert"},
			priority: "high",
		}, true
	case EventFallbackUsed:
		return message{
			title: "reelsmith - Fallback",
			body:  fmt.Sprintf("%s failed (%s); posting %s instead", p.str("from"), p.str("error"), p.str("variant")),
			tags:  []string{"reelsmith", "fallback"},
		}, true
	case EventUnknownOutcome:
		return message{
			title: "reelsmith - Check Instagram",
			body: fmt.Sprintf("Publish of run %s (%s) may or may not have succeeded: %s\nResolve with: reelsmith reconcile %s --published --post-id <id> | --not-published",
				p.str("run_id"), p.str("variant"), p.str("error"), p.str("run_id")),
			tags:     []string{"reelsmith", "warning", "reconcile"},
			priority: "urgent",
		}, true
	case EventTest:
		return message{
			title:    "reelsmith - Test",
			body:     "Notification system test",
			tags:     []string{"reelsmith", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case error:
		return strings.TrimSpace(val.Error())
	case time.Duration:
		return val.Round(time.Second).String()
	default:
		return fmt.Sprint(val)
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
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
