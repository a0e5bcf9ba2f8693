package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/notifications"
)

type captured struct {
	title, body, tags, priority string
}

func newServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunFailed, notifications.Payload{"stage": "render"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "run completed",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"variant":  "animated",
				"counter":  int64(50),
				"post_id":  "1789",
				"duration": 95 * time.Second,
			},
			expectTitle: "reelsmith - Posted",
			expectBody:  "Posted animated #50\nPost: 1789\nTook 1m35s",
			expectTags:  "reelsmith,posted",
		},
		{
			name:  "run failed",
			event: notifications.EventRunFailed,
			payload: notifications.Payload{
				"variant": "standard",
				"stage":   "render",
				"error":   errors.New("ffmpeg exited 1"),
			},
			expectTitle:    "reelsmith - Run Failed",
			expectBody:     "standard run failed at render: ffmpeg exited 1",
			expectTags:     "reelsmith,error,alert",
			expectPriority: "high",
		},
		{
			name:  "fallback",
			event: notifications.EventFallbackUsed,
			payload: notifications.Payload{
				"from":    "reference_person",
				"variant": "standard",
				"error":   "not found",
			},
			expectTitle: "reelsmith - Fallback",
			expectBody:  "reference_person failed (not found); posting standard instead",
			expectTags:  "reelsmith,fallback",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "reelsmith - Test",
			expectBody:     "Notification system test",
			expectTags:     "reelsmith,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, got := newServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if len(*got) != 1 {
				t.Fatalf("expected one request, got %d", len(*got))
			}
			req := (*got)[0]
			if req.title != tc.expectTitle || req.body != tc.expectBody || req.tags != tc.expectTags || req.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", req)
			}
		})
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.RunCompleted = false
	cfg.Notifications.Failures = false
	svc := notifications.NewService(&cfg)

	_ = svc.Publish(context.Background(), notifications.EventRunCompleted, nil)
	_ = svc.Publish(context.Background(), notifications.EventRunFailed, nil)
	if err := svc.Publish(context.Background(), notifications.EventUnknownOutcome, notifications.Payload{"run_id": "abc"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(*got) != 1 {
		t.Fatalf("expected only the unknown outcome alert, got %d requests", len(*got))
	}
	if !strings.Contains((*got)[0].body, "reelsmith reconcile abc") || (*got)[0].priority != "urgent" {
		t.Fatalf("unexpected alert %+v", (*got)[0])
	}
}

func TestNtfyErrorStatus(t *testing.T) {
	srv, _ := newServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
