package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelsmith/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "render", "ffmpeg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"render", "ffmpeg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsSurvivesFurtherWrapping(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("outer: %w", services.Wrap(services.ErrTransient, "assets", "download", "clip download failed", base))

	details := services.Details(err)
	if details.Kind != services.KindTransient {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Stage != "assets" || details.Operation != "download" {
		t.Fatalf("unexpected stage/op %q/%q", details.Stage, details.Operation)
	}
	if details.Message != "clip download failed" {
		t.Fatalf("unexpected message %q", details.Message)
	}
	if !errors.Is(details.Cause, base) {
		t.Fatalf("expected cause %v, got %v", base, details.Cause)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrTransient, "content", "generate", "rate limited", nil), true},
		{services.Wrap(services.ErrExternalTool, "render", "ffmpeg", "exit 1", nil), true},
		{services.Wrap(services.ErrTimeout, "assets", "poll", "timed out", nil), true},
		{services.Wrap(services.ErrValidation, "timing", "align", "empty transcript", nil), false},
		{services.Wrap(services.ErrConfiguration, "publish", "init", "missing token", nil), false},
		{services.Wrap(services.ErrUnknownOutcome, "publish", "media_publish", "timeout after send", nil), false},
		{context.Canceled, false},
		{errors.New("plain"), true},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestUnknownOutcomeTakesPrecedence(t *testing.T) {
	err := services.Wrap(services.ErrUnknownOutcome, "publish", "media_publish", "", services.ErrTimeout)
	if kind := services.KindOf(err); kind != services.KindUnknownOutcome {
		t.Fatalf("expected unknown outcome kind, got %q", kind)
	}
}
