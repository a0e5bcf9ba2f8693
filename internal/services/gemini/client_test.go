package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	"reelsmith/internal/services"
)

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{Model: "gemini-1.5-flash"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without key, got %v", err)
	}
	if _, err := NewClient(context.Background(), Config{APIKey: "k"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without model, got %v", err)
	}
}

func TestExtractTextJoinsParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"quote":`), genai.Text(`"Begin"}`)}},
	}}}
	text, err := extractText(resp)
	if err != nil {
		t.Fatalf("extractText: %v", err)
	}
	if text != `{"quote":"Begin"}` {
		t.Fatalf("unexpected text %q", text)
	}
	if _, err := extractText(&genai.GenerateContentResponse{}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestCleanJSONBlock(t *testing.T) {
	if got := cleanJSONBlock("```json\n{\"ok\":true}\n```"); got != `{"ok":true}` {
		t.Fatalf("unexpected cleaned text %q", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&googleapi.Error{Code: 403}, services.ErrConfiguration},
		{&googleapi.Error{Code: 400}, services.ErrValidation},
		{&googleapi.Error{Code: 429}, services.ErrTransient},
		{&googleapi.Error{Code: 503}, services.ErrTransient},
		{context.DeadlineExceeded, services.ErrTimeout},
		{errors.New("connection reset"), services.ErrTransient},
	}
	for _, tc := range cases {
		if got := classify(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
	if got := classify(context.Canceled); !errors.Is(got, context.Canceled) {
		t.Fatalf("cancellation should pass through, got %v", got)
	}
}
