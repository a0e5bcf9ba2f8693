package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelsmith/internal/services"
)

type quotePayload struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
}

func serveJSON(t *testing.T, status int, body any) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func choice(content string) map[string]any {
	return map[string]any{"choices": []any{map[string]any{
		"message":       map[string]any{"content": content},
		"finish_reason": "stop",
	}}}
}

func TestCompleteJSONSendsHeadersAndBody(t *testing.T) {
	var got chatRequest
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "demo-model",
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"quote":"q","author":"a"}`}, "finish_reason": "stop"}},
			"usage":   map[string]int{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
		})
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:      "secret",
		BaseURL:     server.URL,
		Model:       "demo-model",
		Referer:     "https://example.com",
		Title:       "reelsmith",
		Temperature: 0.9,
	})
	content, err := client.CompleteJSON(context.Background(), "  system  ", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"quote":"q","author":"a"}` {
		t.Fatalf("content = %q", content)
	}
	if headers.Get("Authorization") != "Bearer secret" {
		t.Fatalf("authorization header = %q", headers.Get("Authorization"))
	}
	if headers.Get("HTTP-Referer") != "https://example.com" || headers.Get("X-Title") != "reelsmith" {
		t.Fatalf("attribution headers missing: %v", headers)
	}
	if got.Model != "demo-model" || got.Temperature != 0.9 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("response format = %+v", got.ResponseFormat)
	}
	if len(got.Messages) != 2 || got.Messages[0].Content != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestCompleteReportsUsage(t *testing.T) {
	server, _ := serveJSON(t, http.StatusOK, map[string]any{
		"model":   "routed/model",
		"choices": []any{map[string]any{"message": map[string]any{"content": "{}"}, "finish_reason": "length"}},
		"usage":   map[string]int{"prompt_tokens": 3, "completion_tokens": 5, "total_tokens": 8},
	})
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	completion, err := client.Complete(context.Background(), Request{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completion.Model != "routed/model" || completion.FinishReason != "length" || completion.Usage.TotalTokens != 8 {
		t.Fatalf("unexpected completion: %+v", completion)
	}
}

func TestCompleteFallsBackToToolCallArguments(t *testing.T) {
	server, _ := serveJSON(t, http.StatusOK, map[string]any{"choices": []any{map[string]any{
		"message": map[string]any{
			"content":    "",
			"tool_calls": []any{map[string]any{"function": map[string]any{"arguments": `{"quote":"tool","author":"call"}`}}},
		},
	}}})
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	content, err := client.CompleteJSON(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	var parsed quotePayload
	if err := DecodeJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if parsed.Quote != "tool" || parsed.Author != "call" {
		t.Fatalf("parsed = %+v", parsed)
	}
}

func TestCompleteEmptyContentIsTransient(t *testing.T) {
	server, calls := serveJSON(t, http.StatusOK, map[string]any{"choices": []any{map[string]any{
		"message":       map[string]any{"content": "", "refusal": "I cannot help"},
		"finish_reason": "content_filter",
	}}})
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	details := services.Details(err)
	if details.Message == "" || !containsAll(details.Message, "content_filter", "I cannot help") {
		t.Fatalf("message lacks finish reason and refusal: %q", details.Message)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected a single request, got %d", *calls)
	}
}

func TestCompleteClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusPaymentRequired, services.ErrConfiguration},
		{http.StatusBadRequest, services.ErrValidation},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusBadGateway, services.ErrTransient},
	}
	for _, tc := range cases {
		server, calls := serveJSON(t, tc.status, map[string]any{"error": map[string]any{"message": "nope", "code": tc.status}})
		client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
		_, err := client.CompleteJSON(context.Background(), "s", "u")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != tc.status || apiErr.Message != "nope" {
			t.Fatalf("status %d: APIError = %+v", tc.status, apiErr)
		}
		if atomic.LoadInt32(calls) != 1 {
			t.Fatalf("status %d: client retried (%d calls)", tc.status, *calls)
		}
	}
}

func TestCompleteProviderErrorInsideOK(t *testing.T) {
	server, _ := serveJSON(t, http.StatusOK, map[string]any{"error": map[string]any{"message": "upstream overloaded", "code": 502}})
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL}, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestCompleteRequiresKeyAndPrompts(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	client = NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	if _, err := client.CompleteJSON(context.Background(), "", "u"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server, _ := serveJSON(t, http.StatusOK, choice("```json\n{\"ok\": true}\n```"))
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	bad, _ := serveJSON(t, http.StatusOK, choice(`{"ok": false}`))
	client = NewClient(Config{APIKey: "test", BaseURL: bad.URL})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected HealthCheck to fail on a negative acknowledgement")
	}
}

func TestNewClientDefaultsEndpoint(t *testing.T) {
	client := NewClient(Config{APIKey: " k ", Model: " m "})
	if client.cfg.BaseURL != DefaultEndpoint || client.Model() != "m" || client.cfg.APIKey != "k" {
		t.Fatalf("unexpected config: %+v", client.cfg)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
