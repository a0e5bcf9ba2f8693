package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

const (
	// DefaultEndpoint is the OpenRouter chat completions URL.
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

// Config captures the runtime settings required to talk to OpenRouter.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	// Temperature applies to CompleteJSON; health checks always use zero.
	Temperature float64
}

// Client sends single chat completions. It never retries on its own; the
// pipeline stage policy decides whether another attempt is worth making.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger records token usage per completion at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a client. An empty BaseURL selects OpenRouter.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEndpoint
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// Request is one chat completion.
type Request struct {
	System      string
	User        string
	Temperature float64
	// JSON asks the provider for a json_object response format.
	JSON bool
}

// Usage is the token accounting OpenRouter returns with each completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the first usable choice of a response.
type Completion struct {
	Content      string
	FinishReason string
	Model        string
	Usage        Usage
}

// APIError is the error envelope OpenRouter sends with non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Code       any
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openrouter: http %d", e.StatusCode)
	}
	return fmt.Sprintf("openrouter: http %d: %s", e.StatusCode, e.Message)
}

// CompleteJSON returns the raw JSON text the model produced for the prompts.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	completion, err := c.Complete(ctx, Request{
		System:      systemPrompt,
		User:        userPrompt,
		Temperature: c.cfg.Temperature,
		JSON:        true,
	})
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

// HealthCheck verifies that the key and model answer a trivial prompt.
func (c *Client) HealthCheck(ctx context.Context) error {
	completion, err := c.Complete(ctx, Request{
		System: "You must respond with JSON only.",
		User:   `Respond with {"ok":true}`,
		JSON:   true,
	})
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(completion.Content, &parsed); err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: model did not acknowledge")
	}
	return nil
}

// Complete sends one request. Errors carry a services marker: missing
// credentials and auth failures are configuration errors, other 4xx are
// validation errors, 408/429/5xx and empty completions are transient.
func (c *Client) Complete(ctx context.Context, req Request) (Completion, error) {
	const op = "llm complete"
	req.System = strings.TrimSpace(req.System)
	req.User = strings.TrimSpace(req.User)
	switch {
	case req.System == "" || req.User == "":
		return Completion{}, services.Wrap(services.ErrValidation, "", op, "system and user prompts are required", nil)
	case c.cfg.APIKey == "":
		return Completion{}, services.Wrap(services.ErrConfiguration, "", op, "api key required", nil)
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := c.send(ctx, body)
	if err != nil {
		return Completion{}, err
	}
	completion, ok := resp.first()
	if !ok {
		detail := "empty completion"
		if completion.FinishReason != "" {
			detail += " (finish_reason=" + completion.FinishReason + ")"
		}
		if refusal := resp.refusal(); refusal != "" {
			detail += ": refused: " + refusal
		}
		return Completion{}, services.Wrap(services.ErrTransient, "", op, detail, nil)
	}
	c.logger.Debug("llm completion",
		logging.String("model", completion.Model),
		logging.String("finish_reason", completion.FinishReason),
		logging.Int("prompt_tokens", completion.Usage.PromptTokens),
		logging.Int("completion_tokens", completion.Usage.CompletionTokens),
	)
	return completion, nil
}

func (c *Client) send(ctx context.Context, body chatRequest) (chatResponse, error) {
	const op = "llm request"
	var out chatResponse
	encoded, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return out, services.Wrap(services.ErrConfiguration, "", op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return out, statusError(op, resp.StatusCode, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, services.Wrap(services.ErrTransient, "", op, "decode response", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		// OpenRouter reports upstream provider failures inside a 200.
		return out, services.Wrap(services.ErrTransient, "", op, "provider error",
			&APIError{StatusCode: resp.StatusCode, Message: out.Error.Message, Code: out.Error.Code})
	}
	return out, nil
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return services.Wrap(services.ErrTimeout, "", op, "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "", op, "transport failure", err)
}

func statusError(op string, status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status}
	var envelope struct {
		Error *apiErrorBody `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
		apiErr.Message = strings.TrimSpace(envelope.Error.Message)
		apiErr.Code = envelope.Error.Code
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	msg := fmt.Sprintf("request rejected with http %d", status)
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusPaymentRequired, status == http.StatusNotFound:
		return services.Wrap(services.ErrConfiguration, "", op, msg, apiErr)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "", op, msg, apiErr)
	default:
		return services.Wrap(services.ErrValidation, "", op, msg, apiErr)
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			Refusal   string `json:"refusal"`
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage         `json:"usage"`
	Error *apiErrorBody `json:"error"`
}

// first returns the first choice with text, falling back to tool-call
// arguments for models that answer structured prompts through a tool.
func (r chatResponse) first() (Completion, bool) {
	out := Completion{Model: r.Model, Usage: r.Usage}
	for _, choice := range r.Choices {
		if out.FinishReason == "" {
			out.FinishReason = choice.FinishReason
		}
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			out.Content = text
			out.FinishReason = choice.FinishReason
			return out, true
		}
		for _, call := range choice.Message.ToolCalls {
			if args := strings.TrimSpace(call.Function.Arguments); args != "" {
				out.Content = args
				out.FinishReason = choice.FinishReason
				return out, true
			}
		}
	}
	return out, false
}

func (r chatResponse) refusal() string {
	for _, choice := range r.Choices {
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}
