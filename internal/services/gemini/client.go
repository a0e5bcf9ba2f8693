// Package gemini wraps the Google Gemini API for JSON content generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"reelsmith/internal/services"
)

// Config selects the model and sampling settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Client generates JSON completions with a single Gemini model.
type Client struct {
	client *genai.Client
	cfg    Config
}

// NewClient dials Gemini with an API key. Extra options are appended after
// the key, which lets tests point the client at a local endpoint.
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "gemini", "api key is required", nil)
	}
	if cfg.Model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "gemini", "model is required", nil)
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "gemini", "create client", err)
	}
	return &Client{client: client, cfg: cfg}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// GenerateJSON asks the model for a JSON document. The system prompt is sent
// as the model's system instruction.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", services.Wrap(services.ErrValidation, "", "gemini generate", "user prompt required", nil)
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(c.cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	if strings.TrimSpace(systemPrompt) != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", classify(err)
	}
	text, err := extractText(resp)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "", "gemini generate", "unusable response", err)
	}
	return cleanJSONBlock(text), nil
}

// HealthCheck confirms the key and model answer a trivial prompt.
func (c *Client) HealthCheck(ctx context.Context) error {
	text, err := c.GenerateJSON(ctx, "Respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	if !strings.Contains(text, "ok") {
		return fmt.Errorf("gemini health: unexpected response %q", text)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response (finish reason %v)", candidate.FinishReason)
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", errors.New("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

type httpCoder interface {
	HTTPCode() int
}

func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var coder httpCoder
	if errors.As(err, &coder) {
		return coder.HTTPCode()
	}
	return 0
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "", "gemini generate", "request timed out", err)
	}
	switch code := statusCode(err); {
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusNotFound:
		return services.Wrap(services.ErrConfiguration, "", "gemini generate",
			fmt.Sprintf("request rejected with http %d", code), err)
	case code == http.StatusBadRequest:
		return services.Wrap(services.ErrValidation, "", "gemini generate", "request rejected with http 400", err)
	}
	return services.Wrap(services.ErrTransient, "", "gemini generate", "generation failed", err)
}
