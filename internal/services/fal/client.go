package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/services"
)

const (
	defaultBaseURL      = "https://queue.fal.run"
	defaultPollInterval = 5 * time.Second
	defaultTimeout      = 10 * time.Minute
	maxErrorBody        = 512
)

// Queue states reported by the status endpoint.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// Config holds queue connection settings.
type Config struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client submits and collects fal queue requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
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

// WithSleeper overrides how the client waits between status polls.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient builds a queue client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Request identifies a submitted queue job.
type Request struct {
	Model       string `json:"-"`
	ID          string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// File is a media reference in a fal result document.
type File struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// MediaResult covers the result shapes of the video and speech models.
type MediaResult struct {
	Video *File `json:"video"`
	Audio *File `json:"audio"`
}

// Submit enqueues a request for model.
func (c *Client) Submit(ctx context.Context, model string, input any) (Request, error) {
	model = strings.Trim(strings.TrimSpace(model), "/")
	if model == "" {
		return Request{}, services.Wrap(services.ErrConfiguration, "", "fal submit", "model is required", nil)
	}
	if c.cfg.APIKey == "" {
		return Request{}, services.Wrap(services.ErrConfiguration, "", "fal submit", "api key is required", nil)
	}
	body, err := json.Marshal(input)
	if err != nil {
		return Request{}, services.Wrap(services.ErrValidation, "", "fal submit", "encode input", err)
	}
	var req Request
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/"+model, body, &req); err != nil {
		return Request{}, wrapRequestError("fal submit", err)
	}
	if req.ID == "" {
		return Request{}, services.Wrap(services.ErrTransient, "", "fal submit", "response missing request_id", nil)
	}
	req.Model = model
	if req.StatusURL == "" {
		req.StatusURL = fmt.Sprintf("%s/%s/requests/%s/status", c.cfg.BaseURL, model, req.ID)
	}
	if req.ResponseURL == "" {
		req.ResponseURL = fmt.Sprintf("%s/%s/requests/%s", c.cfg.BaseURL, model, req.ID)
	}
	return req, nil
}

// Wait polls the request status until it completes.
func (c *Client) Wait(ctx context.Context, req Request) error {
	for {
		var status statusResponse
		if err := c.doJSON(ctx, http.MethodGet, req.StatusURL, nil, &status); err != nil {
			return wrapRequestError("fal status", err)
		}
		switch strings.ToUpper(status.Status) {
		case StatusCompleted:
			return nil
		case StatusInQueue, StatusInProgress:
		default:
			return services.Wrap(services.ErrTransient, "", "fal status",
				fmt.Sprintf("request %s reported status %q", req.ID, status.Status), nil)
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return wrapRequestError("fal status", err)
		}
	}
}

// Result fetches the result document of a completed request into out.
func (c *Client) Result(ctx context.Context, req Request, out any) error {
	if err := c.doJSON(ctx, http.MethodGet, req.ResponseURL, nil, out); err != nil {
		return wrapRequestError("fal result", err)
	}
	return nil
}

// Run submits, waits for and fetches a request under the configured timeout.
func (c *Client) Run(ctx context.Context, model string, input any, out any) error {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	err := func() error {
		req, err := c.Submit(ctx, model, input)
		if err != nil {
			return err
		}
		if err := c.Wait(ctx, req); err != nil {
			return err
		}
		return c.Result(ctx, req, out)
	}()
	if err != nil && parent.Err() != nil {
		return parent.Err()
	}
	return err
}

// Download saves the file at url to dest.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "fal download", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapRequestError("fal download", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return wrapRequestError("fal download", &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)})
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("fal download: create directory: %w", err)
	}
	tmp := dest + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("fal download: create file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return wrapRequestError("fal download", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("fal download: close file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("fal download: rename: %w", err)
	}
	return nil
}

// StatusError reports a non-2xx queue response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Key "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapRequestError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, "", op, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTransient, "", op, "request timed out", err)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		switch {
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
			return services.Wrap(services.ErrTransient, "", op, fmt.Sprintf("http %d", code), err)
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "", op, fmt.Sprintf("http %d", code), err)
		default:
			return services.Wrap(services.ErrValidation, "", op, fmt.Sprintf("http %d", code), err)
		}
	}
	return services.Wrap(services.ErrTransient, "", op, "request failed", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
