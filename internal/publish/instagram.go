package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/render"
	"reelsmith/internal/services"
	"reelsmith/internal/variant"
)

const maxErrorBody = 2048

// Container processing states reported by the Graph API.
const (
	ContainerInProgress = "IN_PROGRESS"
	ContainerFinished   = "FINISHED"
	ContainerPublished  = "PUBLISHED"
	ContainerError      = "ERROR"
	ContainerExpired    = "EXPIRED"
)

// InstagramConfig holds Graph API and hosting settings.
type InstagramConfig struct {
	AccessToken   string
	UserID        string
	BaseURL       string
	APIVersion    string
	PublicDir     string
	PublicBaseURL string
	PollInterval  time.Duration
	StatusTimeout time.Duration
}

// InstagramConfigFromConfig extracts publisher settings.
func InstagramConfigFromConfig(cfg *config.Config) InstagramConfig {
	return InstagramConfig{
		AccessToken:   strings.TrimSpace(cfg.Instagram.AccessToken),
		UserID:        strings.TrimSpace(cfg.Instagram.UserID),
		BaseURL:       cfg.Instagram.BaseURL,
		APIVersion:    cfg.Instagram.APIVersion,
		PublicDir:     cfg.Publish.PublicDir,
		PublicBaseURL: cfg.Publish.PublicBaseURL,
		PollInterval:  time.Duration(cfg.Instagram.StatusPollSeconds) * time.Second,
		StatusTimeout: time.Duration(cfg.Instagram.StatusTimeoutSeconds) * time.Second,
	}
}

// APIError is a Graph API error response.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	TraceID    string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph api http %d", e.StatusCode)
	}
	return fmt.Sprintf("graph api http %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

// Instagram publishes reels and carousels through the Graph API.
type Instagram struct {
	cfg        InstagramConfig
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
	logger     *slog.Logger
}

// InstagramOption customizes the publisher.
type InstagramOption func(*Instagram)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) InstagramOption {
	return func(i *Instagram) {
		if client != nil {
			i.httpClient = client
		}
	}
}

// WithSleeper overrides the wait between status polls.
func WithSleeper(sleep func(context.Context, time.Duration) error) InstagramOption {
	return func(i *Instagram) {
		if sleep != nil {
			i.sleep = sleep
		}
	}
}

// NewInstagram builds a Graph API publisher.
func NewInstagram(cfg InstagramConfig, logger *slog.Logger, opts ...InstagramOption) *Instagram {
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 5 * time.Minute
	}
	ig := &Instagram{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		sleep:      sleepContext,
		logger:     logging.NewComponentLogger(logger, "instagram"),
	}
	for _, opt := range opts {
		opt(ig)
	}
	return ig
}

// Publish hosts the artifact, builds the container(s), waits for processing
// and publishes. Errors before media_publish is sent leave nothing visible.
func (ig *Instagram) Publish(ctx context.Context, artifact render.Artifact, caption string) (Result, error) {
	if ig.cfg.AccessToken == "" || ig.cfg.UserID == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "instagram", "access token and user id are required", nil)
	}
	if strings.TrimSpace(ig.cfg.PublicBaseURL) == "" || strings.TrimSpace(ig.cfg.PublicDir) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "instagram", "public_dir and public_base_url are required", nil)
	}

	var (
		containerID string
		hosted      []string
		err         error
	)
	if artifact.Kind == variant.Carousel {
		containerID, hosted, err = ig.carouselContainer(ctx, artifact, caption)
	} else {
		containerID, hosted, err = ig.reelContainer(ctx, artifact, caption)
	}
	if err != nil {
		return Result{}, err
	}
	if err := ig.waitForContainer(ctx, containerID); err != nil {
		return Result{}, err
	}

	postID, err := ig.publishContainer(ctx, containerID)
	if err != nil {
		return Result{}, err
	}
	ig.logger.Info("instagram post published",
		logging.String("post_id", postID),
		logging.String("container_id", containerID),
		logging.String(logging.FieldVariant, string(artifact.Kind)),
	)
	result := Result{PostID: postID, PublishedAt: time.Now(), Files: hosted}
	if link, err := ig.permalink(ctx, postID); err == nil {
		result.Permalink = link
	}
	return result, nil
}

// Verify reports whether postID exists on the account.
func (ig *Instagram) Verify(ctx context.Context, postID string) (bool, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return false, services.Wrap(services.ErrValidation, stageName, "verify", "post id is required", nil)
	}
	var out struct {
		ID string `json:"id"`
	}
	err := ig.call(ctx, http.MethodGet, postID, url.Values{"fields": {"id"}}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusBadRequest) {
			return false, nil
		}
		return false, classify("verify", err)
	}
	return out.ID == postID, nil
}

// Account returns the username behind the configured user id, confirming the
// token can read the account.
func (ig *Instagram) Account(ctx context.Context) (string, error) {
	if ig.cfg.AccessToken == "" || ig.cfg.UserID == "" {
		return "", services.Wrap(services.ErrConfiguration, stageName, "account", "access token and user id are required", nil)
	}
	var out struct {
		Username string `json:"username"`
	}
	if err := ig.call(ctx, http.MethodGet, url.PathEscape(ig.cfg.UserID), url.Values{"fields": {"username"}}, &out); err != nil {
		return "", classify("account", err)
	}
	return out.Username, nil
}

func (ig *Instagram) reelContainer(ctx context.Context, artifact render.Artifact, caption string) (string, []string, error) {
	if artifact.Path == "" {
		return "", nil, services.Wrap(services.ErrValidation, stageName, "create container", "artifact has no video", nil)
	}
	videoURL, hostedPath, err := ig.host(artifact.Path)
	if err != nil {
		return "", nil, err
	}
	hosted := []string{hostedPath}
	params := url.Values{
		"media_type":    {"REELS"},
		"video_url":     {videoURL},
		"caption":       {caption},
		"share_to_feed": {"true"},
	}
	if artifact.Thumbnail != "" {
		coverURL, coverPath, err := ig.host(artifact.Thumbnail)
		if err != nil {
			return "", hosted, err
		}
		hosted = append(hosted, coverPath)
		params.Set("cover_url", coverURL)
	}
	id, err := ig.createContainer(ctx, params)
	return id, hosted, err
}

func (ig *Instagram) carouselContainer(ctx context.Context, artifact render.Artifact, caption string) (string, []string, error) {
	if len(artifact.Slides) < 2 {
		return "", nil, services.Wrap(services.ErrValidation, stageName, "create container", "carousel needs at least two slides", nil)
	}
	var (
		hosted   []string
		children []string
	)
	for _, slide := range artifact.Slides {
		imageURL, hostedPath, err := ig.host(slide)
		if err != nil {
			return "", hosted, err
		}
		hosted = append(hosted, hostedPath)
		id, err := ig.createContainer(ctx, url.Values{
			"image_url":        {imageURL},
			"is_carousel_item": {"true"},
		})
		if err != nil {
			return "", hosted, err
		}
		children = append(children, id)
	}
	for _, child := range children {
		if err := ig.waitForContainer(ctx, child); err != nil {
			return "", hosted, err
		}
	}
	id, err := ig.createContainer(ctx, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {caption},
	})
	return id, hosted, err
}

// host copies path into the public directory and returns its URL.
func (ig *Instagram) host(path string) (string, string, error) {
	if err := os.MkdirAll(ig.cfg.PublicDir, 0o755); err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, stageName, "host media", "create public dir", err)
	}
	name := filepath.Base(path)
	dst := filepath.Join(ig.cfg.PublicDir, name)
	if err := fileutil.CopyFile(path, dst); err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, stageName, "host media", "copy to public dir", err)
	}
	return strings.TrimRight(ig.cfg.PublicBaseURL, "/") + "/" + url.PathEscape(name), dst, nil
}

func (ig *Instagram) createContainer(ctx context.Context, params url.Values) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := ig.call(ctx, http.MethodPost, ig.cfg.UserID+"/media", params, &out); err != nil {
		return "", classify("create container", err)
	}
	if out.ID == "" {
		return "", services.Wrap(services.ErrExternalTool, stageName, "create container", "response missing container id", nil)
	}
	return out.ID, nil
}

func (ig *Instagram) waitForContainer(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, ig.cfg.StatusTimeout)
	defer cancel()
	for {
		var out struct {
			StatusCode string `json:"status_code"`
			Status     string `json:"status"`
		}
		if err := ig.call(ctx, http.MethodGet, id, url.Values{"fields": {"status_code,status"}}, &out); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return services.Wrap(services.ErrTimeout, stageName, "container status", "container processing timed out", err)
			}
			return classify("container status", err)
		}
		switch out.StatusCode {
		case ContainerFinished, ContainerPublished:
			return nil
		case ContainerError, ContainerExpired:
			detail := strings.TrimSpace(out.Status)
			if detail == "" {
				detail = out.StatusCode
			}
			return services.Wrap(services.ErrExternalTool, stageName, "container status", "container processing failed: "+detail, nil)
		}
		ig.logger.Debug("container processing", logging.String("container_id", id), logging.String("status", out.StatusCode))
		if err := ig.sleep(ctx, ig.cfg.PollInterval); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return services.Wrap(services.ErrTimeout, stageName, "container status", "container processing timed out", err)
			}
			return err
		}
	}
}

// publishContainer sends media_publish. Once the request may have reached
// the server, any ambiguous failure is reported as an unknown outcome.
func (ig *Instagram) publishContainer(ctx context.Context, containerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	err := ig.call(ctx, http.MethodPost, ig.cfg.UserID+"/media_publish", url.Values{"creation_id": {containerID}}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return "", classify("media publish", err)
		}
		return "", services.Wrap(services.ErrUnknownOutcome, stageName, "media publish", "publish outcome unknown for container "+containerID, err)
	}
	if out.ID == "" {
		return "", services.Wrap(services.ErrUnknownOutcome, stageName, "media publish", "response missing post id for container "+containerID, nil)
	}
	return out.ID, nil
}

func (ig *Instagram) permalink(ctx context.Context, postID string) (string, error) {
	var out struct {
		Permalink string `json:"permalink"`
	}
	if err := ig.call(ctx, http.MethodGet, postID, url.Values{"fields": {"permalink"}}, &out); err != nil {
		return "", err
	}
	return out.Permalink, nil
}

func (ig *Instagram) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", ig.cfg.BaseURL, ig.cfg.APIVersion, strings.TrimLeft(path, "/"))
}

func (ig *Instagram) call(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", ig.cfg.AccessToken)

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, ig.endpoint(path)+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, ig.endpoint(path), strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ig.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			apiErr = envelope.Error
			apiErr.StatusCode = resp.StatusCode
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, op, "graph request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, stageName, op, "graph request timed out", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusUnauthorized, code == http.StatusForbidden, apiErr.Code == 190:
			return services.Wrap(services.ErrConfiguration, stageName, op, "instagram rejected credentials", err)
		case code == http.StatusTooManyRequests, code >= 500:
			return services.Wrap(services.ErrTransient, stageName, op, fmt.Sprintf("graph api http %d", code), err)
		default:
			return services.Wrap(services.ErrValidation, stageName, op, fmt.Sprintf("graph api http %d", code), err)
		}
	}
	return services.Wrap(services.ErrTransient, stageName, op, "graph request failed", err)
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
