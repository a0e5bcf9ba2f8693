package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"reelsmith/internal/config"
	"reelsmith/internal/deps"
	"reelsmith/internal/publish"
	"reelsmith/internal/services"
	"reelsmith/internal/services/gemini"
	"reelsmith/internal/services/llm"
)

const (
	llmProbeTimeout       = 30 * time.Second
	instagramProbeTimeout = 10 * time.Second
)

// probe runs fn under timeout and turns its error into a failed Result.
func probe(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (string, error)) Result {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	detail, err := fn(probeCtx)
	if err != nil {
		return Result{Name: name, Detail: describeFailure(err)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// describeFailure keeps preflight output to one readable line per check.
func describeFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return "timed out waiting for the API"
	case errors.Is(err, services.ErrConfiguration):
		return "credentials rejected: " + services.Details(err).Message
	}
	return err.Error()
}

// CheckLLM confirms the OpenRouter key can complete a trivial request.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	})
	return probe(ctx, name, llmProbeTimeout, func(ctx context.Context) (string, error) {
		return "API reachable (" + cfg.Model + ")", client.HealthCheck(ctx)
	})
}

func CheckGemini(ctx context.Context, cfg config.Gemini) Result {
	const name = "Gemini"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	return probe(ctx, name, llmProbeTimeout, func(ctx context.Context) (string, error) {
		client, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model, Temperature: cfg.Temperature})
		if err != nil {
			return "", err
		}
		defer client.Close()
		return "API reachable (" + cfg.Model + ")", client.HealthCheck(ctx)
	})
}

// CheckInstagram reads the configured account through the Graph API, which
// fails fast on an expired token or a wrong user id.
func CheckInstagram(ctx context.Context, cfg config.Instagram) Result {
	const name = "Instagram"
	switch {
	case strings.TrimSpace(cfg.AccessToken) == "":
		return Result{Name: name, Detail: "missing access token"}
	case strings.TrimSpace(cfg.UserID) == "":
		return Result{Name: name, Detail: "missing user id"}
	}
	ig := publish.NewInstagram(publish.InstagramConfig{
		AccessToken: strings.TrimSpace(cfg.AccessToken),
		UserID:      strings.TrimSpace(cfg.UserID),
		BaseURL:     cfg.BaseURL,
		APIVersion:  cfg.APIVersion,
	}, nil)
	return probe(ctx, name, instagramProbeTimeout, func(ctx context.Context) (string, error) {
		username, err := ig.Account(ctx)
		if username == "" {
			return "account reachable", err
		}
		return "account @" + username, err
	})
}

// CheckDirectoryAccess verifies path is a directory the current user can
// read, write and traverse.
func CheckDirectoryAccess(name, path string) Result {
	fail := func(reason string) Result {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", path, reason)}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fail("does not exist")
	case err != nil:
		return fail("stat: " + err.Error())
	case !info.IsDir():
		return fail("not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail("insufficient permissions: " + err.Error())
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

// CheckSystemDeps evaluates the binaries a run shells out to and, when ffmpeg
// is present, the filters the renderer needs.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.ReelRequirements(cfg))
	for _, status := range statuses {
		if status.Name == "FFmpeg" && status.Available {
			return append(statuses, deps.CheckFFmpegFilters(ctx, status.Command, deps.RequiredFilters))
		}
	}
	return statuses
}
