package publish

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/render"
)

const stageName = "publish"

// Result describes a published post.
type Result struct {
	PostID      string
	Permalink   string
	DryRun      bool
	PublishedAt time.Time
	// Files are the copies the publisher made, if any.
	Files []string
}

// Publisher delivers an artifact with its caption.
type Publisher interface {
	Publish(ctx context.Context, artifact render.Artifact, caption string) (Result, error)
}

// Verifier confirms whether a post exists. Used when reconciling runs whose
// publish outcome was unknown.
type Verifier interface {
	Verify(ctx context.Context, postID string) (bool, error)
}

// New returns the publisher selected by configuration. dryRun forces the
// dry-run publisher regardless of publish.mode.
func New(cfg *config.Config, dryRun bool, logger *slog.Logger) Publisher {
	if dryRun || strings.EqualFold(cfg.Publish.Mode, config.PublishModeDryRun) {
		return NewDryRun(cfg.Paths.OutputDir, logger)
	}
	return NewInstagram(InstagramConfigFromConfig(cfg), logger)
}
