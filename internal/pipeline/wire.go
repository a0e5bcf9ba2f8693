package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"reelsmith/internal/assets"
	"reelsmith/internal/config"
	"reelsmith/internal/content"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/notifications"
	"reelsmith/internal/publish"
	"reelsmith/internal/render"
	"reelsmith/internal/runstate"
	"reelsmith/internal/services/fal"
)

// Build assembles a pipeline with the production collaborators. The returned
// cleanup closes the content client.
func Build(ctx context.Context, cfg *config.Config, store runstate.Store, dryRun bool, logger *slog.Logger) (*Pipeline, func() error, error) {
	generator, closeContent, err := content.New(ctx, cfg, store, logger)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	runner := ffmpeg.Exec{Binary: cfg.FFmpegBinary()}
	prober := ffprobe.Prober{Binary: cfg.FFprobeBinary()}

	deps := assets.Deps{Prober: prober, Ledger: store, Rand: rng, Logger: logger}
	if key := strings.TrimSpace(cfg.Fal.APIKey); key != "" {
		client := fal.NewClient(fal.Config{
			APIKey:       key,
			BaseURL:      cfg.Fal.BaseURL,
			PollInterval: time.Duration(cfg.Fal.PollIntervalSeconds) * time.Second,
			Timeout:      time.Duration(cfg.Fal.TimeoutSeconds) * time.Second,
		})
		deps.Clips = client
		deps.Narrator = assets.NewNarrator(cfg, client, runner, prober, logger)
	}
	provider, err := assets.NewLocalProvider(cfg, deps)
	if err != nil {
		_ = closeContent()
		return nil, nil, err
	}

	p, err := New(cfg, Deps{
		Store:     store,
		Content:   generator,
		Assets:    provider,
		Renderer:  render.NewEngine(render.SettingsFromConfig(cfg), runner, prober, logger, rng),
		Publisher: publish.New(cfg, dryRun, logger),
		Notifier:  notifications.NewService(cfg),
		Logger:    logger,
		Rand:      rng,
	})
	if err != nil {
		_ = closeContent()
		return nil, nil, err
	}
	return p, closeContent, nil
}
