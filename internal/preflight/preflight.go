package preflight

import (
	"context"
	"path/filepath"

	"reelsmith/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to the given config. Remote checks
// are skipped when online is false.
func RunAll(ctx context.Context, cfg *config.Config, online bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Assets directory", cfg.Paths.AssetsDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("State directory", filepath.Dir(cfg.State.Path)),
	}

	if cfg.Publish.Mode == config.PublishModeInstagram {
		if cfg.Publish.PublicDir != "" {
			results = append(results, CheckDirectoryAccess("Public media directory", cfg.Publish.PublicDir))
		} else {
			results = append(results, Result{Name: "Public media directory", Detail: "publish.public_dir not configured"})
		}
		if online {
			results = append(results, CheckInstagram(ctx, cfg.Instagram))
		} else {
			results = append(results, credentialPresence("Instagram", cfg.Instagram.AccessToken != "" && cfg.Instagram.UserID != ""))
		}
	}

	if needsFal(cfg) {
		results = append(results, credentialPresence("fal.ai", cfg.Fal.APIKey != ""))
	}

	if online {
		switch cfg.Content.Provider {
		case config.ProviderGemini:
			results = append(results, CheckGemini(ctx, cfg.Gemini))
		default:
			results = append(results, CheckLLM(ctx, "Content LLM", cfg.GetLLM()))
		}
	}

	return results
}

// needsFal reports whether any enabled variant calls fal.ai.
func needsFal(cfg *config.Config) bool {
	return cfg.Animation.Enabled || cfg.ReferencePerson.Enabled || cfg.FlashReel.Enabled
}

func credentialPresence(name string, ok bool) Result {
	if !ok {
		return Result{Name: name, Detail: "credentials missing"}
	}
	return Result{Name: name, Passed: true, Detail: "credentials configured"}
}
