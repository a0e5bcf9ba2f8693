package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelsmith/internal/config"
)

func clearSecretEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENROUTER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "FAL_KEY", "FAL_API_KEY",
		"INSTAGRAM_ACCESS_TOKEN", "INSTAGRAM_USER_ID", "NTFY_TOPIC", "VIDEO_PUBLIC_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearSecretEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "reelsmith", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if want := filepath.Join(tempHome, ".local", "share", "reelsmith", "assets"); cfg.Paths.AssetsDir != want {
		t.Fatalf("unexpected assets dir: got %q want %q", cfg.Paths.AssetsDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "reelsmith", "state.db"); cfg.State.Path != want {
		t.Fatalf("unexpected state path: got %q want %q", cfg.State.Path, want)
	}
	if cfg.State.Backend != config.StateBackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", cfg.State.Backend)
	}
	if cfg.ReferencePerson.Frequency != 10 || cfg.Animation.Frequency != 5 {
		t.Fatalf("unexpected default frequencies: reference=%d animation=%d", cfg.ReferencePerson.Frequency, cfg.Animation.Frequency)
	}
	if cfg.Carousel.Enabled || cfg.FlashReel.Enabled {
		t.Fatal("expected carousel and flash reel disabled by default")
	}
	if cfg.Instagram.APIVersion != "v19.0" {
		t.Fatalf("unexpected api version %q", cfg.Instagram.APIVersion)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearSecretEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	body := `
[paths]
assets_dir = "` + filepath.Join(dir, "assets") + `"

[animation]
frequency = 3

[content]
hashtags = ["Stoic", "#stoic", " #Virtue "]

[logging]
format = "JSON"
level = "DEBUG"

[logging.stage_overrides]
Assets = "WARN"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.AssetsDir != filepath.Join(dir, "assets") {
		t.Fatalf("unexpected assets dir %q", cfg.Paths.AssetsDir)
	}
	if cfg.Animation.Frequency != 3 {
		t.Fatalf("expected animation frequency 3, got %d", cfg.Animation.Frequency)
	}
	if got := strings.Join(cfg.Content.Hashtags, " "); got != "#stoic #virtue" {
		t.Fatalf("unexpected hashtags %q", got)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
	if cfg.Logging.StageOverrides["assets"] != "warn" {
		t.Fatalf("expected normalized stage override, got %v", cfg.Logging.StageOverrides)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[reel]\nwidht = 1080\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestEnvVarsFillBlankSecrets(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("FAL_API_KEY", "fal-legacy")
	t.Setenv("INSTAGRAM_ACCESS_TOKEN", "ig-token")
	t.Setenv("INSTAGRAM_USER_ID", "1789")
	t.Setenv("VIDEO_PUBLIC_URL", "https://media.example.com/reels/")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "[llm]\napi_key = \"file-key\"\n\n[publish]\npublic_dir = \"" + filepath.Join(dir, "public") + "\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Errorf("file value should win over env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Fal.APIKey != "fal-legacy" {
		t.Errorf("expected FAL_API_KEY fallback, got %q", cfg.Fal.APIKey)
	}
	if cfg.Publish.PublicBaseURL != "https://media.example.com/reels" {
		t.Errorf("expected trimmed public url, got %q", cfg.Publish.PublicBaseURL)
	}
	if err := cfg.RequireRunCredentials(false); err != nil {
		t.Fatalf("expected credentials satisfied: %v", err)
	}
}

func TestRequireRunCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Fal.APIKey = "fal"
	if err := cfg.RequireRunCredentials(false); err == nil || !strings.Contains(err.Error(), "instagram") {
		t.Fatalf("expected instagram credential error, got %v", err)
	}
	if err := cfg.RequireRunCredentials(true); err != nil {
		t.Fatalf("dry run should not need instagram: %v", err)
	}

	cfg.Content.Provider = config.ProviderGemini
	if err := cfg.RequireRunCredentials(true); err == nil || !strings.Contains(err.Error(), "gemini.api_key") {
		t.Fatalf("expected gemini key error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
	if !strings.Contains(cfg.Paths.AssetsDir, "reelsmith") {
		t.Fatalf("expected assets dir to contain reelsmith, got %q", cfg.Paths.AssetsDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"enabled reference without frequency", func(c *config.Config) { c.ReferencePerson.Frequency = 0 }, "reference_person.frequency"},
		{"enabled animation negative frequency", func(c *config.Config) { c.Animation.Frequency = -2 }, "animation.frequency"},
		{"enabled carousel zero frequency", func(c *config.Config) { c.Carousel.Enabled = true; c.Carousel.Frequency = 0 }, "carousel.frequency"},
		{"zero fps", func(c *config.Config) { c.Reel.FPS = 0 }, "reel.fps"},
		{"unknown backend", func(c *config.Config) { c.State.Backend = "redis" }, "state.backend"},
		{"burst range inverted", func(c *config.Config) { c.Glitch.MaxBurstMS = 100 }, "glitch.max_burst_ms"},
		{"thumbnail past end", func(c *config.Config) { c.Reel.ThumbnailAtSeconds = 30 }, "thumbnail"},
		{"bad override level", func(c *config.Config) { c.Logging.StageOverrides = map[string]string{"render": "loud"} }, "stage_overrides"},
		{"caption too long", func(c *config.Config) { c.Content.MaxCaptionLength = 5000 }, "content.max_caption_length"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}

	cfg := config.Default()
	cfg.ReferencePerson.Enabled = false
	cfg.ReferencePerson.Frequency = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled feature with zero frequency should be accepted: %v", err)
	}
}

func TestDurationTolerance(t *testing.T) {
	cfg := config.Default()
	cfg.Reel.FPS = 25
	cfg.Validation.DurationToleranceFrames = 2
	if got := cfg.DurationTolerance(); got != 0.08 {
		t.Fatalf("expected 0.08s tolerance, got %v", got)
	}
}
