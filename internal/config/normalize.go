package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeContent()
	c.normalizeSecrets()
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
	}{
		{"paths.assets_dir", &c.Paths.AssetsDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.work_dir", &c.Paths.WorkDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"state.path", &c.State.Path},
		{"state.lock_path", &c.State.LockPath},
		{"publish.public_dir", &c.Publish.PublicDir},
		{"reel.font_file", &c.Reel.FontFile},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	if c.State.Backend == "" {
		c.State.Backend = defaultStateBackend
	}
	c.Assets.CatalogFile = strings.TrimSpace(c.Assets.CatalogFile)
	if c.Assets.CatalogFile == "" {
		c.Assets.CatalogFile = defaultCatalogFile
	}
	return nil
}

func (c *Config) normalizeContent() {
	c.Content.Provider = strings.ToLower(strings.TrimSpace(c.Content.Provider))
	if c.Content.Provider == "" {
		c.Content.Provider = defaultContentProvider
	}
	c.Content.Philosophers = dedupeTrimmed(c.Content.Philosophers, false)
	c.Content.Themes = dedupeTrimmed(c.Content.Themes, false)
	tags := make([]string, 0, len(c.Content.Hashtags))
	for _, tag := range c.Content.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}
	c.Content.Hashtags = dedupeTrimmed(tags, true)
	if c.Content.MaxCaptionLength <= 0 {
		c.Content.MaxCaptionLength = defaultCaptionLimit
	}
	c.FlashReel.IntroTemplate = strings.TrimSpace(c.FlashReel.IntroTemplate)
	c.FlashReel.EndingPhrase = strings.TrimSpace(c.FlashReel.EndingPhrase)
}

// normalizeSecrets fills credentials from the environment when the file leaves them blank.
func (c *Config) normalizeSecrets() {
	c.LLM.APIKey = envFallback(c.LLM.APIKey, "OPENROUTER_API_KEY")
	c.Gemini.APIKey = envFallback(c.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	c.Fal.APIKey = envFallback(c.Fal.APIKey, "FAL_KEY", "FAL_API_KEY")
	c.Instagram.AccessToken = envFallback(c.Instagram.AccessToken, "INSTAGRAM_ACCESS_TOKEN")
	c.Instagram.UserID = envFallback(c.Instagram.UserID, "INSTAGRAM_USER_ID")
	c.Notifications.NtfyTopic = envFallback(c.Notifications.NtfyTopic, "NTFY_TOPIC")
	c.Publish.PublicBaseURL = strings.TrimRight(envFallback(c.Publish.PublicBaseURL, "VIDEO_PUBLIC_URL"), "/")
}

func (c *Config) normalizePublish() {
	c.Publish.Mode = strings.ToLower(strings.TrimSpace(c.Publish.Mode))
	switch c.Publish.Mode {
	case "", PublishModeInstagram:
		c.Publish.Mode = PublishModeInstagram
	case "dryrun", "dry_run", "test":
		c.Publish.Mode = PublishModeDryRun
	}
	c.Instagram.APIVersion = strings.TrimSpace(c.Instagram.APIVersion)
	if c.Instagram.APIVersion == "" {
		c.Instagram.APIVersion = defaultInstagramAPIVersion
	}
	c.Instagram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Instagram.BaseURL), "/")
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.Fal.BaseURL = strings.TrimRight(strings.TrimSpace(c.Fal.BaseURL), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			stage = strings.ToLower(strings.TrimSpace(stage))
			level = strings.ToLower(strings.TrimSpace(level))
			if stage == "" || level == "" {
				continue
			}
			overrides[stage] = level
		}
		c.Logging.StageOverrides = overrides
	}
}

func envFallback(current string, keys ...string) string {
	current = strings.TrimSpace(current)
	if current != "" {
		return current
	}
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func dedupeTrimmed(values []string, lower bool) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if lower {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}
	return out
}
