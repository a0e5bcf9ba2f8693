package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	structValidatorOnce sync.Once
	structValidator     *validator.Validate
)

func configValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return structValidator
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStruct(); err != nil {
		return err
	}
	if err := c.validateSchedules(); err != nil {
		return err
	}
	if err := c.validateReel(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStruct() error {
	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	first := fieldErrs[0]
	key := strings.TrimPrefix(first.Namespace(), "Config.")
	if first.Param() != "" {
		return fmt.Errorf("%s failed %s=%s (got %v)", key, first.Tag(), first.Param(), first.Value())
	}
	return fmt.Errorf("%s failed %s (got %v)", key, first.Tag(), first.Value())
}

// validateSchedules rejects enabled variants that could never be selected.
func (c *Config) validateSchedules() error {
	if c.ReferencePerson.Enabled && c.ReferencePerson.Frequency <= 0 {
		return errors.New("reference_person.frequency must be positive when reference_person.enabled is true")
	}
	if c.Animation.Enabled && c.Animation.Frequency <= 0 {
		return errors.New("animation.frequency must be positive when animation.enabled is true")
	}
	if c.Carousel.Enabled && c.Carousel.Frequency <= 0 {
		return errors.New("carousel.frequency must be positive when carousel.enabled is true")
	}
	return nil
}

func (c *Config) validateReel() error {
	if c.Reel.ThumbnailAtSeconds >= c.Reel.DurationSeconds {
		return errors.New("reel.thumbnail_at_seconds must fall inside reel.duration_seconds")
	}
	if c.Glitch.Enabled && c.Glitch.MaxBursts > 0 {
		budget := c.Glitch.MaxBursts*c.Glitch.MinBurstMS + (c.Glitch.MaxBursts-1)*c.Glitch.MinGapMS
		if float64(budget)/1000 > c.Reel.DurationSeconds {
			return errors.New("glitch.max_bursts and glitch.min_gap_ms do not fit inside reel.duration_seconds")
		}
	}
	return nil
}

func (c *Config) validatePublish() error {
	if c.Publish.Mode != PublishModeInstagram {
		return nil
	}
	if strings.TrimSpace(c.Publish.PublicBaseURL) != "" && strings.TrimSpace(c.Publish.PublicDir) == "" {
		return errors.New("publish.public_dir must be set when publish.public_base_url is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	for stage, level := range c.Logging.StageOverrides {
		switch level {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("logging.stage_overrides.%s: unsupported level %q", stage, level)
		}
	}
	return nil
}

// RequireRunCredentials checks the secrets a full run needs. Listing and
// planning commands skip it so they work without credentials.
func (c *Config) RequireRunCredentials(dryRun bool) error {
	configPath, err := DefaultConfigPath()
	if err != nil {
		configPath = defaultConfigPath
	}
	switch c.Content.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY or edit %s (create with 'reelsmith config init')", configPath)
		}
	default:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required. Set OPENROUTER_API_KEY or edit %s (create with 'reelsmith config init')", configPath)
		}
	}
	if c.needsFal() && c.Fal.APIKey == "" {
		return errors.New("fal.api_key is required for animated, reference or flash reels (set FAL_KEY)")
	}
	if dryRun || c.Publish.Mode == PublishModeDryRun {
		return nil
	}
	if c.Instagram.AccessToken == "" || c.Instagram.UserID == "" {
		return errors.New("instagram.access_token and instagram.user_id are required (set INSTAGRAM_ACCESS_TOKEN and INSTAGRAM_USER_ID)")
	}
	if c.Publish.PublicBaseURL == "" {
		return errors.New("publish.public_base_url is required so Instagram can fetch the media (set VIDEO_PUBLIC_URL)")
	}
	return nil
}

func (c *Config) needsFal() bool {
	return c.Animation.Enabled || c.ReferencePerson.Enabled || c.FlashReel.Enabled
}
