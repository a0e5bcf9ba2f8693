package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	AssetsDir string `toml:"assets_dir" validate:"required"`
	OutputDir string `toml:"output_dir" validate:"required"`
	WorkDir   string `toml:"work_dir" validate:"required"`
	LogDir    string `toml:"log_dir"`
}

// State selects the run state backend.
type State struct {
	Backend  string `toml:"backend" validate:"oneof=sqlite file"`
	Path     string `toml:"path" validate:"required"`
	LockPath string `toml:"lock_path" validate:"required"`
}

// Content controls quote generation and captions.
type Content struct {
	Provider           string   `toml:"provider" validate:"oneof=openrouter gemini"`
	Philosophers       []string `toml:"philosophers" validate:"min=1,dive,required"`
	Themes             []string `toml:"themes"`
	RecentWindow       int      `toml:"recent_window" validate:"gte=0"`
	DuplicateThreshold float64  `toml:"duplicate_threshold" validate:"gt=0,lte=1"`
	Hashtags           []string `toml:"hashtags"`
	CloserLine         string   `toml:"closer_line"`
	MaxCaptionLength   int      `toml:"max_caption_length" validate:"gt=0,lte=2200"`
}

// LLM contains OpenRouter connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url" validate:"required,url"`
	Model          string `toml:"model" validate:"required"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gt=0"`
}

// Gemini contains Google Gemini settings.
type Gemini struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model" validate:"required"`
	Temperature    float32 `toml:"temperature" validate:"gte=0,lte=2"`
	TimeoutSeconds int     `toml:"timeout_seconds" validate:"gt=0"`
}

// Fal contains fal.ai queue settings for clip and speech generation.
type Fal struct {
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url" validate:"required,url"`
	ImageToVideoModel     string `toml:"image_to_video_model" validate:"required"`
	ReferenceToVideoModel string `toml:"reference_to_video_model" validate:"required"`
	TTSModel              string `toml:"tts_model" validate:"required"`
	Voice                 string `toml:"voice"`
	PollIntervalSeconds   int    `toml:"poll_interval_seconds" validate:"gt=0"`
	TimeoutSeconds        int    `toml:"timeout_seconds" validate:"gt=0"`
}

// Reel holds output geometry, text styling, and audio mixing.
type Reel struct {
	Width              int     `toml:"width" validate:"gt=0"`
	Height             int     `toml:"height" validate:"gt=0"`
	FPS                int     `toml:"fps" validate:"gt=0"`
	DurationSeconds    float64 `toml:"duration_seconds" validate:"gt=0"`
	ZoomFactor         float64 `toml:"zoom_factor" validate:"gte=1"`
	FontFile           string  `toml:"font_file"`
	FontSize           int     `toml:"font_size" validate:"gt=0"`
	TextColor          string  `toml:"text_color"`
	BorderWidth        int     `toml:"border_width" validate:"gte=0"`
	VideoCodec         string  `toml:"video_codec"`
	Preset             string  `toml:"preset"`
	CRF                int     `toml:"crf" validate:"gte=0,lte=51"`
	AudioBitrate       string  `toml:"audio_bitrate"`
	MusicVolume        float64 `toml:"music_volume" validate:"gte=0,lte=1"`
	FadeInSeconds      float64 `toml:"fade_in_seconds" validate:"gte=0"`
	FadeOutSeconds     float64 `toml:"fade_out_seconds" validate:"gte=0"`
	ThumbnailAtSeconds float64 `toml:"thumbnail_at_seconds" validate:"gte=0"`
}

// Glitch configures rgbashift bursts on the standard reel.
type Glitch struct {
	Enabled    bool `toml:"enabled"`
	MaxBursts  int  `toml:"max_bursts" validate:"gte=0"`
	MinGapMS   int  `toml:"min_gap_ms" validate:"gte=0"`
	MinBurstMS int  `toml:"min_burst_ms" validate:"gt=0"`
	MaxBurstMS int  `toml:"max_burst_ms" validate:"gtefield=MinBurstMS"`
	MaxShift   int  `toml:"max_shift" validate:"gte=0"`
}

// Animation configures the animated background variant.
type Animation struct {
	Enabled     bool    `toml:"enabled"`
	Frequency   int     `toml:"frequency"`
	ClipSeconds float64 `toml:"clip_seconds" validate:"gt=0"`
	Prompt      string  `toml:"prompt"`
}

// ReferencePerson configures the reference-to-video variant.
type ReferencePerson struct {
	Enabled     bool    `toml:"enabled"`
	Frequency   int     `toml:"frequency"`
	MinImages   int     `toml:"min_images" validate:"gt=0"`
	ClipSeconds float64 `toml:"clip_seconds" validate:"gt=0"`
	Prompt      string  `toml:"prompt"`
}

// FlashReel configures the rapid image flash variant.
type FlashReel struct {
	Enabled              bool    `toml:"enabled"`
	ImageFlashDurationMS int     `toml:"image_flash_duration_ms" validate:"gt=0"`
	WordsPerFlash        int     `toml:"words_per_flash" validate:"gt=0"`
	ImagesPerReel        int     `toml:"images_per_reel" validate:"gte=0"`
	DramaticPauseMS      int     `toml:"dramatic_pause_ms" validate:"gte=0"`
	IntroTemplate        string  `toml:"intro_template"`
	EndingPhrase         string  `toml:"ending_phrase"`
	TextSizeMultiplier   float64 `toml:"text_size_multiplier" validate:"gt=0"`
	Music                bool    `toml:"music"`
}

// Carousel configures the slide carousel variant.
type Carousel struct {
	Enabled   bool `toml:"enabled"`
	Frequency int  `toml:"frequency"`
	Width     int  `toml:"width" validate:"gt=0"`
	Height    int  `toml:"height" validate:"gt=0"`
	MaxPoints int  `toml:"max_points" validate:"gt=0,lte=9"`
}

// Assets configures the local media pool.
type Assets struct {
	CatalogFile      string  `toml:"catalog_file"`
	ProbeConcurrency int     `toml:"probe_concurrency" validate:"gt=0"`
	AIInjectedWeight float64 `toml:"ai_injected_weight" validate:"gte=0,lte=1"`
	DefaultCategory  string  `toml:"default_category"`
}

// Retry configures per-stage retry policy.
type Retry struct {
	Attempts            int `toml:"attempts" validate:"gt=0"`
	BackoffMS           int `toml:"backoff_ms" validate:"gte=0"`
	MaxBackoffMS        int `toml:"max_backoff_ms" validate:"gtefield=BackoffMS"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds" validate:"gt=0"`
}

// Validation configures output checks.
type Validation struct {
	DurationToleranceFrames int `toml:"duration_tolerance_frames" validate:"gte=0"`
}

// Publish selects the publishing target.
type Publish struct {
	Mode          string `toml:"mode" validate:"oneof=instagram dry-run"`
	PublicDir     string `toml:"public_dir"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Instagram contains Graph API credentials and polling knobs.
type Instagram struct {
	AccessToken          string `toml:"access_token"`
	UserID               string `toml:"user_id"`
	BaseURL              string `toml:"base_url" validate:"required,url"`
	APIVersion           string `toml:"api_version" validate:"required"`
	StatusPollSeconds    int    `toml:"status_poll_seconds" validate:"gt=0"`
	StatusTimeoutSeconds int    `toml:"status_timeout_seconds" validate:"gt=0"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout" validate:"gt=0"`
	RunCompleted   bool   `toml:"run_completed"`
	Failures       bool   `toml:"failures"`
	Fallbacks      bool   `toml:"fallbacks"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths, State: filesystem layout and the run state backend
//   - Content, LLM, Gemini: quote generation and captions
//   - Fal: clip and narration generation
//   - Reel, Glitch: render geometry and effects
//   - Animation, ReferencePerson, FlashReel, Carousel: variant schedules
//   - Assets: local media pool
//   - Retry, Validation: stage policy
//   - Publish, Instagram: publishing target
//   - Notifications, Logging: operator feedback
type Config struct {
	Paths           Paths           `toml:"paths"`
	State           State           `toml:"state"`
	Content         Content         `toml:"content"`
	LLM             LLM             `toml:"llm"`
	Gemini          Gemini          `toml:"gemini"`
	Fal             Fal             `toml:"fal"`
	Reel            Reel            `toml:"reel"`
	Glitch          Glitch          `toml:"glitch"`
	Animation       Animation       `toml:"animation"`
	ReferencePerson ReferencePerson `toml:"reference_person"`
	FlashReel       FlashReel       `toml:"flash_reel"`
	Carousel        Carousel        `toml:"carousel"`
	Assets          Assets          `toml:"assets"`
	Retry           Retry           `toml:"retry"`
	Validation      Validation      `toml:"validation"`
	Publish         Publish         `toml:"publish"`
	Instagram       Instagram       `toml:"instagram"`
	Notifications   Notifications   `toml:"notifications"`
	Logging         Logging         `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories a run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.WorkDir, c.Paths.LogDir, filepath.Dir(c.State.Path), filepath.Dir(c.State.LockPath)}
	if c.Publish.Mode == PublishModeInstagram && strings.TrimSpace(c.Publish.PublicDir) != "" {
		dirs = append(dirs, c.Publish.PublicDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for rendering.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// StageTimeout returns the per-stage deadline.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Retry.StageTimeoutSeconds) * time.Second
}

// FrameInterval returns the duration of one output frame in seconds.
func (c *Config) FrameInterval() float64 {
	if c.Reel.FPS <= 0 {
		return 1.0 / defaultFPS
	}
	return 1.0 / float64(c.Reel.FPS)
}

// DurationTolerance returns the accepted rendered duration drift in seconds.
func (c *Config) DurationTolerance() float64 {
	return float64(c.Validation.DurationToleranceFrames) * c.FrameInterval()
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the OpenRouter connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the OpenRouter connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
