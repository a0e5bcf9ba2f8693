package config

const (
	defaultConfigPath            = "~/.config/reelsmith/config.toml"
	defaultAssetsDir             = "~/.local/share/reelsmith/assets"
	defaultOutputDir             = "~/.local/share/reelsmith/output"
	defaultWorkDir               = "~/.local/share/reelsmith/work"
	defaultLogDir                = "~/.local/share/reelsmith/logs"
	defaultStatePath             = "~/.local/share/reelsmith/state.db"
	defaultLockPath              = "~/.local/share/reelsmith/run.lock"
	defaultLogRetentionDays      = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMReferer            = "https://github.com/reelsmith/reelsmith"
	defaultLLMTitle              = "reelsmith"
	defaultLLMTimeoutSeconds     = 60
	defaultGeminiModel           = "gemini-1.5-flash"
	defaultFalBaseURL            = "https://queue.fal.run"
	defaultFalImageToVideoModel  = "fal-ai/kling-video/v2.1/standard/image-to-video"
	defaultFalReferenceModel     = "fal-ai/vidu/reference-to-video"
	defaultFalTTSModel           = "resemble-ai/chatterboxhd/text-to-speech"
	defaultFalVoice              = "Cliff"
	defaultFPS                   = 30
	defaultInstagramBaseURL      = "https://graph.facebook.com"
	defaultInstagramAPIVersion   = "v19.0"
	defaultCaptionLimit          = 2200
	defaultIntroTemplate         = "As {author} once said..."
	defaultEndingPhrase          = "Follow for more."
	defaultCatalogFile           = "catalog.yaml"
	defaultStateBackend          = StateBackendSQLite
	defaultContentProvider       = ProviderOpenRouter
	defaultPublishMode           = PublishModeInstagram
	defaultNotifyRequestTimeout  = 10
	defaultRetryStageTimeoutSecs = 600
)

// Enumerated config values.
const (
	StateBackendSQLite   = "sqlite"
	StateBackendFile     = "file"
	ProviderOpenRouter   = "openrouter"
	ProviderGemini       = "gemini"
	PublishModeInstagram = "instagram"
	PublishModeDryRun    = "dry-run"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			AssetsDir: defaultAssetsDir,
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
		},
		State: State{
			Backend:  defaultStateBackend,
			Path:     defaultStatePath,
			LockPath: defaultLockPath,
		},
		Content: Content{
			Provider: defaultContentProvider,
			Philosophers: []string{
				"Marcus Aurelius", "Seneca", "Epictetus", "Zeno of Citium", "Musonius Rufus",
			},
			RecentWindow:       30,
			DuplicateThreshold: 0.85,
			Hashtags:           []string{"#stoicism", "#philosophy", "#mindset", "#dailywisdom"},
			CloserLine:         "Save this for the days you need it.",
			MaxCaptionLength:   defaultCaptionLimit,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Gemini: Gemini{
			Model:          defaultGeminiModel,
			Temperature:    0.9,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Fal: Fal{
			BaseURL:               defaultFalBaseURL,
			ImageToVideoModel:     defaultFalImageToVideoModel,
			ReferenceToVideoModel: defaultFalReferenceModel,
			TTSModel:              defaultFalTTSModel,
			Voice:                 defaultFalVoice,
			PollIntervalSeconds:   5,
			TimeoutSeconds:        600,
		},
		Reel: Reel{
			Width:              1080,
			Height:             1920,
			FPS:                defaultFPS,
			DurationSeconds:    10,
			ZoomFactor:         1.15,
			FontSize:           72,
			TextColor:          "white",
			BorderWidth:        4,
			VideoCodec:         "libx264",
			Preset:             "medium",
			CRF:                20,
			AudioBitrate:       "192k",
			MusicVolume:        0.25,
			FadeInSeconds:      1.5,
			FadeOutSeconds:     2.0,
			ThumbnailAtSeconds: 2,
		},
		Glitch: Glitch{
			Enabled:    true,
			MaxBursts:  3,
			MinGapMS:   1500,
			MinBurstMS: 150,
			MaxBurstMS: 300,
			MaxShift:   12,
		},
		Animation: Animation{
			Enabled:     true,
			Frequency:   5,
			ClipSeconds: 5,
			Prompt:      "slow cinematic camera drift, subtle atmospheric motion",
		},
		ReferencePerson: ReferencePerson{
			Enabled:     true,
			Frequency:   10,
			MinImages:   2,
			ClipSeconds: 5,
			Prompt:      "the philosopher in contemplation, cinematic lighting",
		},
		FlashReel: FlashReel{
			Enabled:              false,
			ImageFlashDurationMS: 300,
			WordsPerFlash:        2,
			DramaticPauseMS:      800,
			IntroTemplate:        defaultIntroTemplate,
			EndingPhrase:         defaultEndingPhrase,
			TextSizeMultiplier:   1.3,
			Music:                true,
		},
		Carousel: Carousel{
			Enabled:   false,
			Frequency: 7,
			Width:     1080,
			Height:    1350,
			MaxPoints: 5,
		},
		Assets: Assets{
			CatalogFile:      defaultCatalogFile,
			ProbeConcurrency: 4,
			AIInjectedWeight: 0.3,
		},
		Retry: Retry{
			Attempts:            3,
			BackoffMS:           2000,
			MaxBackoffMS:        30000,
			StageTimeoutSeconds: defaultRetryStageTimeoutSecs,
		},
		Validation: Validation{
			DurationToleranceFrames: 1,
		},
		Publish: Publish{
			Mode: defaultPublishMode,
		},
		Instagram: Instagram{
			BaseURL:              defaultInstagramBaseURL,
			APIVersion:           defaultInstagramAPIVersion,
			StatusPollSeconds:    5,
			StatusTimeoutSeconds: 300,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunCompleted:   true,
			Failures:       true,
			Fallbacks:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
