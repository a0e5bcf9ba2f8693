package render

import "reelsmith/internal/config"

// GlitchSettings controls the chromatic-shift bursts on standard reels.
type GlitchSettings struct {
	Enabled   bool
	MaxBursts int
	MinGap    float64
	MinBurst  float64
	MaxBurst  float64
	MaxShift  int
}

// Settings is the render configuration snapshot.
type Settings struct {
	Width        int
	Height       int
	FPS          int
	Duration     float64
	ZoomFactor   float64
	FontFile     string
	FontSize     int
	TextColor    string
	BorderWidth  int
	VideoCodec   string
	Preset       string
	CRF          int
	AudioBitrate string
	MusicVolume  float64
	FadeIn       float64
	FadeOut      float64
	ThumbnailAt  float64

	Glitch GlitchSettings

	FlashTextMultiplier float64

	CarouselWidth  int
	CarouselHeight int
	CarouselPoints int

	ToleranceFrames int
}

// SettingsFromConfig copies the render-relevant configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Width:        cfg.Reel.Width,
		Height:       cfg.Reel.Height,
		FPS:          cfg.Reel.FPS,
		Duration:     cfg.Reel.DurationSeconds,
		ZoomFactor:   cfg.Reel.ZoomFactor,
		FontFile:     cfg.Reel.FontFile,
		FontSize:     cfg.Reel.FontSize,
		TextColor:    cfg.Reel.TextColor,
		BorderWidth:  cfg.Reel.BorderWidth,
		VideoCodec:   cfg.Reel.VideoCodec,
		Preset:       cfg.Reel.Preset,
		CRF:          cfg.Reel.CRF,
		AudioBitrate: cfg.Reel.AudioBitrate,
		MusicVolume:  cfg.Reel.MusicVolume,
		FadeIn:       cfg.Reel.FadeInSeconds,
		FadeOut:      cfg.Reel.FadeOutSeconds,
		ThumbnailAt:  cfg.Reel.ThumbnailAtSeconds,
		Glitch: GlitchSettings{
			Enabled:   cfg.Glitch.Enabled,
			MaxBursts: cfg.Glitch.MaxBursts,
			MinGap:    float64(cfg.Glitch.MinGapMS) / 1000,
			MinBurst:  float64(cfg.Glitch.MinBurstMS) / 1000,
			MaxBurst:  float64(cfg.Glitch.MaxBurstMS) / 1000,
			MaxShift:  cfg.Glitch.MaxShift,
		},
		FlashTextMultiplier: cfg.FlashReel.TextSizeMultiplier,
		CarouselWidth:       cfg.Carousel.Width,
		CarouselHeight:      cfg.Carousel.Height,
		CarouselPoints:      cfg.Carousel.MaxPoints,
		ToleranceFrames:     cfg.Validation.DurationToleranceFrames,
	}
}

// FrameInterval returns the length of one frame in seconds.
func (s Settings) FrameInterval() float64 {
	if s.FPS <= 0 {
		return 1.0 / 30
	}
	return 1 / float64(s.FPS)
}

// Tolerance is the allowed absolute duration error in seconds.
func (s Settings) Tolerance() float64 {
	return float64(s.ToleranceFrames) * s.FrameInterval()
}

// frames converts seconds to a whole frame count.
func (s Settings) frames(seconds float64) int {
	fps := s.FPS
	if fps <= 0 {
		fps = 30
	}
	return int(seconds*float64(fps) + 0.5)
}
