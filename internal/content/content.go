package content

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"reelsmith/internal/config"
	"reelsmith/internal/timing"
)

// Content is one generated quote package.
type Content struct {
	Quote            string   `json:"quote" validate:"required,max=300"`
	Author           string   `json:"author" validate:"required,max=120"`
	Motivation       string   `json:"motivation" validate:"required,max=300"`
	Interpretation   string   `json:"interpretation" validate:"max=1000"`
	TechnicalInsight string   `json:"technical_insight" validate:"max=1000"`
	Applications     []string `json:"practical_applications" validate:"max=10,dive,required"`
	Mood             string   `json:"mood" validate:"max=40"`
	ImageCategory    string   `json:"image_category" validate:"max=60"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks required fields and length limits.
func (c Content) Validate() error {
	return structValidator().Struct(c)
}

func (c *Content) normalize() {
	c.Quote = strings.Trim(strings.TrimSpace(c.Quote), `"“”`)
	c.Author = strings.TrimSpace(c.Author)
	c.Motivation = strings.TrimSpace(c.Motivation)
	c.Interpretation = strings.TrimSpace(c.Interpretation)
	c.TechnicalInsight = strings.TrimSpace(c.TechnicalInsight)
	c.Mood = strings.ToLower(strings.TrimSpace(c.Mood))
	c.ImageCategory = strings.ToLower(strings.TrimSpace(c.ImageCategory))
	apps := c.Applications[:0]
	for _, app := range c.Applications {
		if app = strings.TrimSpace(app); app != "" {
			apps = append(apps, app)
		}
	}
	c.Applications = apps
}

// Intro renders the voiceover intro for the author. An empty template
// disables the intro.
func Intro(template, author string) string {
	return strings.TrimSpace(strings.ReplaceAll(template, "{author}", author))
}

// Transcript lays out the narrated segments: intro, quote, motivation and
// the closing phrase. Intro and ending are spoken only.
func (c Content) Transcript(cfg *config.Config) timing.Transcript {
	var intro, ending string
	if cfg != nil {
		intro = Intro(cfg.FlashReel.IntroTemplate, c.Author)
		ending = cfg.FlashReel.EndingPhrase
	}
	segments := []timing.Segment{
		{Kind: timing.SegmentIntro, Words: timing.SplitWords(intro)},
		{Kind: timing.SegmentQuote, Words: timing.SplitWords(c.Quote)},
		{Kind: timing.SegmentMotivation, Words: timing.SplitWords(c.Motivation)},
		{Kind: timing.SegmentEnding, Words: timing.SplitWords(ending)},
	}
	out := timing.Transcript{Segments: make([]timing.Segment, 0, len(segments))}
	for _, seg := range segments {
		if len(seg.Words) > 0 {
			out.Segments = append(out.Segments, seg)
		}
	}
	return out
}
