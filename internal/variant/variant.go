package variant

import (
	"fmt"
	"strings"

	"reelsmith/internal/config"
)

// Kind is the post format a run produces.
type Kind string

const (
	Standard        Kind = "standard"
	Animated        Kind = "animated"
	ReferencePerson Kind = "reference_person"
	FlashReel       Kind = "flash_reel"
	Carousel        Kind = "carousel"
)

// Kinds lists every variant in selection priority order, Standard last.
var Kinds = []Kind{ReferencePerson, Animated, Carousel, FlashReel, Standard}

// ParseKind accepts the canonical names plus dashed and spaced spellings.
func ParseKind(value string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	for _, kind := range Kinds {
		if string(kind) == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q", value)
}

// IsVideo reports whether the variant renders a video reel.
func (k Kind) IsVideo() bool { return k != Carousel }

func (k Kind) String() string { return string(k) }

// Reason records why a decision was made.
type Reason string

const (
	// ReasonFrequencyMatch covers every decision derived from the schedule,
	// including the Standard default when nothing matched.
	ReasonFrequencyMatch Reason = "frequency-match"
	ReasonFallback       Reason = "fallback"
	ReasonForced         Reason = "forced"
)

// Feature is one scheduled variant.
type Feature struct {
	Enabled   bool
	Frequency int64
}

// matches never fires for non-positive frequencies.
func (f Feature) matches(counter int64) bool {
	return f.Enabled && f.Frequency > 0 && counter%f.Frequency == 0
}

// Settings is the slice of configuration the selector depends on.
type Settings struct {
	ReferencePerson Feature
	Animated        Feature
	Carousel        Feature
	FlashReel       bool

	ReferenceMinImages int
	FlashImages        int
	FlashMusic         bool
	CarouselPoints     int
}

// SettingsFromConfig extracts selector settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ReferencePerson:    Feature{Enabled: cfg.ReferencePerson.Enabled, Frequency: int64(cfg.ReferencePerson.Frequency)},
		Animated:           Feature{Enabled: cfg.Animation.Enabled, Frequency: int64(cfg.Animation.Frequency)},
		Carousel:           Feature{Enabled: cfg.Carousel.Enabled, Frequency: int64(cfg.Carousel.Frequency)},
		FlashReel:          cfg.FlashReel.Enabled,
		ReferenceMinImages: cfg.ReferencePerson.MinImages,
		FlashImages:        cfg.FlashReel.ImagesPerReel,
		FlashMusic:         cfg.FlashReel.Music,
		CarouselPoints:     cfg.Carousel.MaxPoints,
	}
}

// Decision is the variant chosen for one run.
type Decision struct {
	Kind    Kind
	Reason  Reason
	Counter int64
	// From is the originally selected kind when Reason is ReasonFallback.
	From Kind

	requirements Requirements
}

// Select applies the schedule to counter. Priority is ReferencePerson,
// Animated, Carousel, FlashReel, then Standard.
func Select(counter int64, s Settings) Decision {
	kind := Standard
	switch {
	case s.ReferencePerson.matches(counter):
		kind = ReferencePerson
	case s.Animated.matches(counter):
		kind = Animated
	case s.Carousel.matches(counter):
		kind = Carousel
	case s.FlashReel:
		kind = FlashReel
	}
	return newDecision(kind, ReasonFrequencyMatch, counter, s)
}

// Force returns an operator-requested decision.
func Force(kind Kind, counter int64, s Settings) Decision {
	return newDecision(kind, ReasonForced, counter, s)
}

// Fallback degrades a failed decision to Standard for the current run.
func Fallback(from Decision, s Settings) Decision {
	d := newDecision(Standard, ReasonFallback, from.Counter, s)
	d.From = from.Kind
	return d
}

func newDecision(kind Kind, reason Reason, counter int64, s Settings) Decision {
	return Decision{
		Kind:         kind,
		Reason:       reason,
		Counter:      counter,
		requirements: requirementsFor(kind, s),
	}
}

// CanFallback reports whether a failure of this decision may degrade to Standard.
func (d Decision) CanFallback() bool {
	return d.Kind != Standard && d.Kind != Carousel
}

// Requirements returns the asset classes the decision needs.
func (d Decision) Requirements() Requirements { return d.requirements }

func (d Decision) String() string {
	if d.Reason == ReasonFallback && d.From != "" {
		return fmt.Sprintf("%s (fallback from %s, counter %d)", d.Kind, d.From, d.Counter)
	}
	return fmt.Sprintf("%s (%s, counter %d)", d.Kind, d.Reason, d.Counter)
}
