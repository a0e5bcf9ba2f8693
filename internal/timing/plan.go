package timing

import (
	"math"
	"strings"
	"unicode/utf8"

	"reelsmith/internal/config"
)

// Config holds the timing knobs shared by every renderer.
type Config struct {
	WordsPerFlash int
	PauseSeconds  float64
	FlashSeconds  float64
	ImagesPerReel int
	FPS           int
}

// ConfigFromSettings builds the timing configuration from the loaded settings.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		WordsPerFlash: cfg.FlashReel.WordsPerFlash,
		PauseSeconds:  float64(cfg.FlashReel.DramaticPauseMS) / 1000,
		FlashSeconds:  float64(cfg.FlashReel.ImageFlashDurationMS) / 1000,
		ImagesPerReel: cfg.FlashReel.ImagesPerReel,
		FPS:           cfg.Reel.FPS,
	}
}

// FrameInterval is the duration of one frame in seconds.
func (c Config) FrameInterval() float64 {
	if c.FPS <= 0 {
		return 1.0 / 30
	}
	return 1 / float64(c.FPS)
}

// Window is a half-open time range in seconds.
type Window struct {
	Start float64
	End   float64
}

// Duration returns End-Start.
func (w Window) Duration() float64 { return w.End - w.Start }

// WordGroup is a run of words shown together.
type WordGroup struct {
	Words     []string
	Start     float64
	End       float64
	Segment   SegmentKind
	AudioOnly bool
}

// Text joins the group words.
func (g WordGroup) Text() string { return strings.Join(g.Words, " ") }

// Duration returns how long the group is on screen (or spoken).
func (g WordGroup) Duration() float64 { return g.End - g.Start }

// Plan is the complete timeline for one render.
type Plan struct {
	Groups  []WordGroup
	Flashes []Flash
	Pause   Window
	Total   float64
}

// FirstGroup returns the first group of the given segment.
func (p Plan) FirstGroup(kind SegmentKind) (WordGroup, bool) {
	for _, g := range p.Groups {
		if g.Segment == kind {
			return g, true
		}
	}
	return WordGroup{}, false
}

// VisibleGroups returns the groups that are drawn on screen.
func (p Plan) VisibleGroups() []WordGroup {
	out := make([]WordGroup, 0, len(p.Groups))
	for _, g := range p.Groups {
		if !g.AudioOnly {
			out = append(out, g)
		}
	}
	return out
}

// Covered returns the summed group durations plus the pause.
func (p Plan) Covered() float64 {
	sum := p.Pause.Duration()
	for _, g := range p.Groups {
		sum += g.Duration()
	}
	return sum
}

// Align distributes audioDuration over the transcript word groups.
//
// Each segment gets a span: its measured duration when every segment has one
// and they add up to the audio, otherwise a share of the audio proportional to
// its character count. The dramatic pause is taken from the end of the quote
// span. Inside a span, groups share the time by character length and the last
// group ends exactly at the span end.
func Align(t Transcript, audioDuration float64, cfg Config) (Plan, error) {
	const op = "align"
	if audioDuration <= 0 || math.IsNaN(audioDuration) || math.IsInf(audioDuration, 0) {
		return Plan{}, errorf(op, "audio duration must be positive, got %.3f", audioDuration)
	}
	segments := t.spoken()
	if len(segments) == 0 {
		return Plan{}, errorf(op, "transcript has no words")
	}
	perGroup := cfg.WordsPerFlash
	if perGroup <= 0 {
		perGroup = 1
	}

	pause := 0.0
	if hasPauseBoundary(segments) {
		pause = max(cfg.PauseSeconds, 0)
	}
	if pause >= audioDuration {
		return Plan{}, errorf(op, "dramatic pause %.3fs does not fit in %.3fs of audio", pause, audioDuration)
	}

	spans := segmentSpans(segments, audioDuration, pause, cfg.FrameInterval())

	plan := Plan{Total: audioDuration}
	cursor := 0.0
	for i, seg := range segments {
		start := cursor
		end := start + spans[i]
		if i == len(segments)-1 {
			end = audioDuration
		}
		textEnd := end
		if seg.Kind == SegmentQuote && pause > 0 {
			textEnd = end - pause
			if textEnd <= start {
				return Plan{}, errorf(op, "quote span %.3fs is shorter than the %.3fs pause", end-start, pause)
			}
			plan.Pause = Window{Start: textEnd, End: end}
		}
		plan.Groups = append(plan.Groups, spread(seg, perGroup, start, textEnd)...)
		cursor = end
	}
	return plan, nil
}

func hasPauseBoundary(segments []Segment) bool {
	for i := 0; i+1 < len(segments); i++ {
		if segments[i].Kind == SegmentQuote && segments[i+1].Kind == SegmentMotivation {
			return true
		}
	}
	return false
}

// segmentSpans returns per-segment durations summing to audio. The quote span
// includes the pause.
func segmentSpans(segments []Segment, audio, pause, frame float64) []float64 {
	spans := make([]float64, len(segments))
	measured := 0.0
	complete := true
	for i, seg := range segments {
		if seg.Duration <= 0 {
			complete = false
			break
		}
		spans[i] = seg.Duration
		measured += seg.Duration
	}
	if complete && math.Abs(measured-audio) <= frame {
		return spans
	}

	total := 0.0
	for _, seg := range segments {
		total += seg.weight()
	}
	speech := audio - pause
	for i, seg := range segments {
		spans[i] = speech * seg.weight() / total
		if seg.Kind == SegmentQuote {
			spans[i] += pause
		}
	}
	return spans
}

// spread lays the segment groups over [start, end) by character length.
func spread(seg Segment, perGroup int, start, end float64) []WordGroup {
	var chunks [][]string
	for i := 0; i < len(seg.Words); i += perGroup {
		chunks = append(chunks, seg.Words[i:min(i+perGroup, len(seg.Words))])
	}
	weights := make([]float64, len(chunks))
	total := 0.0
	for i, chunk := range chunks {
		weights[i] = float64(max(utf8.RuneCountInString(strings.Join(chunk, " ")), 1))
		total += weights[i]
	}

	groups := make([]WordGroup, len(chunks))
	span := end - start
	cursor := start
	for i, chunk := range chunks {
		groupEnd := cursor + span*weights[i]/total
		if i == len(chunks)-1 {
			groupEnd = end
		}
		groups[i] = WordGroup{
			Words:     chunk,
			Start:     cursor,
			End:       groupEnd,
			Segment:   seg.Kind,
			AudioOnly: seg.Kind.AudioOnly(),
		}
		cursor = groupEnd
	}
	return groups
}
