package timing

import (
	"strings"
	"unicode/utf8"
)

// SegmentKind labels a transcript segment.
type SegmentKind string

const (
	SegmentIntro      SegmentKind = "intro"
	SegmentQuote      SegmentKind = "quote"
	SegmentMotivation SegmentKind = "motivation"
	SegmentEnding     SegmentKind = "ending"
)

// AudioOnly reports whether the segment is spoken but never drawn.
func (k SegmentKind) AudioOnly() bool {
	return k == SegmentIntro || k == SegmentEnding
}

// Segment is one spoken section. Duration is the measured narration length in
// seconds, or zero when unknown.
type Segment struct {
	Kind     SegmentKind
	Words    []string
	Duration float64
}

// Text joins the segment words with single spaces.
func (s Segment) Text() string { return strings.Join(s.Words, " ") }

func (s Segment) weight() float64 {
	return float64(max(utf8.RuneCountInString(s.Text()), 1))
}

// Transcript is the ordered list of narrated segments.
type Transcript struct {
	Segments []Segment
}

// WordCount returns the number of words across all segments.
func (t Transcript) WordCount() int {
	n := 0
	for _, seg := range t.Segments {
		n += len(seg.Words)
	}
	return n
}

// Segment returns the first segment of kind.
func (t Transcript) Segment(kind SegmentKind) (Segment, bool) {
	for _, seg := range t.Segments {
		if seg.Kind == kind {
			return seg, true
		}
	}
	return Segment{}, false
}

// spoken drops segments without words.
func (t Transcript) spoken() []Segment {
	out := make([]Segment, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if len(seg.Words) > 0 {
			out = append(out, seg)
		}
	}
	return out
}

// SplitWords breaks text on whitespace.
func SplitWords(text string) []string {
	return strings.Fields(text)
}
