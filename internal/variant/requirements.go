package variant

import (
	"strconv"
	"strings"
)

// ClipSource names the generated clip a variant needs, if any.
type ClipSource string

const (
	ClipNone             ClipSource = ""
	ClipImageToVideo     ClipSource = "image_to_video"
	ClipReferenceToVideo ClipSource = "reference_to_video"
)

// Requirements lists the asset classes the asset provider must supply.
type Requirements struct {
	// Images is the number of background or flash images. Zero with Flash set
	// means the count is derived from the narration length.
	Images int
	// ReferenceImages is the minimum number of reference-person photos.
	ReferenceImages int
	Clip            ClipSource
	Narration       bool
	Music           bool
	// Flash marks a per-flash image sequence rather than a single background.
	Flash bool
	// Slides is the number of carousel slide backgrounds.
	Slides int
}

func requirementsFor(kind Kind, s Settings) Requirements {
	switch kind {
	case Animated:
		return Requirements{Images: 1, Clip: ClipImageToVideo, Music: true}
	case ReferencePerson:
		minImages := s.ReferenceMinImages
		if minImages <= 0 {
			minImages = 1
		}
		return Requirements{ReferenceImages: minImages, Clip: ClipReferenceToVideo, Music: true}
	case FlashReel:
		return Requirements{Images: max(s.FlashImages, 0), Flash: true, Narration: true, Music: s.FlashMusic}
	case Carousel:
		points := max(s.CarouselPoints, 1)
		// Title and closer slides wrap the points.
		return Requirements{Slides: points + 2}
	default:
		return Requirements{Images: 1, Music: true}
	}
}

func (r Requirements) String() string {
	var parts []string
	add := func(cond bool, label string) {
		if cond {
			parts = append(parts, label)
		}
	}
	switch {
	case r.Flash && r.Images == 0:
		parts = append(parts, "flash images")
	case r.Flash:
		parts = append(parts, strconv.Itoa(r.Images)+" flash images")
	case r.Images > 0:
		parts = append(parts, strconv.Itoa(r.Images)+" image")
	}
	add(r.ReferenceImages > 0, strconv.Itoa(r.ReferenceImages)+"+ reference images")
	add(r.Clip != ClipNone, string(r.Clip)+" clip")
	add(r.Slides > 0, strconv.Itoa(r.Slides)+" slides")
	add(r.Narration, "narration")
	add(r.Music, "music")
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
