package render

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"reelsmith/internal/media"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/textutil"
	"reelsmith/internal/timing"
)

const (
	vignetteFilter = "vignette=PI/4"
	gradeFilter    = "eq=brightness=0.02:contrast=1.1:saturation=0.9"
)

// fmtNum prints a float rounded to six decimals without trailing zeros.
func fmtNum(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

// coverCrop scales to fill w x h and crops the overflow around the centre.
func coverCrop(w, h int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", w, h, w, h)
}

// portraitCrop crops a clip to the target aspect ratio before scaling. A
// region hint moves the window towards the subject.
func portraitCrop(w, h int, region *media.Region) string {
	cw := fmt.Sprintf("'min(iw,ih*%d/%d)'", w, h)
	ch := fmt.Sprintf("'min(ih,iw*%d/%d)'", h, w)
	x, y := "'(iw-ow)/2'", "'(ih-oh)/2'"
	if region != nil {
		cx, cy := region.Center()
		x = fmt.Sprintf("'max(0,min(iw-ow,iw*%s-ow/2))'", fmtNum(cx))
		y = fmt.Sprintf("'max(0,min(ih-oh,ih*%s-oh/2))'", fmtNum(cy))
	}
	return fmt.Sprintf("crop=%s:%s:%s:%s,scale=%d:%d,setsar=1", cw, ch, x, y, w, h)
}

// zoomPanImage produces a linear zoom from 1.0 to factor over frames.
func zoomPanImage(s Settings, frames int) string {
	span := max(frames-1, 1)
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,zoompan=z='1+%s*on/%d':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%d,setsar=1",
		s.Width*2, s.Height*2, s.Width*2, s.Height*2,
		fmtNum(s.ZoomFactor-1), span, s.Width, s.Height, s.FPS,
	)
}

// zoomVideo scales each frame by the same linear zoom and crops back.
func zoomVideo(s Settings, duration float64) string {
	grow := fmt.Sprintf("(1+%s*t/%s)", fmtNum(s.ZoomFactor-1), fmtNum(duration))
	return fmt.Sprintf(
		"%s,scale=w='2*trunc(%d*%s/2)':h='2*trunc(%d*%s/2)':eval=frame,crop=%d:%d,fps=%d",
		coverCrop(s.Width, s.Height), s.Width, grow, s.Height, grow, s.Width, s.Height, s.FPS,
	)
}

// GlitchBursts picks non-overlapping burst windows inside (0, duration).
// Bursts are separated by at least MinGap and never touch the first or last
// half second.
func GlitchBursts(g GlitchSettings, duration float64, rng *rand.Rand) []timing.Window {
	if !g.Enabled || g.MaxBursts <= 0 || g.MinBurst <= 0 || duration <= 1 {
		return nil
	}
	maxBurst := max(g.MaxBurst, g.MinBurst)
	const margin = 0.5
	var bursts []timing.Window
	cursor := margin
	for len(bursts) < g.MaxBursts {
		length := g.MinBurst + rng.Float64()*(maxBurst-g.MinBurst)
		start := cursor + rng.Float64()*max(g.MinGap, 0.1)
		if start+length > duration-margin {
			break
		}
		bursts = append(bursts, timing.Window{Start: start, End: start + length})
		cursor = start + length + g.MinGap
	}
	return bursts
}

func glitchFilters(g GlitchSettings, bursts []timing.Window, rng *rand.Rand) []string {
	out := make([]string, 0, len(bursts))
	for _, b := range bursts {
		shift := max(g.MaxShift/2, 1) + rng.IntN(max(g.MaxShift/2, 1)+1)
		out = append(out, fmt.Sprintf("rgbashift=rh=%d:bh=-%d:enable='between(t,%s,%s)'",
			shift, shift, ffmpeg.Seconds(b.Start), ffmpeg.Seconds(b.End)))
	}
	return out
}

// textLine is one drawtext overlay.
type textLine struct {
	text   string
	size   int
	x, y   string
	enable string
}

func (s Settings) drawtext(line textLine) string {
	parts := []string{"text=" + textutil.EscapeDrawtext(line.text)}
	if s.FontFile != "" {
		parts = append(parts, "fontfile="+escapeFilterPath(s.FontFile))
	}
	color := s.TextColor
	if color == "" {
		color = "white"
	}
	parts = append(parts,
		"fontsize="+strconv.Itoa(line.size),
		"fontcolor="+color,
		"borderw="+strconv.Itoa(s.BorderWidth),
		"bordercolor=black",
		"x="+line.x,
		"y="+line.y,
	)
	if line.enable != "" {
		parts = append(parts, "enable='"+line.enable+"'")
	}
	return "drawtext=" + strings.Join(parts, ":")
}

func escapeFilterPath(path string) string {
	return strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`).Replace(path)
}

// wrapText breaks text into lines of at most width characters, never
// splitting words.
func wrapText(text string, width int) []string {
	words := textutil.Words(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len([]rune(current))+1+len([]rune(word)) > width {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(lines, current)
}

// charsPerLine estimates how many glyphs fit across width at size.
func charsPerLine(width, size int) int {
	if size <= 0 {
		return 30
	}
	// Roughly 0.55em average advance for bold sans fonts, with side margins.
	return max(int(float64(width)*0.86/(float64(size)*0.55)), 8)
}

// centeredBlock lays lines out horizontally centred starting at top.
func (s Settings) centeredBlock(lines []string, size int, top float64, enable string) ([]string, float64) {
	lineHeight := float64(size) * 1.25
	out := make([]string, 0, len(lines))
	y := top
	for _, line := range lines {
		out = append(out, s.drawtext(textLine{
			text:   line,
			size:   size,
			x:      "(w-text_w)/2",
			y:      fmtNum(float64(int(y))),
			enable: enable,
		}))
		y += lineHeight
	}
	return out, y
}

// musicChain fades and levels the music input to exactly duration seconds.
func (s Settings) musicChain(input string, duration float64, label string) string {
	chain := []string{fmt.Sprintf("volume=%s", fmtNum(s.MusicVolume))}
	if s.FadeIn > 0 {
		chain = append(chain, fmt.Sprintf("afade=t=in:st=0:d=%s", fmtNum(s.FadeIn)))
	}
	if s.FadeOut > 0 && duration > s.FadeOut {
		chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s", ffmpeg.Seconds(duration-s.FadeOut), fmtNum(s.FadeOut)))
	}
	chain = append(chain, "atrim=0:"+ffmpeg.Seconds(duration), "asetpts=PTS-STARTPTS")
	return fmt.Sprintf("[%s]%s[%s]", input, strings.Join(chain, ","), label)
}

// musicInput returns the input args for the music bed, or generated silence.
func musicInput(music *media.Asset, duration float64) ([]string, bool) {
	if music == nil || music.Path == "" {
		return []string{"-f", "lavfi", "-t", ffmpeg.Seconds(duration), "-i", "anullsrc=channel_layout=stereo:sample_rate=44100"}, false
	}
	return []string{"-stream_loop", "-1", "-i", music.Path}, true
}

// encodeArgs are the shared output options for every video variant.
func (s Settings) encodeArgs(duration float64) []string {
	codec := s.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	args := []string{"-c:v", codec}
	if s.Preset != "" {
		args = append(args, "-preset", s.Preset)
	}
	bitrate := s.AudioBitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	return append(args,
		"-crf", strconv.Itoa(s.CRF),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(s.FPS),
		"-c:a", "aac",
		"-b:a", bitrate,
		"-t", ffmpeg.Seconds(duration),
		"-movflags", "+faststart",
	)
}
