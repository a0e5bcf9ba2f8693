package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"reelsmith/internal/media"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/services"
	"reelsmith/internal/timing"
)

type standardRenderer struct {
	tk toolkit
}

func (r standardRenderer) Render(ctx context.Context, job Job) (Artifact, error) {
	s := r.tk.settings
	bg := job.Background
	if bg.Path == "" {
		return Artifact{}, services.Wrap(services.ErrValidation, "render", "standard", "background asset is required", nil)
	}
	out := filepath.Join(job.OutputDir, job.Name+".mp4")
	args, err := r.args(job, out)
	if err != nil {
		return Artifact{}, err
	}
	if err := r.tk.run(ctx, "standard", args); err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: out, Target: s.Duration, Width: s.Width, Height: s.Height, Format: "mp4"}, nil
}

func (r standardRenderer) args(job Job, out string) ([]string, error) {
	s := r.tk.settings
	d := s.Duration
	bg := job.Background

	args := ffmpeg.BaseArgs()
	var base string
	switch bg.Kind {
	case media.KindVideo:
		args = append(args, "-stream_loop", "-1", "-i", bg.Path)
		base = zoomVideo(s, d)
	case media.KindImage, "":
		args = append(args, "-loop", "1", "-framerate", fmt.Sprint(s.FPS), "-t", ffmpeg.Seconds(d), "-i", bg.Path)
		base = zoomPanImage(s, s.frames(d))
	default:
		return nil, services.Wrap(services.ErrValidation, "render", "standard",
			fmt.Sprintf("unsupported background kind %q", bg.Kind), nil)
	}
	musicArgs, hasMusic := musicInput(job.Music, d)
	args = append(args, musicArgs...)

	video := []string{base, vignetteFilter, gradeFilter}
	video = append(video, glitchFilters(s.Glitch, GlitchBursts(s.Glitch, d, r.tk.rng), r.tk.rng)...)
	video = append(video, quoteOverlay(s, job.Text, revealAt(job.Plan, d))...)
	video = append(video, "format=yuv420p")

	graph := []string{"[0:v]" + strings.Join(video, ",") + "[v]"}
	if hasMusic {
		graph = append(graph, s.musicChain("1:a", d, "a"))
	} else {
		graph = append(graph, "[1:a]atrim=0:"+ffmpeg.Seconds(d)+"[a]")
	}
	args = append(args, "-filter_complex", strings.Join(graph, ";"), "-map", "[v]", "-map", "[a]")
	args = append(args, s.encodeArgs(d)...)
	return append(args, out), nil
}

// revealAt is when the motivation line appears: the start of the first
// motivation group, or halfway through when the plan has none.
func revealAt(plan timing.Plan, duration float64) float64 {
	if g, ok := plan.FirstGroup(timing.SegmentMotivation); ok && g.Start < duration {
		return g.Start
	}
	return duration / 2
}

// quoteOverlay draws the quote and author for the whole clip and reveals the
// motivation at reveal seconds.
func quoteOverlay(s Settings, text Text, reveal float64) []string {
	size := s.FontSize
	width := charsPerLine(s.Width, size)
	var filters []string

	quoteLines := wrapText(text.Quote, width)
	block, y := s.centeredBlock(quoteLines, size, float64(s.Height)*0.28, "")
	filters = append(filters, block...)

	if author := strings.TrimSpace(text.Author); author != "" {
		authorSize := max(size*2/3, 1)
		block, _ = s.centeredBlock([]string{"- " + author}, authorSize, y+float64(size)*0.5, "")
		filters = append(filters, block...)
	}

	if motivation := strings.TrimSpace(text.Motivation); motivation != "" {
		motivationSize := max(size*3/4, 1)
		lines := wrapText(motivation, charsPerLine(s.Width, motivationSize))
		enable := fmt.Sprintf("gte(t,%s)", ffmpeg.Seconds(reveal))
		block, _ = s.centeredBlock(lines, motivationSize, float64(s.Height)*0.66, enable)
		filters = append(filters, block...)
	}
	return filters
}
