package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/services"
)

type flashRenderer struct {
	tk toolkit
}

func (r flashRenderer) Render(ctx context.Context, job Job) (Artifact, error) {
	s := r.tk.settings
	if err := r.check(job); err != nil {
		return Artifact{}, err
	}
	out := filepath.Join(job.OutputDir, job.Name+".mp4")
	if err := r.tk.run(ctx, "flash_reel", r.args(job, out)); err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: out, Target: job.Plan.Total, Width: s.Width, Height: s.Height, Format: "mp4"}, nil
}

func (r flashRenderer) check(job Job) error {
	plan := job.Plan
	if plan.Total <= 0 || len(plan.Flashes) == 0 {
		return services.Wrap(services.ErrValidation, "render", "flash_reel", "timing plan has no flash windows", nil)
	}
	if len(job.Images) == 0 {
		return services.Wrap(services.ErrValidation, "render", "flash_reel", "no flash images", nil)
	}
	for _, f := range plan.Flashes {
		if f.Asset < 0 || f.Asset >= len(job.Images) {
			return services.Wrap(services.ErrValidation, "render", "flash_reel",
				fmt.Sprintf("flash references image %d of %d", f.Asset, len(job.Images)), nil)
		}
	}
	if job.Narration == nil || job.Narration.Path == "" {
		return services.Wrap(services.ErrValidation, "render", "flash_reel", "narration is required", nil)
	}
	if len(plan.Groups) > 0 {
		ending := plan.Groups[len(plan.Groups)-1].End
		if job.Narration.Duration+r.tk.settings.Tolerance()+1e-6 < ending {
			return &ValidationError{
				Path:  job.Narration.Path,
				Check: "narration_coverage",
				Want:  ending,
				Got:   job.Narration.Duration,
			}
		}
	}
	return nil
}

// FlashFrames converts flash windows to whole frame counts. Rounding the
// boundaries rather than the lengths keeps the sum equal to the rounded total.
func (s Settings) FlashFrames(bounds [][2]float64) []int {
	frames := make([]int, len(bounds))
	for i, b := range bounds {
		frames[i] = max(s.frames(b[1])-s.frames(b[0]), 1)
	}
	return frames
}

func (r flashRenderer) args(job Job, out string) []string {
	s := r.tk.settings
	plan := job.Plan
	total := plan.Total

	bounds := make([][2]float64, len(plan.Flashes))
	for i, f := range plan.Flashes {
		bounds[i] = [2]float64{f.Start, f.End}
	}
	frames := s.FlashFrames(bounds)

	args := ffmpeg.BaseArgs()
	var graph []string
	var concatInputs strings.Builder
	for i, f := range plan.Flashes {
		img := job.Images[f.Asset]
		inputSeconds := float64(frames[i]+1) * s.FrameInterval()
		args = append(args, "-loop", "1", "-framerate", fmt.Sprint(s.FPS), "-t", ffmpeg.Seconds(inputSeconds), "-i", img.Path)
		graph = append(graph, fmt.Sprintf("[%d:v]%s,fps=%d,trim=end_frame=%d,setpts=PTS-STARTPTS[f%d]",
			i, coverCrop(s.Width, s.Height), s.FPS, frames[i], i))
		fmt.Fprintf(&concatInputs, "[f%d]", i)
	}
	narrationIdx := len(plan.Flashes)
	args = append(args, "-i", job.Narration.Path)
	hasMusic := job.Music != nil && job.Music.Path != ""
	if hasMusic {
		args = append(args, "-stream_loop", "-1", "-i", job.Music.Path)
	}

	graph = append(graph, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[base]", concatInputs.String(), len(plan.Flashes)))
	video := []string{vignetteFilter, gradeFilter}
	video = append(video, r.groupOverlays(job)...)
	video = append(video, "format=yuv420p")
	graph = append(graph, "[base]"+strings.Join(video, ",")+"[v]")

	narration := fmt.Sprintf("[%d:a]aresample=44100,apad,atrim=0:%s,asetpts=PTS-STARTPTS", narrationIdx, ffmpeg.Seconds(total))
	if hasMusic {
		graph = append(graph,
			narration+"[narr]",
			s.musicChain(fmt.Sprintf("%d:a", narrationIdx+1), total, "mus"),
			"[narr][mus]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[a]",
		)
	} else {
		graph = append(graph, narration+"[a]")
	}

	args = append(args, "-filter_complex", strings.Join(graph, ";"), "-map", "[v]", "-map", "[a]")
	args = append(args, s.encodeArgs(total)...)
	return append(args, out)
}

// groupOverlays draws each visible word group, uppercased and left-aligned,
// during its window. Audio-only groups are skipped.
func (r flashRenderer) groupOverlays(job Job) []string {
	s := r.tk.settings
	multiplier := s.FlashTextMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	size := int(float64(s.FontSize)*multiplier + 0.5)
	margin := int(float64(s.Width) * 0.08)
	width := charsPerLine(s.Width, size)
	lineHeight := float64(size) * 1.2

	var filters []string
	for _, g := range job.Plan.VisibleGroups() {
		lines := wrapText(strings.ToUpper(g.Text()), width)
		enable := fmt.Sprintf("between(t,%s,%s)", ffmpeg.Seconds(g.Start), ffmpeg.Seconds(g.End))
		top := float64(s.Height)/2 - lineHeight*float64(len(lines))/2
		for i, line := range lines {
			filters = append(filters, s.drawtext(textLine{
				text:   line,
				size:   size,
				x:      fmt.Sprint(margin),
				y:      fmtNum(float64(int(top + lineHeight*float64(i)))),
				enable: enable,
			}))
		}
	}
	return filters
}
