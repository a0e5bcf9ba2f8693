package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/services"
	"reelsmith/internal/variant"
)

// clipRenderer handles generated video backgrounds. The clip is cropped to
// the reel aspect in its own pass so looping and trimming operate on the
// already-cropped frames.
type clipRenderer struct {
	tk   toolkit
	kind variant.Kind
}

func (r clipRenderer) Render(ctx context.Context, job Job) (Artifact, error) {
	s := r.tk.settings
	op := string(r.kind)
	clip := job.Background
	if clip.Path == "" {
		return Artifact{}, services.Wrap(services.ErrValidation, "render", op, "generated clip is required", nil)
	}
	if clip.Duration <= 0 {
		return Artifact{}, &ValidationError{Path: clip.Path, Check: "clip_duration", Detail: "clip has no measured duration"}
	}

	cropped := filepath.Join(job.WorkDir, job.Name+"_cropped.mp4")
	defer func() { _ = os.Remove(cropped) }()
	if err := r.tk.run(ctx, op+"_crop", r.cropArgs(job, cropped)); err != nil {
		return Artifact{}, err
	}

	out := filepath.Join(job.OutputDir, job.Name+".mp4")
	if err := r.tk.run(ctx, op, r.composeArgs(job, cropped, out)); err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: out, Target: s.Duration, Width: s.Width, Height: s.Height, Format: "mp4"}, nil
}

func (r clipRenderer) cropArgs(job Job, cropped string) []string {
	s := r.tk.settings
	args := append(ffmpeg.BaseArgs(), "-i", job.Background.Path,
		"-vf", portraitCrop(s.Width, s.Height, job.Background.Region)+fmt.Sprintf(",fps=%d", s.FPS),
		"-an",
	)
	codec := s.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	return append(args, "-c:v", codec, "-crf", "16", "-pix_fmt", "yuv420p", cropped)
}

// NeedsLoop reports whether a clip of clipDuration must be looped to fill
// target seconds.
func (s Settings) NeedsLoop(clipDuration, target float64) bool {
	return clipDuration+s.FrameInterval()/2 < target
}

func (r clipRenderer) composeArgs(job Job, cropped, out string) []string {
	s := r.tk.settings
	d := s.Duration
	args := ffmpeg.BaseArgs()
	if s.NeedsLoop(job.Background.Duration, d) {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args, "-i", cropped)
	musicArgs, hasMusic := musicInput(job.Music, d)
	args = append(args, musicArgs...)

	video := []string{"setpts=PTS-STARTPTS", vignetteFilter, gradeFilter}
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
	return append(args, out)
}
