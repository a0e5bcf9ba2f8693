package render

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
	"reelsmith/internal/timing"
	"reelsmith/internal/variant"
)

// Prober inspects a rendered or source file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// Text is the copy drawn onto the post.
type Text struct {
	Quote      string
	Author     string
	Motivation string
	// Title, Points and Closer feed carousel slides.
	Title  string
	Points []string
	Closer string
}

// Job is everything one render needs. Assets are read-only.
type Job struct {
	Decision variant.Decision
	// Background is the still or video behind a standard reel, or the
	// generated clip for animated and reference reels.
	Background media.Asset
	// Images is the flash pool (indexed by plan flashes) or the carousel
	// slide backgrounds.
	Images    []media.Asset
	Narration *media.Asset
	Music     *media.Asset
	Plan      timing.Plan
	Text      Text
	OutputDir string
	WorkDir   string
	// Name is the artifact base name, typically the run id.
	Name string
}

// Artifact is the rendered output.
type Artifact struct {
	Kind      variant.Kind
	Path      string
	Slides    []string
	Thumbnail string
	// Target is the intended duration; zero for carousels.
	Target   float64
	Duration float64
	Width    int
	Height   int
	Format   string
}

// Files returns every file the artifact consists of.
func (a Artifact) Files() []string {
	if len(a.Slides) > 0 {
		return append([]string(nil), a.Slides...)
	}
	if a.Path == "" {
		return nil
	}
	return []string{a.Path}
}

// Renderer produces one artifact kind.
type Renderer interface {
	Render(ctx context.Context, job Job) (Artifact, error)
}

// toolkit is the shared plumbing handed to each renderer.
type toolkit struct {
	settings Settings
	runner   ffmpeg.Runner
	logger   *slog.Logger
	rng      *rand.Rand
}

func (tk toolkit) run(ctx context.Context, op string, args []string) error {
	tk.logger.Debug("running ffmpeg", logging.String("operation", op), logging.Int("args", len(args)))
	if err := tk.runner.Run(ctx, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", op, "ffmpeg invocation failed", err)
	}
	return nil
}

// Engine dispatches render jobs and validates their output.
type Engine struct {
	tk        toolkit
	prober    Prober
	renderers map[variant.Kind]Renderer
}

// NewEngine wires the built-in renderers for every variant.
func NewEngine(settings Settings, runner ffmpeg.Runner, prober Prober, logger *slog.Logger, rng *rand.Rand) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	tk := toolkit{
		settings: settings,
		runner:   runner,
		logger:   logging.NewComponentLogger(logger, "render"),
		rng:      rng,
	}
	return &Engine{
		tk:     tk,
		prober: prober,
		renderers: map[variant.Kind]Renderer{
			variant.Standard:        standardRenderer{tk: tk},
			variant.Animated:        clipRenderer{tk: tk, kind: variant.Animated},
			variant.ReferencePerson: clipRenderer{tk: tk, kind: variant.ReferencePerson},
			variant.FlashReel:       flashRenderer{tk: tk},
			variant.Carousel:        carouselRenderer{tk: tk},
		},
	}
}

// Register replaces the renderer for kind.
func (e *Engine) Register(kind variant.Kind, r Renderer) {
	e.renderers[kind] = r
}

// Settings returns the render configuration.
func (e *Engine) Settings() Settings { return e.tk.settings }

// Render produces the artifact for job and, for video, its thumbnail.
func (e *Engine) Render(ctx context.Context, job Job) (Artifact, error) {
	kind := job.Decision.Kind
	renderer, ok := e.renderers[kind]
	if !ok {
		return Artifact{}, services.Wrap(services.ErrConfiguration, "render", "dispatch",
			fmt.Sprintf("no renderer for variant %q", kind), nil)
	}
	if strings.TrimSpace(job.OutputDir) == "" {
		return Artifact{}, services.Wrap(services.ErrConfiguration, "render", "dispatch", "output directory is required", nil)
	}
	if job.Name == "" {
		job.Name = "reel"
	}
	if job.WorkDir == "" {
		job.WorkDir = filepath.Join(job.OutputDir, ".work")
	}
	for _, dir := range []string{job.OutputDir, job.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Artifact{}, services.Wrap(services.ErrConfiguration, "render", "prepare", "create directory", err)
		}
	}

	e.tk.logger.Info("render started",
		logging.String(logging.FieldVariant, string(kind)),
		logging.String("background", job.Background.Name()),
		logging.Int("images", len(job.Images)),
	)
	artifact, err := renderer.Render(ctx, job)
	if err != nil {
		return Artifact{}, err
	}
	artifact.Kind = kind
	if kind.IsVideo() {
		thumb, err := e.thumbnail(ctx, artifact, job)
		if err != nil {
			return Artifact{}, err
		}
		artifact.Thumbnail = thumb
	} else if len(artifact.Slides) > 0 {
		artifact.Thumbnail = artifact.Slides[0]
	}
	e.tk.logger.Info("render completed",
		logging.String("artifact", artifact.Path),
		logging.Float64("target_seconds", artifact.Target),
	)
	return artifact, nil
}

// ThumbnailOffset picks the cover frame time, kept inside short reels.
func (s Settings) ThumbnailOffset(target float64) float64 {
	at := s.ThumbnailAt
	if target > 0 && at >= target {
		at = target / 2
	}
	return math.Max(at, 0)
}

func (e *Engine) thumbnail(ctx context.Context, artifact Artifact, job Job) (string, error) {
	path := filepath.Join(job.OutputDir, job.Name+"_cover.jpg")
	args := append(ffmpeg.BaseArgs(),
		"-ss", ffmpeg.Seconds(e.tk.settings.ThumbnailOffset(artifact.Target)),
		"-i", artifact.Path,
		"-frames:v", "1",
		"-q:v", "2",
		path,
	)
	if err := e.tk.run(ctx, "thumbnail", args); err != nil {
		return "", err
	}
	return path, nil
}

// Validate probes the artifact and checks it against the render contract. The
// returned artifact carries the measured duration.
func (e *Engine) Validate(ctx context.Context, artifact Artifact) (Artifact, error) {
	if !artifact.Kind.IsVideo() {
		return artifact, e.validateSlides(ctx, artifact)
	}
	s := e.tk.settings
	result, err := e.prober.Probe(ctx, artifact.Path)
	if err != nil {
		return artifact, services.Wrap(services.ErrExternalTool, "validate", "ffprobe", "probe rendered artifact", err)
	}
	if !result.HasVideo() {
		return artifact, &ValidationError{Path: artifact.Path, Check: "video_stream", Detail: "no video stream"}
	}
	if !result.HasAudio() {
		return artifact, &ValidationError{Path: artifact.Path, Check: "audio_stream", Detail: "no audio stream"}
	}
	duration := result.DurationSeconds()
	artifact.Duration = duration
	if math.Abs(duration-artifact.Target) > s.Tolerance()+1e-6 {
		return artifact, &ValidationError{Path: artifact.Path, Check: "duration", Want: artifact.Target, Got: duration}
	}
	if w, h := result.Dimensions(); w != artifact.Width || h != artifact.Height {
		return artifact, &ValidationError{
			Path:   artifact.Path,
			Check:  "dimensions",
			Detail: fmt.Sprintf("want %dx%d, got %dx%d", artifact.Width, artifact.Height, w, h),
		}
	}
	return artifact, nil
}

func (e *Engine) validateSlides(ctx context.Context, artifact Artifact) error {
	if len(artifact.Slides) == 0 {
		return &ValidationError{Path: artifact.Path, Check: "slides", Detail: "carousel has no slides"}
	}
	for _, slide := range artifact.Slides {
		result, err := e.prober.Probe(ctx, slide)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "validate", "ffprobe", "probe slide", err)
		}
		if w, h := result.Dimensions(); w != artifact.Width || h != artifact.Height {
			return &ValidationError{
				Path:   slide,
				Check:  "dimensions",
				Detail: fmt.Sprintf("want %dx%d, got %dx%d", artifact.Width, artifact.Height, w, h),
			}
		}
	}
	return nil
}
