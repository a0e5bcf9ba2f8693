package assets

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
	"reelsmith/internal/timing"
	"reelsmith/internal/variant"
)

// Prober reads media durations and dimensions.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// ClipGenerator turns stills into short video clips.
type ClipGenerator interface {
	ImageToVideo(ctx context.Context, model, imagePath, prompt string, seconds int, dest string) error
	ReferenceToVideo(ctx context.Context, model string, imagePaths []string, prompt string, seconds int, dest string) error
}

// Ledger reports files consumed by earlier runs.
type Ledger interface {
	UsedAssetPaths(ctx context.Context) (map[string]struct{}, error)
}

// Request describes what one run needs.
type Request struct {
	RunID    string
	Decision variant.Decision
	// Mood and Category steer image selection.
	Mood     string
	Category string
	// Transcript is narrated for variants that need narration.
	Transcript timing.Transcript
	WorkDir    string
}

// Bundle is the probed media for one run.
type Bundle struct {
	Decision variant.Decision
	// Background is the still or generated clip behind the reel.
	Background media.Asset
	// Images is the flash pool or carousel slide backgrounds.
	Images     []media.Asset
	References []media.Asset
	Narration  *media.Asset
	Music      *media.Asset
	// Transcript carries measured segment durations when narration was made.
	Transcript timing.Transcript
	// Consumed lists pool files that move to used/ after a successful post.
	Consumed []media.Asset
	// Generated lists files created for this run in the work directory.
	Generated []string
}

// Release removes generated files. Pool files are never touched.
func (b Bundle) Release() error {
	var firstErr error
	for _, path := range b.Generated {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Provider acquires media for a run and retires it after a post.
type Provider interface {
	Acquire(ctx context.Context, req Request) (Bundle, error)
	MarkUsed(ctx context.Context, b Bundle) error
}

// Deps are the collaborators of a LocalProvider.
type Deps struct {
	Clips    ClipGenerator
	Narrator *Narrator
	Prober   Prober
	Ledger   Ledger
	Rand     *rand.Rand
	Logger   *slog.Logger
}

// LocalProvider draws from the on-disk pool and generates clips and
// narration on demand.
type LocalProvider struct {
	cfg     *config.Config
	pool    Pool
	catalog *Catalog
	deps    Deps
	rng     *rand.Rand
	logger  *slog.Logger
}

// NewLocalProvider loads the catalog and builds a provider.
func NewLocalProvider(cfg *config.Config, deps Deps) (*LocalProvider, error) {
	pool := Pool{Root: cfg.Paths.AssetsDir}
	catalogPath := cfg.Assets.CatalogFile
	if catalogPath != "" && !filepath.IsAbs(catalogPath) {
		catalogPath = filepath.Join(pool.Root, catalogPath)
	}
	catalog := DefaultCatalog()
	if catalogPath != "" {
		loaded, err := LoadCatalog(catalogPath)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "assets", "load catalog", "", err)
		}
		catalog = loaded
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LocalProvider{
		cfg:     cfg,
		pool:    pool,
		catalog: catalog,
		deps:    deps,
		rng:     rng,
		logger:  logging.NewComponentLogger(logger, "assets"),
	}, nil
}

// Acquire implements Provider.
func (p *LocalProvider) Acquire(ctx context.Context, req Request) (Bundle, error) {
	if req.WorkDir == "" {
		req.WorkDir = p.cfg.Paths.WorkDir
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return Bundle{}, services.Wrap(services.ErrConfiguration, "assets", "prepare work dir", req.WorkDir, err)
	}
	exclude, err := p.excluded(ctx)
	if err != nil {
		return Bundle{}, err
	}
	byCategory, err := p.pool.Images(exclude)
	if err != nil {
		return Bundle{}, services.Wrap(services.ErrTransient, "assets", "scan pool", "", err)
	}

	bundle := Bundle{Decision: req.Decision, Transcript: req.Transcript}
	reqs := req.Decision.Requirements()
	fail := func(err error) (Bundle, error) {
		_ = bundle.Release()
		return Bundle{}, err
	}

	switch req.Decision.Kind {
	case variant.Animated:
		err = p.acquireAnimated(ctx, req, byCategory, &bundle)
	case variant.ReferencePerson:
		err = p.acquireReference(ctx, req, reqs, &bundle)
	case variant.FlashReel:
		err = p.acquireFlash(ctx, req, reqs, byCategory, &bundle)
	case variant.Carousel:
		images := p.pickImages(byCategory, reqs.Slides, req.Category, req.Mood)
		bundle.Images = images
		bundle.Consumed = append(bundle.Consumed, images...)
	default:
		var images []media.Asset
		images, err = p.requireImages(byCategory, 1, req)
		if err == nil {
			bundle.Background = images[0]
			bundle.Consumed = append(bundle.Consumed, images[0])
		}
	}
	if err != nil {
		return fail(err)
	}
	if reqs.Music {
		bundle.Music = p.pickMusic()
	}
	if err := p.probe(ctx, &bundle); err != nil {
		return fail(err)
	}

	p.logger.Info("assets acquired",
		logging.String("variant", string(req.Decision.Kind)),
		logging.String("background", bundle.Background.Name()),
		logging.Int("images", len(bundle.Images)),
		logging.Int("references", len(bundle.References)),
		logging.Bool("narration", bundle.Narration != nil),
		logging.Bool("music", bundle.Music != nil),
	)
	return bundle, nil
}

func (p *LocalProvider) excluded(ctx context.Context) (map[string]struct{}, error) {
	if p.deps.Ledger == nil {
		return nil, nil
	}
	used, err := p.deps.Ledger.UsedAssetPaths(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "assets", "read used ledger", "", err)
	}
	return used, nil
}

func (p *LocalProvider) acquireAnimated(ctx context.Context, req Request, byCategory map[string][]string, b *Bundle) error {
	images, err := p.requireImages(byCategory, 1, req)
	if err != nil {
		return err
	}
	if p.deps.Clips == nil {
		return services.Wrap(services.ErrConfiguration, "assets", "image-to-video", "no clip generator configured", nil)
	}
	source := images[0]
	dest := filepath.Join(req.WorkDir, runName(req)+"_clip.mp4")
	b.Generated = append(b.Generated, dest)
	seconds := clipSeconds(p.cfg.Animation.ClipSeconds)
	if err := p.deps.Clips.ImageToVideo(ctx, p.cfg.Fal.ImageToVideoModel, source.Path, p.cfg.Animation.Prompt, seconds, dest); err != nil {
		return err
	}
	b.Background = media.Asset{Path: dest, Kind: media.KindVideo, Category: source.Category, Source: media.SourceGenerated, Region: source.Region}
	b.Consumed = append(b.Consumed, source)
	return nil
}

func (p *LocalProvider) acquireReference(ctx context.Context, req Request, reqs variant.Requirements, b *Bundle) error {
	paths, err := p.pool.References()
	if err != nil {
		return services.Wrap(services.ErrTransient, "assets", "scan references", "", err)
	}
	if len(paths) < reqs.ReferenceImages {
		return services.Wrap(services.ErrNotFound, "assets", "reference images",
			fmt.Sprintf("need %d reference images, found %d in %s", reqs.ReferenceImages, len(paths), p.pool.ReferenceDir()), nil)
	}
	if p.deps.Clips == nil {
		return services.Wrap(services.ErrConfiguration, "assets", "reference-to-video", "no clip generator configured", nil)
	}
	p.rng.Shuffle(len(paths), func(i, j int) { paths[i], paths[j] = paths[j], paths[i] })
	paths = paths[:reqs.ReferenceImages]
	for _, path := range paths {
		b.References = append(b.References, media.Asset{Path: path, Kind: media.KindImage, Source: media.SourceCurated})
	}
	dest := filepath.Join(req.WorkDir, runName(req)+"_reference.mp4")
	b.Generated = append(b.Generated, dest)
	seconds := clipSeconds(p.cfg.ReferencePerson.ClipSeconds)
	if err := p.deps.Clips.ReferenceToVideo(ctx, p.cfg.Fal.ReferenceToVideoModel, paths, p.cfg.ReferencePerson.Prompt, seconds, dest); err != nil {
		return err
	}
	b.Background = media.Asset{Path: dest, Kind: media.KindVideo, Source: media.SourceGenerated}
	return nil
}

func (p *LocalProvider) acquireFlash(ctx context.Context, req Request, reqs variant.Requirements, byCategory map[string][]string, b *Bundle) error {
	if p.deps.Narrator == nil {
		return services.Wrap(services.ErrConfiguration, "assets", "narration", "no narrator configured", nil)
	}
	narration, transcript, generated, err := p.deps.Narrator.Narrate(ctx, req.Transcript, req.WorkDir, runName(req))
	b.Generated = append(b.Generated, generated...)
	if err != nil {
		return err
	}
	b.Narration = &narration
	b.Transcript = transcript

	count := reqs.Images
	if count <= 0 {
		count = timing.FlashCount(narration.Duration, timing.ConfigFromSettings(p.cfg))
	}
	images, err := p.requireImages(byCategory, max(count, 1), req)
	if err != nil {
		return err
	}
	b.Images = images
	b.Consumed = append(b.Consumed, images...)
	return nil
}

// requireImages returns up to n images and fails only when none exist.
func (p *LocalProvider) requireImages(byCategory map[string][]string, n int, req Request) ([]media.Asset, error) {
	images := p.pickImages(byCategory, n, req.Category, req.Mood)
	if len(images) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "assets", "select images",
			"no unused images in "+p.pool.ImagesDir(), nil)
	}
	return images, nil
}

// pickImages draws up to n distinct images. Each draw first decides between
// the AI-injected pool and the curated categories by weight, then falls back
// to whichever pool still has images.
func (p *LocalProvider) pickImages(byCategory map[string][]string, n int, category, mood string) []media.Asset {
	remaining := make(map[string][]string, len(byCategory))
	for name, files := range byCategory {
		remaining[name] = append([]string(nil), files...)
	}
	var out []media.Asset
	for len(out) < n {
		curated := make(map[string]int, len(remaining))
		for name, files := range remaining {
			if name != aiInjectedDir {
				curated[name] = len(files)
			}
		}
		useAI := len(remaining[aiInjectedDir]) > 0 && p.rng.Float64() < p.cfg.Assets.AIInjectedWeight
		name, ok := "", false
		if !useAI {
			name, ok = p.catalog.ChooseCategory(curated, category, mood, p.rng)
		}
		if !ok {
			if len(remaining[aiInjectedDir]) == 0 {
				break
			}
			name = aiInjectedDir
		}
		files := remaining[name]
		idx := p.rng.IntN(len(files))
		path := files[idx]
		remaining[name] = append(files[:idx], files[idx+1:]...)

		asset := media.Asset{Path: path, Kind: media.KindImage, Category: name, Source: media.SourceCurated, Local: true}
		if name == aiInjectedDir {
			asset.Source = media.SourceAIInjected
			asset.Category = p.cfg.Assets.DefaultCategory
		}
		asset.Region = p.catalog.Region(p.pool.rel(path))
		out = append(out, asset)
	}
	return out
}

func (p *LocalProvider) pickMusic() *media.Asset {
	tracks, err := p.pool.Music()
	if err != nil || len(tracks) == 0 {
		logging.WarnWithContext(p.logger, "no background music available; rendering with silence", "music_missing",
			logging.String(logging.FieldErrorHint, "add audio files under "+p.pool.AudioDir()),
			logging.String(logging.FieldImpact, "reel has no soundtrack"),
		)
		return nil
	}
	return &media.Asset{Path: tracks[p.rng.IntN(len(tracks))], Kind: media.KindAudio}
}

// probe fills durations and dimensions concurrently. Every video and audio
// asset must come back with a positive duration.
func (p *LocalProvider) probe(ctx context.Context, b *Bundle) error {
	if p.deps.Prober == nil {
		return services.Wrap(services.ErrConfiguration, "assets", "probe", "no prober configured", nil)
	}
	var targets []*media.Asset
	if b.Background.Path != "" {
		targets = append(targets, &b.Background)
	}
	for i := range b.Images {
		targets = append(targets, &b.Images[i])
	}
	if b.Music != nil {
		targets = append(targets, b.Music)
	}
	if b.Narration != nil && b.Narration.Duration <= 0 {
		targets = append(targets, b.Narration)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Assets.ProbeConcurrency, 1))
	for _, asset := range targets {
		g.Go(func() error {
			result, err := p.deps.Prober.Probe(gctx, asset.Path)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "assets", "probe", asset.Name(), err)
			}
			asset.Width, asset.Height = result.Dimensions()
			if asset.Kind == media.KindImage {
				return nil
			}
			asset.Duration = result.DurationSeconds()
			if asset.Duration <= 0 || math.IsNaN(asset.Duration) {
				return services.Wrap(services.ErrExternalTool, "assets", "probe",
					fmt.Sprintf("%s reports no duration", asset.Name()), nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Consumed entries are copies taken before probing.
	for i := range b.Consumed {
		for _, img := range b.Images {
			if img.Path == b.Consumed[i].Path {
				b.Consumed[i] = img
			}
		}
		if b.Consumed[i].Path == b.Background.Path {
			b.Consumed[i] = b.Background
		}
	}
	return nil
}

func runName(req Request) string {
	if name := strings.TrimSpace(req.RunID); name != "" {
		return name
	}
	return "run"
}

func clipSeconds(seconds float64) int {
	return max(int(math.Round(seconds)), 1)
}
