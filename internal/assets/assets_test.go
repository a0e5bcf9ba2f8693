package assets

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/media"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/timing"
	"reelsmith/internal/variant"
)

type fakeProber struct {
	mu        sync.Mutex
	durations map[string]float64
	calls     []string
}

func (p *fakeProber) Probe(_ context.Context, path string) (ffprobe.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, path)
	if _, err := os.Stat(path); err != nil {
		return ffprobe.Result{}, err
	}
	if kind, _ := media.KindFromPath(path); kind == media.KindImage {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", Width: 1080, Height: 1920}}}, nil
	}
	duration := 0.0
	for suffix, d := range p.durations {
		if strings.HasSuffix(path, suffix) {
			duration = d
		}
	}
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "audio"}},
		Format:  ffprobe.Format{Duration: strconv.FormatFloat(duration, 'f', 3, 64)},
	}, nil
}

type fakeClips struct {
	imageCalls     int
	referenceCalls []int
	err            error
}

func (c *fakeClips) ImageToVideo(_ context.Context, _, imagePath, _ string, seconds int, dest string) error {
	c.imageCalls++
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(dest, []byte("clip"), 0o644)
}

func (c *fakeClips) ReferenceToVideo(_ context.Context, _ string, paths []string, _ string, _ int, dest string) error {
	c.referenceCalls = append(c.referenceCalls, len(paths))
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(dest, []byte("clip"), 0o644)
}

type fakeSpeech struct{ texts []string }

func (s *fakeSpeech) Speech(_ context.Context, _, text, _, dest string) error {
	s.texts = append(s.texts, text)
	return os.WriteFile(dest, []byte(text), 0o644)
}

type fakeRunner struct{ calls [][]string }

func (r *fakeRunner) Run(_ context.Context, args ...string) error {
	r.calls = append(r.calls, args)
	return os.WriteFile(args[len(args)-1], []byte("out"), 0o644)
}

type fakeLedger map[string]struct{}

func (l fakeLedger) UsedAssetPaths(context.Context) (map[string]struct{}, error) { return l, nil }

func newProvider(t *testing.T, cfg *config.Config, deps Deps) *LocalProvider {
	t.Helper()
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(7, 11))
	}
	p, err := NewLocalProvider(cfg, deps)
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	return p
}

func decision(cfg *config.Config, kind variant.Kind) variant.Decision {
	return variant.Force(kind, 1, variant.SettingsFromConfig(cfg))
}

func TestAcquireStandardSkipsLedgerAndUsedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Assets.AIInjectedWeight = 0
	root := cfg.Paths.AssetsDir
	paths := testsupport.SeedPool(t, root,
		"images/statues/a.jpg",
		"images/statues/b.jpg",
		"images/statues/used/c.jpg",
		"used/image/statues/d.jpg",
		"audio/theme.mp3",
	)
	prober := &fakeProber{durations: map[string]float64{".mp3": 42}}
	p := newProvider(t, cfg, Deps{Prober: prober, Ledger: fakeLedger{paths[0]: {}}})

	bundle, err := p.Acquire(context.Background(), Request{RunID: "r1", Decision: decision(cfg, variant.Standard), Category: "statues"})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if bundle.Background.Path != paths[1] {
		t.Fatalf("expected %s, got %s", paths[1], bundle.Background.Path)
	}
	if bundle.Background.Width != 1080 || bundle.Background.Height != 1920 {
		t.Fatalf("background not probed: %+v", bundle.Background)
	}
	if bundle.Music == nil || bundle.Music.Duration != 42 {
		t.Fatalf("expected probed music, got %+v", bundle.Music)
	}
	if len(bundle.Consumed) != 1 || !bundle.Consumed[0].Local || bundle.Consumed[0].Width != 1080 {
		t.Fatalf("unexpected consumed list %+v", bundle.Consumed)
	}
}

func TestAcquireStandardWithEmptyPoolIsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := newProvider(t, cfg, Deps{Prober: &fakeProber{}})
	_, err := p.Acquire(context.Background(), Request{Decision: decision(cfg, variant.Standard)})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAcquireAnimatedGeneratesProbedClip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedPool(t, cfg.Paths.AssetsDir, "images/nature/a.jpg")
	clips := &fakeClips{}
	prober := &fakeProber{durations: map[string]float64{"_clip.mp4": 5.04}}
	p := newProvider(t, cfg, Deps{Prober: prober, Clips: clips})

	bundle, err := p.Acquire(context.Background(), Request{RunID: "r2", Decision: decision(cfg, variant.Animated)})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if clips.imageCalls != 1 {
		t.Fatalf("expected one clip generation, got %d", clips.imageCalls)
	}
	if bundle.Background.Kind != media.KindVideo || bundle.Background.Duration != 5.04 {
		t.Fatalf("unexpected background %+v", bundle.Background)
	}
	if len(bundle.Consumed) != 1 || filepath.Base(bundle.Consumed[0].Path) != "a.jpg" {
		t.Fatalf("source still should be consumed, got %+v", bundle.Consumed)
	}
	if len(bundle.Generated) != 1 {
		t.Fatalf("expected generated clip tracked, got %v", bundle.Generated)
	}
	if err := bundle.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(bundle.Background.Path); !os.IsNotExist(err) {
		t.Fatalf("generated clip should be removed, stat err %v", err)
	}
}

func TestAcquireClipWithoutDurationFailsAndCleansUp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedPool(t, cfg.Paths.AssetsDir, "images/nature/a.jpg")
	p := newProvider(t, cfg, Deps{Prober: &fakeProber{}, Clips: &fakeClips{}})

	_, err := p.Acquire(context.Background(), Request{RunID: "r3", Decision: decision(cfg, variant.Animated), WorkDir: cfg.Paths.WorkDir})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.WorkDir, "r3_clip.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("clip should be removed after failure, stat err %v", statErr)
	}
}

func TestAcquireReferenceRequiresMinimumImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ReferencePerson.MinImages = 2
	testsupport.SeedPool(t, cfg.Paths.AssetsDir, "reference/one.jpg")
	clips := &fakeClips{}
	p := newProvider(t, cfg, Deps{Prober: &fakeProber{}, Clips: clips})

	_, err := p.Acquire(context.Background(), Request{Decision: decision(cfg, variant.ReferencePerson)})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(clips.referenceCalls) != 0 {
		t.Fatalf("clip generation should not start without references")
	}
}

func TestAcquireReferenceSendsMinimumImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ReferencePerson.MinImages = 2
	testsupport.SeedPool(t, cfg.Paths.AssetsDir, "reference/one.jpg", "reference/two.jpg", "reference/three.png")
	clips := &fakeClips{}
	prober := &fakeProber{durations: map[string]float64{"_reference.mp4": 5}}
	p := newProvider(t, cfg, Deps{Prober: prober, Clips: clips})

	bundle, err := p.Acquire(context.Background(), Request{RunID: "r4", Decision: decision(cfg, variant.ReferencePerson)})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(clips.referenceCalls) != 1 || clips.referenceCalls[0] != 2 {
		t.Fatalf("expected 2 references sent, got %v", clips.referenceCalls)
	}
	if len(bundle.Consumed) != 0 {
		t.Fatalf("reference photos are reusable, got consumed %+v", bundle.Consumed)
	}
}

func TestAcquireFlashNarratesAndSizesPool(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.FlashReel.ImagesPerReel = 0
	testsupport.SeedPool(t, cfg.Paths.AssetsDir,
		"images/statues/a.jpg", "images/statues/b.jpg", "images/temples/c.jpg",
	)
	prober := &fakeProber{durations: map[string]float64{
		"_intro.mp3":      1.0,
		"_quote.mp3":      2.0,
		"_motivation.mp3": 1.5,
		"_narration.m4a":  5.3,
	}}
	runner := &fakeRunner{}
	speech := &fakeSpeech{}
	narrator := NewNarrator(cfg, speech, runner, prober, nil)
	p := newProvider(t, cfg, Deps{Prober: prober, Narrator: narrator})

	transcript := timing.Transcript{Segments: []timing.Segment{
		{Kind: timing.SegmentIntro, Words: []string{"As", "Seneca", "said"}},
		{Kind: timing.SegmentQuote, Words: []string{"We", "suffer", "more"}},
		{Kind: timing.SegmentMotivation, Words: []string{"So", "act"}},
	}}
	bundle, err := p.Acquire(context.Background(), Request{RunID: "r5", Decision: decision(cfg, variant.FlashReel), Transcript: transcript})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(speech.texts) != 3 {
		t.Fatalf("expected per-segment speech, got %v", speech.texts)
	}
	if bundle.Narration == nil || bundle.Narration.Duration != 5.3 {
		t.Fatalf("unexpected narration %+v", bundle.Narration)
	}
	quote, _ := bundle.Transcript.Segment(timing.SegmentQuote)
	if math.Abs(quote.Duration-2.8) > 1e-9 {
		t.Fatalf("quote duration should include the 0.8s pause, got %v", quote.Duration)
	}
	// 5.3s at 0.3s per flash wants 18 images; only 3 exist.
	if len(bundle.Images) != 3 {
		t.Fatalf("expected every available image, got %d", len(bundle.Images))
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one concat call, got %d", len(runner.calls))
	}
	graph := strings.Join(runner.calls[0], " ")
	if !strings.Contains(graph, "anullsrc=r=44100:cl=stereo") || !strings.Contains(graph, "concat=n=4:v=0:a=1") {
		t.Fatalf("concat graph missing pause input: %s", graph)
	}
}

func TestPickImagesHonoursAIWeight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Assets.AIInjectedWeight = 1
	cfg.Assets.DefaultCategory = "generated"
	testsupport.SeedPool(t, cfg.Paths.AssetsDir, "images/statues/a.jpg", "images/ai_injected/x.png")
	p := newProvider(t, cfg, Deps{Prober: &fakeProber{}})

	byCategory, err := p.pool.Images(nil)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	images := p.pickImages(byCategory, 2, "", "")
	if len(images) != 2 {
		t.Fatalf("expected both images, got %d", len(images))
	}
	if images[0].Source != media.SourceAIInjected || images[0].Category != "generated" {
		t.Fatalf("first pick should come from the AI pool, got %+v", images[0])
	}
	if images[1].Source != media.SourceCurated {
		t.Fatalf("second pick should fall back to curated, got %+v", images[1])
	}
}

func TestMarkUsedMovesLocalFilesOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	paths := testsupport.SeedPool(t, cfg.Paths.AssetsDir, "images/statues/a.jpg", "used/image/statues/a.jpg", "audio/theme.mp3")
	p := newProvider(t, cfg, Deps{Prober: &fakeProber{}})

	bundle := Bundle{Consumed: []media.Asset{
		{Path: paths[0], Kind: media.KindImage, Category: "statues", Local: true},
		{Path: paths[2], Kind: media.KindAudio},
	}}
	if err := p.MarkUsed(context.Background(), bundle); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Fatalf("source should have moved, stat err %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.AssetsDir, "used", "image", "statues", "a_1.jpg")); err != nil {
		t.Fatalf("expected suffixed destination: %v", err)
	}
	if _, err := os.Stat(paths[2]); err != nil {
		t.Fatalf("non-local asset must stay: %v", err)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
categories:
  - name: Statues
    moods: [stern]
    weight: 3
  - name: nature
moods:
  calm: [nature]
regions:
  statues/aurelius.jpg: {x: 0.25, y: 0.1, w: 0.5, h: 0.4}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	rng := rand.New(rand.NewPCG(1, 1))
	if got, _ := cat.ChooseCategory(map[string]int{"statues": 1, "nature": 1}, "", "stern", rng); got != "statues" {
		t.Fatalf("mood stern should map to statues, got %q", got)
	}
	if got, _ := cat.ChooseCategory(map[string]int{"statues": 1, "nature": 1}, "nature", "stern", rng); got != "nature" {
		t.Fatalf("explicit category should win, got %q", got)
	}
	if got, ok := cat.ChooseCategory(map[string]int{"statues": 0}, "", "", rng); ok {
		t.Fatalf("expected no category from empty pool, got %q", got)
	}
	region := cat.Region("statues/aurelius.jpg")
	if region == nil || region.W != 0.5 {
		t.Fatalf("unexpected region %+v", region)
	}

	missing, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || len(missing.Categories) == 0 {
		t.Fatalf("missing catalog should fall back to defaults: %v", err)
	}
}

func TestLoadCatalogRejectsBadRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("regions:\n  a.jpg: {x: 0.8, y: 0, w: 0.5, h: 0.5}\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected region validation error")
	}
}
