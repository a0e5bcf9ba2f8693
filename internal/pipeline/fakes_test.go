package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reelsmith/internal/assets"
	"reelsmith/internal/content"
	"reelsmith/internal/media"
	"reelsmith/internal/notifications"
	"reelsmith/internal/publish"
	"reelsmith/internal/render"
	"reelsmith/internal/variant"
)

type fakeGenerator struct {
	mu      sync.Mutex
	content content.Content
	errs    []error
	calls   int
}

func (g *fakeGenerator) Generate(context.Context, string) (content.Content, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return content.Content{}, err
		}
	}
	return g.content, nil
}

type fakeProvider struct {
	mu       sync.Mutex
	failFor  map[variant.Kind]error
	requests []assets.Request
	marked   []assets.Bundle
	pool     string
}

func (p *fakeProvider) Acquire(_ context.Context, req assets.Request) (assets.Bundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if err := p.failFor[req.Decision.Kind]; err != nil {
		return assets.Bundle{}, err
	}
	bg := media.Asset{
		Path:     filepath.Join(p.pool, req.RunID+".jpg"),
		Kind:     media.KindImage,
		Category: req.Category,
		Width:    1080,
		Height:   1920,
		Local:    true,
	}
	return assets.Bundle{Decision: req.Decision, Background: bg, Consumed: []media.Asset{bg}}, nil
}

func (p *fakeProvider) MarkUsed(_ context.Context, b assets.Bundle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marked = append(p.marked, b)
	return nil
}

func (p *fakeProvider) kinds() []variant.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]variant.Kind, 0, len(p.requests))
	for _, req := range p.requests {
		out = append(out, req.Decision.Kind)
	}
	return out
}

type fakeRenderer struct {
	mu          sync.Mutex
	jobs        []render.Job
	validateErr error
	validations int
}

func (r *fakeRenderer) Render(_ context.Context, job render.Job) (render.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return render.Artifact{}, err
	}
	path := filepath.Join(job.OutputDir, job.Name+".mp4")
	if err := os.WriteFile(path, []byte("reel"), 0o644); err != nil {
		return render.Artifact{}, err
	}
	return render.Artifact{Kind: job.Decision.Kind, Path: path, Target: 10, Width: 1080, Height: 1920, Format: "mp4"}, nil
}

func (r *fakeRenderer) Validate(_ context.Context, a render.Artifact) (render.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validations++
	if r.validateErr != nil {
		return a, r.validateErr
	}
	a.Duration = a.Target
	return a, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	captions []string
	// during runs inside Publish, before the result is returned.
	during func()
}

func (p *fakePublisher) Publish(_ context.Context, _ render.Artifact, caption string) (publish.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captions = append(p.captions, caption)
	if p.during != nil {
		p.during()
	}
	if p.err != nil {
		return publish.Result{}, p.err
	}
	return publish.Result{PostID: "post-" + time.Now().Format("150405.000000"), PublishedAt: time.Now()}, nil
}

func (p *fakePublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.captions)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *fakeNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type fakeVerifier struct {
	exists bool
}

func (v fakeVerifier) Verify(context.Context, string) (bool, error) { return v.exists, nil }
