package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/assets"
	"reelsmith/internal/config"
	"reelsmith/internal/content"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/publish"
	"reelsmith/internal/render"
	"reelsmith/internal/runstate"
	"reelsmith/internal/timing"
	"reelsmith/internal/variant"
)

var (
	// ErrRunInProgress reports that another process holds the run lock.
	ErrRunInProgress = errors.New("pipeline: another run is in progress")
	// ErrReconcilePending blocks live runs while a publish with an unknown
	// outcome is unresolved; posting again could duplicate the slot.
	ErrReconcilePending = errors.New("pipeline: a publish awaits reconciliation")
)

// Renderer renders and validates artifacts. *render.Engine satisfies it.
type Renderer interface {
	Render(ctx context.Context, job render.Job) (render.Artifact, error)
	Validate(ctx context.Context, artifact render.Artifact) (render.Artifact, error)
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Store     runstate.Store
	Content   content.Generator
	Assets    assets.Provider
	Renderer  Renderer
	Publisher publish.Publisher
	Notifier  notifications.Service
	Logger    *slog.Logger
	Rand      *rand.Rand
	// Sleep waits between retry attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
	NewID func() string
}

// Options tune a single run.
type Options struct {
	// Variant forces a variant instead of the schedule when set.
	Variant variant.Kind
	Theme   string
	// DryRun publishes locally and leaves the counter and ledger untouched.
	DryRun bool
}

// Result summarizes a finished run, successful or not.
type Result struct {
	RunID       string
	Decision    variant.Decision
	State       State
	FailedStage string
	// Counter is the counter value after the run.
	Counter  int64
	PostID   string
	Content  content.Content
	Caption  string
	Artifact render.Artifact
	Duration time.Duration
}

// Pipeline runs posts one at a time.
type Pipeline struct {
	cfg      *config.Config
	deps     Deps
	variants variant.Settings
	timing   timing.Config
	logger   *slog.Logger

	// commitMu serializes the commit step within this process; the file lock
	// covers other processes.
	commitMu sync.Mutex
}

// New validates deps and builds a pipeline.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("pipeline: config is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Content == nil:
		return nil, errors.New("pipeline: content generator is required")
	case deps.Assets == nil:
		return nil, errors.New("pipeline: asset provider is required")
	case deps.Renderer == nil:
		return nil, errors.New("pipeline: renderer is required")
	case deps.Publisher == nil:
		return nil, errors.New("pipeline: publisher is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(cfg)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		variants: variant.SettingsFromConfig(cfg),
		timing:   timing.ConfigFromSettings(cfg),
		logger:   logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// Plan reports the variant the schedule picks for counter.
func (p *Pipeline) Plan(counter int64) variant.Decision {
	return variant.Select(counter, p.variants)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
