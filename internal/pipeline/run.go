package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/assets"
	"reelsmith/internal/content"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/publish"
	"reelsmith/internal/render"
	"reelsmith/internal/runstate"
	"reelsmith/internal/services"
	"reelsmith/internal/textutil"
	"reelsmith/internal/timing"
	"reelsmith/internal/variant"
)

// run is the mutable state of one invocation.
type run struct {
	p       *Pipeline
	opts    Options
	id      string
	name    string
	counter int64
	// final is the counter after the run; equal to counter unless committed.
	final    int64
	decision variant.Decision
	state    State
	logger   *slog.Logger
	started  time.Time

	failedStage string

	content  content.Content
	caption  string
	bundle   assets.Bundle
	artifact render.Artifact
	postID   string
}

// Run executes one post. It holds the run lock for its whole duration and
// returns ErrRunInProgress when another run holds it. Live runs return
// ErrReconcilePending while an earlier publish is unresolved; dry runs
// never post and are let through.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	lock, err := runstate.AcquireLock(p.cfg.State.LockPath)
	if err != nil {
		if errors.Is(err, runstate.ErrLocked) {
			return Result{}, fmt.Errorf("%w: %v", ErrRunInProgress, err)
		}
		return Result{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			p.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	if !opts.DryRun {
		if err := p.checkPending(ctx); err != nil {
			return Result{}, err
		}
	}

	counter, err := p.deps.Store.Counter(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read counter: %w", err)
	}

	r := &run{
		p:       p,
		opts:    opts,
		id:      p.deps.NewID(),
		counter: counter,
		final:   counter,
		state:   StateIdle,
		started: p.deps.Now(),
	}
	r.name = runName(counter, r.id, opts.Theme)
	ctx = services.WithRunID(ctx, r.id)
	r.logger = logging.WithContext(ctx, p.logger).With(logging.Int64(logging.FieldCounter, counter))

	if opts.Variant != "" {
		r.decision = variant.Force(opts.Variant, counter, p.variants)
	} else {
		r.decision = variant.Select(counter, p.variants)
	}
	r.logger.Info("variant selected", logging.Args(append(
		logging.DecisionAttrs("variant", string(r.decision.Kind), string(r.decision.Reason)),
		logging.String("requirements", r.decision.Requirements().String()),
		logging.Bool("dry_run", opts.DryRun),
	)...)...)

	err = r.execute(ctx)
	return r.result(), err
}

func (p *Pipeline) checkPending(ctx context.Context) error {
	pending, err := p.deps.Store.PendingList(ctx)
	if err != nil {
		return fmt.Errorf("read pending publishes: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	ids := make([]string, 0, len(pending))
	for _, entry := range pending {
		ids = append(ids, entry.RunID)
	}
	logging.WarnWithContext(p.logger, "run refused while publish unresolved", "reconcile_pending",
		logging.String("pending_runs", strings.Join(ids, ",")),
		logging.String(logging.FieldImpact, "no post this slot until reconciled"),
		logging.String(logging.FieldErrorHint, "run reelsmith reconcile <run-id> --published or --not-published"),
	)
	return fmt.Errorf("%w: run %s (counter %d)", ErrReconcilePending, pending[0].RunID, pending[0].ExpectedCounter)
}

func (r *run) execute(ctx context.Context) error {
	rp := r.p.policy()

	if err := r.executeStage(ctx, StageContent, rp, r.generateContent); err != nil {
		return r.fail(ctx, StageContent, err)
	}
	r.transition(ctx, StateContentReady, logging.String("author", r.content.Author))

	if err := r.produce(ctx, rp); err != nil {
		return err
	}

	if err := r.executeStage(ctx, StageValidate, rp, r.validate); err != nil {
		return r.fail(ctx, StageValidate, err)
	}
	r.transition(ctx, StateValidated, logging.Float64("duration_seconds", r.artifact.Duration))

	r.caption = content.BuildCaption(r.content, r.p.cfg)
	if err := r.executeStage(ctx, StagePublish, rp.once(), r.publish); err != nil {
		if errors.Is(err, services.ErrUnknownOutcome) {
			return r.park(ctx, err)
		}
		return r.fail(ctx, StagePublish, err)
	}
	r.transition(ctx, StatePublished, logging.String("post_id", r.postID))

	return r.commit(ctx)
}

// produce acquires assets and renders, degrading to Standard once when a
// scheduled variant cannot be produced.
func (r *run) produce(ctx context.Context, rp retryPolicy) error {
	for {
		stage := StageAssets
		err := r.executeStage(services.WithVariant(ctx, string(r.decision.Kind)), StageAssets, rp, r.acquire)
		if err == nil {
			r.transition(ctx, StateAssetsReady,
				logging.Int("images", len(r.bundle.Images)),
				logging.Bool("narration", r.bundle.Narration != nil),
			)
			stage = StageRender
			err = r.executeStage(services.WithVariant(ctx, string(r.decision.Kind)), StageRender, rp, r.render)
		}
		if err == nil {
			r.transition(ctx, StateRendered, logging.String("artifact", r.artifact.Path))
			return nil
		}
		r.releaseBundle()
		if !r.decision.CanFallback() || !fallbackEligible(err) {
			return r.fail(ctx, stage, err)
		}
		from := r.decision
		r.decision = variant.Fallback(from, r.p.variants)
		attrs := append(logging.ErrorAttrs(err),
			logging.String(logging.FieldStage, stage),
			logging.String("fallback_from", string(from.Kind)),
			logging.String(logging.FieldImpact, "posting standard reel instead"),
		)
		attrs = append(attrs, logging.DecisionAttrs("variant", string(r.decision.Kind), string(r.decision.Reason))...)
		logging.WarnWithContext(r.logger, "variant fallback", "variant_fallback", attrs...)
		r.notify(ctx, notifications.EventFallbackUsed, notifications.Payload{
			"from":    string(from.Kind),
			"variant": string(r.decision.Kind),
			"error":   err,
		})
		r.transition(ctx, StateContentReady, logging.String("reason", string(variant.ReasonFallback)))
	}
}

// fallbackEligible admits failures that another variant could avoid.
func fallbackEligible(err error) bool {
	switch services.KindOf(err) {
	case services.KindValidation, services.KindCanceled, services.KindUnknownOutcome:
		return false
	default:
		return true
	}
}

func (r *run) generateContent(ctx context.Context) error {
	c, err := r.p.deps.Content.Generate(ctx, r.opts.Theme)
	if err != nil {
		return err
	}
	r.content = c
	return nil
}

func (r *run) acquire(ctx context.Context) error {
	r.releaseBundle()
	bundle, err := r.p.deps.Assets.Acquire(ctx, assets.Request{
		RunID:      r.name,
		Decision:   r.decision,
		Mood:       r.content.Mood,
		Category:   r.content.ImageCategory,
		Transcript: r.content.Transcript(r.p.cfg),
		WorkDir:    r.workDir(),
	})
	if err != nil {
		return err
	}
	r.bundle = bundle
	return nil
}

func (r *run) render(ctx context.Context) error {
	plan, err := r.plan()
	if err != nil {
		return err
	}
	artifact, err := r.p.deps.Renderer.Render(ctx, render.Job{
		Decision:   r.decision,
		Background: r.bundle.Background,
		Images:     r.bundle.Images,
		Narration:  r.bundle.Narration,
		Music:      r.bundle.Music,
		Plan:       plan,
		Text:       r.text(),
		OutputDir:  r.p.cfg.Paths.OutputDir,
		WorkDir:    r.workDir(),
		Name:       r.name,
	})
	if err != nil {
		return err
	}
	r.artifact = artifact
	return nil
}

// plan builds the timeline. Flash reels follow the narration; the other
// video variants spread the transcript over the fixed reel length.
func (r *run) plan() (timing.Plan, error) {
	switch r.decision.Kind {
	case variant.Carousel:
		return timing.Plan{}, nil
	case variant.FlashReel:
		if r.bundle.Narration == nil {
			return timing.Plan{}, services.Wrap(services.ErrValidation, StageRender, "plan", "flash reel has no narration", nil)
		}
		return timing.Build(r.bundle.Transcript, r.bundle.Narration.Duration, len(r.bundle.Images), r.p.timing, r.p.deps.Rand)
	default:
		transcript := r.bundle.Transcript
		if len(transcript.Segments) == 0 {
			transcript = r.content.Transcript(r.p.cfg)
		}
		return timing.Align(transcript, r.p.cfg.Reel.DurationSeconds, r.p.timing)
	}
}

func (r *run) text() render.Text {
	points := r.content.Applications
	if limit := r.p.cfg.Carousel.MaxPoints; limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	return render.Text{
		Quote:      r.content.Quote,
		Author:     r.content.Author,
		Motivation: r.content.Motivation,
		Title:      r.content.Quote,
		Points:     points,
		Closer:     r.p.cfg.Content.CloserLine,
	}
}

func (r *run) validate(ctx context.Context) error {
	artifact, err := r.p.deps.Renderer.Validate(ctx, r.artifact)
	if err != nil {
		return err
	}
	r.artifact = artifact
	return nil
}

func (r *run) publish(ctx context.Context) error {
	publisher := r.p.deps.Publisher
	if r.opts.DryRun {
		if _, ok := publisher.(*publish.DryRun); !ok {
			publisher = publish.NewDryRun(r.p.cfg.Paths.OutputDir, r.logger)
		}
	}
	result, err := publisher.Publish(ctx, r.artifact, r.caption)
	if err != nil {
		return err
	}
	r.postID = result.PostID
	return nil
}

func (r *run) workDir() string {
	return filepath.Join(r.p.cfg.Paths.WorkDir, r.name)
}

func (r *run) releaseBundle() {
	if err := r.bundle.Release(); err != nil {
		r.logger.Warn("failed to remove generated media", logging.Error(err))
	}
	r.bundle = assets.Bundle{}
}

func (r *run) record() runstate.RunRecord {
	return runstate.RunRecord{
		ID:           r.id,
		Counter:      r.counter,
		Variant:      string(r.decision.Kind),
		Reason:       string(r.decision.Reason),
		FallbackFrom: string(r.decision.From),
		PostID:       r.postID,
		ArtifactPath: r.artifact.Path,
		Quote:        r.content.Quote,
		Author:       r.content.Author,
		DryRun:       r.opts.DryRun,
		StartedAt:    r.started,
		FinishedAt:   r.p.deps.Now(),
	}
}

func (r *run) usedAssets() []runstate.UsedAsset {
	now := r.p.deps.Now()
	out := make([]runstate.UsedAsset, 0, len(r.bundle.Consumed))
	for _, asset := range r.bundle.Consumed {
		out = append(out, runstate.UsedAsset{
			Path:   asset.Path,
			Kind:   string(asset.Kind),
			RunID:  r.id,
			UsedAt: now,
		})
	}
	return out
}

func (r *run) result() Result {
	return Result{
		RunID:       r.id,
		Decision:    r.decision,
		State:       r.state,
		FailedStage: r.failedStage,
		Counter:     r.final,
		PostID:      r.postID,
		Content:     r.content,
		Caption:     r.caption,
		Artifact:    r.artifact,
		Duration:    r.p.deps.Now().Sub(r.started),
	}
}

// runName names the work directory and artifacts, e.g. reel_50_stoicism_1f3a9c2e.
func runName(counter int64, id, theme string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	if strings.TrimSpace(theme) == "" {
		return fmt.Sprintf("reel_%d_%s", counter, short)
	}
	return fmt.Sprintf("reel_%d_%s_%s", counter, textutil.TruncateRunes(textutil.SanitizeToken(theme), 24), short)
}
