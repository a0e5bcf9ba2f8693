package pipeline

import (
	"context"
	"errors"
	"fmt"

	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/runstate"
	"reelsmith/internal/services"
)

// fail records the run as failed at stage and returns err.
func (r *run) fail(ctx context.Context, stage string, err error) error {
	r.failedStage = stage
	r.releaseBundle()

	details := services.Details(err)
	attrs := append(logging.ErrorAttrs(err),
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldVariant, string(r.decision.Kind)),
		logging.Alert("stage_failure"),
	)
	if errors.Is(err, context.Canceled) {
		r.logger.Warn("run interrupted", logging.String(logging.FieldStage, stage))
	} else {
		logging.ErrorWithContext(r.logger, "run failed", "stage_failure", attrs...)
	}

	rec := r.record()
	rec.Outcome = runstate.OutcomeFailed
	rec.FailedStage = stage
	rec.ErrorKind = string(details.Kind)
	rec.ErrorMessage = err.Error()
	// Record even when the run context was canceled.
	if recErr := r.p.deps.Store.RecordRun(context.WithoutCancel(ctx), rec); recErr != nil {
		r.logger.Error("failed to record failed run", logging.Error(recErr))
	}

	if !errors.Is(err, context.Canceled) {
		r.notify(ctx, notifications.EventRunFailed, notifications.Payload{
			"variant": string(r.decision.Kind),
			"stage":   stage,
			"error":   err,
		})
	}
	r.transition(ctx, StateFailed, logging.String(logging.FieldStage, stage))
	return err
}

// park stores a publish with an unknown outcome for reconciliation. The
// counter is untouched and the consumed assets stay reserved.
func (r *run) park(ctx context.Context, err error) error {
	r.failedStage = StagePublish
	ctx = context.WithoutCancel(ctx)

	rec := r.record()
	rec.FailedStage = StagePublish
	rec.ErrorKind = string(services.KindUnknownOutcome)
	rec.ErrorMessage = err.Error()
	pending := runstate.Pending{
		RunID:           r.id,
		ExpectedCounter: r.counter,
		Assets:          r.usedAssets(),
		Detail:          err.Error(),
		CreatedAt:       r.p.deps.Now(),
	}
	if markErr := r.p.deps.Store.MarkPending(ctx, rec, pending); markErr != nil {
		r.logger.Error("failed to record pending publish", logging.Error(markErr))
		err = errors.Join(err, fmt.Errorf("record pending publish: %w", markErr))
	}
	r.releaseBundle()

	logging.ErrorWithContext(r.logger, "publish outcome unknown", "publish_unknown_outcome",
		append(logging.ErrorAttrs(err),
			logging.String(logging.FieldImpact, "counter not advanced; run awaits reconciliation"),
			logging.Alert("reconcile_required"),
		)...)
	r.notify(ctx, notifications.EventUnknownOutcome, notifications.Payload{
		"run_id":  r.id,
		"variant": string(r.decision.Kind),
		"error":   err,
	})
	r.transition(ctx, StateFailed, logging.String(logging.FieldStage, StagePublish))
	return err
}

// commit advances the counter together with the run record and the used
// asset ledger, then retires the consumed pool files.
func (r *run) commit(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	rec := r.record()

	if r.opts.DryRun {
		rec.Outcome = runstate.OutcomeDryRun
		if err := r.p.deps.Store.RecordRun(ctx, rec); err != nil {
			r.logger.Warn("failed to record dry run", logging.Error(err))
		}
		r.releaseBundle()
		r.transition(ctx, StateCommitted, logging.Bool("dry_run", true))
		return nil
	}

	r.p.commitMu.Lock()
	next, err := r.p.deps.Store.Commit(ctx, runstate.Commit{
		ExpectedCounter: r.counter,
		Run:             rec,
		Assets:          r.usedAssets(),
	})
	r.p.commitMu.Unlock()
	if err != nil {
		// The post is live; hand it to reconciliation so the counter can
		// still be advanced exactly once.
		wrapped := services.Wrap(services.ErrUnknownOutcome, StageCommit, "commit",
			fmt.Sprintf("post %s published but commit failed", r.postID), err)
		return r.park(ctx, wrapped)
	}
	r.final = next

	if err := r.p.deps.Assets.MarkUsed(ctx, r.bundle); err != nil {
		logging.WarnWithContext(r.logger, "failed to move used assets", "asset_retire_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "ledger still excludes the files from future runs"),
		)
	}
	r.releaseBundle()

	r.transition(ctx, StateCommitted, logging.Int64("new_counter", next), logging.String("post_id", r.postID))
	r.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
		"variant":  string(r.decision.Kind),
		"counter":  next,
		"post_id":  r.postID,
		"duration": r.p.deps.Now().Sub(r.started),
	})
	return nil
}

func (r *run) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := r.p.deps.Notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		r.logger.Warn("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
