package pipeline

import (
	"context"
	"errors"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// retryPolicy is the per-stage attempt budget.
type retryPolicy struct {
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
	timeout    time.Duration
}

func (p *Pipeline) policy() retryPolicy {
	r := p.cfg.Retry
	return retryPolicy{
		attempts:   max(r.Attempts, 1),
		backoff:    time.Duration(r.BackoffMS) * time.Millisecond,
		maxBackoff: time.Duration(r.MaxBackoffMS) * time.Millisecond,
		timeout:    p.cfg.StageTimeout(),
	}
}

// once is the policy for stages that must not be repeated.
func (rp retryPolicy) once() retryPolicy {
	rp.attempts = 1
	return rp
}

// executeStage calls fn under the stage deadline, retrying retryable
// failures with doubling backoff.
func (r *run) executeStage(ctx context.Context, stage string, rp retryPolicy, fn func(ctx context.Context) error) error {
	ctx = services.WithStage(ctx, stage)
	logger := logging.ForStage(r.logger, stage, r.p.cfg.Logging.StageOverrides)
	start := r.p.deps.Now()
	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))

	delay := rp.backoff
	for attempt := 1; ; attempt++ {
		err := r.attempt(ctx, stage, rp.timeout, fn)
		if err == nil {
			logger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Int("attempts", attempt),
				logging.Duration("stage_duration", r.p.deps.Now().Sub(start)),
			)
			return nil
		}
		// A publish that may have gone out keeps its marker even when the
		// run was interrupted mid-call.
		if ctx.Err() != nil && !errors.Is(err, services.ErrUnknownOutcome) {
			return ctx.Err()
		}
		if attempt >= rp.attempts || !services.Retryable(err) {
			return err
		}
		attrs := append(logging.ErrorAttrs(err),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", rp.attempts),
			logging.Duration("backoff", delay),
			logging.String(logging.FieldImpact, "stage will be retried"),
		)
		logging.WarnWithContext(logger, "stage attempt failed", "stage_retry", attrs...)
		if err := r.p.deps.Sleep(ctx, delay); err != nil {
			return err
		}
		delay = nextBackoff(delay, rp.maxBackoff)
	}
}

func (r *run) attempt(ctx context.Context, stage string, timeout time.Duration, fn func(ctx context.Context) error) error {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := fn(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		return services.Wrap(services.ErrTimeout, stage, "deadline", "stage timed out after "+timeout.String(), err)
	}
	return err
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if limit > 0 && next > limit {
		return limit
	}
	return next
}
