package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/publish"
	"reelsmith/internal/runstate"
	"reelsmith/internal/services"
)

// Resolution is an operator's answer for a pending publish.
type Resolution struct {
	RunID     string
	Published bool
	PostID    string
	// At stamps the resolved run; zero means now.
	At time.Time
}

// Reconcile settles a pending publish. A published resolution advances the
// counter exactly as a normal commit would. When verifier is set and a post
// id is given, the post must exist before the run is committed.
func Reconcile(ctx context.Context, cfg *config.Config, store runstate.Store, verifier publish.Verifier, res Resolution, logger *slog.Logger) (int64, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "reconcile").With(logging.String(logging.FieldRunID, res.RunID))
	res.RunID = strings.TrimSpace(res.RunID)
	res.PostID = strings.TrimSpace(res.PostID)
	if res.RunID == "" {
		return 0, services.Wrap(services.ErrValidation, "reconcile", "resolve", "run id is required", nil)
	}

	lock, err := runstate.AcquireLock(cfg.State.LockPath)
	if err != nil {
		if errors.Is(err, runstate.ErrLocked) {
			return 0, fmt.Errorf("%w: %v", ErrRunInProgress, err)
		}
		return 0, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	run, err := store.Run(ctx, res.RunID)
	if err != nil {
		return 0, err
	}
	if run.Outcome != runstate.OutcomePending {
		return 0, services.Wrap(services.ErrValidation, "reconcile", "resolve",
			fmt.Sprintf("run %s is %s, not pending", res.RunID, run.Outcome), nil)
	}
	if res.Published && res.PostID == "" {
		res.PostID = run.PostID
	}

	if res.Published && verifier != nil && res.PostID != "" {
		exists, err := verifier.Verify(ctx, res.PostID)
		if err != nil {
			return 0, fmt.Errorf("verify post %s: %w", res.PostID, err)
		}
		if !exists {
			return 0, services.Wrap(services.ErrNotFound, "reconcile", "verify",
				fmt.Sprintf("post %s does not exist", res.PostID), nil)
		}
	}

	if res.At.IsZero() {
		res.At = time.Now()
	}
	counter, err := store.Resolve(ctx, runstate.Resolution{
		RunID:     res.RunID,
		Published: res.Published,
		PostID:    res.PostID,
		At:        res.At,
	})
	if errors.Is(err, runstate.ErrCounterConflict) {
		return 0, fmt.Errorf("%w; another post already filled the slot, resolve with --not-published", err)
	}
	if err != nil {
		return 0, err
	}
	logger.Info("pending publish resolved",
		logging.String(logging.FieldEventType, "reconciled"),
		logging.Bool("published", res.Published),
		logging.String("post_id", res.PostID),
		logging.Int64(logging.FieldCounter, counter),
	)
	return counter, nil
}
