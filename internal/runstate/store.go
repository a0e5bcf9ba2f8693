package runstate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/services"
)

var (
	// ErrNotFound reports a missing run or pending entry.
	ErrNotFound = fmt.Errorf("runstate: %w", services.ErrNotFound)
	// ErrCounterConflict reports that the counter moved since the run read it.
	ErrCounterConflict = errors.New("runstate: counter changed during run")
	// ErrCounterRegression rejects seeding the counter below its current value.
	ErrCounterRegression = errors.New("runstate: counter may not decrease")
)

// Store is the persistence contract the pipeline and CLI depend on.
type Store interface {
	// Counter returns the current post counter.
	Counter(ctx context.Context) (int64, error)
	// Commit atomically increments the counter, appends the used assets and
	// records the run as committed. It returns the new counter.
	Commit(ctx context.Context, c Commit) (int64, error)
	// RecordRun stores a non-committed run (failed or pending).
	RecordRun(ctx context.Context, run RunRecord) error
	// Run fetches a run by id.
	Run(ctx context.Context, id string) (RunRecord, error)
	// History returns the most recent runs, newest first.
	History(ctx context.Context, limit int) ([]RunRecord, error)
	// UsedAssetPaths returns every path in the used-asset ledger.
	UsedAssetPaths(ctx context.Context) (map[string]struct{}, error)
	// RecentQuotes returns quotes of the most recent committed runs.
	RecentQuotes(ctx context.Context, limit int) ([]string, error)
	// MarkPending records run as awaiting reconciliation of an unknown
	// publish outcome, holding the assets it consumed.
	MarkPending(ctx context.Context, run RunRecord, p Pending) error
	// PendingList returns unresolved publishes, oldest first.
	PendingList(ctx context.Context) ([]Pending, error)
	// Resolve settles a pending publish. A published resolution commits the
	// run exactly as Commit would and fails with ErrCounterConflict when the
	// counter moved past the pending slot; otherwise the run is abandoned.
	Resolve(ctx context.Context, r Resolution) (int64, error)
	// Seed raises the counter to value, for migrating an existing account.
	Seed(ctx context.Context, value int64) error
	Close() error
}

// Open returns the backend selected by state.backend.
func Open(cfg *config.Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.State.Backend)) {
	case "", config.StateBackendSQLite:
		return OpenSQLite(cfg.State.Path)
	case config.StateBackendFile:
		return OpenFile(cfg.State.Path)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "runstate", "open",
			fmt.Sprintf("unsupported state backend %q", cfg.State.Backend), nil)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
