package runstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const runColumns = `id, counter, variant, reason, fallback_from, outcome, failed_stage, error_kind,
    error_message, post_id, artifact_path, quote, author, dry_run, started_at, finished_at`

// Counter returns the current post counter.
func (s *SQLiteStore) Counter(ctx context.Context) (int64, error) {
	ctx = orBackground(ctx)
	var value int64
	err := withBusyRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT value FROM counter WHERE id = 1").Scan(&value)
	})
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return value, nil
}

// Commit atomically increments the counter, records the run and appends the ledger.
func (s *SQLiteStore) Commit(ctx context.Context, c Commit) (int64, error) {
	var next int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var current int64
		if err := tx.QueryRowContext(ctx, "SELECT value FROM counter WHERE id = 1").Scan(&current); err != nil {
			return fmt.Errorf("read counter: %w", err)
		}
		if current != c.ExpectedCounter {
			return fmt.Errorf("%w: expected %d, found %d", ErrCounterConflict, c.ExpectedCounter, current)
		}
		run := c.Run
		run.Outcome = OutcomeCommitted
		var err error
		next, err = commitTx(ctx, tx, run, c.Assets)
		return err
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func commitTx(ctx context.Context, tx *sql.Tx, run RunRecord, assets []UsedAsset) (int64, error) {
	if _, err := tx.ExecContext(ctx, "UPDATE counter SET value = value + 1 WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	if err := upsertRun(ctx, tx, run); err != nil {
		return 0, err
	}
	for _, asset := range assets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO used_assets (path, kind, run_id, used_at) VALUES (?, ?, ?, ?)
             ON CONFLICT(path) DO NOTHING`,
			asset.Path, asset.Kind, run.ID, stamp(asset.UsedAt),
		); err != nil {
			return 0, fmt.Errorf("record used asset %s: %w", asset.Path, err)
		}
	}
	var next int64
	if err := tx.QueryRowContext(ctx, "SELECT value FROM counter WHERE id = 1").Scan(&next); err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return next, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRun(ctx context.Context, db execer, run RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	dryRun := 0
	if run.DryRun {
		dryRun = 1
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            counter = excluded.counter, variant = excluded.variant, reason = excluded.reason,
            fallback_from = excluded.fallback_from, outcome = excluded.outcome,
            failed_stage = excluded.failed_stage, error_kind = excluded.error_kind,
            error_message = excluded.error_message, post_id = excluded.post_id,
            artifact_path = excluded.artifact_path, quote = excluded.quote, author = excluded.author,
            dry_run = excluded.dry_run, finished_at = excluded.finished_at`,
		run.ID, run.Counter, run.Variant, run.Reason, nullIfBlank(run.FallbackFrom), string(run.Outcome),
		nullIfBlank(run.FailedStage), nullIfBlank(run.ErrorKind), nullIfBlank(run.ErrorMessage),
		nullIfBlank(run.PostID), nullIfBlank(run.ArtifactPath), nullIfBlank(run.Quote),
		nullIfBlank(run.Author), dryRun, stamp(run.StartedAt), stamp(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// RecordRun stores a non-committed run.
func (s *SQLiteStore) RecordRun(ctx context.Context, run RunRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertRun(ctx, tx, run)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		run                                            RunRecord
		outcome, started, finished                     string
		fallback, failedStage, errKind, errMsg, postID sql.NullString
		artifact, quote, author                        sql.NullString
		dryRun                                         int
	)
	if err := row.Scan(&run.ID, &run.Counter, &run.Variant, &run.Reason, &fallback, &outcome, &failedStage,
		&errKind, &errMsg, &postID, &artifact, &quote, &author, &dryRun, &started, &finished); err != nil {
		return RunRecord{}, err
	}
	run.FallbackFrom = fallback.String
	run.Outcome = Outcome(outcome)
	run.FailedStage = failedStage.String
	run.ErrorKind = errKind.String
	run.ErrorMessage = errMsg.String
	run.PostID = postID.String
	run.ArtifactPath = artifact.String
	run.Quote = quote.String
	run.Author = author.String
	run.DryRun = dryRun != 0
	run.StartedAt = unstamp(started)
	run.FinishedAt = unstamp(finished)
	return run, nil
}

// Run fetches a run by id.
func (s *SQLiteStore) Run(ctx context.Context, id string) (RunRecord, error) {
	ctx = orBackground(ctx)
	run, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// History returns the most recent runs, newest first.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]RunRecord, error) {
	ctx = orBackground(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY seq DESC LIMIT ?", normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UsedAssetPaths returns ledger paths plus assets held by pending publishes.
func (s *SQLiteStore) UsedAssetPaths(ctx context.Context) (map[string]struct{}, error) {
	ctx = orBackground(ctx)
	used := make(map[string]struct{})
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM used_assets")
	if err != nil {
		return nil, fmt.Errorf("query used assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan used asset: %w", err)
		}
		used[path] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pending, err := s.PendingList(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pending {
		for _, asset := range p.Assets {
			used[asset.Path] = struct{}{}
		}
	}
	return used, nil
}

// RecentQuotes returns quotes of the most recent posted runs.
func (s *SQLiteStore) RecentQuotes(ctx context.Context, limit int) ([]string, error) {
	ctx = orBackground(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT quote FROM runs WHERE outcome IN (?, ?, ?) AND quote IS NOT NULL
         ORDER BY seq DESC LIMIT ?`,
		string(OutcomeCommitted), string(OutcomeReconciled), string(OutcomePending), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent quotes: %w", err)
	}
	defer rows.Close()
	var quotes []string
	for rows.Next() {
		var quote string
		if err := rows.Scan(&quote); err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, rows.Err()
}

// MarkPending records run as awaiting reconciliation together with the
// assets it consumed.
func (s *SQLiteStore) MarkPending(ctx context.Context, run RunRecord, p Pending) error {
	assetsJSON, err := json.Marshal(p.Assets)
	if err != nil {
		return fmt.Errorf("marshal pending assets: %w", err)
	}
	p.RunID = run.ID
	run.Outcome = OutcomePending
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertRun(ctx, tx, run); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pending (run_id, expected_counter, assets_json, detail, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			p.RunID, p.ExpectedCounter, string(assetsJSON), nullIfBlank(p.Detail), stamp(p.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert pending %s: %w", p.RunID, err)
		}
		return nil
	})
}

// PendingList returns unresolved publishes, oldest first.
func (s *SQLiteStore) PendingList(ctx context.Context) ([]Pending, error) {
	ctx = orBackground(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, expected_counter, assets_json, detail, created_at FROM pending ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()
	var out []Pending
	for rows.Next() {
		var (
			p                 Pending
			assetsJSON, stamp string
			detail            sql.NullString
		)
		if err := rows.Scan(&p.RunID, &p.ExpectedCounter, &assetsJSON, &detail, &stamp); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		if err := json.Unmarshal([]byte(assetsJSON), &p.Assets); err != nil {
			return nil, fmt.Errorf("decode pending assets for %s: %w", p.RunID, err)
		}
		p.Detail = detail.String
		p.CreatedAt = unstamp(stamp)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Resolve settles a pending publish.
func (s *SQLiteStore) Resolve(ctx context.Context, r Resolution) (int64, error) {
	var counter int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			assetsJSON string
			expected   int64
		)
		err := tx.QueryRowContext(ctx, "SELECT assets_json, expected_counter FROM pending WHERE run_id = ?", r.RunID).
			Scan(&assetsJSON, &expected)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("pending run %s: %w", r.RunID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read pending %s: %w", r.RunID, err)
		}
		run, err := scanRun(tx.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", r.RunID))
		if err != nil {
			return fmt.Errorf("read pending run %s: %w", r.RunID, err)
		}
		run.FinishedAt = resolvedAt(r.At)

		if r.Published {
			var current int64
			if err := tx.QueryRowContext(ctx, "SELECT value FROM counter WHERE id = 1").Scan(&current); err != nil {
				return fmt.Errorf("read counter: %w", err)
			}
			if current != expected {
				return fmt.Errorf("%w: pending run %s expected %d, found %d", ErrCounterConflict, r.RunID, expected, current)
			}
			var assets []UsedAsset
			if err := json.Unmarshal([]byte(assetsJSON), &assets); err != nil {
				return fmt.Errorf("decode pending assets: %w", err)
			}
			run.Outcome = OutcomeReconciled
			run.PostID = r.PostID
			if counter, err = commitTx(ctx, tx, run, assets); err != nil {
				return err
			}
		} else {
			run.Outcome = OutcomeAbandoned
			if err := upsertRun(ctx, tx, run); err != nil {
				return err
			}
			if err := tx.QueryRowContext(ctx, "SELECT value FROM counter WHERE id = 1").Scan(&counter); err != nil {
				return fmt.Errorf("read counter: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pending WHERE run_id = ?", r.RunID); err != nil {
			return fmt.Errorf("delete pending %s: %w", r.RunID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return counter, nil
}

// Seed raises the counter to value.
func (s *SQLiteStore) Seed(ctx context.Context, value int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var current int64
		if err := tx.QueryRowContext(ctx, "SELECT value FROM counter WHERE id = 1").Scan(&current); err != nil {
			return fmt.Errorf("read counter: %w", err)
		}
		if value < current {
			return fmt.Errorf("%w: current %d, requested %d", ErrCounterRegression, current, value)
		}
		_, err := tx.ExecContext(ctx, "UPDATE counter SET value = ? WHERE id = 1", value)
		return err
	})
}

func resolvedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
