package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"reelsmith/internal/fileutil"
)

const fileStoreVersion = 1

// FileStore keeps run state in one JSON document that is re-read before every
// operation and replaced atomically after every mutation.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type document struct {
	Version    int         `json:"version"`
	Counter    int64       `json:"counter"`
	Runs       []RunRecord `json:"runs"`
	UsedAssets []UsedAsset `json:"used_assets"`
	Pending    []Pending   `json:"pending"`
}

// OpenFile opens or initializes the JSON state file at path.
func OpenFile(path string) (*FileStore, error) {
	store := &FileStore{path: path}
	if _, err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Close is a no-op; the document is flushed on every mutation.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{Version: fileStoreVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", s.path, err)
	}
	if doc.Version != fileStoreVersion {
		return nil, fmt.Errorf("%w: state file has version %d, expected %d", ErrSchemaMismatch, doc.Version, fileStoreVersion)
	}
	return &doc, nil
}

func (s *FileStore) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// mutate loads the document, applies fn and persists the result when fn succeeds.
func (s *FileStore) mutate(fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *FileStore) read(fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

func (d *document) upsertRun(run RunRecord) {
	for i := range d.Runs {
		if d.Runs[i].ID == run.ID {
			d.Runs[i] = run
			return
		}
	}
	d.Runs = append(d.Runs, run)
}

func (d *document) commit(run RunRecord, assets []UsedAsset) int64 {
	d.Counter++
	d.upsertRun(run)
	seen := make(map[string]struct{}, len(d.UsedAssets))
	for _, a := range d.UsedAssets {
		seen[a.Path] = struct{}{}
	}
	for _, a := range assets {
		if _, dup := seen[a.Path]; dup {
			continue
		}
		a.RunID = run.ID
		d.UsedAssets = append(d.UsedAssets, a)
		seen[a.Path] = struct{}{}
	}
	return d.Counter
}

// Counter returns the current post counter.
func (s *FileStore) Counter(_ context.Context) (int64, error) {
	var value int64
	err := s.read(func(d *document) error {
		value = d.Counter
		return nil
	})
	return value, err
}

// Commit atomically increments the counter, records the run and appends the ledger.
func (s *FileStore) Commit(_ context.Context, c Commit) (int64, error) {
	var next int64
	err := s.mutate(func(d *document) error {
		if d.Counter != c.ExpectedCounter {
			return fmt.Errorf("%w: expected %d, found %d", ErrCounterConflict, c.ExpectedCounter, d.Counter)
		}
		run := c.Run
		run.Outcome = OutcomeCommitted
		next = d.commit(run, c.Assets)
		return nil
	})
	return next, err
}

// RecordRun stores a non-committed run.
func (s *FileStore) RecordRun(_ context.Context, run RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	return s.mutate(func(d *document) error {
		d.upsertRun(run)
		return nil
	})
}

// Run fetches a run by id.
func (s *FileStore) Run(_ context.Context, id string) (RunRecord, error) {
	var found RunRecord
	err := s.read(func(d *document) error {
		for _, run := range d.Runs {
			if run.ID == id {
				found = run
				return nil
			}
		}
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	})
	return found, err
}

// History returns the most recent runs, newest first.
func (s *FileStore) History(_ context.Context, limit int) ([]RunRecord, error) {
	limit = normalizeLimit(limit)
	var out []RunRecord
	err := s.read(func(d *document) error {
		for i := len(d.Runs) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, d.Runs[i])
		}
		return nil
	})
	return out, err
}

// UsedAssetPaths returns ledger paths plus assets held by pending publishes.
func (s *FileStore) UsedAssetPaths(_ context.Context) (map[string]struct{}, error) {
	used := make(map[string]struct{})
	err := s.read(func(d *document) error {
		for _, a := range d.UsedAssets {
			used[a.Path] = struct{}{}
		}
		for _, p := range d.Pending {
			for _, a := range p.Assets {
				used[a.Path] = struct{}{}
			}
		}
		return nil
	})
	return used, err
}

// RecentQuotes returns quotes of the most recent posted runs.
func (s *FileStore) RecentQuotes(_ context.Context, limit int) ([]string, error) {
	limit = normalizeLimit(limit)
	var quotes []string
	err := s.read(func(d *document) error {
		for i := len(d.Runs) - 1; i >= 0 && len(quotes) < limit; i-- {
			run := d.Runs[i]
			switch run.Outcome {
			case OutcomeCommitted, OutcomeReconciled, OutcomePending:
				if run.Quote != "" {
					quotes = append(quotes, run.Quote)
				}
			}
		}
		return nil
	})
	return quotes, err
}

// MarkPending records run as awaiting reconciliation.
func (s *FileStore) MarkPending(_ context.Context, run RunRecord, p Pending) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	p.RunID = run.ID
	run.Outcome = OutcomePending
	return s.mutate(func(d *document) error {
		for _, existing := range d.Pending {
			if existing.RunID == run.ID {
				return fmt.Errorf("run %s already pending", run.ID)
			}
		}
		d.upsertRun(run)
		d.Pending = append(d.Pending, p)
		return nil
	})
}

// PendingList returns unresolved publishes, oldest first.
func (s *FileStore) PendingList(_ context.Context) ([]Pending, error) {
	var out []Pending
	err := s.read(func(d *document) error {
		out = append(out, d.Pending...)
		return nil
	})
	return out, err
}

// Resolve settles a pending publish.
func (s *FileStore) Resolve(_ context.Context, r Resolution) (int64, error) {
	var counter int64
	err := s.mutate(func(d *document) error {
		idx := -1
		for i, p := range d.Pending {
			if p.RunID == r.RunID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("pending run %s: %w", r.RunID, ErrNotFound)
		}
		pending := d.Pending[idx]
		d.Pending = append(d.Pending[:idx], d.Pending[idx+1:]...)

		var run RunRecord
		for _, candidate := range d.Runs {
			if candidate.ID == r.RunID {
				run = candidate
			}
		}
		if run.ID == "" {
			return fmt.Errorf("pending run %s: %w", r.RunID, ErrNotFound)
		}
		run.FinishedAt = resolvedAt(r.At)
		if r.Published {
			if d.Counter != pending.ExpectedCounter {
				return fmt.Errorf("%w: pending run %s expected %d, found %d", ErrCounterConflict, r.RunID, pending.ExpectedCounter, d.Counter)
			}
			run.Outcome = OutcomeReconciled
			run.PostID = r.PostID
			counter = d.commit(run, pending.Assets)
			return nil
		}
		run.Outcome = OutcomeAbandoned
		d.upsertRun(run)
		counter = d.Counter
		return nil
	})
	return counter, err
}

// Seed raises the counter to value.
func (s *FileStore) Seed(_ context.Context, value int64) error {
	return s.mutate(func(d *document) error {
		if value < d.Counter {
			return fmt.Errorf("%w: current %d, requested %d", ErrCounterRegression, d.Counter, value)
		}
		d.Counter = value
		return nil
	})
}
