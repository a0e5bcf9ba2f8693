package runstate

import "time"

// Outcome is the terminal state recorded for a run.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeFailed    Outcome = "failed"
	// OutcomePending marks a publish whose result is unknown.
	OutcomePending Outcome = "pending_reconciliation"
	// OutcomeReconciled marks a pending publish later confirmed as posted.
	OutcomeReconciled Outcome = "reconciled"
	// OutcomeAbandoned marks a pending publish confirmed as not posted.
	OutcomeAbandoned Outcome = "abandoned"
	// OutcomeDryRun marks a run that rendered and published locally only.
	OutcomeDryRun Outcome = "dry_run"
)

// RunRecord is one row of run history.
type RunRecord struct {
	ID           string    `json:"id"`
	Counter      int64     `json:"counter"`
	Variant      string    `json:"variant"`
	Reason       string    `json:"reason"`
	FallbackFrom string    `json:"fallback_from,omitempty"`
	Outcome      Outcome   `json:"outcome"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	PostID       string    `json:"post_id,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Quote        string    `json:"quote,omitempty"`
	Author       string    `json:"author,omitempty"`
	DryRun       bool      `json:"dry_run,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// UsedAsset is one entry in the used-asset ledger.
type UsedAsset struct {
	Path   string    `json:"path"`
	Kind   string    `json:"kind"`
	RunID  string    `json:"run_id"`
	UsedAt time.Time `json:"used_at"`
}

// Commit bundles everything a successful run writes. ExpectedCounter is the
// counter value the run was evaluated against; a mismatch aborts the commit.
type Commit struct {
	ExpectedCounter int64
	Run             RunRecord
	Assets          []UsedAsset
}

// Pending is a publish attempt whose outcome is unknown.
type Pending struct {
	RunID           string      `json:"run_id"`
	ExpectedCounter int64       `json:"expected_counter"`
	Assets          []UsedAsset `json:"assets"`
	Detail          string      `json:"detail"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Resolution settles a pending publish.
type Resolution struct {
	RunID     string
	Published bool
	PostID    string
	At        time.Time
}
