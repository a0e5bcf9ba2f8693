package pipeline

import (
	"context"

	"reelsmith/internal/logging"
)

// State is a run's position in the pipeline.
type State string

const (
	StateIdle         State = "idle"
	StateContentReady State = "content_ready"
	StateAssetsReady  State = "assets_ready"
	StateRendered     State = "rendered"
	StateValidated    State = "validated"
	StatePublished    State = "published"
	StateCommitted    State = "committed"
	StateFailed       State = "failed"
)

// Stage names used in logs, errors and run history.
const (
	StageContent  = "content"
	StageAssets   = "assets"
	StageRender   = "render"
	StageValidate = "validate"
	StagePublish  = "publish"
	StageCommit   = "commit"
)

func (r *run) transition(ctx context.Context, to State, attrs ...logging.Attr) {
	from := r.state
	r.state = to
	fields := []logging.Attr{
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.String(logging.FieldVariant, string(r.decision.Kind)),
	}
	fields = append(fields, attrs...)
	r.logger.InfoContext(ctx, "state transition", logging.Args(fields...)...)
}
