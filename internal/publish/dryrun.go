package publish

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/render"
	"reelsmith/internal/services"
)

// DryRun stores artifacts locally instead of posting them.
type DryRun struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewDryRun stores copies under outputDir/published.
func NewDryRun(outputDir string, logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DryRun{
		dir:    filepath.Join(outputDir, "published"),
		logger: logging.NewComponentLogger(logger, "publish-dryrun"),
		now:    time.Now,
	}
}

// Publish copies every artifact file and writes the caption alongside.
func (d *DryRun) Publish(ctx context.Context, artifact render.Artifact, caption string) (Result, error) {
	files := artifact.Files()
	if len(files) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "dry run", "artifact has no files", nil)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "dry run", "create published dir", err)
	}

	id := "dryrun-" + uuid.NewString()
	var copied []string
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		dst := filepath.Join(d.dir, filepath.Base(src))
		if err := fileutil.CopyFile(src, dst); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "dry run", "copy artifact", err)
		}
		copied = append(copied, dst)
	}
	captionPath := filepath.Join(d.dir, id+".caption.txt")
	if err := fileutil.WriteFileAtomic(captionPath, []byte(caption), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "dry run", "write caption", err)
	}
	copied = append(copied, captionPath)

	d.logger.Info("dry run publish stored",
		logging.String("post_id", id),
		logging.Int("files", len(copied)),
		logging.String("dir", d.dir),
	)
	return Result{PostID: id, DryRun: true, PublishedAt: d.now(), Files: copied}, nil
}

// Verify treats every dry-run id as present.
func (d *DryRun) Verify(_ context.Context, postID string) (bool, error) {
	return postID != "", nil
}
