package publish_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/publish"
	"reelsmith/internal/render"
	"reelsmith/internal/variant"
)

func TestDryRunCopiesArtifact(t *testing.T) {
	out := t.TempDir()
	dry := publish.NewDryRun(out, nil)
	artifact := render.Artifact{Kind: variant.Standard, Path: writeArtifact(t, "run.mp4")}

	result, err := dry.Publish(context.Background(), artifact, "hello")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.DryRun || !strings.HasPrefix(result.PostID, "dryrun-") {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(out, "published", "run.mp4")); err != nil {
		t.Fatalf("expected copy: %v", err)
	}
	caption, err := os.ReadFile(filepath.Join(out, "published", result.PostID+".caption.txt"))
	if err != nil || string(caption) != "hello" {
		t.Fatalf("unexpected caption %q (%v)", caption, err)
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		t.Fatalf("source must remain: %v", err)
	}
}

func TestNewSelectsPublisher(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Publish.Mode = config.PublishModeInstagram
	if _, ok := publish.New(&cfg, true, nil).(*publish.DryRun); !ok {
		t.Fatal("dry run flag should force the dry-run publisher")
	}
	if _, ok := publish.New(&cfg, false, nil).(*publish.Instagram); !ok {
		t.Fatal("instagram mode should build the Graph publisher")
	}
	cfg.Publish.Mode = config.PublishModeDryRun
	if _, ok := publish.New(&cfg, false, nil).(*publish.DryRun); !ok {
		t.Fatal("dry-run mode should build the dry-run publisher")
	}
}
