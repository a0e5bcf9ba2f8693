package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/runstate"
	"reelsmith/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      runstate.Store
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("NTFY_TOPIC", "")

	cfg := testsupport.NewConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}

	configPath := filepath.Join(base, "reelsmith.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
assets_dir = %q
output_dir = %q
work_dir = %q
log_dir = %q

[state]
path = %q
lock_path = %q

[content]
philosophers = ["Seneca"]

[llm]
api_key = "test"

[fal]
api_key = "test"

[publish]
mode = %q

[notifications]
ntfy_topic = %q
`,
		cfg.Paths.AssetsDir,
		cfg.Paths.OutputDir,
		cfg.Paths.WorkDir,
		cfg.Paths.LogDir,
		cfg.State.Path,
		cfg.State.LockPath,
		cfg.Publish.Mode,
		cfg.Notifications.NtfyTopic,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--env-file", ""}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) markPending(t *testing.T, id string, counter int64) {
	t.Helper()
	now := time.Now().UTC()
	run := runstate.RunRecord{
		ID:        id,
		Counter:   counter,
		Variant:   "standard",
		Reason:    "frequency-match",
		Quote:     "No man is free who is not master of himself.",
		Author:    "Epictetus",
		StartedAt: now.Add(-time.Minute),
	}
	pending := runstate.Pending{
		ExpectedCounter: counter,
		Assets: []runstate.UsedAsset{
			{Path: filepath.Join(env.cfg.Paths.AssetsDir, id+".mp4"), Kind: "clip", RunID: id, UsedAt: now},
		},
		Detail:    "media_publish: 502 bad gateway",
		CreatedAt: now,
	}
	if err := env.store.MarkPending(context.Background(), run, pending); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
