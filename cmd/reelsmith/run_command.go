package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/preflight"
	"reelsmith/internal/runstate"
	"reelsmith/internal/variant"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var variantFlag string
	var theme string
	var dryRun bool
	var skipPreflight bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Produce and publish one post",
		Long: "Generate content, acquire assets, render, validate and publish a single post.\n" +
			"The variant follows the counter schedule unless --variant forces one.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{Theme: strings.TrimSpace(theme), DryRun: dryRun}
			if strings.TrimSpace(variantFlag) != "" {
				kind, err := variant.ParseKind(variantFlag)
				if err != nil {
					return err
				}
				opts.Variant = kind
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireRunCredentials(dryRun); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, retentionTargets(cfg)...)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !skipPreflight {
				if err := requirePreflight(runCtx, cfg); err != nil {
					return err
				}
			}

			store, err := runstate.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run state: %w", err)
			}
			defer store.Close()

			p, closeFn, err := pipeline.Build(runCtx, cfg, store, dryRun, logger)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			result, runErr := p.Run(runCtx, opts)
			if errors.Is(runErr, pipeline.ErrRunInProgress) {
				return runErr
			}
			if errors.Is(runErr, pipeline.ErrReconcilePending) {
				return fmt.Errorf("%w\nCheck the account, then run: reelsmith reconcile <run-id> --published | --not-published (see: reelsmith status)", runErr)
			}
			if jsonOutput {
				if err := writeJSON(cmd, runSummary(result, runErr)); err != nil {
					return err
				}
			} else {
				printRunResult(cmd.OutOrStdout(), result, runErr)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&variantFlag, "variant", "", "Force a variant: standard, animated, reference_person, flash_reel, carousel")
	cmd.Flags().StringVar(&theme, "theme", "", "Theme hint passed to content generation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Publish to the output directory and leave the counter untouched")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and credential checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the run summary as JSON")
	return cmd
}

// requirePreflight runs the offline checks; remote reachability is left to
// the first stage that needs it so a flaky endpoint gets the retry policy.
func requirePreflight(ctx context.Context, cfg *config.Config) error {
	var failed []string
	for _, res := range preflight.RunAll(ctx, cfg, false) {
		if !res.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", res.Name, res.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("preflight failed:\n  %s", strings.Join(failed, "\n  "))
}

func logFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
}

func retentionTargets(cfg *config.Config) []logging.RetentionTarget {
	return []logging.RetentionTarget{
		{Dir: cfg.Paths.LogDir, Pattern: "*.log", Exclude: []string{logFilePath(cfg)}},
		{Dir: cfg.Paths.LogDir, Pattern: "*.log.*"},
	}
}

type runSummaryJSON struct {
	RunID        string  `json:"run_id"`
	Variant      string  `json:"variant"`
	Reason       string  `json:"reason"`
	FallbackFrom string  `json:"fallback_from,omitempty"`
	State        string  `json:"state"`
	FailedStage  string  `json:"failed_stage,omitempty"`
	Counter      int64   `json:"counter"`
	PostID       string  `json:"post_id,omitempty"`
	Quote        string  `json:"quote,omitempty"`
	Author       string  `json:"author,omitempty"`
	Artifact     string  `json:"artifact,omitempty"`
	DurationSecs float64 `json:"duration_seconds"`
	Error        string  `json:"error,omitempty"`
}

func runSummary(result pipeline.Result, runErr error) runSummaryJSON {
	out := runSummaryJSON{
		RunID:        result.RunID,
		Variant:      string(result.Decision.Kind),
		Reason:       string(result.Decision.Reason),
		FallbackFrom: string(result.Decision.From),
		State:        string(result.State),
		FailedStage:  result.FailedStage,
		Counter:      result.Counter,
		PostID:       result.PostID,
		Quote:        result.Content.Quote,
		Author:       result.Content.Author,
		Artifact:     result.Artifact.Path,
		DurationSecs: result.Duration.Seconds(),
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	return out
}

func printRunResult(w io.Writer, result pipeline.Result, runErr error) {
	fmt.Fprintf(w, "Run %s\n", result.RunID)
	label := string(result.Decision.Kind)
	if result.Decision.From != "" {
		label = fmt.Sprintf("%s (fallback from %s)", label, result.Decision.From)
	}
	fmt.Fprintf(w, "  Variant:  %s [%s]\n", label, result.Decision.Reason)
	if result.Content.Quote != "" {
		fmt.Fprintf(w, "  Quote:    %q - %s\n", result.Content.Quote, result.Content.Author)
	}
	if runErr != nil {
		fmt.Fprintf(w, "  State:    %s at %s\n", result.State, result.FailedStage)
		return
	}
	fmt.Fprintf(w, "  State:    %s\n", result.State)
	if result.Artifact.Path != "" {
		fmt.Fprintf(w, "  Artifact: %s\n", result.Artifact.Path)
	}
	if result.PostID != "" {
		fmt.Fprintf(w, "  Post:     %s\n", result.PostID)
	}
	fmt.Fprintf(w, "  Counter:  %d\n", result.Counter)
	fmt.Fprintf(w, "  Took:     %s\n", result.Duration.Round(100*time.Millisecond))
}
