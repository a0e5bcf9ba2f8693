package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/runstate"
	"reelsmith/internal/variant"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the counter, the next variant and unresolved publishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store runstate.Store) error {
				snap, err := loadStatus(cmd.Context(), cfg, store)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, snap)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Counter:      %d\n", snap.Counter)
				fmt.Fprintf(out, "Next variant: %s\n", snap.NextVariant)
				fmt.Fprintf(out, "Publish mode: %s\n", snap.PublishMode)
				fmt.Fprintf(out, "Run active:   %s\n", yesNo(snap.RunActive))
				if snap.LastRun != nil {
					fmt.Fprintf(out, "Last run:     %s %s (%s, %s)\n",
						snap.LastRun.ID, snap.LastRun.Variant, snap.LastRun.Outcome, formatTime(snap.LastRun.StartedAt))
				}
				if len(snap.Pending) == 0 {
					fmt.Fprintln(out, "Pending:      none")
					return nil
				}
				fmt.Fprintf(out, "Pending:      %d awaiting reconcile\n", len(snap.Pending))
				rows := make([][]string, 0, len(snap.Pending))
				for _, p := range snap.Pending {
					rows = append(rows, []string{p.RunID, strconv.FormatInt(p.ExpectedCounter, 10), formatTime(p.CreatedAt), truncate(p.Detail, 60)})
				}
				fmt.Fprintln(out, renderTable([]string{"Run", "Counter", "Since", "Detail"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type statusSnapshot struct {
	Counter     int64               `json:"counter"`
	NextVariant variant.Kind        `json:"next_variant"`
	PublishMode string              `json:"publish_mode"`
	RunActive   bool                `json:"run_active"`
	LastRun     *runstate.RunRecord `json:"last_run,omitempty"`
	Pending     []runstate.Pending  `json:"pending"`
}

func loadStatus(ctx context.Context, cfg *config.Config, store runstate.Store) (statusSnapshot, error) {
	counter, err := store.Counter(ctx)
	if err != nil {
		return statusSnapshot{}, fmt.Errorf("read counter: %w", err)
	}
	pending, err := store.PendingList(ctx)
	if err != nil {
		return statusSnapshot{}, fmt.Errorf("list pending: %w", err)
	}
	history, err := store.History(ctx, 1)
	if err != nil {
		return statusSnapshot{}, fmt.Errorf("read history: %w", err)
	}
	snap := statusSnapshot{
		Counter:     counter,
		NextVariant: variant.Select(counter, variant.SettingsFromConfig(cfg)).Kind,
		PublishMode: cfg.Publish.Mode,
		RunActive:   lockHeld(cfg.State.LockPath),
		Pending:     pending,
	}
	if snap.Pending == nil {
		snap.Pending = []runstate.Pending{}
	}
	if len(history) > 0 {
		snap.LastRun = &history[0]
	}
	return snap, nil
}

func lockHeld(path string) bool {
	lock, err := runstate.AcquireLock(path)
	if err != nil {
		return errors.Is(err, runstate.ErrLocked)
	}
	_ = lock.Release()
	return false
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store runstate.Store) error {
				runs, err := store.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if runs == nil {
						runs = []runstate.RunRecord{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					kind := run.Variant
					if run.FallbackFrom != "" {
						kind += " (from " + run.FallbackFrom + ")"
					}
					outcome := string(run.Outcome)
					if run.FailedStage != "" {
						outcome += " @" + run.FailedStage
					}
					rows = append(rows, []string{
						run.ID,
						strconv.FormatInt(run.Counter, 10),
						kind,
						outcome,
						run.PostID,
						formatTime(run.StartedAt),
						truncate(run.Author, 24),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Counter", "Variant", "Outcome", "Post", "Started", "Author"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCounterCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Show the post counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store runstate.Store) error {
				value, err := store.Counter(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <value>",
		Short: "Raise the counter, e.g. when migrating an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || value < 0 {
				return fmt.Errorf("invalid counter %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store runstate.Store) error {
				lock, err := runstate.AcquireLock(cfg.State.LockPath)
				if err != nil {
					return err
				}
				defer func() { _ = lock.Release() }()
				if err := store.Seed(cmd.Context(), value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Counter set to %d\n", value)
				return nil
			})
		},
	})
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}
