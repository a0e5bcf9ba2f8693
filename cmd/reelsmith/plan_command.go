package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/runstate"
	"reelsmith/internal/variant"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "plan [counter...]",
		Short: "Show which variant the schedule picks for counter values",
		Long: "Without arguments, plan lists the next --count posts starting at the\n" +
			"current counter. Given explicit counters it evaluates only those.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			counters, err := parseCounters(args)
			if err != nil {
				return err
			}
			if len(counters) == 0 {
				err := ctx.withStore(func(_ *config.Config, store runstate.Store) error {
					current, err := store.Counter(cmd.Context())
					if err != nil {
						return err
					}
					for i := range count {
						counters = append(counters, current+int64(i))
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			settings := variant.SettingsFromConfig(cfg)
			rows := make([][]string, 0, len(counters))
			for _, c := range counters {
				d := variant.Select(c, settings)
				rows = append(rows, []string{strconv.FormatInt(c, 10), string(d.Kind), d.Requirements().String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Counter", "Variant", "Needs"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of upcoming posts to list")
	return cmd
}

func parseCounters(args []string) ([]int64, error) {
	out := make([]int64, 0, len(args))
	for _, arg := range args {
		value, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || value < 0 {
			return nil, fmt.Errorf("invalid counter %q", arg)
		}
		out = append(out, value)
	}
	return out, nil
}
