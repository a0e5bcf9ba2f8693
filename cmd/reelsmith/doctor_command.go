package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, directories and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			out := cmd.OutOrStdout()
			failures := 0

			fmt.Fprintln(out, "System dependencies")
			for _, status := range preflight.CheckSystemDeps(checkCtx, cfg) {
				if !status.Available && !status.Optional {
					failures++
				}
				detail := status.Description
				if status.Detail != "" {
					detail = status.Detail
				}
				fmt.Fprintf(out, "  [%s] %s: %s\n", passFail(out, status.Available, status.Optional), status.Name, detail)
			}

			fmt.Fprintln(out, "Configuration")
			if ctx.configPath != "" {
				fmt.Fprintf(out, "  config: %s\n", ctx.configPath)
			}
			for _, res := range preflight.RunAll(checkCtx, cfg, !offline) {
				if !res.Passed {
					failures++
				}
				fmt.Fprintf(out, "  [%s] %s: %s\n", passFail(out, res.Passed, false), res.Name, res.Detail)
			}

			if failures > 0 {
				return fmt.Errorf("doctor found %d problem(s)", failures)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that contact remote services")
	return cmd
}
