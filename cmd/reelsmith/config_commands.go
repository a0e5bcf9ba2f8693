package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Create and check the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

// configTarget resolves where `config init` writes, defaulting to
// ~/.config/reelsmith/config.toml.
func configTarget(flagValue string) (string, error) {
	if path := strings.TrimSpace(flagValue); path != "" {
		return config.ExpandPath(path)
	}
	return config.DefaultConfigPath()
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := configTarget(targetPath)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			_, statErr := os.Stat(target)
			switch {
			case statErr == nil && !overwrite:
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
				return fmt.Errorf("check config path: %w", statErr)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Secrets come from the environment or a .env file: OPENROUTER_API_KEY, FAL_KEY, INSTAGRAM_ACCESS_TOKEN, INSTAGRAM_USER_ID.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var credentials bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration, create its directories and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = *ctx.configFlag
			}
			cfg, resolved, exists, err := config.Load(strings.TrimSpace(path))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			if credentials {
				if err := cfg.RequireRunCredentials(false); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			source := resolved
			if !exists {
				source += " (not found, defaults used)"
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, configSummary(cfg, source), nil))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&credentials, "credentials", false, "Also require the secrets a publishing run needs")
	return cmd
}

func configSummary(cfg *config.Config, source string) [][]string {
	schedule := func(enabled bool, every int) string {
		if !enabled {
			return "off"
		}
		if every <= 0 {
			return "on"
		}
		return "every " + strconv.Itoa(every)
	}
	flash := "off"
	if cfg.FlashReel.Enabled {
		flash = "on"
	}
	return [][]string{
		{"Config", source},
		{"State", cfg.State.Backend + " at " + cfg.State.Path},
		{"Content provider", cfg.Content.Provider},
		{"Publish mode", cfg.Publish.Mode},
		{"Reference person", schedule(cfg.ReferencePerson.Enabled, cfg.ReferencePerson.Frequency)},
		{"Animated", schedule(cfg.Animation.Enabled, cfg.Animation.Frequency)},
		{"Carousel", schedule(cfg.Carousel.Enabled, cfg.Carousel.Frequency)},
		{"Flash reel", flash},
	}
}
