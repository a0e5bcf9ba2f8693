package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/publish"
	"reelsmith/internal/runstate"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var published bool
	var notPublished bool
	var postID string
	var skipVerify bool

	cmd := &cobra.Command{
		Use:   "reconcile <run-id>",
		Short: "Resolve a publish whose outcome was unknown",
		Long: "Check the Instagram account, then record whether the pending post went out.\n" +
			"--published commits the run and advances the counter; --not-published\n" +
			"abandons it and releases its assets for reuse.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if published == notPublished {
				return errors.New("specify exactly one of --published or --not-published")
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store runstate.Store) error {
				var verifier publish.Verifier
				if published && !skipVerify && cfg.Publish.Mode == config.PublishModeInstagram {
					verifier = publish.NewInstagram(publish.InstagramConfigFromConfig(cfg), logger)
				}
				counter, err := pipeline.Reconcile(cmd.Context(), cfg, store, verifier, pipeline.Resolution{
					RunID:     args[0],
					Published: published,
					PostID:    postID,
				}, logger)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if published {
					fmt.Fprintf(out, "Run %s committed; counter is now %d\n", args[0], counter)
				} else {
					fmt.Fprintf(out, "Run %s abandoned; counter stays at %d\n", args[0], counter)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&published, "published", false, "The post is live on the account")
	cmd.Flags().BoolVar(&notPublished, "not-published", false, "The post never appeared")
	cmd.Flags().StringVar(&postID, "post-id", "", "Media id of the live post")
	cmd.Flags().BoolVar(&skipVerify, "no-verify", false, "Do not look the post up before committing")
	return cmd
}
