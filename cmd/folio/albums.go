package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/folio/assets"
	"github.com/eringen/folio/fswatch"
)

func newAlbumsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "albums",
		Short: "Build album image assets",
	}
	cmd.AddCommand(newAlbumsBuildCommand(ctx))
	cmd.AddCommand(newAlbumsWatchCommand(ctx))
	return cmd
}

func newAlbumsBuildCommand(ctx *commandContext) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "build [folder]",
		Short: "Generate thumbnails, web images, covers and manifests",
		Long: `Generate derivatives for every folder under content/albums, or only for
the named folder. Albums without a descriptor, an original/ directory or any
supported image are skipped; a failing album does not stop the others.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			opts := cfg.AssetOptions(logger)
			if workers > 0 {
				opts.Workers = workers
			}
			target := ""
			if len(args) == 1 {
				target = args[0]
			}

			p := assets.New(opts, cfg.Codec())
			sum, err := p.Run(cmd.Context(), target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum.Table())
			return sum.Err()
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "images rendered concurrently per album (overrides ALBUM_WORKERS)")
	return cmd
}

func newAlbumsWatchCommand(ctx *commandContext) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild albums whenever their source folder changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			p := assets.New(cfg.AssetOptions(logger), cfg.Codec())
			logger.Info("watching albums", "root", cfg.AlbumsContentDir(), "debounce", debounce)
			err = p.Watch(cmd.Context(), debounce)
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", fswatch.DefaultDebounce, "quiet period before rebuilding")
	return cmd
}
