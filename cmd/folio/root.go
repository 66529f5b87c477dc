package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/eringen/folio"
	"github.com/eringen/folio/logging"
)

type commandContext struct {
	configFlag *string
	envFlag    *string

	once   sync.Once
	config folio.SiteConfig
	logger *slog.Logger
	err    error
}

// ensure loads configuration and builds the logger once per process.
func (c *commandContext) ensure() (folio.SiteConfig, *slog.Logger, error) {
	c.once.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			path = folio.EnvOr("FOLIO_CONFIG", "")
		}
		// bootstrap logger for config warnings; replaced once the level is known
		boot, _ := logging.New(logging.Options{})
		cfg, err := folio.LoadConfig(folio.LoadOptions{
			ConfigFile: path,
			EnvFile:    strings.TrimSpace(*c.envFlag),
			Logger:     boot,
		})
		if err != nil {
			c.err = err
			return
		}
		logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			c.err = err
			return
		}
		slog.SetDefault(logger)
		c.config, c.logger = cfg, logger
	})
	return c.config, c.logger, c.err
}

func newRootCommand() *cobra.Command {
	var configFlag, envFlag string
	ctx := &commandContext{configFlag: &configFlag, envFlag: &envFlag}

	root := &cobra.Command{
		Use:   "folio",
		Short: "Personal notes and photo albums site",
		Long: `folio serves Markdown notes and photo albums from a content directory.

Album derivatives (thumbnails, web images, covers and manifests) are built
offline with "folio albums build" and served from the public directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "TOML configuration file (default folio.toml when present)")
	root.PersistentFlags().StringVar(&envFlag, "env-file", "", "dotenv file (default .env when present)")

	root.AddCommand(newServeCommand(ctx))
	root.AddCommand(newAlbumsCommand(ctx))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the folio version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "folio %s\n", version)
			return err
		},
	}
}
