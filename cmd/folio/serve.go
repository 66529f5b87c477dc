package main

import (
	"github.com/spf13/cobra"

	"github.com/eringen/folio"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if cfg.EphemeralSecret() {
				logger.Warn("sessions use a generated secret; set SESSION_SECRET to keep visitors unlocked across restarts")
			}
			app, err := folio.New(cfg, folio.WithLogger(logger))
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ADDR)")
	return cmd
}
