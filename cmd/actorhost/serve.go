package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/actorkit/pkg/engine"
)

func serveCommand(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the actor runtime, the reminder scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			log := newLogger(cfg)
			e, err := engine.New(cmd.Context(), cfg, engine.WithLogger(log))
			if err != nil {
				return err
			}

			log.InfoContext(cmd.Context(), "actorhost starting", "backend", cfg.Backend, "addr", cfg.HTTP.Addr)
			return e.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, overrides HTTP_ADDR")
	return cmd
}
