package main

import (
	"github.com/spf13/cobra"

	"courseics/internal/convert"
	"courseics/internal/web"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the generated calendars over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return web.Serve(ctx, cfg, convert.New(cfg))
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
