package main

import (
	"github.com/spf13/cobra"

	"courseics/internal/convert"
)

func newWatchCmd(opts *options) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-converts whenever the input workbook changes",
		Long: `Converts once, then checks the input on a cron schedule and converts
again whenever its content changed. Later runs replace the files written
by earlier ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if schedule != "" {
				cfg.WatchCron = schedule
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return convert.NewWatcher(convert.New(cfg)).Run(ctx, cfg.WatchCron)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", `Cron schedule, e.g. "*/5 * * * *" or "@every 1m"`)
	return cmd
}
