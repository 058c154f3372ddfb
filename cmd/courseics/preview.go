package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"courseics/internal/convert"
	"courseics/internal/ics"
)

func newPreviewCmd(opts *options) *cobra.Command {
	var (
		from string
		days int
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Prints the class meetings in a date window without writing files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
			}
			start := time.Now().In(loc)
			if from != "" {
				start, err = time.ParseInLocation("2006-01-02", from, loc)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if days <= 0 {
				days = 7
			}

			res, err := convert.New(cfg).Events(cmd.Context())
			if err != nil {
				return err
			}
			expanded, err := ics.Expand(res.Events, ics.ExpandConfig{
				DefaultZone: cfg.Timezone,
				RangeStart:  start,
				RangeEnd:    start.AddDate(0, 0, days),
			})
			if err != nil {
				return err
			}

			occs := expanded.Occurrences
			sort.SliceStable(occs, func(i, j int) bool { return occs[i].Start.Before(occs[j].Start) })

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, occ := range occs {
				fmt.Fprintf(tw, "%s\t%s-%s\t%s\t%s\t%s\n",
					occ.Start.Format("Mon 2006-01-02"),
					occ.Start.Format("15:04"),
					occ.End.Format("15:04"),
					occ.Category,
					occ.Summary,
					occ.Location,
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, sk := range res.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped row %d: %q (%v)\n", sk.Row, sk.Item, sk.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day of the window (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to show")
	return cmd
}
