package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"courseics/internal/config"
	"courseics/internal/convert"
	appLog "courseics/internal/log"
)

const defaultConfigPath = "courseics.yaml"

// options holds flag values shared by every command.
type options struct {
	configPath  string
	input       string
	outputDir   string
	stagingFile string
	timezone    string
	overwrite   bool
	keepStaging bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "courseics",
		Short: "Converts a course schedule workbook into iCalendar files",
		Long: `Reads the course schedule export (.xlsx), expands every schedule string
into a weekly recurring event and writes one .ics file per category.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runConvert(cmd, cfg)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file (written with defaults if missing)")
	f.StringVar(&opts.input, "input", "", "Workbook path or http(s) URL")
	f.StringVar(&opts.outputDir, "output-dir", "", "Directory receiving the .ics files")
	f.StringVar(&opts.stagingFile, "csv", "", "Path of the intermediate CSV table")
	f.StringVar(&opts.timezone, "timezone", "", "IANA time zone used as TZID")
	f.BoolVar(&opts.overwrite, "overwrite", false, "Replace existing output files")
	f.BoolVar(&opts.keepStaging, "keep-staging", false, "Keep the intermediate CSV table")

	cmd.AddCommand(newPreviewCmd(opts), newServeCmd(opts), newWatchCmd(opts))
	return cmd
}

// load reads the config file, applies .env and environment overrides, and
// finally the flags the user actually set.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	if err := cfg.ApplyEnv(".env"); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input = o.input
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = o.outputDir
	}
	if flags.Changed("csv") {
		cfg.StagingFile = o.stagingFile
	}
	if flags.Changed("timezone") {
		cfg.Timezone = o.timezone
	}
	if flags.Changed("overwrite") {
		cfg.Overwrite = o.overwrite
	}
	if flags.Changed("keep-staging") {
		cfg.KeepStaging = o.keepStaging
	}
	cfg.Normalize()

	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Debug("effective config",
		"config_path", o.configPath,
		"input", cfg.Input,
		"output_dir", cfg.OutputDir,
		"staging_file", cfg.StagingFile,
		"timezone", cfg.Timezone,
		"overwrite", cfg.Overwrite,
	)
	return cfg, nil
}

func runConvert(cmd *cobra.Command, cfg *config.Config) error {
	report, err := convert.New(cfg).Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, sk := range report.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped row %d: %q (%v)\n", sk.Row, sk.Item, sk.Err)
	}
	for _, path := range report.Files {
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	fmt.Fprintf(out, "%d events, %d skipped, %d calendars\n", report.Events, len(report.Skipped), len(report.Files))
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
