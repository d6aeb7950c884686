// Package cmd wires the command line to the extraction pipeline.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-extract/charset"
	"github.com/dhcgn/mail-extract/config"
	"github.com/dhcgn/mail-extract/extract"
	"github.com/dhcgn/mail-extract/filter"
	"github.com/dhcgn/mail-extract/output"
	"github.com/dhcgn/mail-extract/progress"
	"github.com/dhcgn/mail-extract/runner"
	"github.com/dhcgn/mail-extract/stats"
	"github.com/dhcgn/mail-extract/thread"
)

// NewRootCommand builds the mail-extract command tree.
func NewRootCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "mail-extract <file|folder>",
		Short: "Extract attachments from .eml, .msg and .mbox files, split per message of a thread",
		Long: `mail-extract decodes headers and bodies of email files whatever charset they
were written in, splits each body into the messages of the thread it quotes,
and saves the attachments under <output>/<file>/message_<n>/.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd, args)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg.LogLevel, cfg.LogDir, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting mail-extract",
				"input", cfg.Input,
				"output", cfg.OutputDir,
				"workers", cfg.Workers,
				"dryRun", cfg.DryRun,
				"separatorsVersion", cfg.Rules.Separators.Version,
			)

			return run(cmd.Context(), cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		return nil, fmt.Errorf("register flags: %w", err)
	}
	rootCmd.AddCommand(newInspectCommand())

	return rootCmd, nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd, err := NewRootCommand()
	if err != nil {
		return err
	}
	return rootCmd.ExecuteContext(ctx)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	processor, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}

	paths, err := runner.Discover(cfg.Input, cfg.Recursive)
	if err != nil {
		return fmt.Errorf("discover input: %w", err)
	}
	if cfg.InputIsDir && len(paths) == 0 {
		logger.Warn("no supported files found", "input", cfg.Input)
		return nil
	}

	r, err := runner.New(ctx, cfg, processor, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	stats.NewReporter(r, logger)

	if cfg.InputIsDir {
		bar := progress.New(len(paths), cfg.LogLevel, nil)
		progress.NewProgressReporter(r, bar, logger)
	}

	_, err = r.Run(paths)
	return err
}

func newProcessor(cfg config.Config, logger *slog.Logger) (*extract.Processor, error) {
	f, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		return nil, fmt.Errorf("filter.New: %w", err)
	}

	return extract.NewProcessor(extract.Processor{
		Resolver:  charset.New(cfg.Rules.CharsetOptions(cfg.Encodings, cfg.Detect)),
		Segmenter: thread.New(cfg.Rules.Separators.List),
		Filter:    f,
		Layout:    output.Layout{BaseDir: cfg.OutputDir},
		Writer:    output.Writer{WriteBodies: cfg.WriteBodies},
		DryRun:    cfg.DryRun,
		Logger:    logger,
	}), nil
}
