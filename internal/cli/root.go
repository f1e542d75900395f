// Package cli implements dashctl, the offline companion of the dashboard
// server. Every command reads a file (or the bundled sample when none is
// given) through the same loader and pipeline the server uses.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	"salesdash/internal/infrastructure"
)

// env is shared by the subcommands
type env struct {
	debug  bool
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the dashctl command tree
func NewRootCommand() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Inspect, summarize and export sales datasets",
		Long:          `dashctl runs the dashboard pipeline from the command line: check which sections a file supports, print the computed dashboard as JSON, or write the cleaned CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			e.init(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().BoolVar(&e.debug, "debug", false, "enable debug logging on stderr")

	root.AddCommand(newSchemaCommand(e), newSummaryCommand(e), newExportCommand(e))
	return root
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (e *env) init(stderr io.Writer) {
	level := "warn"
	if e.debug {
		level = "debug"
	}
	e.logger = infrastructure.NewLoggerWithWriter(stderr, level, false)

	cfg, err := config.Load()
	if err != nil {
		// Non-fatal: the commands run fine on defaults
		e.logger.Warn("Using default configuration", slog.String("error", err.Error()))
		cfg = config.Default()
	}
	e.cfg = cfg
}

// load reads the named file, or the bundled sample when args is empty
func (e *env) load(ctx context.Context, args []string) (*dataset.Dataset, error) {
	loader := dataset.NewLoader(e.logger, e.cfg.Dataset.MaxUploadBytes())
	if len(args) == 0 {
		return loader.LoadFallback(ctx)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return loader.Load(ctx, args[0], f)
}
