// Package cli implements the one-shot subcommands that run the sync engine
// in-process against the configured database.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/entrypoint"
	"github.com/mrlokans/catalogmirror/internal/logger"
)

// engineFlags are shared by every command that opens the engine.
type engineFlags struct {
	DatabasePath string
	Verbose      bool

	// Config overrides environment configuration when set.
	Config *config.Config
	Out    io.Writer
}

func (f *engineFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.DatabasePath, "db", "", "Path to the sqlite database (defaults to DATABASE_PATH)")
	fs.BoolVar(&f.Verbose, "verbose", false, "Enable debug logging")
}

func (f *engineFlags) out() io.Writer {
	if f.Out == nil {
		return os.Stdout
	}
	return f.Out
}

// open loads configuration, applies flag overrides and builds the engine.
// Logs go to stderr as text so they do not mix with command output.
func (f *engineFlags) open(ctx context.Context) (*entrypoint.App, error) {
	cfg := f.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if f.DatabasePath != "" {
		cfg.Database.Path = f.DatabasePath
	}

	level := "warn"
	if f.Verbose {
		level = "debug"
	}
	logger.SetDefault(logger.New(&logger.Config{
		Level:       level,
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "catalogmirror",
	}))

	app, err := entrypoint.Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync engine: %w", err)
	}
	return app, nil
}

func usage(fs *flag.FlagSet, name, description string, examples ...string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s [options]\n\n", os.Args[0], name)
		fmt.Fprintf(os.Stderr, "%s\n\n", description)
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		if len(examples) > 0 {
			fmt.Fprintf(os.Stderr, "\nExamples:\n")
			for _, example := range examples {
				fmt.Fprintf(os.Stderr, "  %s %s\n", os.Args[0], example)
			}
		}
	}
}
