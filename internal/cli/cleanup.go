package cli

import (
	"context"
	"flag"
	"fmt"
)

// CleanupCommand fails running jobs whose heartbeat is older than the stuck threshold.
type CleanupCommand struct {
	engineFlags
}

// NewCleanupCommand creates a new CleanupCommand
func NewCleanupCommand() *CleanupCommand {
	return &CleanupCommand{}
}

// ParseFlags parses command line flags
func (cmd *CleanupCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	cmd.register(fs)
	fs.Usage = usage(fs, "cleanup", "Mark running jobs with a stale heartbeat as failed.", "cleanup")
	return fs.Parse(args)
}

// Run executes the cleanup command
func (cmd *CleanupCommand) Run() error {
	ctx := context.Background()
	app, err := cmd.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.Coordinator.CleanupStaleJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up stale jobs: %w", err)
	}
	fmt.Fprintf(cmd.out(), "Cleaned up %d stale job(s)\n", n)
	return nil
}
