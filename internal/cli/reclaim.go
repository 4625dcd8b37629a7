package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/mrlokans/catalogmirror/internal/entities"
)

// ReclaimCommand runs the watchdog once and fails stale jobs.
type ReclaimCommand struct {
	engineFlags
	Phase string

	phase entities.Phase
}

// NewReclaimCommand creates a new ReclaimCommand
func NewReclaimCommand() *ReclaimCommand {
	return &ReclaimCommand{}
}

// ParseFlags parses command line flags
func (cmd *ReclaimCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("reclaim", flag.ContinueOnError)
	cmd.register(fs)
	fs.StringVar(&cmd.Phase, "phase", "", "Limit reclamation to one phase")
	fs.Usage = usage(fs, "reclaim", "Fail running jobs with no heartbeat or no progress so they can be replaced.",
		"reclaim",
		"reclaim -phase species",
	)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Phase != "" {
		phase, err := entities.ParsePhase(cmd.Phase)
		if err != nil {
			return err
		}
		cmd.phase = phase
	}
	return nil
}

// Run executes the reclaim command
func (cmd *ReclaimCommand) Run() error {
	ctx := context.Background()
	app, err := cmd.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	reclaimed, err := app.Watchdog.ReclaimStale(ctx, app.SyncType(), cmd.phase)
	if err != nil {
		return fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}

	out := cmd.out()
	if len(reclaimed) == 0 {
		fmt.Fprintln(out, "No stale jobs")
		return nil
	}
	for _, job := range reclaimed {
		fmt.Fprintf(out, "Reclaimed %s (%s, chunk %d): %s\n", job.JobID, job.Phase, job.CurrentChunk, errorLog(job.ErrorLog))
	}
	fmt.Fprintf(out, "%d stale job(s) failed\n", len(reclaimed))
	return nil
}
