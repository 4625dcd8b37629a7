package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
)

// StatusCommand prints local row counts and the latest job of every phase.
type StatusCommand struct {
	engineFlags
	Limit int
}

// NewStatusCommand creates a new StatusCommand
func NewStatusCommand() *StatusCommand {
	return &StatusCommand{}
}

// ParseFlags parses command line flags
func (cmd *StatusCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cmd.register(fs)
	fs.IntVar(&cmd.Limit, "limit", 10, "Number of recent jobs to list")
	fs.Usage = usage(fs, "status", "Show local catalog counts and sync job state.",
		"status",
		"status -db ./catalog-mirror.db -limit 20",
	)
	return fs.Parse(args)
}

// Run executes the status command
func (cmd *StatusCommand) Run() error {
	ctx := context.Background()
	app, err := cmd.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	local, err := app.Coordinator.CheckLocalStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count local rows: %w", err)
	}
	latest, err := app.Jobs.LatestByPhase(ctx, app.SyncType())
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	out := cmd.out()
	fmt.Fprintf(out, "Local catalog: %d rows\n\n", local.Total)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tROWS\tLAST JOB\tSTATUS\tCHUNKS\tPROGRESS")
	for _, phase := range entities.Phases {
		job := latest[phase]
		if job == nil {
			fmt.Fprintf(tw, "%s\t%d\t-\t-\t-\t-\n", phase, local.Counts[phase])
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d/%d\t%.1f%%\n",
			phase, local.Counts[phase], job.JobID, job.Status,
			job.CurrentChunk, job.TotalChunks, job.ProgressPercent)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if local.NeedsSync {
		fmt.Fprintf(out, "\nSync needed, next phase: %s\n", local.NextPhase)
	} else {
		fmt.Fprintln(out, "\nLocal catalog is fully populated")
	}

	recent, err := app.Jobs.ListJobs(ctx, jobs.Filter{SyncType: app.SyncType(), Limit: cmd.Limit})
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(recent) == 0 {
		return nil
	}

	fmt.Fprintf(out, "\nRecent jobs:\n")
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tPHASE\tSTATUS\tSYNCED\tFAILED\tHEARTBEAT\tERROR")
	for _, job := range recent {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			job.JobID, job.Phase, job.Status, job.ItemsSynced, job.ItemsFailed,
			ago(job.LastHeartbeat), errorLog(job.ErrorLog))
	}
	return tw.Flush()
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}

func errorLog(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
