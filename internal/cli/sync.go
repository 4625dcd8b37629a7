package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/entrypoint"
	"github.com/mrlokans/catalogmirror/internal/events"
	"github.com/mrlokans/catalogmirror/internal/syncer"
)

const (
	maxIdleRequests = 5
	idleWait        = 2 * time.Second
)

// SyncCommand runs one phase, or every phase in order, in-process.
type SyncCommand struct {
	engineFlags
	Phase    string
	Priority string
	Continue bool
	All      bool

	phase entities.Phase
}

// NewSyncCommand creates a new SyncCommand
func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

// ParseFlags parses command line flags
func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	cmd.register(fs)
	fs.StringVar(&cmd.Phase, "phase", "", "Phase to run: master, reference, species, entity or relationships")
	fs.StringVar(&cmd.Priority, "priority", "", "Job priority: critical or standard (master defaults to critical)")
	fs.BoolVar(&cmd.Continue, "continue", false, "Keep processing chunks until the phase completes")
	fs.BoolVar(&cmd.All, "all", false, "Run every phase that still needs data, in dependency order")
	fs.Usage = usage(fs, "sync", "Mirror catalog phases into the local database.",
		"sync -phase master -priority critical -continue",
		"sync -all",
	)

	if err := fs.Parse(args); err != nil {
		return err
	}
	return cmd.validate()
}

func (cmd *SyncCommand) validate() error {
	if cmd.All && cmd.Phase != "" {
		return errors.New("-all and -phase are mutually exclusive")
	}
	if !cmd.All && cmd.Phase == "" {
		return errors.New("either -phase or -all is required")
	}
	if cmd.Priority != "" && cmd.Priority != string(entities.PriorityCritical) && cmd.Priority != string(entities.PriorityStandard) {
		return fmt.Errorf("unknown priority %q", cmd.Priority)
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

// Run executes the sync command
func (cmd *SyncCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cmd.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.out()
	progress, unsubscribe := app.Broker.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(out, progress)
	}()
	defer func() {
		unsubscribe()
		<-done
	}()

	if cmd.All {
		return cmd.runAll(ctx, app)
	}
	return cmd.runPhase(ctx, app)
}

func (cmd *SyncCommand) runAll(ctx context.Context, app *entrypoint.App) error {
	fmt.Fprintln(cmd.out(), "Syncing every phase that needs data")
	if err := app.Coordinator.StartSync(ctx); err != nil {
		return err
	}
	status := app.Coordinator.Status()
	fmt.Fprintf(cmd.out(), "%s\n", status.Message)
	return nil
}

func (cmd *SyncCommand) runPhase(ctx context.Context, app *entrypoint.App) error {
	req := syncer.PhaseRequest{
		Phase:                 cmd.phase,
		Priority:              entities.ParsePriority(cmd.Priority),
		ContinueUntilComplete: cmd.Continue,
	}
	if cmd.Priority == "" && cmd.phase == entities.PhaseMaster {
		req.Priority = entities.PriorityCritical
	}

	idle := 0
	for {
		result, err := app.Orchestrator.RequestPhase(ctx, req)
		if err != nil {
			return fmt.Errorf("phase %s: %w", cmd.phase, err)
		}
		fmt.Fprintf(cmd.out(), "%s\n", result.Message)

		if result.Completed || !cmd.Continue {
			return nil
		}

		// An abandoned chunk leaves the job where it was; wait before retrying.
		if result.ChunksProcessed > 0 {
			idle = 0
			continue
		}
		idle++
		if idle >= maxIdleRequests {
			return fmt.Errorf("phase %s made no progress after %d attempts", cmd.phase, idle)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idleWait):
		}
	}
}

func printEvents(out io.Writer, ch <-chan events.Event) {
	for e := range ch {
		switch e.Type {
		case events.TypeProgress:
			if e.Total > 0 {
				fmt.Fprintf(out, "  %s: chunk %d/%d (%.1f%%)\n", e.Phase.Title(), e.Current, e.Total, e.ProgressPercent)
			}
		case events.TypeComplete:
			fmt.Fprintf(out, "✅ %s phase completed\n", e.Phase.Title())
		case events.TypeFailed:
			fmt.Fprintf(out, "❌ %s phase failed: %s\n", e.Phase.Title(), e.Reason)
		}
	}
}
