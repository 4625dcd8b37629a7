package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/catalogmirror/internal/cli"
	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is implemented by every subcommand in internal/cli.
type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		if err := entrypoint.Run(cfg, Version+" ("+Commit+")"); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "sync":
		cmd = cli.NewSyncCommand()
	case "status":
		cmd = cli.NewStatusCommand()
	case "reclaim":
		cmd = cli.NewReclaimCommand()
	case "cleanup":
		cmd = cli.NewCleanupCommand()
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the HTTP API, task workers and scheduler (default)\n")
	fmt.Fprintf(os.Stderr, "  sync      Run one phase or every phase in-process\n")
	fmt.Fprintf(os.Stderr, "  status    Show local catalog counts and sync jobs\n")
	fmt.Fprintf(os.Stderr, "  reclaim   Run the stale-job watchdog once\n")
	fmt.Fprintf(os.Stderr, "  cleanup   Fail running jobs with a stale heartbeat\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
