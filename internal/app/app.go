package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "serve":
		return runServe(args[1:])
	case "process":
		return runProcess(args[1:])
	case "entry":
		return runEntry(args[1:])
	case "history":
		return runHistory(args[1:])
	case "library":
		return runLibrary(args[1:])
	case "user":
		return runUser(args[1:])
	case "sweep":
		return runSweep(args[1:])
	case "schedule":
		return runSchedule(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "safeagree CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  safeagree <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity and artifact storage")
	fmt.Fprintln(os.Stderr, "  serve     Start Echo API server")
	fmt.Fprintln(os.Stderr, "  process   Summarize a policy link or file for a user")
	fmt.Fprintln(os.Stderr, "  entry     Show one catalog entry with its summary")
	fmt.Fprintln(os.Stderr, "  history   List recently processed policies")
	fmt.Fprintln(os.Stderr, "  library   Manage a user's library (add, list, remove, refresh, import, export)")
	fmt.Fprintln(os.Stderr, "  user      Manage users (create, delete, lookup)")
	fmt.Fprintln(os.Stderr, "  sweep     Delete stored summaries no catalog entry references")
	fmt.Fprintln(os.Stderr, "  schedule  Run library refresh and sweep on cron schedules")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"safeagree <command> -h\" for command-specific flags.")
}
