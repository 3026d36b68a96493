// Command np runs the Santa Claus workshop simulation and inspects its logs.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

// Exit codes.
const (
	exitOK      = 0
	exitErr     = 1
	exitInvalid = 2 // a log failed verification
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitErr)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("np", version)
		return
	}

	a := newApp(os.Stdout, os.Stderr)

	switch os.Args[1] {
	case "run":
		os.Exit(a.cmdRun(os.Args[2:]))
	case "verify":
		os.Exit(a.cmdVerify(os.Args[2:]))
	case "runs":
		os.Exit(a.cmdRuns(os.Args[2:]))
	case "log":
		os.Exit(a.cmdLog(os.Args[2:]))

	default:
		fmt.Fprintf(os.Stderr, "np: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'np --help' for usage.")
		os.Exit(exitErr)
	}
}

func printUsage() {
	fmt.Print(`np: the Santa Claus problem, with a verifiable action log

One Santa, NE elves and NR reindeer synchronize on semaphores. Every action
is logged with a global counter so the log shows one total order.

Usage:
  np <command> [flags] [args]

Commands:
  run [flags] NE NR TE TR   Run the workshop (flags go before the numbers)
                              NE  elves                   1..999
                              NR  reindeer                1..19
                              TE  max elf work (ms)       0..1000
                              TR  max reindeer vacation   0..1000
  verify [flags] [file]     Check an action log (default: $NORTHPOLE_OUT)
  runs [--limit N]          List recorded runs
  runs --delete N           Delete a recorded run and its actions
  log [--run N]             Print a recorded run's action log (default: latest)

Run flags:
  --out PATH     action log, - for stdout (default: northpole.out)
  --db PATH      record the run in a SQLite history
  --seed N       random seed, 0 picks one
  --verify       check the log before exiting
  --debug        debug diagnostics on stderr

Environment:
  NORTHPOLE_OUT     default action log path
  NORTHPOLE_DB      history database (run: off unless set; runs/log: northpole.db)
  NORTHPOLE_DEBUG   non-empty enables debug diagnostics

verify, runs and log support --json for machine-readable output.

Exit codes:
  0  success
  1  error (bad arguments, resources, a failed actor)
  2  the log failed verification
`)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
