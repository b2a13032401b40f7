// Command microstates extracts EEG microstates: it converts EDF recordings
// to sample tables, fits canonical maps per recording and per group,
// back-fits recordings against the group maps and reports label metrics.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("microstates: ")
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// run dispatches a subcommand.
func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		printUsage(stdout)
		return fmt.Errorf("missing command")
	}
	command, rest := args[0], args[1:]

	switch command {
	case "preprocess":
		return runPreprocess(rest, stdout)
	case "fit":
		return runFit(rest, stdout)
	case "group":
		return runGroup(rest, stdout)
	case "backfit":
		return runBackfit(rest, stdout)
	case "run":
		return runAll(rest, stdout)
	case "runs":
		return runRuns(rest, stdout)
	case "migrate":
		return runMigrate(rest, stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `microstates - EEG microstate extraction

Usage: microstates <command> [options]

Commands:
  preprocess  Convert EDF recordings to sample tables
  fit         Fit canonical maps for every sample table in a directory
  group       Cluster per-recording maps into group maps
  backfit     Label recordings against group maps and compute metrics
  run         preprocess (when given EDF input), fit, group and backfit
  runs        List runs stored in the results database
  migrate     Manage the results database schema (see: microstates migrate help)
  version     Show build information
  help        Show this help message

Common flags:
  -config <file>    JSON or YAML options file (defaults are built in)
  -db <file>        SQLite results database; runs are recorded when set
  -verbose          Log per-iteration diagnostics
  -threshold, -rate, -min-duration, -peak-mode, -clusters, -iterations,
  -seed, -group-clusters, -workers
                    Override the matching option of the config file

Output layout under -out:
  Tables/<name>.csv                 sample tables (preprocess, run)
  Microstates/<name>_microstates.csv
  General/general_microstates.csv
  Labels/<name>.txt
  Metrics/metrics.csv, Metrics/metrics.html
  Plots/<name>_gfp.png, Plots/<name>_gev.png (with -plots)
`)
}
