package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"bartetl/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile     string
	logLevel       string
	noColor        bool
	quiet          bool
	apiKey         string
	profile        string
	storageBackend string
	sqlitePath     string
	postgresDSN    string
	checkpointPath string

	printer *ui.Printer
)

var rootCmd = &cobra.Command{
	Use:   "bartetl",
	Short: "Checkpointed ETL for BART real-time departures",
	Long: `bartetl extracts real-time departure estimates for every BART station,
validates them, and loads them into SQLite or PostgreSQL.

Each cycle walks the station list in order and checkpoints after every
station, so an interrupted cycle resumes where it stopped. Cycles run on
a fixed interval with 'run', once with 'once', or on demand over HTTP
with 'serve'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		printer = ui.NewPrinter(cmd.OutOrStdout(), quiet, noColor)
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line with the given output streams and returns
// the exit code. Errors always go to stderr so stdout stays machine readable.
func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		ui.NewPrinter(stderr, false, noColor).Error("Error", err)
		return 1
	}
	return 0
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default: .bartetl.yaml or ~/.config/bartetl/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&apiKey, "api-key", "", "BART API key (overrides env and stored credentials)")
	pf.StringVar(&profile, "profile", "", "stored credential profile to use")
	pf.StringVar(&storageBackend, "storage", "", "storage backend (sqlite, postgres)")
	pf.StringVar(&sqlitePath, "sqlite-path", "", "SQLite database path")
	pf.StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	pf.StringVar(&checkpointPath, "checkpoint", "", "checkpoint file path")

	rootCmd.SetVersionTemplate(`bartetl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commonFlags collects the global flags in the form config.Load merges
func commonFlags() map[string]interface{} {
	return map[string]interface{}{
		"api-key":      apiKey,
		"log-level":    logLevel,
		"storage":      storageBackend,
		"sqlite-path":  sqlitePath,
		"postgres-dsn": postgresDSN,
		"checkpoint":   checkpointPath,
	}
}

// withDuration adds a duration flag only when set
func withDuration(flags map[string]interface{}, key string, d time.Duration) map[string]interface{} {
	if d > 0 {
		flags[key] = d
	}
	return flags
}
