package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"bartetl/pkg/etl"
	"bartetl/pkg/server"
	"bartetl/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	runInterval  time.Duration
	runRetention time.Duration
	runServe     bool
	serveAddr    string
	onceJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ETL cycles on a fixed interval",
	Long: `Run one cycle immediately and then one per interval until interrupted.

SIGINT or SIGTERM stops the run between stations. Progress is saved to the
checkpoint file and the next run resumes from the next station.`,
	Example: `  # Every minute against the default SQLite database
  bartetl run

  # Every 5 minutes into PostgreSQL, with the HTTP trigger enabled
  bartetl run --interval 5m --storage postgres --postgres-dsn postgres://localhost/bart --serve`,
	RunE: runRun,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single ETL cycle and exit",
	Long: `Run exactly one cycle, resuming from a checkpoint if one exists, and print
the result. Exits non-zero when the cycle fails.`,
	RunE: runOnce,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger and health endpoints",
	Long: `Serve POST /trigger, which runs one cycle and returns its result, and
GET /health, which reports storage connectivity. No cycles run on a timer.`,
	RunE: runServeCmd,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(serveCmd)

	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "time between cycle starts (default from config)")
	runCmd.Flags().DurationVar(&runRetention, "retention", 0, "prune records older than this after each cycle")
	runCmd.Flags().BoolVar(&runServe, "serve", false, "also serve the HTTP trigger and health endpoints")
	runCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (default from config)")

	onceCmd.Flags().BoolVar(&onceJSON, "json", false, "print the trigger result as JSON")
	onceCmd.Flags().DurationVar(&runRetention, "retention", 0, "prune records older than this after the cycle")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (default from config)")
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runFlags() map[string]interface{} {
	flags := commonFlags()
	flags["addr"] = serveAddr
	flags = withDuration(flags, "interval", runInterval)
	return withDuration(flags, "retention", runRetention)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, runFlags())
	if err != nil {
		return err
	}
	defer a.Close()

	unlock, err := a.lock()
	if err != nil {
		return err
	}
	defer unlock()

	printer.Info("Interval", a.cfg.Scheduler.Interval.String())
	printer.Info("Storage", a.cfg.Storage.Backend)
	printer.Info("Checkpoint", a.checkpoints.Path())

	// A server that fails to listen stops the scheduler too
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	if runServe {
		srv := server.New(a.cfg.Server, a.scheduler, a.store, a.log)
		printer.Info("Listening", a.cfg.Server.Addr)
		go func() {
			err := srv.ListenAndServe(ctx)
			if err != nil {
				cancel()
			}
			serverErr <- err
		}()
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	if runServe {
		if err := <-serverErr; err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	if a.checkpoints.Exists() {
		printer.Warning("Stopped mid-cycle; progress saved to " + a.checkpoints.Path())
	} else {
		printer.Success("Stopped")
	}
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, runFlags())
	if err != nil {
		return err
	}
	defer a.Close()

	unlock, err := a.lock()
	if err != nil {
		return err
	}
	defer unlock()

	sum, cycleErr := a.scheduler.RunOneCycle(ctx)
	if onceJSON {
		if err := printer.JSON(etl.NewResult(sum, cycleErr)); err != nil {
			return err
		}
	} else if sum.CycleID != "" {
		printer.CycleSummary(sum)
	}

	if cycleErr != nil {
		if ctx.Err() != nil {
			ui.NewPrinter(cmd.ErrOrStderr(), quiet, noColor).Warning("Interrupted; progress saved to " + a.checkpoints.Path())
		}
		return cycleErr
	}
	return nil
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, runFlags())
	if err != nil {
		return err
	}
	defer a.Close()

	unlock, err := a.lock()
	if err != nil {
		return err
	}
	defer unlock()

	srv := server.New(a.cfg.Server, a.scheduler, a.store, a.log)
	printer.Info("Listening", a.cfg.Server.Addr)

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
