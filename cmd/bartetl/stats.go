package main

import (
	"context"
	"fmt"
	"time"

	"bartetl/pkg/storage"

	"github.com/spf13/cobra"
)

var (
	statsDays      int
	statsStation   string
	statsJSON      bool
	pruneOlderThan time.Duration
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show departure statistics from storage",
	Example: `  # Daily totals for the last week
  bartetl stats

  # Per-destination breakdown for Embarcadero over the last day
  bartetl stats --station EMBR --days 1`,
	RunE: runStats,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored departures and metrics older than the retention period",
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pruneCmd)

	statsCmd.Flags().IntVar(&statsDays, "days", 7, "number of days to include")
	statsCmd.Flags().StringVar(&statsStation, "station", "", "break down one station by destination")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print as JSON")

	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "age cutoff (default storage.retention)")
}

// openStore loads configuration and opens the configured storage backend
func openStore(ctx context.Context) (storage.Store, time.Duration, error) {
	cfg, log, err := loadConfig(commonFlags())
	if err != nil {
		return nil, 0, err
	}
	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, 0, err
	}
	return store, cfg.Storage.Retention, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsDays < 1 {
		return fmt.Errorf("--days must be at least 1, got %d", statsDays)
	}

	ctx, stop := signalContext()
	defer stop()

	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	since := time.Now().UTC().AddDate(0, 0, -statsDays)

	if statsStation != "" {
		stats, err := store.StationStats(ctx, statsStation, since)
		if err != nil {
			return err
		}
		if statsJSON {
			return printer.JSON(stats)
		}
		printer.StationStats(statsStation, stats)
		return nil
	}

	stats, err := store.DailyStats(ctx, since)
	if err != nil {
		return err
	}
	if statsJSON {
		return printer.JSON(stats)
	}
	printer.DailyStats(stats)
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	store, retention, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	age := pruneOlderThan
	if age <= 0 {
		age = retention
	}
	if age <= 0 {
		return fmt.Errorf("no retention configured; pass --older-than")
	}

	cutoff := time.Now().Add(-age)
	n, err := store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("Pruned %d rows recorded before %s", n, cutoff.UTC().Format(time.RFC3339)))
	return nil
}
