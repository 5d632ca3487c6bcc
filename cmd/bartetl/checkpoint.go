package main

import (
	"fmt"
	"time"

	"bartetl/pkg/checkpoint"

	"github.com/spf13/cobra"
)

var checkpointJSON bool

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear the cycle checkpoint",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved checkpoint, if any",
	RunE:  runCheckpointShow,
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the checkpoint so the next cycle starts from the first station",
	Long: `Delete the checkpoint so the next cycle starts from the first station.
Refuses while a scheduler holds the checkpoint lock.`,
	RunE: runCheckpointClear,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)

	checkpointShowCmd.Flags().BoolVar(&checkpointJSON, "json", false, "print the raw checkpoint as JSON")
}

func checkpointManager() (*checkpoint.Manager, error) {
	cfg, log, err := loadConfig(commonFlags())
	if err != nil {
		return nil, err
	}
	return checkpoint.NewManager(cfg.Scheduler.CheckpointPath, log), nil
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	m, err := checkpointManager()
	if err != nil {
		return err
	}

	cp, err := m.Load()
	if err != nil {
		return err
	}
	if cp == nil {
		printer.Dim("No checkpoint at " + m.Path() + "; the next cycle starts from the first station")
		return nil
	}

	if checkpointJSON {
		return printer.JSON(cp)
	}
	printer.Panel("Checkpoint", [][2]string{
		{"Path", m.Path()},
		{"Last run", cp.LastRun.Format(time.RFC3339)},
		{"Age", time.Since(cp.LastRun).Round(time.Second).String()},
		{"Next station index", fmt.Sprintf("%d", cp.LastStationIndex)},
		{"Stations processed", fmt.Sprintf("%d", len(cp.StationsProcessed))},
		{"Departures so far", fmt.Sprintf("%d", cp.AllDeparturesCount)},
	})
	return nil
}

func runCheckpointClear(cmd *cobra.Command, args []string) error {
	m, err := checkpointManager()
	if err != nil {
		return err
	}

	if err := m.Lock(); err != nil {
		return err
	}
	defer m.Unlock()

	if !m.Exists() {
		printer.Dim("No checkpoint to clear")
		return nil
	}
	if err := m.Delete(); err != nil {
		return err
	}
	printer.Success("Checkpoint cleared: " + m.Path())
	return nil
}
