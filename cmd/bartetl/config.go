package main

import (
	"fmt"
	"os"

	"bartetl/pkg/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage bartetl configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (BARTETL_*)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file containing every option at its default value.

The file is written to the --config path, or ./.bartetl.yaml when unset.
An existing file is never overwritten.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. The API key and
database DSN are masked.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".bartetl.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	printer.Success("Configuration file created: " + path)
	printer.Dim("Next: set api.api_key (or run 'bartetl auth set'), then 'bartetl config validate'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, commonFlags())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	printer.Title("Current configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found, defaults only)"
	}
	printer.Info("Config file", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return fmt.Errorf("no configuration file found; specify one with --config")
	}

	printer.Info("Validating", path)
	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	if cfg.API.APIKey == config.DefaultAPIKey {
		printer.Warning("api.api_key is the public evaluation key; register your own at api.bart.gov")
	}
	if cfg.Storage.Retention == 0 {
		printer.Warning("storage.retention is 0; old departures are never pruned")
	}
	if cfg.Scheduler.StationTimeout >= cfg.Scheduler.Interval {
		printer.Warning("scheduler.station_timeout is not shorter than scheduler.interval")
	}

	printer.Success("Configuration is valid")
	printer.Panel("Summary", [][2]string{
		{"Interval", cfg.Scheduler.Interval.String()},
		{"Storage", cfg.Storage.Backend},
		{"Checkpoint", cfg.Scheduler.CheckpointPath},
		{"Rate limit", fmt.Sprintf("%.1f req/s (burst %d)", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)},
		{"Max attempts", fmt.Sprintf("%d", cfg.Retry.MaxAttempts)},
		{"Log level", cfg.Logging.Level},
	})
	return nil
}
