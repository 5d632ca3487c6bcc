package main

import (
	"context"
	"fmt"
	"os"

	"bartetl/pkg/auth"
	"bartetl/pkg/bart"
	"bartetl/pkg/checkpoint"
	"bartetl/pkg/config"
	"bartetl/pkg/etl"
	"bartetl/pkg/logger"
	"bartetl/pkg/ratelimit"
	"bartetl/pkg/retry"
	"bartetl/pkg/storage"
	"bartetl/pkg/transform"
)

// app bundles the wired pipeline components for one command invocation
type app struct {
	cfg         *config.Config
	log         logger.Logger
	store       storage.Store
	checkpoints *checkpoint.Manager
	scheduler   *etl.Scheduler
}

// loadConfig loads configuration and initializes the global logger. An API
// key stored with 'auth set' is used unless a flag or BARTETL_API_KEY is given.
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	if apiKey == "" && os.Getenv(auth.EnvAPIKey) == "" {
		if manager, err := auth.NewManager(); err != nil {
			log.WithError(err).Debug("Credential store unavailable")
		} else if key := manager.APIKey(profile); key != "" {
			cfg.API.APIKey = key
			log.WithField("profile", credentialProfile()).Debug("Using stored API key")
		}
	}
	if cfg.API.APIKey == config.DefaultAPIKey {
		log.Debug("Using the public BART evaluation key")
	}

	return cfg, log, nil
}

// newApp wires the extractor, transformer, loader and checkpoints into a scheduler
func newApp(ctx context.Context, flags map[string]interface{}) (*app, error) {
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	client := bart.NewClient(
		cfg.API,
		ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		retry.FromSettings(cfg.Retry, log),
		log,
	)
	checkpoints := checkpoint.NewManager(cfg.Scheduler.CheckpointPath, log)

	scheduler, err := etl.NewScheduler(etl.Options{
		Extractor:          client,
		Transformer:        transform.New(log),
		Loader:             store,
		Checkpoints:        checkpoints,
		Interval:           cfg.Scheduler.Interval,
		StationTimeout:     cfg.Scheduler.StationTimeout,
		StationRefreshHour: cfg.Scheduler.StationRefreshHour,
		Retention:          cfg.Storage.Retention,
		Logger:             log,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:         cfg,
		log:         log,
		store:       store,
		checkpoints: checkpoints,
		scheduler:   scheduler,
	}, nil
}

// lock takes the checkpoint lock when locking is enabled. The returned
// func releases it.
func (a *app) lock() (func(), error) {
	if !a.cfg.Scheduler.Lock {
		return func() {}, nil
	}
	if err := a.checkpoints.Lock(); err != nil {
		return nil, fmt.Errorf("%w (lock file %s)", err, a.checkpoints.LockPath())
	}
	return func() {
		if err := a.checkpoints.Unlock(); err != nil {
			a.log.WithError(err).Warn("Failed to release checkpoint lock")
		}
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close storage")
	}
}

func credentialProfile() string {
	if profile == "" {
		return auth.DefaultProfile
	}
	return profile
}
