package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bartetl/pkg/logger"
	"bartetl/pkg/models"

	"github.com/google/uuid"
)

// ErrCycleRunning is returned when a cycle is requested while another runs
var ErrCycleRunning = errors.New("a cycle is already running")

const defaultStationTimeout = 30 * time.Second

// Options configures a Scheduler
type Options struct {
	Extractor   Extractor
	Transformer Transformer
	Loader      Loader
	Checkpoints CheckpointStore

	// Interval between cycle starts in Start
	Interval time.Duration
	// StationTimeout bounds one station's extract and load
	StationTimeout time.Duration
	// StationRefreshHour is the local hour from which stations are reloaded once a day
	StationRefreshHour int
	// Retention is the age after which records are pruned; zero disables pruning
	Retention time.Duration

	Logger logger.Logger
	Now    func() time.Time
}

// Scheduler drives checkpointed extract-transform-load cycles
type Scheduler struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	checkpoints CheckpointStore

	interval       time.Duration
	stationTimeout time.Duration
	refreshHour    int
	retention      time.Duration

	logger logger.Logger
	now    func() time.Time

	// cycleMu is held for the duration of a cycle
	cycleMu sync.Mutex
	// lastRefresh is the date stations were last loaded, as YYYY-MM-DD
	lastRefresh string
	// refreshSeeded is set once lastRefresh was read from the loader
	refreshSeeded bool
}

// NewScheduler creates a Scheduler
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Extractor == nil || opts.Transformer == nil || opts.Loader == nil || opts.Checkpoints == nil {
		return nil, fmt.Errorf("scheduler requires an extractor, transformer, loader and checkpoint store")
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StationTimeout <= 0 {
		opts.StationTimeout = defaultStationTimeout
	}

	return &Scheduler{
		extractor:      opts.Extractor,
		transformer:    opts.Transformer,
		loader:         opts.Loader,
		checkpoints:    opts.Checkpoints,
		interval:       opts.Interval,
		stationTimeout: opts.StationTimeout,
		refreshHour:    opts.StationRefreshHour,
		retention:      opts.Retention,
		logger:         opts.Logger.WithField("component", "scheduler"),
		now:            opts.Now,
	}, nil
}

// Start runs a cycle immediately and then one per interval until ctx is
// cancelled. An interrupted cycle leaves its checkpoint behind for the next start.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}

	logger.LogComponentStart(s.logger, "scheduler", map[string]interface{}{
		"interval":        s.interval.String(),
		"station_timeout": s.stationTimeout.String(),
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runScheduled(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.LogComponentStop(s.logger, "scheduler", context.Cause(ctx).Error())
			return nil
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.RunOneCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleRunning):
		s.logger.Warn("Skipping scheduled cycle: previous cycle still running")
	case ctx.Err() != nil:
		s.logger.WithError(err).Info("Cycle interrupted, progress saved")
	default:
		s.logger.WithError(err).Error("Cycle failed")
	}
}

// Trigger runs one cycle now and reports the outcome
func (s *Scheduler) Trigger(ctx context.Context) Result {
	return NewResult(s.RunOneCycle(ctx))
}

// RunOneCycle traverses the station list once, resuming from a checkpoint
// when one exists. Per-station failures are logged and skipped. The returned
// error is non-nil only when the station list cannot be fetched, another
// cycle is running, or ctx is cancelled between stations.
func (s *Scheduler) RunOneCycle(ctx context.Context) (Summary, error) {
	if !s.cycleMu.TryLock() {
		return Summary{}, ErrCycleRunning
	}
	defer s.cycleMu.Unlock()

	start := s.now()
	sum := Summary{
		CycleID:        uuid.New().String(),
		StartedAt:      start.UTC(),
		FailedStations: []string{},
	}
	log := s.logger.WithField("cycle_id", sum.CycleID)

	stations, err := s.extractor.ExtractStations(ctx)
	if err != nil {
		sum.Duration = s.now().Sub(start)
		return sum, fmt.Errorf("failed to extract stations: %w", err)
	}
	stations = s.transformer.CleanStations(stations)
	sum.TotalStations = len(stations)
	s.refreshStations(ctx, log, stations)

	progress := s.restoreProgress(log)
	sum.Resumed = progress.Resumed
	sum.StartIndex = progress.NextIndex
	if progress.NextIndex > len(stations) {
		log.WarnWithFields("Checkpoint index beyond station list, finishing cycle", map[string]interface{}{
			"last_station_index": progress.NextIndex,
			"total_stations":     len(stations),
		})
	}

	log.InfoWithFields("Cycle started", map[string]interface{}{
		"total_stations": len(stations),
		"start_index":    progress.NextIndex,
		"resumed":        progress.Resumed,
	})

	var collected []models.Departure
	for i := progress.NextIndex; i < len(stations); i++ {
		if err := ctx.Err(); err != nil {
			s.saveProgress(log, progress)
			s.fillSummary(&sum, progress, start)
			log.InfoWithFields("Cycle interrupted between stations", map[string]interface{}{
				"next_index": progress.NextIndex,
			})
			return sum, fmt.Errorf("cycle interrupted before station %d: %w", i, err)
		}

		stationID := stations[i].ID
		loaded, phase, err := s.processStation(ctx, stationID)
		logger.LogStation(log, stationID, phase, len(loaded), err)

		progress = progress.Advance(stationID, len(loaded), err)
		collected = append(collected, loaded...)
		sum.StationsAttempted++
		s.saveProgress(log, progress)
	}

	sum.Metrics = s.finishCycle(ctx, log, collected)
	s.fillSummary(&sum, progress, start)
	sum.Completed = true

	logger.LogMetrics(log, "cycle", map[string]interface{}{
		"stations_attempted": sum.StationsAttempted,
		"stations_failed":    len(sum.FailedStations),
		"departures_loaded":  sum.DeparturesLoaded,
		"duration_ms":        sum.Duration.Milliseconds(),
	})
	return sum, nil
}

// processStation extracts, cleans and loads one station. It runs detached
// from ctx cancellation so a shutdown never leaves a half-written station.
func (s *Scheduler) processStation(ctx context.Context, stationID string) ([]models.Departure, string, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stationTimeout)
	defer cancel()

	raw, err := s.extractor.ExtractDepartures(sctx, stationID)
	if err != nil {
		return nil, "extract", err
	}

	departures := s.transformer.CleanDepartures(raw)
	if err := s.loader.LoadDepartures(sctx, departures); err != nil {
		return nil, "load", err
	}
	return departures, "load", nil
}

// finishCycle loads the cycle metrics, deletes the checkpoint and prunes old data
func (s *Scheduler) finishCycle(ctx context.Context, log logger.Logger, collected []models.Departure) *models.MetricsSummary {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stationTimeout)
	defer cancel()

	var metrics *models.MetricsSummary
	if len(collected) > 0 {
		m := s.transformer.ComputeMetrics(collected)
		m.ID = uuid.New().String()
		if err := s.loader.LoadMetrics(ctx, m); err != nil {
			log.WithError(err).Error("Failed to load cycle metrics")
		} else {
			metrics = &m
		}
	} else {
		log.Debug("No departures collected, skipping metrics")
	}

	if err := s.checkpoints.Delete(); err != nil {
		log.WithError(err).Warn("Failed to delete checkpoint")
	}

	s.prune(ctx, log)
	return metrics
}

func (s *Scheduler) prune(ctx context.Context, log logger.Logger) {
	pruner, ok := s.loader.(Pruner)
	if !ok || s.retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	if _, err := pruner.Prune(ctx, cutoff); err != nil {
		log.WithError(err).Warn("Failed to prune old records")
	}
}

// refreshStations loads the station list once per day, from the refresh hour on
func (s *Scheduler) refreshStations(ctx context.Context, log logger.Logger, stations []models.Station) {
	now := s.now()
	today := now.Format("2006-01-02")
	s.seedLastRefresh(ctx, log, now.Location())
	if s.lastRefresh == today || now.Hour() < s.refreshHour || len(stations) == 0 {
		return
	}

	if err := s.loader.LoadStations(ctx, stations); err != nil {
		log.WithError(err).Error("Failed to refresh stations")
		return
	}
	s.lastRefresh = today
	log.InfoWithFields("Stations refreshed", map[string]interface{}{
		"count": len(stations),
	})
}

// seedLastRefresh reads the last refresh date from the loader on first use
func (s *Scheduler) seedLastRefresh(ctx context.Context, log logger.Logger, loc *time.Location) {
	if s.refreshSeeded || s.lastRefresh != "" {
		return
	}
	reader, ok := s.loader.(StationRefreshReader)
	if !ok {
		s.refreshSeeded = true
		return
	}
	last, err := reader.LastStationRefresh(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read last station refresh")
		return
	}
	s.refreshSeeded = true
	if !last.IsZero() {
		s.lastRefresh = last.In(loc).Format("2006-01-02")
	}
}

// restoreProgress loads the checkpoint. Read failures start a fresh cycle.
func (s *Scheduler) restoreProgress(log logger.Logger) CycleProgress {
	cp, err := s.checkpoints.Load()
	if err != nil {
		log.WithError(err).Warn("Failed to read checkpoint, starting a fresh cycle")
		return CycleProgress{}
	}
	return ProgressFromCheckpoint(cp)
}

// saveProgress persists progress. Failures are logged and the cycle goes on.
func (s *Scheduler) saveProgress(log logger.Logger, p CycleProgress) {
	if err := s.checkpoints.Save(p.Checkpoint(s.now())); err != nil {
		log.WithError(err).Warn("Failed to save checkpoint")
	}
}

func (s *Scheduler) fillSummary(sum *Summary, p CycleProgress, start time.Time) {
	sum.DeparturesLoaded = p.DeparturesLoaded
	sum.FailedStations = append(sum.FailedStations, p.Failed...)
	sum.Duration = s.now().Sub(start)
}
