package storage

import (
	"context"
	"fmt"
	"time"

	"bartetl/pkg/config"
	errs "bartetl/pkg/errors"
	"bartetl/pkg/logger"
	"bartetl/pkg/models"
)

// Store is the persistence backend of the pipeline
type Store interface {
	// LoadStations upserts stations by ID
	LoadStations(ctx context.Context, stations []models.Station) error
	// LoadDepartures appends departures as one batch
	LoadDepartures(ctx context.Context, departures []models.Departure) error
	// LoadMetrics appends one metrics row
	LoadMetrics(ctx context.Context, m models.MetricsSummary) error
	// LastStationRefresh returns when stations were last upserted, or the
	// zero time if none were
	LastStationRefresh(ctx context.Context) (time.Time, error)

	// Prune deletes departures and metrics recorded before cutoff
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// DailyStats returns per-date aggregates for dates on or after since, newest first
	DailyStats(ctx context.Context, since time.Time) ([]models.DailyStat, error)
	// StationStats returns per-destination aggregates for one station
	StationStats(ctx context.Context, stationID string, since time.Time) ([]models.DestinationStat, error)

	Ping(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg and makes sure its schema exists
func New(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	switch cfg.Backend {
	case "", "sqlite":
		s, err := OpenSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errs.Storage("open", fmt.Errorf("unknown backend %q", cfg.Backend))
	}
}

// tsLayout is a fixed-width UTC layout so stored timestamps sort as text
const tsLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
