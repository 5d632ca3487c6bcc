package etl

import (
	"context"
	"time"

	"bartetl/pkg/checkpoint"
	"bartetl/pkg/models"
)

// Extractor reads stations and departure estimates from the upstream API
type Extractor interface {
	ExtractStations(ctx context.Context) ([]models.Station, error)
	ExtractDepartures(ctx context.Context, stationID string) ([]models.RawDeparture, error)
}

// Transformer validates records and computes cycle metrics
type Transformer interface {
	CleanStations(stations []models.Station) []models.Station
	CleanDepartures(raw []models.RawDeparture) []models.Departure
	ComputeMetrics(departures []models.Departure) models.MetricsSummary
}

// Loader persists canonical records
type Loader interface {
	LoadStations(ctx context.Context, stations []models.Station) error
	LoadDepartures(ctx context.Context, departures []models.Departure) error
	LoadMetrics(ctx context.Context, m models.MetricsSummary) error
}

// Pruner deletes records older than a cutoff. Loaders that implement it are
// pruned after every completed cycle.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// StationRefreshReader reports when stations were last loaded. Loaders that
// implement it let a new process skip a refresh already done today.
type StationRefreshReader interface {
	LastStationRefresh(ctx context.Context) (time.Time, error)
}

// CheckpointStore persists cycle progress
type CheckpointStore interface {
	Load() (*checkpoint.Checkpoint, error)
	Save(cp *checkpoint.Checkpoint) error
	Delete() error
}
