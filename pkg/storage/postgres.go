package storage

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	errs "bartetl/pkg/errors"
	"bartetl/pkg/logger"
	"bartetl/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchema string

// departureColumns is the column order used by CopyFrom
var departureColumns = []string{
	"batch_id", "station_id", "destination", "direction", "minutes", "platform",
	"line_color", "length", "bikes_allowed", "delay", "extracted_at", "date",
}

// PostgresStore is a Store backed by a PostgreSQL warehouse
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// OpenPostgres connects a pool to dsn and makes sure the tables exist
func OpenPostgres(ctx context.Context, dsn string, log logger.Logger) (*PostgresStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.Storage("open", fmt.Errorf("failed to create connection pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Storage("open", fmt.Errorf("failed to ping database: %w", err))
	}

	s := &PostgresStore{
		pool:   pool,
		logger: log.WithFields(map[string]interface{}{"component": "storage", "backend": "postgres"}),
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates tables if they don't exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return errs.Storage("ensure schema", err)
	}
	return nil
}

// LoadStations upserts stations by ID in one batch
func (s *PostgresStore) LoadStations(ctx context.Context, stations []models.Station) error {
	if len(stations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, st := range stations {
		batch.Queue(`
			INSERT INTO stations (
				station_id, name, latitude, longitude, address, city, county, state,
				zipcode, extracted_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
			ON CONFLICT (station_id) DO UPDATE SET
				name = EXCLUDED.name,
				latitude = EXCLUDED.latitude,
				longitude = EXCLUDED.longitude,
				address = EXCLUDED.address,
				city = EXCLUDED.city,
				county = EXCLUDED.county,
				state = EXCLUDED.state,
				zipcode = EXCLUDED.zipcode,
				extracted_at = EXCLUDED.extracted_at,
				updated_at = NOW()`,
			st.ID, st.Name, st.Latitude, st.Longitude, st.Address, st.City,
			st.County, st.State, st.Zipcode, st.ExtractedAt.UTC(),
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errs.Storage("load stations", err)
	}
	return nil
}

// LoadDepartures appends departures with COPY inside a transaction
func (s *PostgresStore) LoadDepartures(ctx context.Context, departures []models.Departure) error {
	if len(departures) == 0 {
		return nil
	}

	batchID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	rows := make([][]interface{}, 0, len(departures))
	for _, d := range departures {
		date, _ := time.Parse("2006-01-02", formatDate(d.ExtractedAt))
		rows = append(rows, []interface{}{
			batchID, d.StationID, d.Destination, d.Direction, d.Minutes, d.Platform,
			d.LineColor, d.Length, d.BikesAllowed, d.Delay, d.ExtractedAt.UTC(), date,
		})
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"departures"}, departureColumns, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		return errs.Storage("load departures", err)
	}
	return nil
}

// LastStationRefresh returns the newest station updated_at
func (s *PostgresStore) LastStationRefresh(ctx context.Context) (time.Time, error) {
	var last *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(updated_at) FROM stations`).Scan(&last); err != nil {
		return time.Time{}, errs.Storage("last station refresh", err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return last.UTC(), nil
}

// LoadMetrics appends one metrics row. An empty ID is replaced with a new UUID.
func (s *PostgresStore) LoadMetrics(ctx context.Context, m models.MetricsSummary) error {
	id := uuid.New()
	if m.ID != "" {
		parsed, err := uuid.Parse(m.ID)
		if err != nil {
			return errs.Storage("load metrics", fmt.Errorf("invalid metrics id: %w", err))
		}
		id = parsed
	}
	counts := m.DirectionCounts
	if counts == nil {
		counts = map[string]int{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO metrics (
			id, total_departures, avg_delay, max_delay, delayed_trains, delay_rate,
			bikes_allowed_rate, avg_train_length, direction_counts, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pgtype.UUID{Bytes: id, Valid: true}, m.TotalDepartures, m.AvgDelay, m.MaxDelay, m.DelayedCount, m.DelayRate,
		m.BikesAllowedRate, m.AvgTrainLength, counts, m.CalculatedAt.UTC(),
	)
	if err != nil {
		return errs.Storage("load metrics", err)
	}
	return nil
}

// Prune deletes departures and metrics recorded before cutoff
func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, q := range []struct{ name, query string }{
		{"departures", "DELETE FROM departures WHERE extracted_at < $1"},
		{"metrics", "DELETE FROM metrics WHERE calculated_at < $1"},
	} {
		tag, err := s.pool.Exec(ctx, q.query, cutoff.UTC())
		if err != nil {
			return total, errs.Storage("prune", fmt.Errorf("failed to prune %s: %w", q.name, err))
		}
		total += tag.RowsAffected()
	}

	if total > 0 {
		s.logger.InfoWithFields("pruned old records", map[string]interface{}{
			"deleted": total,
			"cutoff":  formatTime(cutoff),
		})
	}
	return total, nil
}

// DailyStats returns per-date aggregates, newest first
func (s *PostgresStore) DailyStats(ctx context.Context, since time.Time) ([]models.DailyStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'),
		       COUNT(*)::int,
		       COUNT(*) FILTER (WHERE delay > 0)::int,
		       (AVG(delay) FILTER (WHERE delay > 0))::float8,
		       MAX(delay)
		FROM departures
		WHERE date >= $1::date
		GROUP BY date
		ORDER BY date DESC`, formatDate(since))
	if err != nil {
		return nil, errs.Storage("daily stats", err)
	}

	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DailyStat, error) {
		var st models.DailyStat
		var avg *float64
		err := row.Scan(&st.Date, &st.TotalDepartures, &st.DelayedCount, &avg, &st.MaxDelay)
		if avg != nil {
			st.AvgDelay = *avg
		}
		return st, err
	})
	if err != nil {
		return nil, errs.Storage("daily stats", err)
	}
	return stats, nil
}

// StationStats returns per-destination aggregates for one station
func (s *PostgresStore) StationStats(ctx context.Context, stationID string, since time.Time) ([]models.DestinationStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_id,
		       destination,
		       COUNT(*)::int,
		       COUNT(*) FILTER (WHERE delay > 0)::int,
		       (AVG(delay) FILTER (WHERE delay > 0))::float8,
		       AVG(minutes)::float8
		FROM departures
		WHERE station_id = $1 AND extracted_at >= $2
		GROUP BY station_id, destination
		ORDER BY COUNT(*) DESC, destination`, stationID, since.UTC())
	if err != nil {
		return nil, errs.Storage("station stats", err)
	}

	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DestinationStat, error) {
		var st models.DestinationStat
		var avg *float64
		err := row.Scan(&st.StationID, &st.Destination, &st.TotalDepartures, &st.DelayedCount, &avg, &st.AvgMinutes)
		if avg != nil {
			st.AvgDelay = *avg
		}
		return st, err
	})
	if err != nil {
		return nil, errs.Storage("station stats", err)
	}
	return stats, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errs.Storage("ping", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
