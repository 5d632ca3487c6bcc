package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	errs "bartetl/pkg/errors"
	"bartetl/pkg/logger"
	"bartetl/pkg/models"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLiteStore is a Store backed by a local SQLite file
type SQLiteStore struct {
	conn    *sql.DB
	writeMu sync.Mutex
	path    string
	logger  logger.Logger
	now     func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path in WAL mode
func OpenSQLite(ctx context.Context, path string, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Storage("open", fmt.Errorf("failed to create database directory: %w", err))
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Storage("open", fmt.Errorf("failed to open database: %w", err))
	}

	// One writer at a time; the mutex serialises transactions on the single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, errs.Storage("open", fmt.Errorf("failed to ping database: %w", err))
	}

	s := &SQLiteStore{
		conn:   conn,
		path:   path,
		logger: log.WithFields(map[string]interface{}{"component": "storage", "backend": "sqlite"}),
		now:    time.Now,
	}
	if err := s.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	s.logger.DebugWithFields("connected to database", map[string]interface{}{"path": path})
	return s, nil
}

// EnsureSchema creates tables if they don't exist
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.ExecContext(ctx, sqliteSchema); err != nil {
		return errs.Storage("ensure schema", err)
	}
	return nil
}

// LoadStations upserts stations by ID
func (s *SQLiteStore) LoadStations(ctx context.Context, stations []models.Station) error {
	if len(stations) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage("load stations", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (
			station_id, name, latitude, longitude, address, city, county, state,
			zipcode, extracted_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (station_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			address = excluded.address,
			city = excluded.city,
			county = excluded.county,
			state = excluded.state,
			zipcode = excluded.zipcode,
			extracted_at = excluded.extracted_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return errs.Storage("load stations", fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer stmt.Close()

	updatedAt := formatTime(s.now())
	for _, st := range stations {
		if _, err := stmt.ExecContext(ctx,
			st.ID, st.Name, st.Latitude, st.Longitude, st.Address, st.City,
			st.County, st.State, st.Zipcode, formatTime(st.ExtractedAt), updatedAt,
		); err != nil {
			return errs.Storage("load stations", fmt.Errorf("failed to upsert %s: %w", st.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage("load stations", fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// LoadDepartures appends departures in a single transaction tagged with a batch id
func (s *SQLiteStore) LoadDepartures(ctx context.Context, departures []models.Departure) error {
	if len(departures) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage("load departures", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO departures (
			batch_id, station_id, destination, direction, minutes, platform,
			line_color, length, bikes_allowed, delay, extracted_at, date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errs.Storage("load departures", fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer stmt.Close()

	batchID := uuid.New().String()
	for _, d := range departures {
		if _, err := stmt.ExecContext(ctx,
			batchID, d.StationID, d.Destination, d.Direction, d.Minutes, d.Platform,
			d.LineColor, d.Length, d.BikesAllowed, d.Delay, formatTime(d.ExtractedAt), formatDate(d.ExtractedAt),
		); err != nil {
			return errs.Storage("load departures", fmt.Errorf("failed to insert departure: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage("load departures", fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// LastStationRefresh returns the newest station updated_at
func (s *SQLiteStore) LastStationRefresh(ctx context.Context) (time.Time, error) {
	var last sql.NullString
	if err := s.conn.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM stations`).Scan(&last); err != nil {
		return time.Time{}, errs.Storage("last station refresh", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(tsLayout, last.String)
	if err != nil {
		return time.Time{}, errs.Storage("last station refresh", fmt.Errorf("bad updated_at %q: %w", last.String, err))
	}
	return t, nil
}

// LoadMetrics appends one metrics row. An empty ID is replaced with a new UUID.
func (s *SQLiteStore) LoadMetrics(ctx context.Context, m models.MetricsSummary) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	counts, err := json.Marshal(m.DirectionCounts)
	if err != nil {
		return errs.Storage("load metrics", fmt.Errorf("failed to encode direction counts: %w", err))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO metrics (
			id, total_departures, avg_delay, max_delay, delayed_trains, delay_rate,
			bikes_allowed_rate, avg_train_length, direction_counts, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TotalDepartures, m.AvgDelay, m.MaxDelay, m.DelayedCount, m.DelayRate,
		m.BikesAllowedRate, m.AvgTrainLength, string(counts), formatTime(m.CalculatedAt),
	)
	if err != nil {
		return errs.Storage("load metrics", err)
	}
	return nil
}

// Prune deletes departures and metrics recorded before cutoff
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	queries := []struct {
		name  string
		query string
	}{
		{"departures", "DELETE FROM departures WHERE extracted_at < ?"},
		{"metrics", "DELETE FROM metrics WHERE calculated_at < ?"},
	}

	c := formatTime(cutoff)
	var total int64
	for _, q := range queries {
		res, err := s.conn.ExecContext(ctx, q.query, c)
		if err != nil {
			return total, errs.Storage("prune", fmt.Errorf("failed to prune %s: %w", q.name, err))
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if total > 0 {
		s.logger.InfoWithFields("pruned old records", map[string]interface{}{
			"deleted": total,
			"cutoff":  c,
		})
	}
	return total, nil
}

// DailyStats returns per-date aggregates, newest first
func (s *SQLiteStore) DailyStats(ctx context.Context, since time.Time) ([]models.DailyStat, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT date,
		       COUNT(*),
		       SUM(CASE WHEN delay > 0 THEN 1 ELSE 0 END),
		       AVG(CASE WHEN delay > 0 THEN delay END),
		       MAX(delay)
		FROM departures
		WHERE date >= ?
		GROUP BY date
		ORDER BY date DESC`, formatDate(since))
	if err != nil {
		return nil, errs.Storage("daily stats", err)
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var st models.DailyStat
		var avg sql.NullFloat64
		if err := rows.Scan(&st.Date, &st.TotalDepartures, &st.DelayedCount, &avg, &st.MaxDelay); err != nil {
			return nil, errs.Storage("daily stats", err)
		}
		st.AvgDelay = avg.Float64
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("daily stats", err)
	}
	return stats, nil
}

// StationStats returns per-destination aggregates for one station
func (s *SQLiteStore) StationStats(ctx context.Context, stationID string, since time.Time) ([]models.DestinationStat, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT station_id,
		       destination,
		       COUNT(*),
		       SUM(CASE WHEN delay > 0 THEN 1 ELSE 0 END),
		       AVG(CASE WHEN delay > 0 THEN delay END),
		       AVG(minutes)
		FROM departures
		WHERE station_id = ? AND extracted_at >= ?
		GROUP BY station_id, destination
		ORDER BY COUNT(*) DESC, destination`, stationID, formatTime(since))
	if err != nil {
		return nil, errs.Storage("station stats", err)
	}
	defer rows.Close()

	var stats []models.DestinationStat
	for rows.Next() {
		var st models.DestinationStat
		var avg sql.NullFloat64
		if err := rows.Scan(&st.StationID, &st.Destination, &st.TotalDepartures, &st.DelayedCount, &avg, &st.AvgMinutes); err != nil {
			return nil, errs.Storage("station stats", err)
		}
		st.AvgDelay = avg.Float64
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("station stats", err)
	}
	return stats, nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return errs.Storage("ping", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
