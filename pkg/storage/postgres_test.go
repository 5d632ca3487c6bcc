package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"bartetl/pkg/logger"
	"bartetl/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPostgres connects to BARTETL_TEST_POSTGRES_DSN and empties the tables
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("BARTETL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BARTETL_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn, logger.NewTestLogger())
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, "TRUNCATE stations, departures, metrics")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.LoadStations(ctx, []models.Station{
		{ID: "EMBR", Name: "Embarcadero", Latitude: 37.79, Longitude: -122.39, ExtractedAt: day1},
	}))
	require.NoError(t, s.LoadStations(ctx, []models.Station{
		{ID: "EMBR", Name: "Embarcadero Station", Latitude: 37.79, Longitude: -122.39, ExtractedAt: day1},
	}))

	last, err := s.LastStationRefresh(ctx)
	require.NoError(t, err)
	assert.False(t, last.IsZero())

	require.NoError(t, s.LoadDepartures(ctx, []models.Departure{
		departure("EMBR", "Antioch", 0, 2, day1),
		departure("EMBR", "Antioch", 6, 8, day1),
	}))
	require.NoError(t, s.LoadMetrics(ctx, models.MetricsSummary{
		TotalDepartures: 2,
		DirectionCounts: map[string]int{"North": 2},
		CalculatedAt:    day1,
	}))

	daily, err := s.DailyStats(ctx, day1)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, "2024-05-01", daily[0].Date)
	assert.Equal(t, 2, daily[0].TotalDepartures)
	assert.Equal(t, 1, daily[0].DelayedCount)
	assert.InDelta(t, 6.0, daily[0].AvgDelay, 1e-9)

	byDest, err := s.StationStats(ctx, "EMBR", day1.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, byDest, 1)
	assert.InDelta(t, 5.0, byDest[0].AvgMinutes, 1e-9)

	n, err := s.Prune(ctx, day1.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
