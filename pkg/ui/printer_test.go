package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bartetl/pkg/etl"
	"bartetl/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuietModeSuppressesAllButErrors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true, true)

	p.Title("title")
	p.Success("done")
	p.Info("Key", "value")
	assert.Empty(t, buf.String())

	p.Error("cycle failed", errors.New("no stations"))
	assert.Contains(t, buf.String(), "cycle failed: no stations")
}

func TestBufferIsNotATerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestPlainOutputHasNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, false)

	p.Success("loaded")
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "loaded")
}

func TestJSONIgnoresQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true, true)

	require.NoError(t, p.JSON(etl.Result{Status: etl.StatusSuccess, StationsProcessed: 3}))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "success", got["status"])
	assert.Equal(t, float64(3), got["stations_processed"])
}

func TestCycleSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, true)

	p.CycleSummary(etl.Summary{
		CycleID:           "c-1",
		TotalStations:     3,
		StationsAttempted: 2,
		Resumed:           true,
		StartIndex:        1,
		FailedStations:    []string{"MONT"},
		DeparturesLoaded:  14,
		Duration:          1500 * time.Millisecond,
		Completed:         true,
		Metrics: &models.MetricsSummary{
			AvgDelay:        1.25,
			DelayRate:       0.5,
			DirectionCounts: map[string]int{"South": 4, "North": 10},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Cycle complete")
	assert.Contains(t, out, "2 of 3")
	assert.Contains(t, out, "MONT")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "North=10 South=4")
}

func TestStatsTables(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, true)

	p.DailyStats([]models.DailyStat{{Date: "2026-10-18", TotalDepartures: 120, DelayedCount: 7, AvgDelay: 0.4, MaxDelay: 9}})
	p.StationStats("EMBR", []models.DestinationStat{{StationID: "EMBR", Destination: "Antioch", TotalDepartures: 30, AvgMinutes: 8.5}})

	out := buf.String()
	assert.Contains(t, out, "2026-10-18")
	assert.Contains(t, out, "AVG DELAY")
	assert.Contains(t, out, "Antioch")
	assert.Contains(t, out, "8.5")

	buf.Reset()
	p.DailyStats(nil)
	assert.Contains(t, buf.String(), "no departures recorded")
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "East=1 West=2", formatCounts(map[string]int{"West": 2, "East": 1}))
	assert.Empty(t, formatCounts(nil))
}
