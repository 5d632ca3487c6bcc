package etl_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bartetl/pkg/bart"
	"bartetl/pkg/checkpoint"
	"bartetl/pkg/config"
	errs "bartetl/pkg/errors"
	"bartetl/pkg/etl"
	"bartetl/pkg/logger"
	"bartetl/pkg/ratelimit"
	"bartetl/pkg/retry"
	"bartetl/pkg/storage"
	"bartetl/pkg/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBART serves stn.aspx and etd.aspx for a fixed set of stations
type mockBART struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []string
	failing  map[string]int
	// onDepartures runs before a station's estimates are written
	onDepartures func(stationID string)
}

var mockStations = []string{"12TH", "EMBR", "MONT"}

func newMockBART(t *testing.T) *mockBART {
	t.Helper()
	m := &mockBART{failing: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc(bart.StationsEndpoint, m.handleStations)
	mux.HandleFunc(bart.DeparturesEndpoint, m.handleDepartures)
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockBART) handleStations(w http.ResponseWriter, r *http.Request) {
	entries := make([]string, 0, len(mockStations))
	for i, id := range mockStations {
		entries = append(entries, fmt.Sprintf(
			`{"name":"Station %s","abbr":"%s","gtfs_latitude":"37.80%d","gtfs_longitude":"-122.27%d","address":"1 Main St","city":"Oakland","county":"alameda","state":"CA","zipcode":"94612"}`,
			id, id, i, i))
	}
	fmt.Fprintf(w, `{"root":{"stations":{"station":[%s]}}}`, strings.Join(entries, ","))
}

func (m *mockBART) handleDepartures(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("orig")

	m.mu.Lock()
	m.requests = append(m.requests, id)
	status := m.failing[id]
	hook := m.onDepartures
	m.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	fmt.Fprintf(w, `{"root":{"station":[{"name":"Station %s","abbr":"%s","etd":[
 {"destination":"Antioch","abbreviation":"ANTC","estimate":[
  {"minutes":"3","platform":"2","direction":"North","length":"10","color":"YELLOW","bikeflag":"1","delay":"0"},
  {"minutes":"Leaving","platform":"2","direction":"North","length":"10","color":"YELLOW","bikeflag":"1","delay":"0"}
 ]},
 {"destination":"Daly City","abbreviation":"DALY","estimate":[
  {"minutes":"7","platform":"1","direction":"South","length":"8","color":"GREEN","bikeflag":"0","delay":"2"}
 ]}
]}]}}`, id, id)
}

func (m *mockBART) departureRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

type pipeline struct {
	scheduler   *etl.Scheduler
	store       *storage.SQLiteStore
	checkpoints *checkpoint.Manager
	log         *logger.TestLogger
}

func newPipeline(t *testing.T, api *mockBART, dir string) *pipeline {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger()

	store, err := storage.OpenSQLite(ctx, filepath.Join(dir, "bart.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := bart.NewClient(config.APIConfig{
		BaseURL: api.server.URL,
		APIKey:  "TEST-KEY",
		Timeout: 5 * time.Second,
	}, ratelimit.NewTokenBucket(1000, 10), &retry.Config{
		MaxAttempts: 2,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     errs.IsRetryable,
		Logger:      log,
	}, log)

	checkpoints := checkpoint.NewManager(filepath.Join(dir, "etl_checkpoint.json"), log)
	s, err := etl.NewScheduler(etl.Options{
		Extractor:      client,
		Transformer:    transform.New(log),
		Loader:         store,
		Checkpoints:    checkpoints,
		Interval:       time.Minute,
		StationTimeout: 5 * time.Second,
		Logger:         log,
	})
	require.NoError(t, err)

	return &pipeline{scheduler: s, store: store, checkpoints: checkpoints, log: log}
}

func TestPipelineFullCycle(t *testing.T) {
	api := newMockBART(t)
	api.failing["EMBR"] = http.StatusServiceUnavailable
	p := newPipeline(t, api, t.TempDir())
	ctx := context.Background()

	res := p.scheduler.Trigger(ctx)

	assert.Equal(t, etl.StatusSuccess, res.Status)
	assert.Equal(t, 3, res.StationsProcessed)
	// Two valid estimates per healthy station; "Leaving" is dropped
	assert.Equal(t, 4, res.DeparturesProcessed)
	assert.False(t, p.checkpoints.Exists(), "checkpoint should be deleted after a clean cycle")

	// EMBR is retried once, then skipped
	assert.Equal(t, []string{"12TH", "EMBR", "EMBR", "MONT"}, api.departureRequests())

	var failed []string
	for _, m := range p.log.GetMessagesByLevel("ERROR") {
		if id, ok := m.Field("station_id").(string); ok {
			failed = append(failed, id)
		}
	}
	assert.Equal(t, []string{"EMBR"}, failed)

	stats, err := p.store.DailyStats(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 4, stats[0].TotalDepartures)
	assert.Equal(t, 2, stats[0].DelayedCount)

	byDest, err := p.store.StationStats(ctx, "MONT", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, byDest, 2)
}

func TestPipelineResumesAfterShutdown(t *testing.T) {
	api := newMockBART(t)
	dir := t.TempDir()
	p := newPipeline(t, api, dir)

	ctx, cancel := context.WithCancel(context.Background())
	api.onDepartures = func(id string) {
		if id == "12TH" {
			cancel()
		}
	}

	_, err := p.scheduler.RunOneCycle(ctx)
	require.Error(t, err)

	cp, err := p.checkpoints.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.LastStationIndex)
	assert.Equal(t, []string{"12TH"}, cp.StationsProcessed)
	assert.Equal(t, 2, cp.AllDeparturesCount)

	api.onDepartures = nil
	restarted := newPipeline(t, api, dir)
	sum, err := restarted.scheduler.RunOneCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, sum.Resumed)
	assert.Equal(t, 1, sum.StartIndex)
	assert.Equal(t, 2, sum.StationsAttempted)
	assert.Equal(t, 6, sum.DeparturesLoaded)
	assert.Equal(t, []string{"12TH", "EMBR", "MONT"}, api.departureRequests())
	assert.False(t, restarted.checkpoints.Exists())
}
