package bart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bartetl/pkg/config"
	errs "bartetl/pkg/errors"
	"bartetl/pkg/logger"
	"bartetl/pkg/ratelimit"
	"bartetl/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationsJSON = `{"root":{"stations":{"station":[
 {"name":"12th St. Oakland City Center","abbr":"12TH","gtfs_latitude":"37.803768","gtfs_longitude":"-122.271450","address":"1245 Broadway","city":"Oakland","county":"alameda","state":"CA","zipcode":"94612"},
 {"name":"Embarcadero","abbr":"EMBR","gtfs_latitude":"37.792874","gtfs_longitude":"-122.397020","address":"298 Market Street","city":"San Francisco","county":"sanfrancisco","state":"CA","zipcode":"94111"}
]}}}`

const departuresJSON = `{"root":{"station":[{"name":"Embarcadero","abbr":"EMBR","etd":[
 {"destination":"Antioch","abbreviation":"ANTC","estimate":[
  {"minutes":"Leaving","platform":"2","direction":"North","length":"10","color":"YELLOW","hexcolor":"#ffff33","bikeflag":"1","delay":"0"},
  {"minutes":"12","platform":"2","direction":"North","length":"10","color":"YELLOW","hexcolor":"#ffff33","bikeflag":"0","delay":"86"}
 ]},
 {"destination":"Daly City","abbreviation":"DALY","estimate":[
  {"minutes":"4","platform":"1","direction":"South","length":"8","color":"GREEN","hexcolor":"#339933","bikeflag":"1"}
 ]}
]}]}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *logger.TestLogger) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger()
	retryCfg := &retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     errs.IsRetryable,
		Logger:      log,
	}
	c := NewClient(config.APIConfig{
		BaseURL: srv.URL,
		APIKey:  "TEST-KEY",
		Timeout: 5 * time.Second,
	}, ratelimit.NewTokenBucket(1000, 10), retryCfg, log)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return c, log
}

func TestExtractStations(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StationsEndpoint, r.URL.Path)
		assert.Equal(t, "stns", r.URL.Query().Get("cmd"))
		assert.Equal(t, "TEST-KEY", r.URL.Query().Get("key"))
		assert.Equal(t, "y", r.URL.Query().Get("json"))
		assert.Equal(t, "bartetl/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(stationsJSON))
	})

	stations, err := c.ExtractStations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "12TH", stations[0].ID)
	assert.Equal(t, "Oakland", stations[0].City)
	assert.InDelta(t, 37.803768, stations[0].Latitude, 1e-9)
	assert.InDelta(t, -122.39702, stations[1].Longitude, 1e-9)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), stations[1].ExtractedAt)
}

func TestExtractDepartures(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DeparturesEndpoint, r.URL.Path)
		assert.Equal(t, "EMBR", r.URL.Query().Get("orig"))
		_, _ = w.Write([]byte(departuresJSON))
	})

	deps, err := c.ExtractDepartures(context.Background(), "EMBR")
	require.NoError(t, err)
	require.Len(t, deps, 3)

	assert.Equal(t, "Leaving", deps[0].Minutes)
	assert.Equal(t, "Antioch", deps[1].Destination)
	assert.Equal(t, "86", deps[1].Delay)
	assert.Equal(t, "Daly City", deps[2].Destination)
	assert.Equal(t, "", deps[2].Delay)
	assert.Equal(t, "1", deps[2].BikeFlag)
	for _, d := range deps {
		assert.Equal(t, "EMBR", d.StationID)
	}
}

func TestExtractDeparturesNoService(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"root":{"station":[{"name":"Oakland Int'l Airport","abbr":"OAKL"}]}}`))
	})

	deps, err := c.ExtractDepartures(context.Background(), "OAKL")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(stationsJSON))
	})

	stations, err := c.ExtractStations(context.Background())
	require.NoError(t, err)
	assert.Len(t, stations, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"not found is not retried", http.StatusNotFound, 1},
		{"forbidden is not retried", http.StatusForbidden, 1},
		{"rate limited is retried", http.StatusTooManyRequests, 3},
		{"bad gateway is retried", http.StatusBadGateway, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			})

			_, err := c.ExtractDepartures(context.Background(), "MONT")
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindNetwork))

			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.status, e.Code)
			assert.Equal(t, "MONT", e.StationID)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestMalformedJSON(t *testing.T) {
	var calls int32
	c, log := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := c.ExtractStations(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestCancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(stationsJSON))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExtractStations(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAPIKeyIsRedactedInLogs(t *testing.T) {
	c, log := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(stationsJSON))
	})

	_, err := c.ExtractStations(context.Background())
	require.NoError(t, err)

	for _, m := range log.GetMessages() {
		if u, ok := m.Field("url").(string); ok {
			assert.NotContains(t, u, "TEST-KEY")
			assert.Contains(t, u, "key=REDACTED")
		}
	}
}
