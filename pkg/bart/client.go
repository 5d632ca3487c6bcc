package bart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bartetl/pkg/config"
	errs "bartetl/pkg/errors"
	"bartetl/pkg/logger"
	"bartetl/pkg/models"
	"bartetl/pkg/ratelimit"
	"bartetl/pkg/retry"
)

// maxBodyBytes caps how much of a response is read
const maxBodyBytes = 4 << 20

// Client is a BART API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
	now        func() time.Time
}

// NewClient creates a new BART API client. limiter and retryCfg may be nil.
func NewClient(cfg config.APIConfig, limiter ratelimit.Limiter, retryCfg *retry.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
		retryCfg.Logger = log
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "bartetl/1.0"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		userAgent:  userAgent,
		limiter:    limiter,
		retry:      retryCfg,
		logger:     log.WithField("component", "bart_client"),
		now:        time.Now,
	}
}

// ExtractStations fetches the full station list
func (c *Client) ExtractStations(ctx context.Context) ([]models.Station, error) {
	var resp stationsResponse
	if err := c.getJSON(ctx, "extract stations", StationsURL(c.baseURL, c.apiKey), &resp); err != nil {
		return nil, err
	}

	extractedAt := c.now().UTC()
	stations := make([]models.Station, 0, len(resp.Root.Stations.Station))
	for _, s := range resp.Root.Stations.Station {
		stations = append(stations, models.Station{
			ID:          s.Abbr,
			Name:        s.Name,
			Latitude:    parseFloat(s.Latitude),
			Longitude:   parseFloat(s.Longitude),
			Address:     s.Address,
			City:        s.City,
			County:      s.County,
			State:       s.State,
			Zipcode:     s.Zipcode,
			ExtractedAt: extractedAt,
		})
	}

	c.logger.DebugWithFields("extracted stations", map[string]interface{}{
		"count": len(stations),
	})
	return stations, nil
}

// ExtractDepartures fetches the raw departure estimates for one station
func (c *Client) ExtractDepartures(ctx context.Context, stationID string) ([]models.RawDeparture, error) {
	var resp departuresResponse
	if err := c.getJSON(ctx, "extract departures", DeparturesURL(c.baseURL, c.apiKey, stationID), &resp); err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			return nil, e.WithStation(stationID)
		}
		return nil, err
	}

	extractedAt := c.now().UTC()
	var departures []models.RawDeparture
	if len(resp.Root.Station) == 0 {
		return departures, nil
	}

	for _, etd := range resp.Root.Station[0].ETD {
		for _, est := range etd.Estimate {
			departures = append(departures, models.RawDeparture{
				StationID:   stationID,
				Destination: etd.Destination,
				Direction:   est.Direction,
				Minutes:     est.Minutes,
				Platform:    est.Platform,
				Color:       est.Color,
				Length:      est.Length,
				BikeFlag:    est.BikeFlag,
				Delay:       est.Delay,
				ExtractedAt: extractedAt,
			})
		}
	}

	c.logger.DebugWithFields("extracted departures", map[string]interface{}{
		"station_id": stationID,
		"count":      len(departures),
	})
	return departures, nil
}

// getJSON performs a rate limited GET with retries and decodes the JSON body
func (c *Client) getJSON(ctx context.Context, op, url string, target interface{}) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return errs.Network(op, 0, fmt.Errorf("rate limiter: %w", err))
			}
		}

		body, err := c.get(ctx, op, url)
		if err != nil {
			return err
		}

		if err := json.Unmarshal(body, target); err != nil {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
				"url":          redactKey(url),
				"error":        err.Error(),
				"body_preview": preview,
			})
			return errs.Network(op, http.StatusOK, fmt.Errorf("failed to parse JSON: %w", err))
		}
		return nil
	})
}

// get performs a single GET request and returns the body of a 200 response
func (c *Client) get(ctx context.Context, op, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Network(op, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.LogRequest(c.logger.WithError(err), req.Method, redactKey(url), 0, time.Since(start))
		return nil, errs.Network(op, 0, err)
	}
	defer resp.Body.Close()
	logger.LogRequest(c.logger, req.Method, redactKey(url), resp.StatusCode, time.Since(start))

	if err := checkResponseStatus(op, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errs.Network(op, 0, fmt.Errorf("failed to read response body: %w", err))
	}
	return body, nil
}

// checkResponseStatus maps non-200 responses to network errors
func checkResponseStatus(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return errs.Network(op, resp.StatusCode, fmt.Errorf("rate limit exceeded"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.Network(op, resp.StatusCode, fmt.Errorf("api key rejected"))
	case resp.StatusCode == http.StatusNotFound:
		return errs.Network(op, resp.StatusCode, fmt.Errorf("resource not found"))
	case resp.StatusCode >= 500:
		return errs.Network(op, resp.StatusCode, fmt.Errorf("server error"))
	default:
		return errs.Network(op, resp.StatusCode, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
