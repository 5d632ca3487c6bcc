// Package transform validates raw API records and computes cycle metrics.
//
// Invalid records are dropped, never returned as errors. Each batch logs one
// summary line with the number of records dropped and why.
package transform

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	errs "bartetl/pkg/errors"
	"bartetl/pkg/logger"
	"bartetl/pkg/models"

	"github.com/go-playground/validator/v10"
)

// Transformer cleans stations and departures
type Transformer struct {
	validate *validator.Validate
	logger   logger.Logger
	now      func() time.Time
}

// New creates a Transformer
func New(log logger.Logger) *Transformer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Transformer{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.WithField("component", "transformer"),
		now:      time.Now,
	}
}

// CleanStations trims string fields and drops stations that fail validation,
// such as coordinates outside the Bay Area bounds.
func (t *Transformer) CleanStations(stations []models.Station) []models.Station {
	out := make([]models.Station, 0, len(stations))
	dropped := map[string]int{}

	for _, s := range stations {
		s.ID = strings.TrimSpace(s.ID)
		s.Name = strings.TrimSpace(s.Name)
		s.Address = strings.TrimSpace(s.Address)
		s.City = strings.TrimSpace(s.City)
		s.County = strings.TrimSpace(s.County)
		s.State = strings.TrimSpace(s.State)
		s.Zipcode = strings.TrimSpace(s.Zipcode)

		if err := t.validate.Struct(s); err != nil {
			dropped[reason(err)]++
			continue
		}
		out = append(out, s)
	}

	t.logDropped("stations", len(stations), len(out), dropped)
	return out
}

// CleanDepartures parses and validates raw estimates. Records with
// non-numeric minutes (for example "Leaving"), values out of range or
// unknown directions and line colors are dropped.
func (t *Transformer) CleanDepartures(raw []models.RawDeparture) []models.Departure {
	out := make([]models.Departure, 0, len(raw))
	dropped := map[string]int{}

	for _, r := range raw {
		d, err := t.parseDeparture(r)
		if err == nil {
			err = t.validate.Struct(d)
		}
		if err != nil {
			dropped[reason(err)]++
			continue
		}
		out = append(out, d)
	}

	t.logDropped("departures", len(raw), len(out), dropped)
	return out
}

func (t *Transformer) parseDeparture(r models.RawDeparture) (models.Departure, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(r.Minutes))
	if err != nil {
		return models.Departure{}, errs.Validation("parse minutes", err)
	}
	platform, err := strconv.Atoi(strings.TrimSpace(r.Platform))
	if err != nil {
		return models.Departure{}, errs.Validation("parse platform", err)
	}
	length, err := atoiDefault(r.Length)
	if err != nil {
		return models.Departure{}, errs.Validation("parse length", err)
	}
	delay, err := atoiDefault(r.Delay)
	if err != nil {
		return models.Departure{}, errs.Validation("parse delay", err)
	}

	return models.Departure{
		StationID:    strings.TrimSpace(r.StationID),
		Destination:  strings.TrimSpace(r.Destination),
		Direction:    strings.TrimSpace(r.Direction),
		Minutes:      minutes,
		Platform:     platform,
		LineColor:    strings.ToUpper(strings.TrimSpace(r.Color)),
		Length:       length,
		BikesAllowed: strings.TrimSpace(r.BikeFlag) == "1",
		Delay:        delay,
		ExtractedAt:  r.ExtractedAt,
	}, nil
}

// ComputeMetrics aggregates a batch of departures. The result depends only on
// the input and the calculation time.
func (t *Transformer) ComputeMetrics(departures []models.Departure) models.MetricsSummary {
	m := models.MetricsSummary{
		TotalDepartures: len(departures),
		DirectionCounts: make(map[string]int),
		CalculatedAt:    t.now().UTC(),
	}
	if len(departures) == 0 {
		return m
	}

	var delaySum, lengthSum, bikes int
	for _, d := range departures {
		delaySum += d.Delay
		lengthSum += d.Length
		if d.Delay > m.MaxDelay {
			m.MaxDelay = d.Delay
		}
		if d.Delay > 0 {
			m.DelayedCount++
		}
		if d.BikesAllowed {
			bikes++
		}
		m.DirectionCounts[d.Direction]++
	}

	n := float64(len(departures))
	m.AvgDelay = float64(delaySum) / n
	m.DelayRate = float64(m.DelayedCount) / n
	m.BikesAllowedRate = float64(bikes) / n
	m.AvgTrainLength = float64(lengthSum) / n
	return m
}

func (t *Transformer) logDropped(kind string, in, kept int, reasons map[string]int) {
	if in == kept {
		return
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.Itoa(reasons[k]))
	}

	t.logger.DebugWithFields("dropped invalid records", map[string]interface{}{
		"kind":    kind,
		"input":   in,
		"kept":    kept,
		"dropped": in - kept,
		"reasons": strings.Join(parts, ","),
	})
}

// reason names the field that failed validation
func reason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].Field())
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return strings.TrimPrefix(e.Op, "parse ")
	}
	return "unknown"
}

// atoiDefault parses an integer, treating an empty string as zero
func atoiDefault(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
