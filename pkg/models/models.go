// Package models holds the records that flow through the ETL pipeline.
package models

import "time"

// Station is a BART station. Stations are upserted by ID.
type Station struct {
	ID          string    `json:"station_id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Latitude    float64   `json:"latitude" validate:"gte=37,lte=39"`
	Longitude   float64   `json:"longitude" validate:"gte=-123,lte=-121"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	County      string    `json:"county"`
	State       string    `json:"state"`
	Zipcode     string    `json:"zipcode"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// RawDeparture is a departure estimate exactly as the API reports it. Numeric
// fields stay strings until the transformer parses and validates them; minutes
// may be "Leaving" and delay may be empty.
type RawDeparture struct {
	StationID   string    `json:"station_id"`
	Destination string    `json:"destination"`
	Direction   string    `json:"direction"`
	Minutes     string    `json:"minutes"`
	Platform    string    `json:"platform"`
	Color       string    `json:"color"`
	Length      string    `json:"length"`
	BikeFlag    string    `json:"bikeflag"`
	Delay       string    `json:"delay"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Departure is a validated departure estimate ready to be loaded
type Departure struct {
	StationID    string    `json:"station_id" validate:"required"`
	Destination  string    `json:"destination"`
	Direction    string    `json:"direction" validate:"oneof=North South East West"`
	Minutes      int       `json:"minutes" validate:"gte=0,lte=120"`
	Platform     int       `json:"platform" validate:"gte=1,lte=4"`
	LineColor    string    `json:"line_color" validate:"oneof=RED BLUE GREEN YELLOW ORANGE"`
	Length       int       `json:"length" validate:"gte=0"`
	BikesAllowed bool      `json:"bikes_allowed"`
	Delay        int       `json:"delay" validate:"gte=0,lte=60"`
	ExtractedAt  time.Time `json:"extracted_at"`
}

// Date returns the UTC calendar date the estimate was captured on
func (d Departure) Date() string {
	return d.ExtractedAt.UTC().Format("2006-01-02")
}

// MetricsSummary aggregates one cycle's departures. It is never mutated once stored.
type MetricsSummary struct {
	ID               string         `json:"id"`
	TotalDepartures  int            `json:"total_departures"`
	AvgDelay         float64        `json:"avg_delay"`
	MaxDelay         int            `json:"max_delay"`
	DelayedCount     int            `json:"delayed_trains"`
	DelayRate        float64        `json:"delay_rate"`
	BikesAllowedRate float64        `json:"bikes_allowed_rate"`
	AvgTrainLength   float64        `json:"avg_train_length"`
	DirectionCounts  map[string]int `json:"direction_counts"`
	CalculatedAt     time.Time      `json:"calculated_at"`
}

// DailyStat summarises all departures captured on one date
type DailyStat struct {
	Date            string  `json:"date"`
	TotalDepartures int     `json:"total_departures"`
	DelayedCount    int     `json:"delayed_departures"`
	AvgDelay        float64 `json:"avg_delay"`
	MaxDelay        int     `json:"max_delay"`
}

// DestinationStat summarises one station's departures towards one destination
type DestinationStat struct {
	StationID       string  `json:"station_id"`
	Destination     string  `json:"destination"`
	TotalDepartures int     `json:"total_departures"`
	DelayedCount    int     `json:"delayed_departures"`
	AvgDelay        float64 `json:"avg_delay"`
	AvgMinutes      float64 `json:"avg_minutes"`
}
