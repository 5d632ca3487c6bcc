package etl

import (
	"errors"
	"fmt"
	"time"

	"bartetl/pkg/models"
)

// Status values reported by Trigger
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Summary describes one RunOneCycle invocation
type Summary struct {
	CycleID   string    `json:"cycle_id"`
	StartedAt time.Time `json:"started_at"`
	// Resumed is true when the cycle continued from a checkpoint at StartIndex
	Resumed       bool `json:"resumed"`
	StartIndex    int  `json:"start_index"`
	TotalStations int  `json:"total_stations"`
	// StationsAttempted counts stations processed by this invocation, failed or not
	StationsAttempted int      `json:"stations_attempted"`
	FailedStations    []string `json:"failed_stations"`
	// DeparturesLoaded is the cycle's running total, including departures
	// loaded before a resume
	DeparturesLoaded int                    `json:"departures_loaded"`
	Metrics          *models.MetricsSummary `json:"metrics,omitempty"`
	Duration         time.Duration          `json:"duration"`
	Completed        bool                   `json:"completed"`
}

// Result is the response of a triggered cycle
type Result struct {
	Status              string  `json:"status"`
	StationsProcessed   int     `json:"stations_processed"`
	DeparturesProcessed int     `json:"departures_processed"`
	DurationSeconds     float64 `json:"duration_seconds"`
	Message             string  `json:"message"`

	busy bool
}

// Busy reports whether the trigger was rejected because a cycle was already running
func (r Result) Busy() bool {
	return r.busy
}

// NewResult builds the trigger result for a cycle outcome
func NewResult(sum Summary, err error) Result {
	r := Result{
		Status:              StatusSuccess,
		StationsProcessed:   sum.StationsAttempted,
		DeparturesProcessed: sum.DeparturesLoaded,
		DurationSeconds:     sum.Duration.Seconds(),
	}
	if err != nil {
		r.Status = StatusError
		r.Message = err.Error()
		r.busy = errors.Is(err, ErrCycleRunning)
		return r
	}

	r.Message = fmt.Sprintf("processed %d stations (%d failed), %d departures loaded",
		sum.StationsAttempted, len(sum.FailedStations), sum.DeparturesLoaded)
	return r
}
