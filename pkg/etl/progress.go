package etl

import (
	"slices"
	"time"

	"bartetl/pkg/checkpoint"
)

// CycleProgress is the resumable state of one cycle. It is a value: Advance
// returns a new CycleProgress and never modifies the receiver.
type CycleProgress struct {
	// NextIndex is the index of the next station to process
	NextIndex int
	// Processed lists stations whose departures were loaded, in order
	Processed []string
	// Failed lists stations that failed in this process; it is not persisted
	Failed []string
	// DeparturesLoaded is the running count for the whole cycle
	DeparturesLoaded int
	// Resumed is true when the progress was restored from a checkpoint
	Resumed bool
}

// ProgressFromCheckpoint restores progress saved by an interrupted cycle
func ProgressFromCheckpoint(cp *checkpoint.Checkpoint) CycleProgress {
	if cp == nil {
		return CycleProgress{}
	}
	return CycleProgress{
		NextIndex:        cp.LastStationIndex,
		Processed:        slices.Clone(cp.StationsProcessed),
		DeparturesLoaded: cp.AllDeparturesCount,
		Resumed:          true,
	}
}

// Checkpoint converts the progress into its persisted form
func (p CycleProgress) Checkpoint(now time.Time) *checkpoint.Checkpoint {
	processed := slices.Clone(p.Processed)
	if processed == nil {
		processed = []string{}
	}
	return &checkpoint.Checkpoint{
		LastRun:            now.UTC(),
		LastStationIndex:   p.NextIndex,
		StationsProcessed:  processed,
		AllDeparturesCount: p.DeparturesLoaded,
	}
}

// Advance records the outcome of the station at NextIndex and moves past it.
// A failed station still advances the index.
func (p CycleProgress) Advance(stationID string, loaded int, err error) CycleProgress {
	next := CycleProgress{
		NextIndex:        p.NextIndex + 1,
		Processed:        slices.Clone(p.Processed),
		Failed:           slices.Clone(p.Failed),
		DeparturesLoaded: p.DeparturesLoaded,
		Resumed:          p.Resumed,
	}
	if err != nil {
		next.Failed = append(next.Failed, stationID)
		return next
	}
	next.Processed = append(next.Processed, stationID)
	next.DeparturesLoaded += loaded
	return next
}
