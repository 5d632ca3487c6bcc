package etl

import (
	"errors"
	"testing"
	"time"

	"bartetl/pkg/checkpoint"

	"github.com/stretchr/testify/assert"
)

func TestCycleProgressAdvance(t *testing.T) {
	p := CycleProgress{}

	p1 := p.Advance("A", 3, nil)
	p2 := p1.Advance("B", 0, errors.New("timeout"))
	p3 := p2.Advance("C", 2, nil)

	assert.Equal(t, 0, p.NextIndex)
	assert.Empty(t, p.Processed)

	assert.Equal(t, 3, p3.NextIndex)
	assert.Equal(t, []string{"A", "C"}, p3.Processed)
	assert.Equal(t, []string{"B"}, p3.Failed)
	assert.Equal(t, 5, p3.DeparturesLoaded)
	assert.Equal(t, []string{"A"}, p1.Processed, "earlier values are not modified")
}

func TestCycleProgressCheckpointRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.FixedZone("PDT", -7*3600))
	p := CycleProgress{}.Advance("A", 4, nil).Advance("B", 1, errors.New("boom"))

	cp := p.Checkpoint(now)
	assert.Equal(t, 2, cp.LastStationIndex)
	assert.Equal(t, []string{"A"}, cp.StationsProcessed)
	assert.Equal(t, 4, cp.AllDeparturesCount)
	assert.Equal(t, time.UTC, cp.LastRun.Location())

	restored := ProgressFromCheckpoint(cp)
	assert.True(t, restored.Resumed)
	assert.Equal(t, 2, restored.NextIndex)
	assert.Equal(t, []string{"A"}, restored.Processed)
	assert.Empty(t, restored.Failed)
	assert.Equal(t, 4, restored.DeparturesLoaded)
}

func TestProgressFromNilCheckpoint(t *testing.T) {
	p := ProgressFromCheckpoint(nil)
	assert.False(t, p.Resumed)
	assert.Zero(t, p.NextIndex)
}

func TestEmptyProgressCheckpointHasEmptyList(t *testing.T) {
	cp := CycleProgress{}.Checkpoint(time.Now())
	assert.Equal(t, &checkpoint.Checkpoint{LastRun: cp.LastRun, StationsProcessed: []string{}}, cp)
}
