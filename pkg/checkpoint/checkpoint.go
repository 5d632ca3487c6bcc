package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	errs "bartetl/pkg/errors"
	"bartetl/pkg/logger"
)

// Checkpoint records how far an incomplete cycle got
type Checkpoint struct {
	LastRun time.Time `json:"last_run"`
	// LastStationIndex is the index of the next station to process
	LastStationIndex   int      `json:"last_station_index"`
	StationsProcessed  []string `json:"stations_processed"`
	AllDeparturesCount int      `json:"all_departures_count"`
}

// Manager handles checkpoint operations
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager creates a checkpoint manager for the file at path
func NewManager(path string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		path:   path,
		logger: log.WithField("component", "checkpoint"),
	}
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.path
}

// Load reads the checkpoint. It returns nil, nil when no checkpoint exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Checkpoint("load", fmt.Errorf("failed to read checkpoint file: %w", err))
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errs.Checkpoint("load", fmt.Errorf("failed to decode checkpoint: %w", err))
	}
	if cp.LastStationIndex < 0 || cp.AllDeparturesCount < 0 {
		return nil, errs.Checkpoint("load", fmt.Errorf("checkpoint has negative counters"))
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"last_station_index":   cp.LastStationIndex,
		"stations_processed":   len(cp.StationsProcessed),
		"all_departures_count": cp.AllDeparturesCount,
		"last_run":             cp.LastRun,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically: temp file, fsync, rename
func (m *Manager) Save(cp *Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return errs.Checkpoint("save", fmt.Errorf("failed to create checkpoint directory: %w", err))
	}

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return errs.Checkpoint("save", fmt.Errorf("failed to create temporary checkpoint file: %w", err))
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Checkpoint("save", fmt.Errorf("failed to encode checkpoint: %w", err))
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Checkpoint("save", fmt.Errorf("failed to sync checkpoint file: %w", err))
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return errs.Checkpoint("save", fmt.Errorf("failed to close checkpoint file: %w", err))
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return errs.Checkpoint("save", fmt.Errorf("failed to replace checkpoint file: %w", err))
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"last_station_index":   cp.LastStationIndex,
		"all_departures_count": cp.AllDeparturesCount,
	})
	return nil
}

// Delete removes the checkpoint file. A missing file is not an error.
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return errs.Checkpoint("delete", fmt.Errorf("failed to delete checkpoint: %w", err))
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Info returns a summary of the checkpoint, or nil when there is none
func (m *Manager) Info() (map[string]interface{}, error) {
	cp, err := m.Load()
	if err != nil || cp == nil {
		return nil, err
	}

	return map[string]interface{}{
		"path":                 m.path,
		"last_run":             cp.LastRun,
		"last_station_index":   cp.LastStationIndex,
		"stations_processed":   len(cp.StationsProcessed),
		"all_departures_count": cp.AllDeparturesCount,
		"age":                  time.Since(cp.LastRun).Round(time.Second),
	}, nil
}
