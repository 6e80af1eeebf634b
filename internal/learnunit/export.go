package learnunit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/gridmind/gridmind/internal/types"
)

// exportFormatVersion guards the transport representation
const exportFormatVersion = 1

// Export is the transport envelope for a learning unit's full state,
// including hierarchy and strategies.
type Export struct {
	FormatVersion int                 `json:"format_version"`
	ExportID      string              `json:"export_id"`
	ExportedAt    time.Time           `json:"exported_at"`
	Unit          *types.LearningUnit `json:"unit"`
}

// Export serializes a unit's full state to its transport representation
func (m *Manager) Export(id string) ([]byte, error) {
	unit, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	env := Export{
		FormatVersion: exportFormatVersion,
		ExportID:      uuid.NewString(),
		ExportedAt:    time.Now(),
		Unit:          unit,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// ExportToFile writes the export artifact to path
func (m *Manager) ExportToFile(id, path string) error {
	data, err := m.Export(id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// Import round-trips an exported unit back into the store. remapID, when
// non-empty, replaces the unit's id so an import never collides with an
// existing unit. Required fields are validated; a taken destination id fails
// with ErrDuplicateID before anything is written.
func (m *Manager) Import(data []byte, remapID string) (*types.LearningUnit, error) {
	var env Export
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}

	if env.FormatVersion != exportFormatVersion {
		return nil, fmt.Errorf("unsupported export format version %d", env.FormatVersion)
	}
	unit := env.Unit
	if unit == nil {
		return nil, fmt.Errorf("export has no unit")
	}
	if unit.ID == "" || unit.Profile == "" {
		return nil, fmt.Errorf("export unit missing required fields (id, profile)")
	}

	if remapID != "" {
		unit.ID = remapID
	}

	if err := m.Create(unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// ImportFromFile reads and imports an export artifact from path
func (m *Manager) ImportFromFile(path, remapID string) (*types.LearningUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return m.Import(data, remapID)
}
