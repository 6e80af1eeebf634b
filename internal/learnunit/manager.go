// Package learnunit owns the learning unit lifecycle: create, fetch, list,
// save strategies, merge, export/import, delete. Writes are all-or-nothing:
// integrity failures (duplicate id, missing merge source) surface before any
// record is touched.
package learnunit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gridmind/gridmind/internal/store"
	"github.com/gridmind/gridmind/internal/types"
)

var (
	// ErrNotFound signals a lookup of an absent unit
	ErrNotFound = errors.New("learning unit not found")

	// ErrDuplicateID signals a create against an id already in use
	ErrDuplicateID = errors.New("learning unit id already exists")
)

// Manager manages learning units in the metadata store
type Manager struct {
	db *store.DB
}

// NewManager creates a learning unit manager over the metadata store
func NewManager(db *store.DB) *Manager {
	return &Manager{db: db}
}

// Create stores a new, typically empty unit. Fails with ErrDuplicateID if the
// id is taken; the existing unit is left untouched.
func (m *Manager) Create(unit *types.LearningUnit) error {
	if unit.ID == "" {
		return fmt.Errorf("unit id required")
	}
	if unit.Profile == "" {
		return fmt.Errorf("unit profile required")
	}

	exists, err := m.db.Exists(store.TypeUnit, unit.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("unit %s: %w", unit.ID, ErrDuplicateID)
	}

	now := time.Now()
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = now
	}
	unit.UpdatedAt = now
	return m.db.Store(unit.ID, store.TypeUnit, unit)
}

// Get loads a unit by id
func (m *Manager) Get(id string) (*types.LearningUnit, error) {
	var unit types.LearningUnit
	if err := m.db.Get(store.TypeUnit, id, &unit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("unit %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &unit, nil
}

// Exists reports whether a unit id is in use
func (m *Manager) Exists(id string) (bool, error) {
	return m.db.Exists(store.TypeUnit, id)
}

// List returns all units for a profile in creation order
func (m *Manager) List(profile string) ([]*types.LearningUnit, error) {
	bodies, err := m.db.Query(store.TypeUnit, map[string]any{"profile": profile})
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}

	units := make([]*types.LearningUnit, 0, len(bodies))
	for _, body := range bodies {
		var unit types.LearningUnit
		if err := json.Unmarshal(body, &unit); err != nil {
			return nil, fmt.Errorf("unmarshal unit: %w", err)
		}
		units = append(units, &unit)
	}
	return units, nil
}

// Save upserts a unit in place. Used by the consolidator after it has grown
// the unit's absorbed set and strategies.
func (m *Manager) Save(unit *types.LearningUnit) error {
	if unit.ID == "" {
		return fmt.Errorf("unit id required")
	}
	unit.UpdatedAt = time.Now()
	return m.db.Store(unit.ID, store.TypeUnit, unit)
}

// SaveStrategies replaces a unit's strategy list wholesale
func (m *Manager) SaveStrategies(id string, strategies []types.Strategy) error {
	unit, err := m.Get(id)
	if err != nil {
		return err
	}
	unit.Strategies = strategies
	return m.Save(unit)
}

// Merge produces a new unit from two or more source units: the absorbed-id
// set is the union of the sources', strategy lists are concatenated
// structurally (semantic de-duplication is deferred to a later
// re-consolidation), and provenance records the source ids. A missing source
// or taken destination id fails before anything is written.
func (m *Manager) Merge(newID, name string, sourceIDs []string) (*types.LearningUnit, error) {
	if len(sourceIDs) < 2 {
		return nil, fmt.Errorf("merge needs at least 2 source units, got %d", len(sourceIDs))
	}

	exists, err := m.db.Exists(store.TypeUnit, newID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("unit %s: %w", newID, ErrDuplicateID)
	}

	// Load every source up front so a missing one aborts with no write
	sources := make([]*types.LearningUnit, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		src, err := m.Get(id)
		if err != nil {
			return nil, fmt.Errorf("merge source: %w", err)
		}
		sources = append(sources, src)
	}

	merged := &types.LearningUnit{
		ID:      newID,
		Profile: sources[0].Profile,
		Name:    name,
		Meta: types.UnitMeta{
			Version:     1,
			PuzzleTypes: make(map[string]int),
			MergedFrom:  append([]string(nil), sourceIDs...),
		},
		CreatedAt: time.Now(),
	}

	for _, src := range sources {
		merged.Strategies = append(merged.Strategies, src.Strategies...)
		merged.Absorb(src.AbsorbedIDs...)
		for pt, n := range src.Meta.PuzzleTypes {
			merged.Meta.PuzzleTypes[pt] += n
		}
	}
	merged.Meta.TotalExperiences = len(merged.AbsorbedIDs)

	if err := m.Save(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes a unit, reporting whether it existed
func (m *Manager) Delete(id string) (bool, error) {
	return m.db.Delete(store.TypeUnit, id)
}

// ResetAbsorbed clears a unit's absorbed-experience set. This is the only
// path by which the set shrinks, and it is operator-triggered.
func (m *Manager) ResetAbsorbed(id string) error {
	unit, err := m.Get(id)
	if err != nil {
		return err
	}
	unit.AbsorbedIDs = nil
	unit.Meta.TotalExperiences = 0
	return m.Save(unit)
}
