// Package experience provides the experience store: recording play
// experiences and serving the dreaming pipeline's reads and writes.
package experience

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gridmind/gridmind/internal/store"
	"github.com/gridmind/gridmind/internal/types"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Store reads and writes experiences, few-shot strategies, and abstraction
// hierarchies through the metadata store.
type Store struct {
	db *store.DB
}

// NewStore creates an experience store over the metadata store
func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// Save records a play experience. Experiences are created once; later
// consolidation only flips the consolidated flag.
func (s *Store) Save(exp *types.Experience) error {
	if exp.ID == "" {
		return fmt.Errorf("experience id required")
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now()
	}
	return s.db.Store(exp.ID, store.TypeExperience, exp)
}

// Get loads a single experience by id
func (s *Store) Get(id string) (*types.Experience, error) {
	var exp types.Experience
	if err := s.db.Get(store.TypeExperience, id, &exp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("experience %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &exp, nil
}

// GetUnconsolidated returns all experiences for the profile that have not
// yet been absorbed by a dreaming pass, in recording order.
func (s *Store) GetUnconsolidated(profile string) ([]*types.Experience, error) {
	return s.query(map[string]any{"profile": profile, "consolidated": false})
}

// GetByProfile returns all experiences for the profile, consolidated or not
func (s *Store) GetByProfile(profile string) ([]*types.Experience, error) {
	return s.query(map[string]any{"profile": profile})
}

// GetByIDs loads the experiences with the given ids, skipping missing ones
func (s *Store) GetByIDs(ids []string) ([]*types.Experience, error) {
	var exps []*types.Experience
	for _, id := range ids {
		exp, err := s.Get(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		exps = append(exps, exp)
	}
	return exps, nil
}

func (s *Store) query(filter map[string]any) ([]*types.Experience, error) {
	bodies, err := s.db.Query(store.TypeExperience, filter)
	if err != nil {
		return nil, fmt.Errorf("query experiences: %w", err)
	}

	exps := make([]*types.Experience, 0, len(bodies))
	for _, body := range bodies {
		var exp types.Experience
		if err := json.Unmarshal(body, &exp); err != nil {
			return nil, fmt.Errorf("unmarshal experience: %w", err)
		}
		exps = append(exps, &exp)
	}
	return exps, nil
}

// MarkConsolidated flips the consolidated flag on the given experiences
func (s *Store) MarkConsolidated(ids []string) error {
	return s.setConsolidated(ids, true)
}

// ResetConsolidated clears the consolidated flag on the given experiences.
// Used by multi-algorithm runs so every algorithm clusters the same set.
func (s *Store) ResetConsolidated(ids []string) error {
	return s.setConsolidated(ids, false)
}

func (s *Store) setConsolidated(ids []string, consolidated bool) error {
	for _, id := range ids {
		exp, err := s.Get(id)
		if err != nil {
			return fmt.Errorf("mark consolidated: %w", err)
		}
		if exp.Consolidated == consolidated {
			continue
		}
		exp.Consolidated = consolidated
		if err := s.db.Store(exp.ID, store.TypeExperience, exp); err != nil {
			return fmt.Errorf("mark consolidated %s: %w", id, err)
		}
	}
	return nil
}

// GetFewShots returns strategies usable as few-shot prompt entries for the
// profile. With unitID set, only that unit's strategies are returned;
// otherwise strategies from all of the profile's units are pooled.
// limit <= 0 means no limit.
func (s *Store) GetFewShots(profile, unitID string, limit int) ([]types.Strategy, error) {
	filter := map[string]any{"profile": profile}
	if unitID != "" {
		filter["id"] = unitID
	}

	bodies, err := s.db.Query(store.TypeUnit, filter)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}

	var strategies []types.Strategy
	for _, body := range bodies {
		var unit types.LearningUnit
		if err := json.Unmarshal(body, &unit); err != nil {
			return nil, fmt.Errorf("unmarshal unit: %w", err)
		}
		strategies = append(strategies, unit.Strategies...)
	}

	if limit > 0 && len(strategies) > limit {
		strategies = strategies[:limit]
	}
	return strategies, nil
}

// GetAbstractionHierarchy loads the profile's abstraction hierarchy.
// Returns ErrNotFound if none has been saved.
func (s *Store) GetAbstractionHierarchy(profile string) (*types.Hierarchy, error) {
	var h types.Hierarchy
	if err := s.db.Get(store.TypeHierarchy, profile, &h); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("hierarchy for %s: %w", profile, ErrNotFound)
		}
		return nil, err
	}
	return &h, nil
}

// SaveAbstractionHierarchy stores the profile's abstraction hierarchy
func (s *Store) SaveAbstractionHierarchy(h *types.Hierarchy) error {
	if h.Profile == "" {
		return fmt.Errorf("hierarchy profile required")
	}
	h.UpdatedAt = time.Now()
	return s.db.Store(h.Profile, store.TypeHierarchy, h)
}
