package learnunit

import (
	"errors"
	"testing"

	"github.com/gridmind/gridmind/internal/store"
	"github.com/gridmind/gridmind/internal/types"
)

func setupManager(t *testing.T) *Manager {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(db)
}

func testUnit(id string, strategies int, absorbed ...string) *types.LearningUnit {
	unit := &types.LearningUnit{
		ID:      id,
		Profile: "solver",
		Name:    id,
		Meta:    types.UnitMeta{Version: 1, PuzzleTypes: map[string]int{"easy": len(absorbed)}},
	}
	for i := 0; i < strategies; i++ {
		unit.Strategies = append(unit.Strategies, types.Strategy{
			Name:    id + "-strategy",
			Level:   types.LevelTechnique,
			Trigger: "always",
		})
	}
	unit.Absorb(absorbed...)
	unit.Meta.TotalExperiences = len(unit.AbsorbedIDs)
	return unit
}

func TestCreateAndGet(t *testing.T) {
	m := setupManager(t)

	if err := m.Create(testUnit("u1", 1, "e1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	unit, err := m.Get("u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if unit.Name != "u1" || len(unit.Strategies) != 1 {
		t.Errorf("Unexpected unit: %+v", unit)
	}
	if unit.CreatedAt.IsZero() || unit.UpdatedAt.IsZero() {
		t.Error("Create did not stamp timestamps")
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := m.Create(&types.LearningUnit{Profile: "solver"}); err == nil {
		t.Error("Expected error for missing id")
	}
	if err := m.Create(&types.LearningUnit{ID: "u2"}); err == nil {
		t.Error("Expected error for missing profile")
	}
}

// A duplicate create must fail and leave the existing unit untouched
func TestCreateDuplicate(t *testing.T) {
	m := setupManager(t)

	first := testUnit("u1", 2, "e1")
	if err := m.Create(first); err != nil {
		t.Fatal(err)
	}

	second := testUnit("u1", 5, "e9")
	second.Name = "impostor"
	if err := m.Create(second); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("Expected ErrDuplicateID, got %v", err)
	}

	unit, err := m.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if unit.Name != "u1" || len(unit.Strategies) != 2 {
		t.Errorf("Original unit was modified: %+v", unit)
	}
}

func TestMerge(t *testing.T) {
	m := setupManager(t)

	a := testUnit("unit-a", 3, "e1", "e2")
	b := testUnit("unit-b", 2, "e2", "e3")
	for _, u := range []*types.LearningUnit{a, b} {
		if err := m.Create(u); err != nil {
			t.Fatal(err)
		}
	}

	merged, err := m.Merge("unit-c", "combined", []string{"unit-a", "unit-b"})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if len(merged.Strategies) != 5 {
		t.Errorf("Merged strategies = %d, want 5", len(merged.Strategies))
	}
	// Absorbed ids union, not concatenation
	if len(merged.AbsorbedIDs) != 3 {
		t.Errorf("Merged absorbed = %v, want union of 3", merged.AbsorbedIDs)
	}
	for _, id := range []string{"e1", "e2", "e3"} {
		if !merged.HasAbsorbed(id) {
			t.Errorf("Merged unit missing absorbed id %s", id)
		}
	}
	if merged.Meta.TotalExperiences != 3 || merged.Meta.Version != 1 {
		t.Errorf("Merged meta = %+v", merged.Meta)
	}
	if len(merged.Meta.MergedFrom) != 2 {
		t.Errorf("Merged provenance = %v", merged.Meta.MergedFrom)
	}
	if merged.Meta.PuzzleTypes["easy"] != 4 {
		t.Errorf("Merged puzzle types = %v", merged.Meta.PuzzleTypes)
	}

	// Persisted, not just returned
	if _, err := m.Get("unit-c"); err != nil {
		t.Errorf("Merged unit not stored: %v", err)
	}
}

func TestMergeFailsBeforeWrite(t *testing.T) {
	m := setupManager(t)

	if err := m.Create(testUnit("unit-a", 1, "e1")); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Merge("unit-c", "c", []string{"unit-a"}); err == nil {
		t.Error("Expected error for fewer than 2 sources")
	}

	if _, err := m.Merge("unit-c", "c", []string{"unit-a", "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing source, got %v", err)
	}
	if ok, _ := m.Exists("unit-c"); ok {
		t.Error("Failed merge left a destination unit behind")
	}

	if _, err := m.Merge("unit-a", "a", []string{"unit-a", "unit-a"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID for taken destination, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	m := setupManager(t)

	original := testUnit("unit-a", 2, "e1", "e2")
	if err := m.Create(original); err != nil {
		t.Fatal(err)
	}

	data, err := m.Export("unit-a")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Same id collides; remap imports cleanly
	if _, err := m.Import(data, ""); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID on unremapped import, got %v", err)
	}

	// Export again: the first Import attempt mutated nothing
	data, err = m.Export("unit-a")
	if err != nil {
		t.Fatal(err)
	}
	imported, err := m.Import(data, "unit-a-copy")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.ID != "unit-a-copy" {
		t.Errorf("Imported id = %q, want unit-a-copy", imported.ID)
	}

	got, err := m.Get("unit-a-copy")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Strategies) != 2 || len(got.AbsorbedIDs) != 2 || got.Profile != "solver" {
		t.Errorf("Round trip lost state: %+v", got)
	}
}

func TestImportRejectsBadEnvelopes(t *testing.T) {
	m := setupManager(t)

	cases := map[string]string{
		"not json":       "not json at all",
		"wrong version":  `{"format_version": 99, "unit": {"id": "x", "profile": "p"}}`,
		"no unit":        `{"format_version": 1}`,
		"missing fields": `{"format_version": 1, "unit": {"id": "x"}}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Import([]byte(data), ""); err == nil {
				t.Errorf("Import(%q) expected error", data)
			}
		})
	}
}

func TestExportToFileAndBack(t *testing.T) {
	m := setupManager(t)

	if err := m.Create(testUnit("unit-a", 1, "e1")); err != nil {
		t.Fatal(err)
	}

	path := t.TempDir() + "/unit.json"
	if err := m.ExportToFile("unit-a", path); err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}

	imported, err := m.ImportFromFile(path, "unit-b")
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	if imported.ID != "unit-b" || len(imported.Strategies) != 1 {
		t.Errorf("Unexpected imported unit: %+v", imported)
	}
}

func TestListAndDelete(t *testing.T) {
	m := setupManager(t)

	if err := m.Create(testUnit("u1", 1)); err != nil {
		t.Fatal(err)
	}
	if err := m.Create(testUnit("u2", 1)); err != nil {
		t.Fatal(err)
	}
	other := testUnit("u3", 1)
	other.Profile = "someone-else"
	if err := m.Create(other); err != nil {
		t.Fatal(err)
	}

	units, err := m.List("solver")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(units) != 2 {
		t.Errorf("List = %d units, want 2", len(units))
	}

	existed, err := m.Delete("u1")
	if err != nil || !existed {
		t.Errorf("Delete = %v, %v; want true", existed, err)
	}
	existed, err = m.Delete("u1")
	if err != nil || existed {
		t.Errorf("Second delete = %v, %v; want false", existed, err)
	}
}

func TestSaveStrategies(t *testing.T) {
	m := setupManager(t)

	if err := m.Create(testUnit("u1", 3)); err != nil {
		t.Fatal(err)
	}

	replacement := []types.Strategy{{Name: "fresh", Level: types.LevelPrinciple}}
	if err := m.SaveStrategies("u1", replacement); err != nil {
		t.Fatalf("SaveStrategies failed: %v", err)
	}

	unit, err := m.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(unit.Strategies) != 1 || unit.Strategies[0].Name != "fresh" {
		t.Errorf("Strategies not replaced: %+v", unit.Strategies)
	}

	if err := m.SaveStrategies("ghost", replacement); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestResetAbsorbed(t *testing.T) {
	m := setupManager(t)

	if err := m.Create(testUnit("u1", 2, "e1", "e2")); err != nil {
		t.Fatal(err)
	}

	if err := m.ResetAbsorbed("u1"); err != nil {
		t.Fatalf("ResetAbsorbed failed: %v", err)
	}

	unit, err := m.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(unit.AbsorbedIDs) != 0 || unit.Meta.TotalExperiences != 0 {
		t.Errorf("Absorbed set not cleared: %+v", unit)
	}
	// Strategies survive a reset
	if len(unit.Strategies) != 2 {
		t.Errorf("Reset dropped strategies: %d", len(unit.Strategies))
	}
}
