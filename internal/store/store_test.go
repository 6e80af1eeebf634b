package store

import (
	"database/sql"
	"errors"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type testRecord struct {
	ID           string `json:"id"`
	Profile      string `json:"profile"`
	Consolidated bool   `json:"consolidated"`
	Note         string `json:"note"`
}

func TestStoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	in := testRecord{ID: "r1", Profile: "alpha", Note: "hello"}
	if err := db.Store("r1", TypeExperience, in); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	var out testRecord
	if err := db.Get(TypeExperience, "r1", &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out != in {
		t.Errorf("Round trip mismatch: %+v != %+v", out, in)
	}

	// Upsert replaces the body
	in.Note = "updated"
	if err := db.Store("r1", TypeExperience, in); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := db.Get(TypeExperience, "r1", &out); err != nil {
		t.Fatalf("Get after upsert failed: %v", err)
	}
	if out.Note != "updated" {
		t.Errorf("Upsert did not replace body: %q", out.Note)
	}
}

func TestGetMissing(t *testing.T) {
	db := setupTestDB(t)

	var out testRecord
	err := db.Get(TypeExperience, "nope", &out)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestTypeIsolation(t *testing.T) {
	db := setupTestDB(t)

	// Same id under two types must be two records
	if err := db.Store("shared", TypeExperience, testRecord{ID: "shared", Note: "exp"}); err != nil {
		t.Fatal(err)
	}
	if err := db.Store("shared", TypeUnit, testRecord{ID: "shared", Note: "unit"}); err != nil {
		t.Fatal(err)
	}

	var out testRecord
	if err := db.Get(TypeUnit, "shared", &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Note != "unit" {
		t.Errorf("Type isolation broken: got %q", out.Note)
	}
}

func TestQueryFilter(t *testing.T) {
	db := setupTestDB(t)

	records := []testRecord{
		{ID: "e1", Profile: "alpha", Consolidated: false},
		{ID: "e2", Profile: "alpha", Consolidated: true},
		{ID: "e3", Profile: "beta", Consolidated: false},
	}
	for _, r := range records {
		if err := db.Store(r.ID, TypeExperience, r); err != nil {
			t.Fatal(err)
		}
	}

	bodies, err := db.Query(TypeExperience, map[string]any{"profile": "alpha", "consolidated": false})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(bodies) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(bodies))
	}

	// Nil filter matches the whole type
	bodies, err = db.Query(TypeExperience, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(bodies) != 3 {
		t.Errorf("Expected 3 records, got %d", len(bodies))
	}
}

func TestExistsDeleteStats(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Store("e1", TypeExperience, testRecord{ID: "e1"}); err != nil {
		t.Fatal(err)
	}
	if err := db.Store("u1", TypeUnit, testRecord{ID: "u1"}); err != nil {
		t.Fatal(err)
	}

	ok, err := db.Exists(TypeExperience, "e1")
	if err != nil || !ok {
		t.Errorf("Exists(e1) = %v, %v; want true", ok, err)
	}
	ok, err = db.Exists(TypeExperience, "e2")
	if err != nil || ok {
		t.Errorf("Exists(e2) = %v, %v; want false", ok, err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[TypeExperience] != 1 || stats[TypeUnit] != 1 {
		t.Errorf("Stats = %v", stats)
	}

	existed, err := db.Delete(TypeExperience, "e1")
	if err != nil || !existed {
		t.Errorf("Delete(e1) = %v, %v; want true", existed, err)
	}
	existed, err = db.Delete(TypeExperience, "e1")
	if err != nil || existed {
		t.Errorf("Second Delete(e1) = %v, %v; want false", existed, err)
	}
}

func TestIDs(t *testing.T) {
	db := setupTestDB(t)

	for _, id := range []string{"b", "a", "c"} {
		if err := db.Store(id, TypeUnit, testRecord{ID: id}); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := db.IDs(TypeUnit)
	if err != nil {
		t.Fatalf("IDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("Expected 3 ids, got %v", ids)
	}
}
