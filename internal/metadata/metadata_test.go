package metadata

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	m := &Metadata{
		ID:      "abcd1234",
		Command: "/bin/sh",
		Args:    []string{"-c", "echo hi"},
		Cwd:     "/tmp",
		Status:  StatusRunning,
		Cols:    80,
		Rows:    24,
		PID:     1234,
	}
	if err := store.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load("abcd1234")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Command != m.Command || got.Cols != 80 || got.PID != 1234 {
		t.Fatalf("loaded metadata mismatch: %+v", got)
	}
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	m := &Metadata{ID: "xyz", Status: StatusRunning}
	if err := store.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "xyz.json" {
		t.Fatalf("expected exactly xyz.json, got %v", entries)
	}
}

func TestLoadAllReturnsCorruptEntryWithError(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	store.Save(&Metadata{ID: "good", Status: StatusRunning})
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0600)

	entries, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	var sawGood, sawBad bool
	for _, e := range entries {
		switch e.ID {
		case "good":
			sawGood = e.Err == nil && e.Metadata != nil
		case "bad":
			sawBad = e.Err != nil
		}
	}
	if !sawGood || !sawBad {
		t.Fatalf("expected one good, one corrupt entry: %+v", entries)
	}
}

func TestRemoveAbsentIsNotError(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	if err := store.Remove("does-not-exist"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}
