package progress

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("missing file returns empty set", func(t *testing.T) {
		set := Load(filepath.Join(t.TempDir(), "nope.json"), nil)
		if len(set) != 0 {
			t.Errorf("expected empty set, got %d members", len(set))
		}
	})

	t.Run("malformed file returns empty set", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "progress.json")
		if err := os.WriteFile(path, []byte(`{"not": "a list"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		set := Load(path, nil)
		if len(set) != 0 {
			t.Errorf("expected empty set for malformed file, got %d members", len(set))
		}
	})

	t.Run("valid file round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "progress.json")

		set := make(Set)
		set.Add(3)
		set.Add(1)
		set.Add(2)
		if err := Save(path, set); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded := Load(path, nil)
		if !reflect.DeepEqual(loaded.IDs(), []int64{1, 2, 3}) {
			t.Errorf("expected [1 2 3], got %v", loaded.IDs())
		}
		if !loaded.Contains(2) {
			t.Error("expected set to contain 2")
		}
		if loaded.Contains(4) {
			t.Error("did not expect set to contain 4")
		}
	})
}

func TestSave_ReplacesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")

	set := make(Set)
	set.Add(10)
	set.Add(20)
	if err := Save(path, set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A second save with a different set must fully replace the first.
	set2 := make(Set)
	set2.Add(30)
	if err := Save(path, set2); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded := Load(path, nil)
	if !reflect.DeepEqual(loaded.IDs(), []int64{30}) {
		t.Errorf("expected [30], got %v", loaded.IDs())
	}
}

func TestSave_UnwritablePathReturnsError(t *testing.T) {
	set := make(Set)
	set.Add(1)
	err := Save(filepath.Join(t.TempDir(), "no", "such", "dir", "p.json"), set)
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}
