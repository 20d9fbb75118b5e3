package imagestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return store
}

func TestStore_SaveOpenRemove(t *testing.T) {
	store := newTestStore(t)
	data := []byte("png bytes")

	name, err := store.Save(data)
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !IsStoredName(name) {
		t.Errorf("generated name %q is not a stored name", name)
	}

	got, err := store.Open(name)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Open = %q, want %q", got, data)
	}

	if err := store.Remove(name); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), name)); !os.IsNotExist(err) {
		t.Error("file should be gone after Remove")
	}
	if err := store.Remove(name); err != nil {
		t.Errorf("removing a missing image should succeed, got %v", err)
	}
}

func TestStore_SaveGeneratesUniqueNames(t *testing.T) {
	store := newTestStore(t)
	a, _ := store.Save([]byte("a"))
	b, _ := store.Save([]byte("a"))
	if a == b {
		t.Errorf("expected unique names, got %q twice", a)
	}
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t)
	kept, _ := store.Save([]byte("kept"))
	orphan, _ := store.Save([]byte("orphan"))
	recent, _ := store.Save([]byte("recent"))
	foreign := filepath.Join(store.Dir(), "notes.txt")
	if err := os.WriteFile(foreign, []byte("x"), 0o644); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	cutoff := time.Now()
	later := cutoff.Add(time.Minute)
	if err := os.Chtimes(filepath.Join(store.Dir(), recent), later, later); err != nil {
		t.Fatalf("Chtimes error: %v", err)
	}

	removed, err := store.Prune(map[string]bool{kept: true}, cutoff)
	if err != nil {
		t.Fatalf("Prune error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.Open(orphan); !errors.Is(err, ErrNotFound) {
		t.Errorf("orphan should be removed, got %v", err)
	}
	for _, name := range []string{kept, recent} {
		if _, err := store.Open(name); err != nil {
			t.Errorf("%s should survive, got %v", name, err)
		}
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("files without a stored name must be left alone: %v", err)
	}
}

func TestStore_OpenMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Open("7c9e6679-7425-40de-944b-e07fc1f90ae7.png")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_RejectsInvalidNames(t *testing.T) {
	store := newTestStore(t)
	names := []string{
		"",
		"../config.yaml",
		"../../etc/passwd.png",
		"img1.png",
		"7c9e6679-7425-40de-944b-e07fc1f90ae7.jpg",
		"7c9e6679742540de944be07fc1f90ae7.png",
	}
	for _, name := range names {
		if _, err := store.Open(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Open(%q) error = %v, want ErrInvalidName", name, err)
		}
		if err := store.Remove(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Remove(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestNew_EmptyDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty directory")
	}
}
