package safety

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want empty", got)
	}

	if err := s.Save("cardEvents", false); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save("uiPolling", true); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err = s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]bool{"cardEvents": false, "uiPolling": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}

	// The returned map is a copy.
	got["cardEvents"] = true
	reloaded, _ := s.Load()
	if reloaded["cardEvents"] {
		t.Error("mutating a loaded map leaked into the store")
	}
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("NewFileStore(\"\") succeeded, want error")
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switches.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := s.Save("cardEvents", false); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save("sessionSync", true); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Last write wins.
	if err := s.Save("cardEvents", true); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A fresh store over the same file sees the persisted state.
	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	got, err := s2.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]bool{"cardEvents": true, "sessionSync": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want empty", got)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switches.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if _, err := s.Load(); err == nil {
		t.Error("Load() of corrupt file succeeded, want error")
	}
	if err := s.Save("cardEvents", false); err == nil {
		t.Error("Save() over corrupt file succeeded, want error")
	}
}
