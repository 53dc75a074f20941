package safety

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Store persists per-switch overrides. Implementations must be safe for
// concurrent use. When no store is injected, overrides live for the
// process lifetime only.
type Store interface {
	// Load returns all persisted overrides.
	Load() (map[string]bool, error)

	// Save persists one override.
	Save(name string, enabled bool) error
}

// MemoryStore is an in-memory Store, for tests and store-less setups
// that still want load/save symmetry.
type MemoryStore struct {
	mu        sync.Mutex
	overrides map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{overrides: make(map[string]bool)}
}

// Load returns a copy of the stored overrides.
func (s *MemoryStore) Load() (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out, nil
}

// Save stores one override.
func (s *MemoryStore) Save(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[name] = enabled
	return nil
}

// FileStore persists overrides as a JSON object in a single file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed store at path. The file is created
// on first Save; a missing file loads as no overrides.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("safety: store path is required")
	}
	return &FileStore{path: path}, nil
}

// Load reads the override file.
func (s *FileStore) Load() (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save updates one override with read-modify-write on the whole file.
// The write goes through a temp file and rename so a crash mid-write
// leaves the previous contents intact.
func (s *FileStore) Save(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overrides, err := s.loadLocked()
	if err != nil {
		return err
	}
	overrides[name] = enabled

	data, err := json.MarshalIndent(overrides, "", "  ")
	if err != nil {
		return fmt.Errorf("safety: encode overrides: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("safety: write overrides: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("safety: replace overrides: %w", err)
	}
	return nil
}

func (s *FileStore) loadLocked() (map[string]bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]bool), nil
	}
	if err != nil {
		return nil, fmt.Errorf("safety: read overrides: %w", err)
	}

	overrides := make(map[string]bool)
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("safety: decode overrides: %w", err)
	}
	return overrides, nil
}

// Ensure both stores implement Store
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
