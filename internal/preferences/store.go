package preferences

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps preferences in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path. An empty path selects
// DefaultPath().
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &FileStore{path: path}, nil
}

// DefaultPath returns the per-user preference file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, "flexconvert", "preferences.yaml"), nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file; a missing file yields the defaults.
func (s *FileStore) Load() (*Preferences, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse preferences %s: %w", s.path, err)
	}
	return p, nil
}

// Save writes the file atomically via a temporary file and rename.
func (s *FileStore) Save(p *Preferences) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".preferences-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

// MemoryStore keeps preferences in memory.
type MemoryStore struct {
	mu    sync.Mutex
	prefs *Preferences
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored preferences.
func (s *MemoryStore) Load() (*Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs == nil {
		return Default(), nil
	}
	return clonePreferences(s.prefs), nil
}

// Save replaces the stored preferences with a copy of p.
func (s *MemoryStore) Save(p *Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = clonePreferences(p)
	return nil
}

func clonePreferences(p *Preferences) *Preferences {
	return &Preferences{Theme: p.Theme, Tools: append([]ToolUsage(nil), p.Tools...)}
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
