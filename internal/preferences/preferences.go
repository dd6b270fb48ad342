// Package preferences persists the local "recently used tools" ranking
// and the theme setting.
package preferences

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Theme is the UI colour scheme preference.
type Theme string

// Supported themes.
const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// IsValid reports whether the theme is one of the supported values.
func (t Theme) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// ErrInvalidTheme indicates an unsupported theme value.
var ErrInvalidTheme = errors.New("theme must be one of: light, dark, system")

// ErrInvalidTool indicates an empty tool identifier.
var ErrInvalidTool = errors.New("tool name must not be empty")

// ToolUsage counts how often a tool was used.
type ToolUsage struct {
	Tool     string    `yaml:"tool" json:"tool"`
	Count    int       `yaml:"count" json:"count"`
	LastUsed time.Time `yaml:"last_used" json:"lastUsed"`
}

// Preferences is the persisted document.
type Preferences struct {
	Theme Theme       `yaml:"theme" json:"theme"`
	Tools []ToolUsage `yaml:"tools" json:"tools"`
}

// Default returns the preferences used when nothing is stored yet.
func Default() *Preferences {
	return &Preferences{Theme: ThemeSystem}
}

// Store loads and saves preferences.
type Store interface {
	Load() (*Preferences, error)
	Save(p *Preferences) error
}

// Manager applies read-modify-write updates to a Store. Concurrent
// writers in other processes follow last-write-wins.
type Manager struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

// NewManager creates a Manager over store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// RecordToolUse increments the tool's counter and stamps its last use.
func (m *Manager) RecordToolUse(tool string) error {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return ErrInvalidTool
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.Load()
	if err != nil {
		return err
	}

	now := m.now().UTC()
	found := false
	for i := range p.Tools {
		if p.Tools[i].Tool == tool {
			p.Tools[i].Count++
			p.Tools[i].LastUsed = now
			found = true
			break
		}
	}
	if !found {
		p.Tools = append(p.Tools, ToolUsage{Tool: tool, Count: 1, LastUsed: now})
	}

	return m.store.Save(p)
}

// RecentTools returns up to n tools ranked by count, then most recent use.
// n <= 0 returns every tool.
func (m *Manager) RecentTools(n int) ([]ToolUsage, error) {
	p, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	tools := append([]ToolUsage(nil), p.Tools...)
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].Count != tools[j].Count {
			return tools[i].Count > tools[j].Count
		}
		if !tools[i].LastUsed.Equal(tools[j].LastUsed) {
			return tools[i].LastUsed.After(tools[j].LastUsed)
		}
		return tools[i].Tool < tools[j].Tool
	})

	if n > 0 && len(tools) > n {
		tools = tools[:n]
	}
	return tools, nil
}

// Theme returns the stored theme.
func (m *Manager) Theme() (Theme, error) {
	p, err := m.store.Load()
	if err != nil {
		return "", err
	}
	if !p.Theme.IsValid() {
		return ThemeSystem, nil
	}
	return p.Theme, nil
}

// SetTheme stores a new theme.
func (m *Manager) SetTheme(theme Theme) error {
	if !theme.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.Load()
	if err != nil {
		return err
	}
	p.Theme = theme
	return m.store.Save(p)
}

// Reset clears tool history and restores the default theme.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save(Default())
}
