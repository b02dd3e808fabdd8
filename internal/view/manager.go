package view

import (
	"context"
	"sync"
)

// Manager keeps at most one open game view. Switching games always builds
// a fresh view, so watermarks from the previous game never carry over.
type Manager struct {
	deps Deps

	mu      sync.Mutex
	current *GameView
}

func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps}
}

// Show closes the current view and opens gameID. On error no view is open.
func (m *Manager) Show(ctx context.Context, gameID string) (*GameView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Close()
		m.current = nil
	}

	v, err := Open(ctx, m.deps, gameID)
	if err != nil {
		return nil, err
	}
	m.current = v
	return v, nil
}

func (m *Manager) Current() *GameView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}
