package tracker

import (
	"context"
	"sync"

	"github.com/kuantumticaret/storepulse/internal/repositories"
)

// Manager hands out one Tracker per storefront session.
type Manager struct {
	visits repositories.VisitRepository
	debug  bool

	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewManager(visits repositories.VisitRepository, debug bool) *Manager {
	return &Manager{
		visits:   visits,
		debug:    debug,
		trackers: make(map[string]*Tracker),
	}
}

// Get returns the session's tracker, creating it on first use.
func (m *Manager) Get(sessionID string) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trackers[sessionID]
	if !ok {
		t = New(m.visits, sessionID, m.debug)
		m.trackers[sessionID] = t
	}
	return t
}

// Release closes the session's open bracket and forgets the tracker.
func (m *Manager) Release(ctx context.Context, sessionID string) {
	m.mu.Lock()
	t, ok := m.trackers[sessionID]
	delete(m.trackers, sessionID)
	m.mu.Unlock()

	if ok {
		t.Close(ctx)
	}
}

// CloseAll ends every open bracket. Called on shutdown, best effort.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, t := range m.trackers {
		trackers = append(trackers, t)
	}
	m.trackers = make(map[string]*Tracker)
	m.mu.Unlock()

	for _, t := range trackers {
		t.Close(ctx)
	}
}
