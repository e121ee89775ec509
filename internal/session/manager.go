package session

import (
	"context"
	"log"
	"sync"
	"time"
)

type Manager struct {
	ctx      context.Context
	gateways Gateways
	opts     Options
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a manager whose sessions run background work on ctx.
func NewManager(ctx context.Context, gateways Gateways, opts Options) *Manager {
	return &Manager{
		ctx:      ctx,
		gateways: gateways,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetClock overrides the clock used for token expiry.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Open returns the owner's session, creating it and loading history on first
// use. The token is refreshed on every call. A session closed while Open runs
// is replaced by a new one.
func (m *Manager) Open(ctx context.Context, ownerID, token string) *Session {
	for {
		m.mu.Lock()
		s, ok := m.sessions[ownerID]
		if !ok {
			s = newSession(m.ctx, ownerID, m.gateways, m.opts, m.now)
			m.sessions[ownerID] = s
		}
		m.mu.Unlock()

		if err := s.LoadHistory(ctx); err != nil {
			log.Printf("Warning: failed to load history for %s: %v", ownerID, err)
		}
		if s.RefreshToken(token) {
			return s
		}
	}
}

func (m *Manager) Get(ownerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ownerID]
	return s, ok
}

// Close ends the owner's session. The store is reset so work still in flight
// lands on missing ids.
func (m *Manager) Close(ownerID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[ownerID]
	delete(m.sessions, ownerID)
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.close()
	s.Store.Reset()
	return true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Wait blocks until every open session is idle.
func (m *Manager) Wait() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Wait()
	}
}
