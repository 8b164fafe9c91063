package engine

import (
	"sync"

	"github.com/google/uuid"
)

// syncSessionMap guards the auction id → session index. Session state
// itself is protected by each session's own mutex.
type syncSessionMap struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

func (m *syncSessionMap) get(id uuid.UUID) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *syncSessionMap) put(id uuid.UUID, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[uuid.UUID]*session)
	}
	m.sessions[id] = s
}

func (m *syncSessionMap) delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
