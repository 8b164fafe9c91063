package engine

import "github.com/google/uuid"

// fireTimer synchronously runs the auction's pending timer callback, as
// if the clock had reached its expiry. Returns false when no timer is
// armed.
func (e *Engine) fireTimer(auctionID uuid.UUID) bool {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return false
	}
	s.mu.Lock()
	fire := s.timerFire
	s.mu.Unlock()
	if fire == nil {
		return false
	}
	fire()
	return true
}

// currentSession exposes the session for white-box assertions.
func (e *Engine) currentSession(auctionID uuid.UUID) (*session, bool) {
	return e.sessions.get(auctionID)
}
