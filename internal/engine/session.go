package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/models"
	"github.com/crickstack/auctioneer/internal/store"
)

// session is the per-auction actor. It owns the auction's authoritative
// in-memory records, the single cancelable timer, and the bid gate. Every
// mutating command and timer callback for the auction runs under mu, so
// decisions are totally ordered per auction and independent across
// auctions.
type session struct {
	mu      sync.Mutex
	auction *models.Auction
	teams   map[uuid.UUID]*models.Team
	players map[uuid.UUID]*models.Player

	clock clockwork.Clock
	timer clockwork.Timer
	// timerGen invalidates in-flight callbacks: a fire whose generation
	// no longer matches was canceled or replaced and must drop.
	timerGen   uint64
	timerPhase models.BidPhase
	// timerFire re-invokes the pending callback; tests use it to drive
	// expiry without sleeping on the clock.
	timerFire func()

	gateUntil time.Time
}

func newSession(auction *models.Auction, teams []*models.Team, players []*models.Player, clock clockwork.Clock) *session {
	s := &session{
		auction: auction,
		teams:   make(map[uuid.UUID]*models.Team, len(teams)),
		players: make(map[uuid.UUID]*models.Player, len(players)),
		clock:   clock,
	}
	for _, t := range teams {
		s.teams[t.ID] = t
	}
	for _, p := range players {
		s.players[p.ID] = p
	}
	return s
}

// armTimer replaces any prior timer with one firing fn after d. The
// returned generation is captured by the callback; holding s.mu while
// arming guarantees there is never more than one live generation.
func (s *session) armTimer(d time.Duration, phase models.BidPhase, fn func(gen uint64)) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++
	s.timerPhase = phase
	gen := s.timerGen
	s.timerFire = func() { fn(gen) }
	s.timer = s.clock.AfterFunc(d, func() { fn(gen) })
}

// cancelTimer stops the pending timer and invalidates any callback that
// already fired but has not yet acquired the session lock.
func (s *session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	s.timerPhase = ""
	s.timerFire = nil
}

// tryGate acquires the bid gate. While the gate is held every contender
// is rejected immediately; nothing queues.
func (s *session) tryGate() error {
	if s.clock.Now().Before(s.gateUntil) {
		return ErrBidGateHeld
	}
	return nil
}

// holdGate extends the gate past bid resolution to dampen bursts.
func (s *session) holdGate(hold time.Duration) {
	s.gateUntil = s.clock.Now().Add(hold)
}

// persistAuction write-through saves the auction record; the in-memory
// copy stays authoritative, so a failed save is logged and not fatal.
func (s *session) persistAuction(ctx context.Context, st store.EntityStore) {
	s.auction.UpdatedAt = s.clock.Now()
	if err := st.SaveAuction(ctx, s.auction); err != nil {
		log.Error().Err(err).
			Str("auction_id", s.auction.ID.String()).
			Msg("failed to persist auction")
	}
}

func (s *session) persistTeam(ctx context.Context, st store.EntityStore, team *models.Team) {
	if err := st.SaveTeam(ctx, team); err != nil {
		log.Error().Err(err).
			Str("auction_id", s.auction.ID.String()).
			Str("team_id", team.ID.String()).
			Msg("failed to persist team")
	}
}

func (s *session) persistPlayer(ctx context.Context, st store.EntityStore, player *models.Player, update store.PlayerUpdate) {
	if err := st.UpdatePlayerStatus(ctx, player.ID, update); err != nil {
		log.Error().Err(err).
			Str("auction_id", s.auction.ID.String()).
			Str("player_id", player.ID.String()).
			Msg("failed to persist player status")
	}
}

// removeFromPool drops playerID from the remaining pool list.
func (s *session) removeFromPool(playerID uuid.UUID) {
	pool := s.auction.RemainingPlayers
	for i, id := range pool {
		if id == playerID {
			s.auction.RemainingPlayers = append(pool[:i], pool[i+1:]...)
			return
		}
	}
}
