// Package engine implements the server-authoritative live auction core:
// the per-lot bidding state machine, timer orchestration, bid arbitration,
// the reversible action journal, and audience-segmented broadcasts.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/events"
	"github.com/crickstack/auctioneer/internal/models"
	"github.com/crickstack/auctioneer/internal/store"
)

// gateHoldDefault is how long the bid gate stays held after a bid
// resolves, damping bursts from the same or contending teams.
const gateHoldDefault = 200 * time.Millisecond

// undoLimit bounds consecutive undos.
const undoLimit = 3

// Options tune engine behavior; zero values take defaults.
type Options struct {
	Clock    clockwork.Clock
	GateHold time.Duration
	// RandIntN overrides lot selection randomness, for tests.
	RandIntN func(n int) int
}

// Engine hosts one session per live auction. Sessions are created by
// Start and discarded by Complete; auctions are fully independent of one
// another.
type Engine struct {
	store       store.EntityStore
	broadcaster Broadcaster
	clock       clockwork.Clock
	gateHold    time.Duration
	randIntN    func(n int) int

	sessions syncSessionMap
}

// NewEngine wires the engine against its store and broadcaster.
func NewEngine(st store.EntityStore, b Broadcaster, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.GateHold == 0 {
		opts.GateHold = gateHoldDefault
	}
	if opts.RandIntN == nil {
		opts.RandIntN = rand.IntN
	}
	return &Engine{
		store:       st,
		broadcaster: b,
		clock:       opts.Clock,
		gateHold:    opts.GateHold,
		randIntN:    opts.RandIntN,
	}
}

// Start loads the auction and its teams and players, assembles the
// remaining pool, sets the auction live on round 1, and creates the
// session.
func (e *Engine) Start(ctx context.Context, auctionID uuid.UUID) error {
	if _, ok := e.sessions.get(auctionID); ok {
		return fmt.Errorf("auction %s: session already running", auctionID)
	}

	auction, err := e.store.LoadAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("load auction: %w", err)
	}
	switch auction.Status {
	case models.AuctionStatusConfigured, models.AuctionStatusDraft:
	default:
		return fmt.Errorf("auction %s: cannot start from status %s", auctionID, auction.Status)
	}

	teams, err := e.store.LoadTeams(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}
	players, err := e.store.LoadPlayers(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}

	auction.RemainingPlayers = auction.RemainingPlayers[:0]
	for _, p := range players {
		if p.Status == models.PlayerStatusPool {
			auction.RemainingPlayers = append(auction.RemainingPlayers, p.ID)
		}
	}
	auction.Status = models.AuctionStatusLive
	auction.CurrentRound = 1
	now := e.clock.Now()
	auction.StartedAt = &now
	auction.Bidding = nil

	s := newSession(auction, teams, players, e.clock)
	e.sessions.put(auctionID, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistAuction(ctx, e.store)

	log.Info().
		Str("auction_id", auctionID.String()).
		Int("teams", len(teams)).
		Int("pool", len(auction.RemainingPlayers)).
		Msg("auction started")

	e.publishPublic(ctx, auctionID, events.EventAuctionStatusChange, events.StatusChangePayload{
		Status: string(auction.Status),
		Round:  auction.CurrentRound,
	})
	e.publishAdminState(ctx, s)
	return nil
}

// Pause cancels the pending timer and suspends the auction. A lot that
// was mid-bidding is voided back to the pool and its audit entries
// flagged; a lot still in its reveal delay survives and resumes later.
func (e *Engine) Pause(ctx context.Context, auctionID uuid.UUID, actor, reason string) error {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.auction.IsLive() {
		return ErrAuctionNotLive
	}
	s.cancelTimer()
	s.auction.Status = models.AuctionStatusPaused

	if b := s.auction.Bidding; b != nil && b.Phase.BiddableNow() {
		player := s.players[b.PlayerID]
		player.Status = models.PlayerStatusPool
		s.auction.RemainingPlayers = append(s.auction.RemainingPlayers, player.ID)
		s.auction.Bidding = nil
		s.persistPlayer(ctx, e.store, player, store.PlayerUpdate{Status: models.PlayerStatusPool})
		if err := e.store.VoidBidAudit(ctx, auctionID, player.ID); err != nil {
			log.Error().Err(err).Str("player_id", player.ID.String()).Msg("failed to void bid audit")
		}
		log.Info().
			Str("auction_id", auctionID.String()).
			Str("player_id", player.ID.String()).
			Msg("mid-bid lot voided back to pool on pause")
	}

	s.persistAuction(ctx, e.store)
	e.journal(ctx, s, models.ActionAuctionPaused, map[string]string{"reason": reason}, nil, actor,
		fmt.Sprintf("Auction paused: %s", reason))

	e.publishPublic(ctx, auctionID, events.EventAuctionStatusChange, events.StatusChangePayload{
		Status: string(s.auction.Status),
		Round:  s.auction.CurrentRound,
		Reason: reason,
	})
	e.publishAdminState(ctx, s)
	return nil
}

// Resume sets the auction live again. A reveal timer that was mid-flight
// is re-armed with the remaining time from the stored expiry, with a
// 1-second floor when the expiry already elapsed.
func (e *Engine) Resume(ctx context.Context, auctionID uuid.UUID, actor string) error {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auction.Status != models.AuctionStatusPaused {
		return ErrAuctionNotPaused
	}
	s.auction.Status = models.AuctionStatusLive

	if b := s.auction.Bidding; b != nil && b.Phase == models.PhaseRevealed {
		remaining := b.TimerExpiresAt.Sub(e.clock.Now())
		if remaining < time.Second {
			remaining = time.Second
		}
		b.TimerExpiresAt = e.clock.Now().Add(remaining)
		s.armTimer(remaining, models.PhaseRevealed, func(gen uint64) {
			e.onRevealTimer(context.Background(), s, gen)
		})
	}

	s.persistAuction(ctx, e.store)
	e.journal(ctx, s, models.ActionAuctionResumed, nil, nil, actor, "Auction resumed")

	e.publishPublic(ctx, auctionID, events.EventAuctionStatusChange, events.StatusChangePayload{
		Status: string(s.auction.Status),
		Round:  s.auction.CurrentRound,
	})
	e.publishAdminState(ctx, s)
	return nil
}

// Skip returns the current lot to the pool without finalizing it.
func (e *Engine) Skip(ctx context.Context, auctionID uuid.UUID, actor string) error {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.auction.IsLive() {
		return ErrAuctionNotLive
	}
	b := s.auction.Bidding
	if b == nil || b.Phase.Terminal() {
		return ErrNoLotOnFloor
	}

	s.cancelTimer()
	player := s.players[b.PlayerID]
	player.Status = models.PlayerStatusPool
	s.auction.RemainingPlayers = append(s.auction.RemainingPlayers, player.ID)
	s.auction.Bidding = nil

	s.persistPlayer(ctx, e.store, player, store.PlayerUpdate{Status: models.PlayerStatusPool})
	s.persistAuction(ctx, e.store)
	e.journal(ctx, s, models.ActionPlayerSkipped,
		map[string]string{"player_id": player.ID.String()}, nil, actor,
		fmt.Sprintf("%s skipped back to the pool", player.Name))

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", player.ID.String()).
		Str("actor", actor).
		Msg("lot skipped")

	e.publishPublic(ctx, auctionID, events.EventPlayerSkipped, events.PlayerSkippedPayload{
		PlayerID: player.ID.String(),
		Actor:    actor,
	})
	e.publishAdminState(ctx, s)
	return nil
}

// Complete terminates the auction and discards its session.
func (e *Engine) Complete(ctx context.Context, auctionID uuid.UUID, reason string) error {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.completeLocked(ctx, s, reason)
	return nil
}

func (e *Engine) completeLocked(ctx context.Context, s *session, reason string) {
	s.cancelTimer()
	s.auction.Status = models.AuctionStatusCompleted
	now := e.clock.Now()
	s.auction.CompletedAt = &now
	s.persistAuction(ctx, e.store)
	e.journal(ctx, s, models.ActionAuctionCompleted, map[string]string{"reason": reason}, nil, "system",
		"Auction completed")

	log.Info().
		Str("auction_id", s.auction.ID.String()).
		Str("reason", reason).
		Msg("auction completed")

	e.publishPublic(ctx, s.auction.ID, events.EventAuctionStatusChange, events.StatusChangePayload{
		Status: string(s.auction.Status),
		Round:  s.auction.CurrentRound,
		Reason: reason,
	})
	e.publishAdminState(ctx, s)
	e.sessions.delete(s.auction.ID)
}

// Disqualify removes a player out-of-band, refunding the buyer if the
// player had already been sold. The lot currently on the floor cannot be
// disqualified; skip it first.
func (e *Engine) Disqualify(ctx context.Context, auctionID, playerID uuid.UUID, reason, actor string) error {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auction.Status != models.AuctionStatusLive && s.auction.Status != models.AuctionStatusPaused {
		return ErrAuctionNotLive
	}
	player, ok := s.players[playerID]
	if !ok {
		return ErrPlayerNotInAuction
	}
	if b := s.auction.Bidding; b != nil && !b.Phase.Terminal() && b.PlayerID == playerID {
		return ErrPlayerOnFloor
	}
	if player.Status == models.PlayerStatusDisqualified {
		return fmt.Errorf("player %s already disqualified", playerID)
	}

	rev := disqualifyReversal{PlayerID: playerID, PriorStatus: player.Status}
	payload := events.PlayerDisqualifiedPayload{PlayerID: playerID.String(), Reason: reason}

	var refunded *models.Team
	if player.Status == models.PlayerStatusSold && player.SoldTo != nil {
		team := s.teams[*player.SoldTo]
		slot, found := team.RemoveFromRoster(playerID)
		if !found {
			return fmt.Errorf("player %s sold but missing from roster of %s", playerID, team.ID)
		}
		team.PurseRemaining += slot.Price
		rev.TeamID = &team.ID
		rev.SoldPrice = &slot.Price
		rev.SoldRound = slot.Round
		payload.Refunded = slot.Price
		payload.TeamID = team.ID.String()
		refunded = team
		s.persistTeam(ctx, e.store, team)
	}
	if player.Status == models.PlayerStatusPool {
		s.removeFromPool(playerID)
	}

	player.Status = models.PlayerStatusDisqualified
	player.SoldPrice = nil
	player.SoldTo = nil
	s.persistPlayer(ctx, e.store, player, store.PlayerUpdate{
		Status:    models.PlayerStatusDisqualified,
		ClearSale: true,
	})
	s.persistAuction(ctx, e.store)

	e.journal(ctx, s, models.ActionPlayerDisqualified, payload, marshalReversal(rev), actor,
		fmt.Sprintf("%s disqualified: %s", player.Name, reason))

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", playerID.String()).
		Str("reason", reason).
		Msg("player disqualified")

	e.publishPublic(ctx, auctionID, events.EventPlayerDisqualified, payload)
	if refunded != nil {
		e.publishTeamUpdate(ctx, s, refunded)
	}
	e.publishAdminState(ctx, s)
	return nil
}

// Announce broadcasts an admin message to the public segment. Nothing is
// journaled; announcements are not state.
func (e *Engine) Announce(ctx context.Context, auctionID uuid.UUID, message string) error {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.publishPublic(ctx, auctionID, events.EventAdminAnnouncement, events.AnnouncementPayload{Message: message})
	return nil
}

// Snapshot rebuilds the full public state of an auction on demand, for
// clients that reconnect.
func (e *Engine) Snapshot(ctx context.Context, auctionID uuid.UUID) (*events.StatePayload, error) {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return nil, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := buildSnapshot(s)
	return &snap, nil
}

// journal appends one action event; sequence allocation is the store's.
func (e *Engine) journal(ctx context.Context, s *session, typ models.ActionType, payload interface{}, reversal json.RawMessage, actor, message string) *models.ActionEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("action", string(typ)).Msg("failed to marshal journal payload")
		raw = []byte("{}")
	}
	event := &models.ActionEvent{
		ID:        uuid.New(),
		AuctionID: s.auction.ID,
		Type:      typ,
		Payload:   raw,
		Reversal:  reversal,
		Actor:     actor,
		Message:   message,
		CreatedAt: e.clock.Now(),
	}
	stored, err := e.store.AppendActionEvent(ctx, event)
	if err != nil {
		log.Error().Err(err).
			Str("auction_id", s.auction.ID.String()).
			Str("action", string(typ)).
			Msg("failed to append action event")
		return event
	}
	return stored
}
