package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/bidmath"
	"github.com/crickstack/auctioneer/internal/events"
	"github.com/crickstack/auctioneer/internal/models"
	"github.com/crickstack/auctioneer/internal/store"
)

// BidResult is returned to the bidding team on acceptance.
type BidResult struct {
	Accepted       bool      `json:"accepted"`
	Amount         int64     `json:"amount"`
	NextBidAmount  int64     `json:"next_bid_amount"`
	TimerExpiresAt time.Time `json:"timer_expires_at"`
}

// PickNext pops a uniformly-random player from the remaining pool and
// puts it on the floor. An empty pool promotes unsold players into a new
// round while rounds remain, otherwise the auction completes.
func (e *Engine) PickNext(ctx context.Context, auctionID uuid.UUID) error {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.auction.IsLive() {
		return ErrAuctionNotLive
	}
	if b := s.auction.Bidding; b != nil && !b.Phase.Terminal() {
		return ErrLotOnFloor
	}

	if len(s.auction.RemainingPlayers) == 0 {
		promoted := e.promoteUnsoldLocked(ctx, s)
		if !promoted {
			e.completeLocked(ctx, s, "player pool exhausted")
			return nil
		}
	}

	idx := e.randIntN(len(s.auction.RemainingPlayers))
	playerID := s.auction.RemainingPlayers[idx]
	s.removeFromPool(playerID)
	player := s.players[playerID]
	player.Status = models.PlayerStatusInAuction

	now := e.clock.Now()
	opensAt := now.Add(s.auction.Config.RevealDelay)
	s.auction.Bidding = &models.BiddingState{
		PlayerID:       playerID,
		Phase:          models.PhaseRevealed,
		TimerExpiresAt: opensAt,
	}
	s.armTimer(s.auction.Config.RevealDelay, models.PhaseRevealed, func(gen uint64) {
		e.onRevealTimer(context.Background(), s, gen)
	})

	s.persistPlayer(ctx, e.store, player, store.PlayerUpdate{Status: models.PlayerStatusInAuction})
	s.persistAuction(ctx, e.store)

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", playerID.String()).
		Int("round", s.auction.CurrentRound).
		Int("pool_left", len(s.auction.RemainingPlayers)).
		Msg("lot revealed")

	e.publishPublic(ctx, auctionID, events.EventPlayerRevealed, events.PlayerRevealedPayload{
		PlayerID:   playerID.String(),
		PlayerName: player.Name,
		Role:       player.Role,
		BasePrice:  e.basePriceFor(s, player),
		Round:      s.auction.CurrentRound,
		OpensAt:    opensAt,
	})
	return nil
}

// promoteUnsoldLocked moves unsold players back into the pool for a new
// round. Returns false when no round promotion is possible.
func (e *Engine) promoteUnsoldLocked(ctx context.Context, s *session) bool {
	if s.auction.CurrentRound >= s.auction.Config.MaxRounds {
		return false
	}
	var unsold []*models.Player
	for _, p := range s.players {
		if p.Status == models.PlayerStatusUnsold {
			unsold = append(unsold, p)
		}
	}
	if len(unsold) == 0 {
		return false
	}

	s.auction.CurrentRound++
	for _, p := range unsold {
		p.Status = models.PlayerStatusPool
		s.auction.RemainingPlayers = append(s.auction.RemainingPlayers, p.ID)
		s.persistPlayer(ctx, e.store, p, store.PlayerUpdate{Status: models.PlayerStatusPool})
	}
	s.persistAuction(ctx, e.store)

	log.Info().
		Str("auction_id", s.auction.ID.String()).
		Int("round", s.auction.CurrentRound).
		Int("promoted", len(unsold)).
		Msg("unsold players promoted into new round")

	e.publishPublic(ctx, s.auction.ID, events.EventAuctionStatusChange, events.StatusChangePayload{
		Status: string(s.auction.Status),
		Round:  s.auction.CurrentRound,
		Reason: "new round",
	})
	return true
}

// PlaceBid evaluates one team's bid. Validation short-circuits on the
// first failing check; rejections past the phase checks are recorded in
// the bid audit trail but never mutate auction state.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, teamID uuid.UUID) (*BidResult, error) {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return nil, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tryGate(); err != nil {
		return nil, err
	}
	defer s.holdGate(e.gateHold)

	result, err := e.evaluateBidLocked(ctx, s, teamID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) evaluateBidLocked(ctx context.Context, s *session, teamID uuid.UUID) (*BidResult, error) {
	if !s.auction.IsLive() {
		return nil, ErrAuctionNotLive
	}
	b := s.auction.Bidding
	if b == nil || !b.Phase.BiddableNow() {
		return nil, ErrBiddingClosed
	}
	if b.CurrentTeamID != nil && *b.CurrentTeamID == teamID {
		return nil, ErrAlreadyHighest
	}
	team, ok := s.teams[teamID]
	if !ok {
		return nil, ErrTeamNotFound
	}
	if !team.Active {
		return nil, ErrTeamInactive
	}

	cfg := s.auction.Config
	player := s.players[b.PlayerID]
	base := e.basePriceFor(s, player)
	amount := bidmath.NextBidAmount(b.CurrentBid, b.HasBids(), base, cfg.IncrementTiers)

	if amount > bidmath.MaxBid(team, cfg) {
		e.auditRejection(ctx, s, team, amount, ErrExceedsMaxBid.Error())
		return nil, ErrExceedsMaxBid
	}
	if amount > team.PurseRemaining {
		e.auditRejection(ctx, s, team, amount, ErrInsufficientPurse.Error())
		return nil, ErrInsufficientPurse
	}
	if team.SquadSize() >= cfg.MaxSquadSize {
		e.auditRejection(ctx, s, team, amount, ErrSquadFull.Error())
		return nil, ErrSquadFull
	}

	now := e.clock.Now()
	b.BidHistory = append(b.BidHistory, models.BidEntry{
		TeamID:   teamID,
		Amount:   amount,
		PlacedAt: now,
	})
	b.CurrentBid = amount
	tid := teamID
	b.CurrentTeamID = &tid
	// Any bid revives the lot: back to OPEN with a fresh timer.
	b.Phase = models.PhaseOpen
	b.TimerExpiresAt = now.Add(cfg.BidResetTimer)
	s.armTimer(cfg.BidResetTimer, models.PhaseOpen, func(gen uint64) {
		e.onOpenTimer(context.Background(), s, gen)
	})

	s.persistAuction(ctx, e.store)

	next := bidmath.NextBidAmount(b.CurrentBid, true, base, cfg.IncrementTiers)
	log.Info().
		Str("auction_id", s.auction.ID.String()).
		Str("player_id", b.PlayerID.String()).
		Str("team_id", teamID.String()).
		Int64("amount", amount).
		Msg("bid accepted")

	e.publishPublic(ctx, s.auction.ID, events.EventBidPlaced, events.BidPlacedPayload{
		PlayerID:       b.PlayerID.String(),
		TeamID:         teamID.String(),
		TeamName:       team.Name,
		Amount:         amount,
		NextBidAmount:  next,
		TimerExpiresAt: b.TimerExpiresAt,
	})

	return &BidResult{
		Accepted:       true,
		Amount:         amount,
		NextBidAmount:  next,
		TimerExpiresAt: b.TimerExpiresAt,
	}, nil
}

// auditRejection records a rejected bid in the non-authoritative audit
// trail and notifies the admin segment.
func (e *Engine) auditRejection(ctx context.Context, s *session, team *models.Team, amount int64, reason string) {
	b := s.auction.Bidding
	entry := &models.BidAuditEntry{
		ID:        uuid.New(),
		AuctionID: s.auction.ID,
		PlayerID:  b.PlayerID,
		TeamID:    team.ID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: e.clock.Now(),
	}
	if err := e.store.AppendBidAudit(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("auction_id", s.auction.ID.String()).
			Str("team_id", team.ID.String()).
			Msg("failed to append bid audit entry")
	}
	log.Warn().
		Str("auction_id", s.auction.ID.String()).
		Str("player_id", b.PlayerID.String()).
		Str("team_id", team.ID.String()).
		Int64("amount", amount).
		Str("reason", reason).
		Msg("bid rejected")

	e.publishAdmin(ctx, s.auction.ID, events.EventBidRejected, events.BidRejectedPayload{
		PlayerID: b.PlayerID.String(),
		TeamID:   team.ID.String(),
		Amount:   amount,
		Reason:   reason,
	})
}

func (e *Engine) basePriceFor(s *session, player *models.Player) int64 {
	if player != nil && player.BasePrice > 0 {
		return player.BasePrice
	}
	return s.auction.Config.BasePrice
}

// timerGuard re-validates liveness and phase under the session lock. A
// timer that fires after the state was externally changed drops here as a
// no-op instead of corrupting state.
func (e *Engine) timerGuard(s *session, gen uint64, expect models.BidPhase) bool {
	if gen != s.timerGen {
		return false
	}
	if !s.auction.IsLive() {
		return false
	}
	b := s.auction.Bidding
	if b == nil || b.Phase != expect {
		return false
	}
	return true
}

func (e *Engine) onRevealTimer(ctx context.Context, s *session, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !e.timerGuard(s, gen, models.PhaseRevealed) {
		return
	}

	b := s.auction.Bidding
	cfg := s.auction.Config
	player := s.players[b.PlayerID]
	base := e.basePriceFor(s, player)

	b.Phase = models.PhaseOpen
	b.CurrentBid = base
	b.TimerExpiresAt = e.clock.Now().Add(cfg.BidTimer)
	s.armTimer(cfg.BidTimer, models.PhaseOpen, func(gen uint64) {
		e.onOpenTimer(context.Background(), s, gen)
	})
	s.persistAuction(ctx, e.store)

	e.publishPublic(ctx, s.auction.ID, events.EventBiddingOpen, events.BiddingOpenPayload{
		PlayerID:       b.PlayerID.String(),
		CurrentBid:     b.CurrentBid,
		NextBidAmount:  base, // first accepted bid equals the base price
		TimerExpiresAt: b.TimerExpiresAt,
	})
}

func (e *Engine) onOpenTimer(ctx context.Context, s *session, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !e.timerGuard(s, gen, models.PhaseOpen) {
		return
	}
	e.advanceGoingPhase(ctx, s, models.PhaseGoingOnce, s.auction.Config.GoingOnceTimer, func(gen uint64) {
		e.onGoingOnceTimer(context.Background(), s, gen)
	})
}

func (e *Engine) onGoingOnceTimer(ctx context.Context, s *session, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !e.timerGuard(s, gen, models.PhaseGoingOnce) {
		return
	}
	e.advanceGoingPhase(ctx, s, models.PhaseGoingTwice, s.auction.Config.GoingTwiceTimer, func(gen uint64) {
		e.onGoingTwiceTimer(context.Background(), s, gen)
	})
}

func (e *Engine) onGoingTwiceTimer(ctx context.Context, s *session, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !e.timerGuard(s, gen, models.PhaseGoingTwice) {
		return
	}
	e.finalizeLotLocked(ctx, s)
}

func (e *Engine) advanceGoingPhase(ctx context.Context, s *session, phase models.BidPhase, d time.Duration, fire func(gen uint64)) {
	b := s.auction.Bidding
	b.Phase = phase
	b.TimerExpiresAt = e.clock.Now().Add(d)
	s.armTimer(d, phase, fire)
	s.persistAuction(ctx, e.store)

	e.publishPublic(ctx, s.auction.ID, events.EventTimerPhase, events.TimerPhasePayload{
		PlayerID:       b.PlayerID.String(),
		Phase:          string(phase),
		CurrentBid:     b.CurrentBid,
		TimerExpiresAt: b.TimerExpiresAt,
	})
}

// finalizeLotLocked ends the lot: SOLD when a highest bidder exists,
// UNSOLD otherwise.
func (e *Engine) finalizeLotLocked(ctx context.Context, s *session) {
	b := s.auction.Bidding
	s.cancelTimer()
	player := s.players[b.PlayerID]
	round := s.auction.CurrentRound

	if b.HasBids() {
		team := s.teams[*b.CurrentTeamID]
		price := b.CurrentBid
		purseBefore := team.PurseRemaining

		team.PurseRemaining -= price
		team.Roster = append(team.Roster, models.RosterSlot{
			PlayerID: player.ID,
			Price:    price,
			Round:    round,
			BoughtAt: e.clock.Now(),
		})
		player.Status = models.PlayerStatusSold
		player.SoldPrice = &price
		player.SoldTo = &team.ID
		b.Phase = models.PhaseSold

		s.persistTeam(ctx, e.store, team)
		s.persistPlayer(ctx, e.store, player, store.PlayerUpdate{
			Status:    models.PlayerStatusSold,
			SoldPrice: &price,
			SoldTo:    &team.ID,
			AddRound:  &models.RoundOutcome{Round: round, Outcome: models.PlayerStatusSold, Price: price},
		})
		s.persistAuction(ctx, e.store)

		payload := events.PlayerSoldPayload{
			PlayerID:   player.ID.String(),
			PlayerName: player.Name,
			TeamID:     team.ID.String(),
			TeamName:   team.Name,
			Price:      price,
			Round:      round,
		}
		e.journal(ctx, s, models.ActionPlayerSold, payload, marshalReversal(soldReversal{
			PlayerID:    player.ID,
			TeamID:      team.ID,
			Price:       price,
			PurseBefore: purseBefore,
			Round:       round,
		}), "system", fmt.Sprintf("%s sold to %s for %d", player.Name, team.Name, price))

		log.Info().
			Str("auction_id", s.auction.ID.String()).
			Str("player_id", player.ID.String()).
			Str("team_id", team.ID.String()).
			Int64("price", price).
			Msg("lot sold")

		e.publishPublic(ctx, s.auction.ID, events.EventPlayerSold, payload)
		e.publishTeamUpdate(ctx, s, team)
		e.publishAdminState(ctx, s)
		return
	}

	player.Status = models.PlayerStatusUnsold
	b.Phase = models.PhaseUnsold

	s.persistPlayer(ctx, e.store, player, store.PlayerUpdate{
		Status:   models.PlayerStatusUnsold,
		AddRound: &models.RoundOutcome{Round: round, Outcome: models.PlayerStatusUnsold},
	})
	s.persistAuction(ctx, e.store)

	payload := events.PlayerUnsoldPayload{
		PlayerID:   player.ID.String(),
		PlayerName: player.Name,
		Round:      round,
	}
	e.journal(ctx, s, models.ActionPlayerUnsold, payload, marshalReversal(unsoldReversal{
		PlayerID: player.ID,
		Round:    round,
	}), "system", fmt.Sprintf("%s unsold in round %d", player.Name, round))

	log.Info().
		Str("auction_id", s.auction.ID.String()).
		Str("player_id", player.ID.String()).
		Int("round", round).
		Msg("lot unsold")

	e.publishPublic(ctx, s.auction.ID, events.EventPlayerUnsold, payload)
	e.publishAdminState(ctx, s)
}
