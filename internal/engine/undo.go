package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/events"
	"github.com/crickstack/auctioneer/internal/models"
	"github.com/crickstack/auctioneer/internal/store"
)

// UndoResult reports what an accepted undo reversed.
type UndoResult struct {
	Accepted     bool   `json:"accepted"`
	ReversedType string `json:"reversed_type"`
	Seq          int64  `json:"seq"`
}

// Undo reverses the most recent non-undone journal event, LIFO, capped at
// three consecutive undos. It is all-or-nothing: a failed reversal leaves
// the journal entry not-undone and no entity touched. Discarded bidding
// states are never resurrected; the admin re-picks the lot if desired.
func (e *Engine) Undo(ctx context.Context, auctionID uuid.UUID, actor string) (*UndoResult, error) {
	s, ok := e.sessions.get(auctionID)
	if !ok {
		return nil, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auction.Status != models.AuctionStatusLive && s.auction.Status != models.AuctionStatusPaused {
		return nil, ErrAuctionNotLive
	}

	tail, err := e.store.GetUndoableTail(ctx, auctionID, undoLimit+1)
	if err != nil {
		return nil, fmt.Errorf("load journal tail: %w", err)
	}

	// The undo depth is the unbroken run of undone flags at the tail.
	var target *models.ActionEvent
	consecutive := 0
	for _, ev := range tail {
		if ev.Undone {
			consecutive++
			continue
		}
		target = ev
		break
	}
	if consecutive >= undoLimit {
		return nil, ErrUndoLimit
	}
	if target == nil {
		return nil, ErrNothingToUndo
	}
	if !target.Type.Reversible() {
		return nil, ErrNotReversible
	}

	effects, err := s.applyReversal(target)
	if err != nil {
		return nil, fmt.Errorf("undo %s seq %d: %w", target.Type, target.Seq, err)
	}

	if effects.player != nil {
		update := store.PlayerUpdate{
			Status:    effects.player.Status,
			SoldPrice: effects.player.SoldPrice,
			SoldTo:    effects.player.SoldTo,
			ClearSale: effects.player.SoldPrice == nil,
		}
		s.persistPlayer(ctx, e.store, effects.player, update)
	}
	if effects.team != nil {
		s.persistTeam(ctx, e.store, effects.team)
	}
	s.persistAuction(ctx, e.store)

	if err := e.store.MarkEventUndone(ctx, target.ID); err != nil {
		log.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Int64("seq", target.Seq).
			Msg("reversal applied but event not flagged undone")
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("type", string(target.Type)).
		Int64("seq", target.Seq).
		Str("actor", actor).
		Msg("action undone")

	e.publishPublic(ctx, auctionID, events.EventAdminUndo, events.UndoPayload{
		ReversedType: string(target.Type),
		Seq:          target.Seq,
		Actor:        actor,
	})
	if effects.team != nil {
		e.publishTeamUpdate(ctx, s, effects.team)
	}
	e.publishAdminState(ctx, s)

	return &UndoResult{
		Accepted:     true,
		ReversedType: string(target.Type),
		Seq:          target.Seq,
	}, nil
}
