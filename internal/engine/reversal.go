package engine

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/crickstack/auctioneer/internal/models"
)

// Reversal payloads form a tagged union keyed by the journal event type.
// Each payload is self-sufficient: it restores every entity the forward
// action mutated without re-deriving state from anywhere else.

// soldReversal undoes PLAYER_SOLD: return the player to the pool, restore
// the buyer's purse to its captured pre-sale value, strip the roster slot.
type soldReversal struct {
	PlayerID    uuid.UUID `json:"player_id"`
	TeamID      uuid.UUID `json:"team_id"`
	Price       int64     `json:"price"`
	PurseBefore int64     `json:"purse_before"`
	Round       int       `json:"round"`
}

// unsoldReversal undoes PLAYER_UNSOLD: return the player to the pool.
type unsoldReversal struct {
	PlayerID uuid.UUID `json:"player_id"`
	Round    int       `json:"round"`
}

// disqualifyReversal undoes PLAYER_DISQUALIFIED: reinstate the prior
// status, and when the player had been sold, re-deduct the refunded purse
// and re-add the roster slot.
type disqualifyReversal struct {
	PlayerID    uuid.UUID    `json:"player_id"`
	PriorStatus models.PlayerStatus `json:"prior_status"`
	TeamID      *uuid.UUID   `json:"team_id,omitempty"`
	SoldPrice   *int64       `json:"sold_price,omitempty"`
	SoldRound   int          `json:"sold_round,omitempty"`
}

func marshalReversal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		// Reversal payloads are plain structs; a marshal failure here is a
		// programming error.
		panic(fmt.Sprintf("marshal reversal: %v", err))
	}
	return raw
}

// undoEffects names the records a reversal mutated so the caller can
// persist and broadcast them.
type undoEffects struct {
	team   *models.Team
	player *models.Player
}

// applyReversal dispatches on the event type and mutates the session's
// authoritative records. It validates everything before touching state so
// a failed undo is all-or-nothing.
func (s *session) applyReversal(event *models.ActionEvent) (*undoEffects, error) {
	switch event.Type {
	case models.ActionPlayerSold:
		var rev soldReversal
		if err := json.Unmarshal(event.Reversal, &rev); err != nil {
			return nil, fmt.Errorf("decode sold reversal: %w", err)
		}
		return s.reverseSold(rev)

	case models.ActionPlayerUnsold:
		var rev unsoldReversal
		if err := json.Unmarshal(event.Reversal, &rev); err != nil {
			return nil, fmt.Errorf("decode unsold reversal: %w", err)
		}
		return s.reverseUnsold(rev)

	case models.ActionPlayerDisqualified:
		var rev disqualifyReversal
		if err := json.Unmarshal(event.Reversal, &rev); err != nil {
			return nil, fmt.Errorf("decode disqualify reversal: %w", err)
		}
		return s.reverseDisqualify(rev)

	default:
		return nil, ErrNotReversible
	}
}

func (s *session) reverseSold(rev soldReversal) (*undoEffects, error) {
	team, ok := s.teams[rev.TeamID]
	if !ok {
		return nil, fmt.Errorf("reverse sale: %w", ErrTeamNotFound)
	}
	player, ok := s.players[rev.PlayerID]
	if !ok {
		return nil, fmt.Errorf("reverse sale: %w", ErrPlayerNotInAuction)
	}

	team.PurseRemaining = rev.PurseBefore
	team.RemoveFromRoster(rev.PlayerID)

	player.Status = models.PlayerStatusPool
	player.SoldPrice = nil
	player.SoldTo = nil
	s.auction.RemainingPlayers = append(s.auction.RemainingPlayers, rev.PlayerID)
	return &undoEffects{team: team, player: player}, nil
}

func (s *session) reverseUnsold(rev unsoldReversal) (*undoEffects, error) {
	player, ok := s.players[rev.PlayerID]
	if !ok {
		return nil, fmt.Errorf("reverse unsold: %w", ErrPlayerNotInAuction)
	}
	player.Status = models.PlayerStatusPool
	s.auction.RemainingPlayers = append(s.auction.RemainingPlayers, rev.PlayerID)
	return &undoEffects{player: player}, nil
}

func (s *session) reverseDisqualify(rev disqualifyReversal) (*undoEffects, error) {
	player, ok := s.players[rev.PlayerID]
	if !ok {
		return nil, fmt.Errorf("reverse disqualification: %w", ErrPlayerNotInAuction)
	}

	effects := &undoEffects{player: player}
	if rev.PriorStatus == models.PlayerStatusSold {
		if rev.TeamID == nil || rev.SoldPrice == nil {
			return nil, fmt.Errorf("reverse disqualification: sold branch missing buyer or price")
		}
		team, ok := s.teams[*rev.TeamID]
		if !ok {
			return nil, fmt.Errorf("reverse disqualification: %w", ErrTeamNotFound)
		}
		if team.PurseRemaining < *rev.SoldPrice {
			return nil, ErrUndoWouldBreakPurse
		}
		team.PurseRemaining -= *rev.SoldPrice
		team.Roster = append(team.Roster, models.RosterSlot{
			PlayerID: rev.PlayerID,
			Price:    *rev.SoldPrice,
			Round:    rev.SoldRound,
		})
		player.SoldPrice = rev.SoldPrice
		player.SoldTo = rev.TeamID
		effects.team = team
	}

	player.Status = rev.PriorStatus
	if rev.PriorStatus == models.PlayerStatusPool {
		s.auction.RemainingPlayers = append(s.auction.RemainingPlayers, rev.PlayerID)
	}
	return effects, nil
}
