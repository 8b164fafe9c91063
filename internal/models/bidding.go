package models

import (
	"time"

	"github.com/google/uuid"
)

// BidPhase is the bidding sub-state of the lot on the floor.
type BidPhase string

const (
	PhaseWaiting    BidPhase = "WAITING"
	PhaseRevealed   BidPhase = "REVEALED"
	PhaseOpen       BidPhase = "OPEN"
	PhaseGoingOnce  BidPhase = "GOING_ONCE"
	PhaseGoingTwice BidPhase = "GOING_TWICE"
	PhaseSold       BidPhase = "SOLD"
	PhaseUnsold     BidPhase = "UNSOLD"
)

// Terminal reports whether the phase ends the lot's bidding cycle.
func (p BidPhase) Terminal() bool {
	return p == PhaseSold || p == PhaseUnsold
}

// BiddableNow reports whether a bid may be accepted in this phase.
func (p BidPhase) BiddableNow() bool {
	return p == PhaseOpen || p == PhaseGoingOnce || p == PhaseGoingTwice
}

// BidEntry is one accepted bid in the lot's history.
type BidEntry struct {
	TeamID   uuid.UUID `json:"team_id"`
	Amount   int64     `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// BiddingState is the ephemeral per-lot bidding record. CurrentBid is
// non-decreasing and BidHistory append-only for the lifetime of the lot.
type BiddingState struct {
	PlayerID       uuid.UUID  `json:"player_id"`
	Phase          BidPhase   `json:"phase"`
	CurrentBid     int64      `json:"current_bid"`
	CurrentTeamID  *uuid.UUID `json:"current_team_id,omitempty"`
	BidHistory     []BidEntry `json:"bid_history"`
	TimerExpiresAt time.Time  `json:"timer_expires_at"`
}

// HasBids reports whether at least one bid was accepted for the lot.
func (b *BiddingState) HasBids() bool {
	return len(b.BidHistory) > 0 && b.CurrentTeamID != nil
}
