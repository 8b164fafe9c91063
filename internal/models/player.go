package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerStatus defines where a player (lot) currently lives. A player is
// in exactly one of the pool, the floor, a roster, or the disqualified set.
type PlayerStatus string

const (
	PlayerStatusPool         PlayerStatus = "POOL"
	PlayerStatusInAuction    PlayerStatus = "IN_AUCTION"
	PlayerStatusSold         PlayerStatus = "SOLD"
	PlayerStatusUnsold       PlayerStatus = "UNSOLD"
	PlayerStatusDisqualified PlayerStatus = "DISQUALIFIED"
)

// RoundOutcome records what happened to a player in one auction round.
type RoundOutcome struct {
	Round   int          `json:"round"`
	Outcome PlayerStatus `json:"outcome"`
	Price   int64        `json:"price,omitempty"`
}

// Player is a lot offered on the auction floor.
type Player struct {
	ID        uuid.UUID      `json:"id"`
	AuctionID uuid.UUID      `json:"auction_id"`
	Name      string         `json:"name"`
	Role      string         `json:"role"`
	BasePrice int64          `json:"base_price"`
	Status    PlayerStatus   `json:"status"`
	SoldPrice *int64         `json:"sold_price,omitempty"`
	SoldTo    *uuid.UUID     `json:"sold_to,omitempty"`
	Rounds    []RoundOutcome `json:"rounds,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
