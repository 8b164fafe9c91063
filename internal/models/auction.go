package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus defines the lifecycle status of an auction.
type AuctionStatus string

const (
	AuctionStatusDraft      AuctionStatus = "DRAFT"
	AuctionStatusConfigured AuctionStatus = "CONFIGURED"
	AuctionStatusLive       AuctionStatus = "LIVE"
	AuctionStatusPaused     AuctionStatus = "PAUSED"
	AuctionStatusCompleted  AuctionStatus = "COMPLETED"
	AuctionStatusCancelled  AuctionStatus = "CANCELLED"
)

// IncrementTier is one step of the bid-increment ladder. A nil UpTo marks
// the open-ended top tier.
type IncrementTier struct {
	UpTo *int64 `json:"up_to" yaml:"up_to"`
	Step int64  `json:"step" yaml:"step"`
}

// AuctionConfig holds the per-auction round and money configuration.
type AuctionConfig struct {
	MaxRounds        int             `json:"max_rounds" yaml:"max_rounds"`
	RevealDelay      time.Duration   `json:"reveal_delay" yaml:"reveal_delay"`
	BidTimer         time.Duration   `json:"bid_timer" yaml:"bid_timer"`
	BidResetTimer    time.Duration   `json:"bid_reset_timer" yaml:"bid_reset_timer"`
	GoingOnceTimer   time.Duration   `json:"going_once_timer" yaml:"going_once_timer"`
	GoingTwiceTimer  time.Duration   `json:"going_twice_timer" yaml:"going_twice_timer"`
	BasePrice        int64           `json:"base_price" yaml:"base_price"`
	PurseValue       int64           `json:"purse_value" yaml:"purse_value"`
	MinSquadSize     int             `json:"min_squad_size" yaml:"min_squad_size"`
	MaxSquadSize     int             `json:"max_squad_size" yaml:"max_squad_size"`
	IncrementTiers   []IncrementTier `json:"increment_tiers" yaml:"increment_tiers"`
}

// Auction represents one auction instance. BiddingState is the single
// sub-record for the lot currently on the floor; it is overwritten each
// time a new lot is picked.
type Auction struct {
	ID               uuid.UUID     `json:"id"`
	Name             string        `json:"name"`
	Status           AuctionStatus `json:"status"`
	CurrentRound     int           `json:"current_round"`
	RemainingPlayers []uuid.UUID   `json:"remaining_players"`
	Config           AuctionConfig `json:"config"`
	Bidding          *BiddingState `json:"bidding,omitempty"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IsLive reports whether bids and phase transitions are allowed.
func (a *Auction) IsLive() bool {
	return a.Status == AuctionStatusLive
}
