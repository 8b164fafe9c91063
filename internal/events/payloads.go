package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusChangePayload is the payload for auction:status_change.
type StatusChangePayload struct {
	Status string `json:"status"`
	Round  int    `json:"round"`
	Reason string `json:"reason,omitempty"`
}

// PlayerRevealedPayload is the payload for player:revealed.
type PlayerRevealedPayload struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Role       string    `json:"role"`
	BasePrice  int64     `json:"base_price"`
	Round      int       `json:"round"`
	OpensAt    time.Time `json:"opens_at"`
}

// BiddingOpenPayload is the payload for bidding:open.
type BiddingOpenPayload struct {
	PlayerID       string    `json:"player_id"`
	CurrentBid     int64     `json:"current_bid"`
	NextBidAmount  int64     `json:"next_bid_amount"`
	TimerExpiresAt time.Time `json:"timer_expires_at"`
}

// TimerPhasePayload is the payload for timer:phase (going once / twice).
type TimerPhasePayload struct {
	PlayerID       string    `json:"player_id"`
	Phase          string    `json:"phase"`
	CurrentBid     int64     `json:"current_bid"`
	TimerExpiresAt time.Time `json:"timer_expires_at"`
}

// BidPlacedPayload is the payload for bid:placed.
type BidPlacedPayload struct {
	PlayerID       string    `json:"player_id"`
	TeamID         string    `json:"team_id"`
	TeamName       string    `json:"team_name"`
	Amount         int64     `json:"amount"`
	NextBidAmount  int64     `json:"next_bid_amount"`
	TimerExpiresAt time.Time `json:"timer_expires_at"`
}

// BidRejectedPayload is the payload for bid:rejected (admin segment).
type BidRejectedPayload struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

// PlayerSoldPayload is the payload for player:sold.
type PlayerSoldPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	TeamID     string `json:"team_id"`
	TeamName   string `json:"team_name"`
	Price      int64  `json:"price"`
	Round      int    `json:"round"`
}

// PlayerUnsoldPayload is the payload for player:unsold.
type PlayerUnsoldPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Round      int    `json:"round"`
}

// PlayerSkippedPayload is the payload for player:skipped.
type PlayerSkippedPayload struct {
	PlayerID string `json:"player_id"`
	Actor    string `json:"actor"`
}

// PlayerDisqualifiedPayload is the payload for player:disqualified.
type PlayerDisqualifiedPayload struct {
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason"`
	Refunded int64  `json:"refunded,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
}

// UndoPayload is the payload for admin:undo.
type UndoPayload struct {
	ReversedType string `json:"reversed_type"`
	Seq          int64  `json:"seq"`
	Actor        string `json:"actor"`
}

// AnnouncementPayload is the payload for admin:announcement.
type AnnouncementPayload struct {
	Message string `json:"message"`
}

// TeamUpdatePayload is the team-private payload for team:update.
type TeamUpdatePayload struct {
	TeamID         string `json:"team_id"`
	PurseRemaining int64  `json:"purse_remaining"`
	MaxBid         int64  `json:"max_bid"`
	SquadSize      int    `json:"squad_size"`
	CanBid         bool   `json:"can_bid"`
}

// TeamSummary is one team's row inside a full state snapshot.
type TeamSummary struct {
	TeamID         string `json:"team_id"`
	Name           string `json:"name"`
	PurseRemaining int64  `json:"purse_remaining"`
	SquadSize      int    `json:"squad_size"`
}

// StatePayload is the full-rebuild payload for auction:state. Every
// derived field is recomputed from the authoritative records so that a
// client that missed intermediate events is consistent after one message.
type StatePayload struct {
	AuctionID      string        `json:"auction_id"`
	Status         string        `json:"status"`
	Round          int           `json:"round"`
	PoolCount      int           `json:"pool_count"`
	SoldCount      int           `json:"sold_count"`
	UnsoldCount    int           `json:"unsold_count"`
	Teams          []TeamSummary `json:"teams"`
	CurrentPlayer  *string       `json:"current_player,omitempty"`
	Phase          string        `json:"phase,omitempty"`
	CurrentBid     int64         `json:"current_bid,omitempty"`
	CurrentTeamID  *string       `json:"current_team_id,omitempty"`
	TimerExpiresAt *time.Time    `json:"timer_expires_at,omitempty"`
}

// ParsePayload decodes an event's raw data into its typed payload.
func ParsePayload(ev *Event) (interface{}, error) {
	var target interface{}
	switch ev.Type {
	case EventAuctionStatusChange:
		target = &StatusChangePayload{}
	case EventAuctionState:
		target = &StatePayload{}
	case EventPlayerRevealed:
		target = &PlayerRevealedPayload{}
	case EventBiddingOpen:
		target = &BiddingOpenPayload{}
	case EventTimerPhase:
		target = &TimerPhasePayload{}
	case EventBidPlaced:
		target = &BidPlacedPayload{}
	case EventBidRejected:
		target = &BidRejectedPayload{}
	case EventPlayerSold:
		target = &PlayerSoldPayload{}
	case EventPlayerUnsold:
		target = &PlayerUnsoldPayload{}
	case EventPlayerSkipped:
		target = &PlayerSkippedPayload{}
	case EventPlayerDisqualified:
		target = &PlayerDisqualifiedPayload{}
	case EventAdminUndo:
		target = &UndoPayload{}
	case EventAdminAnnouncement:
		target = &AnnouncementPayload{}
	case EventTeamUpdate:
		target = &TeamUpdatePayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if err := json.Unmarshal(ev.Data, target); err != nil {
		return nil, err
	}
	return target, nil
}
