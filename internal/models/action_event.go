package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionType identifies a state-affecting engine action in the journal.
type ActionType string

const (
	ActionPlayerSold         ActionType = "PLAYER_SOLD"
	ActionPlayerUnsold       ActionType = "PLAYER_UNSOLD"
	ActionPlayerSkipped      ActionType = "PLAYER_SKIPPED"
	ActionPlayerDisqualified ActionType = "PLAYER_DISQUALIFIED"
	ActionAuctionPaused      ActionType = "AUCTION_PAUSED"
	ActionAuctionResumed     ActionType = "AUCTION_RESUMED"
	ActionAuctionCompleted   ActionType = "AUCTION_COMPLETED"
)

// ActionEvent is one append-only journal entry. Seq is allocated by the
// store, strictly increasing and gap-free per auction. Reversal holds a
// self-sufficient payload to restore every entity the action mutated.
type ActionEvent struct {
	ID        uuid.UUID       `json:"id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	Seq       int64           `json:"seq"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Reversal  json.RawMessage `json:"reversal,omitempty"`
	Undone    bool            `json:"undone"`
	Actor     string          `json:"actor"`
	Message   string          `json:"message"`
	CreatedAt time.Time       `json:"created_at"`
}

// Reversible reports whether the event type supports undo.
func (t ActionType) Reversible() bool {
	switch t {
	case ActionPlayerSold, ActionPlayerUnsold, ActionPlayerDisqualified:
		return true
	default:
		return false
	}
}
