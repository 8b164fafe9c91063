package models

import (
	"time"

	"github.com/google/uuid"
)

// BidAuditEntry records a rejected bid attempt. The trail is
// non-authoritative and exists for dispute resolution; entries for a lot
// voided by a mid-bid pause are flagged rather than deleted.
type BidAuditEntry struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	TeamID    uuid.UUID `json:"team_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Voided    bool      `json:"voided"`
	CreatedAt time.Time `json:"created_at"`
}
