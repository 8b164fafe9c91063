// Package outbox persists broadcast events beside the auction state and
// relays them to NATS, so a crash between mutation and publish never
// loses an event.
package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/crickstack/auctioneer/internal/events"
)

// Entry is one stored broadcast event awaiting relay.
type Entry struct {
	ID        uuid.UUID     `json:"id"`
	AuctionID uuid.UUID     `json:"auction_id"`
	Event     *events.Event `json:"event"`
	CreatedAt time.Time     `json:"created_at"`
	SentAt    *time.Time    `json:"sent_at,omitempty"`
}
