// Package events defines the broadcast event vocabulary shared between
// the engine, the outbox relay and the websocket gateway.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names one broadcast event.
type EventType string

const (
	EventAuctionStatusChange EventType = "auction:status_change"
	EventAuctionState        EventType = "auction:state"
	EventPlayerRevealed      EventType = "player:revealed"
	EventBiddingOpen         EventType = "bidding:open"
	EventTimerPhase          EventType = "timer:phase"
	EventBidPlaced           EventType = "bid:placed"
	EventBidRejected         EventType = "bid:rejected"
	EventPlayerSold          EventType = "player:sold"
	EventPlayerUnsold        EventType = "player:unsold"
	EventPlayerSkipped       EventType = "player:skipped"
	EventPlayerDisqualified  EventType = "player:disqualified"
	EventAdminUndo           EventType = "admin:undo"
	EventAdminAnnouncement   EventType = "admin:announcement"
	EventTeamUpdate          EventType = "team:update"
)

// Audience is one broadcast segment.
type Audience string

const (
	AudiencePublic Audience = "public"
	AudienceTeam   Audience = "team"
	AudienceAdmin  Audience = "admin"
)

// Event is the wire envelope published to NATS and pushed over
// websockets. TeamID is set only for team-private events.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	Type      EventType       `json:"type"`
	Audience  Audience        `json:"audience"`
	TeamID    *uuid.UUID      `json:"team_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
