package models

import (
	"time"

	"github.com/google/uuid"
)

// RosterSlot is one player bought by a team, with the winning price and
// the round in which the sale happened.
type RosterSlot struct {
	PlayerID uuid.UUID `json:"player_id"`
	Price    int64     `json:"price"`
	Round    int       `json:"round"`
	BoughtAt time.Time `json:"bought_at"`
}

// Team is a bidder. PurseRemaining decreases only by winning bids and
// increases only by refunds from undo or disqualification.
type Team struct {
	ID             uuid.UUID    `json:"id"`
	AuctionID      uuid.UUID    `json:"auction_id"`
	Name           string       `json:"name"`
	ShortName      string       `json:"short_name"`
	PurseTotal     int64        `json:"purse_total"`
	PurseRemaining int64        `json:"purse_remaining"`
	Roster         []RosterSlot `json:"roster"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"created_at"`
}

// SquadSize returns the number of players currently on the roster.
func (t *Team) SquadSize() int {
	return len(t.Roster)
}

// RemoveFromRoster drops the slot for playerID and returns it. The second
// return is false when the player is not on the roster.
func (t *Team) RemoveFromRoster(playerID uuid.UUID) (RosterSlot, bool) {
	for i, slot := range t.Roster {
		if slot.PlayerID == playerID {
			t.Roster = append(t.Roster[:i], t.Roster[i+1:]...)
			return slot, true
		}
	}
	return RosterSlot{}, false
}
