package outbox

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"

	"github.com/crickstack/auctioneer/internal/events"
)

func TestSubjectFor(t *testing.T) {
	auctionID := uuid.New()
	teamID := uuid.New()

	public := &events.Event{AuctionID: auctionID, Audience: events.AudiencePublic}
	check.Equal(t, fmt.Sprintf("auction.events.public.%s", auctionID), SubjectFor("auction.events", public))

	team := &events.Event{AuctionID: auctionID, Audience: events.AudienceTeam, TeamID: &teamID}
	check.Equal(t, fmt.Sprintf("auction.events.team.%s.%s", auctionID, teamID), SubjectFor("auction.events", team))

	admin := &events.Event{AuctionID: auctionID, Audience: events.AudienceAdmin}
	check.Equal(t, fmt.Sprintf("auction.events.admin.%s", auctionID), SubjectFor("auction.events", admin))
}

func TestSubjectFor_TeamEventWithoutTeamID(t *testing.T) {
	auctionID := uuid.New()
	ev := &events.Event{AuctionID: auctionID, Audience: events.AudienceTeam}
	check.Equal(t, fmt.Sprintf("auction.events.team.%s.unknown", auctionID), SubjectFor("auction.events", ev))
}
