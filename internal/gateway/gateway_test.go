package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/crickstack/auctioneer/internal/engine"
	"github.com/crickstack/auctioneer/internal/events"
)

func TestShouldReceive_AudienceFiltering(t *testing.T) {
	auctionID := uuid.New()
	teamA := uuid.New()
	teamB := uuid.New()

	public := &Connection{Role: RolePublic}
	admin := &Connection{Role: RoleAdmin}
	connA := &Connection{Role: RoleTeam, TeamID: teamA}
	connB := &Connection{Role: RoleTeam, TeamID: teamB}

	publicEv := &events.Event{AuctionID: auctionID, Audience: events.AudiencePublic}
	check.True(t, public.shouldReceive(publicEv))
	check.True(t, admin.shouldReceive(publicEv))
	check.True(t, connA.shouldReceive(publicEv))

	adminEv := &events.Event{AuctionID: auctionID, Audience: events.AudienceAdmin}
	check.False(t, public.shouldReceive(adminEv))
	check.False(t, connA.shouldReceive(adminEv))
	check.True(t, admin.shouldReceive(adminEv))

	teamEv := &events.Event{AuctionID: auctionID, Audience: events.AudienceTeam, TeamID: &teamA}
	check.True(t, connA.shouldReceive(teamEv))
	check.False(t, connB.shouldReceive(teamEv))
	check.False(t, public.shouldReceive(teamEv))
	check.True(t, admin.shouldReceive(teamEv))
}

type stubEngine struct {
	AuctionEngine
	bidResult *engine.BidResult
	bidErr    error
	lastTeam  uuid.UUID
}

func (s *stubEngine) PlaceBid(ctx context.Context, auctionID, teamID uuid.UUID) (*engine.BidResult, error) {
	s.lastTeam = teamID
	return s.bidResult, s.bidErr
}

func TestHandleBid(t *testing.T) {
	eng := &stubEngine{bidResult: &engine.BidResult{Accepted: true, Amount: 10000}}
	svc := NewService(eng, NewWebSocketHandler(NewConnectionManager(DefaultConnectionConfig())))

	teamID := uuid.New()
	body := `{"team_id":"` + teamID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auctions/bid?auction_id="+uuid.NewString(), strings.NewReader(body))
	rec := httptest.NewRecorder()

	svc.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, teamID, eng.lastTeam)

	var result engine.BidResult
	assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &result))
	check.True(t, result.Accepted)
	check.Equal(t, int64(10000), result.Amount)
}

func TestHandleBid_GateHeldMapsToConflict(t *testing.T) {
	eng := &stubEngine{bidErr: engine.ErrBidGateHeld}
	svc := NewService(eng, NewWebSocketHandler(NewConnectionManager(DefaultConnectionConfig())))

	body := `{"team_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auctions/bid?auction_id="+uuid.NewString(), strings.NewReader(body))
	rec := httptest.NewRecorder()

	svc.Handler().ServeHTTP(rec, req)

	check.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleBid_MissingTeam(t *testing.T) {
	svc := NewService(&stubEngine{}, NewWebSocketHandler(NewConnectionManager(DefaultConnectionConfig())))

	req := httptest.NewRequest(http.MethodPost, "/auctions/bid?auction_id="+uuid.NewString(), strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	svc.Handler().ServeHTTP(rec, req)

	check.Equal(t, http.StatusBadRequest, rec.Code)
}
