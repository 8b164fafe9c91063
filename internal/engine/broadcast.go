package engine

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crickstack/auctioneer/internal/bidmath"
	"github.com/crickstack/auctioneer/internal/events"
	"github.com/crickstack/auctioneer/internal/models"
)

// Broadcaster is the fan-out collaborator. The engine only decides what
// to say and to whom; delivery is the broadcaster's problem.
type Broadcaster interface {
	Publish(ctx context.Context, event *events.Event) error
}

// NopBroadcaster drops every event. Useful in tests that only exercise
// state transitions.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(ctx context.Context, event *events.Event) error { return nil }

func (e *Engine) publish(ctx context.Context, auctionID uuid.UUID, typ events.EventType, audience events.Audience, teamID *uuid.UUID, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal broadcast payload")
		return
	}
	ev := &events.Event{
		ID:        uuid.New(),
		AuctionID: auctionID,
		Type:      typ,
		Audience:  audience,
		TeamID:    teamID,
		Timestamp: e.clock.Now(),
		Data:      data,
	}
	if err := e.broadcaster.Publish(ctx, ev); err != nil {
		// Broadcasts are fire-and-forget relative to authoritative state.
		log.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Str("event_type", string(typ)).
			Msg("failed to publish broadcast event")
	}
}

func (e *Engine) publishPublic(ctx context.Context, auctionID uuid.UUID, typ events.EventType, payload interface{}) {
	e.publish(ctx, auctionID, typ, events.AudiencePublic, nil, payload)
}

func (e *Engine) publishAdmin(ctx context.Context, auctionID uuid.UUID, typ events.EventType, payload interface{}) {
	e.publish(ctx, auctionID, typ, events.AudienceAdmin, nil, payload)
}

func (e *Engine) publishTeam(ctx context.Context, auctionID, teamID uuid.UUID, typ events.EventType, payload interface{}) {
	e.publish(ctx, auctionID, typ, events.AudienceTeam, &teamID, payload)
}

// publishTeamUpdate pushes the team-private financial view after a sale,
// undo or disqualification touched the team.
func (e *Engine) publishTeamUpdate(ctx context.Context, s *session, team *models.Team) {
	cfg := s.auction.Config
	next := bidmath.NextBidAmount(0, false, cfg.BasePrice, cfg.IncrementTiers)
	if s.auction.Bidding != nil && !s.auction.Bidding.Phase.Terminal() {
		b := s.auction.Bidding
		next = bidmath.NextBidAmount(b.CurrentBid, b.HasBids(), cfg.BasePrice, cfg.IncrementTiers)
	}
	e.publishTeam(ctx, s.auction.ID, team.ID, events.EventTeamUpdate, events.TeamUpdatePayload{
		TeamID:         team.ID.String(),
		PurseRemaining: team.PurseRemaining,
		MaxBid:         bidmath.MaxBid(team, cfg),
		SquadSize:      team.SquadSize(),
		CanBid:         bidmath.CanBid(team, cfg, next),
	})
}

// publishAdminState rebuilds the full snapshot and sends it to the admin
// segment so the admin can decide the next action.
func (e *Engine) publishAdminState(ctx context.Context, s *session) {
	e.publishAdmin(ctx, s.auction.ID, events.EventAuctionState, buildSnapshot(s))
}

// buildSnapshot recomputes every derived field from the authoritative
// records. Nothing is incrementally patched, so a reconnecting client is
// consistent after one snapshot.
func buildSnapshot(s *session) events.StatePayload {
	snap := events.StatePayload{
		AuctionID: s.auction.ID.String(),
		Status:    string(s.auction.Status),
		Round:     s.auction.CurrentRound,
	}
	for _, p := range s.players {
		switch p.Status {
		case models.PlayerStatusPool:
			snap.PoolCount++
		case models.PlayerStatusSold:
			snap.SoldCount++
		case models.PlayerStatusUnsold:
			snap.UnsoldCount++
		}
	}
	for _, t := range s.teams {
		snap.Teams = append(snap.Teams, events.TeamSummary{
			TeamID:         t.ID.String(),
			Name:           t.Name,
			PurseRemaining: t.PurseRemaining,
			SquadSize:      t.SquadSize(),
		})
	}
	sort.Slice(snap.Teams, func(i, j int) bool { return snap.Teams[i].Name < snap.Teams[j].Name })

	if b := s.auction.Bidding; b != nil && !b.Phase.Terminal() {
		playerID := b.PlayerID.String()
		snap.CurrentPlayer = &playerID
		snap.Phase = string(b.Phase)
		snap.CurrentBid = b.CurrentBid
		if b.CurrentTeamID != nil {
			teamID := b.CurrentTeamID.String()
			snap.CurrentTeamID = &teamID
		}
		expires := b.TimerExpiresAt
		snap.TimerExpiresAt = &expires
	}
	return snap
}
