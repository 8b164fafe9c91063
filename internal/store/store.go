// Package store defines the entity store the engine persists through.
// Retries and consistency of the underlying storage are the store's
// concern; the engine treats every call as synchronous.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/crickstack/auctioneer/internal/models"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrEventNotFound   = errors.New("action event not found")
)

// PlayerUpdate carries the fields UpdatePlayerStatus may change. Nil
// pointers leave the stored value untouched; ClearSale wipes the sale
// fields regardless.
type PlayerUpdate struct {
	Status    models.PlayerStatus
	SoldPrice *int64
	SoldTo    *uuid.UUID
	ClearSale bool
	AddRound  *models.RoundOutcome
}

// EntityStore loads and saves the records the engine owns while an
// auction is live. The engine is the sole writer during that window.
type EntityStore interface {
	LoadAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	SaveAuction(ctx context.Context, auction *models.Auction) error

	LoadTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	LoadTeams(ctx context.Context, auctionID uuid.UUID) ([]*models.Team, error)
	SaveTeam(ctx context.Context, team *models.Team) error

	LoadPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	LoadPlayers(ctx context.Context, auctionID uuid.UUID) ([]*models.Player, error)
	UpdatePlayerStatus(ctx context.Context, id uuid.UUID, update PlayerUpdate) error
	CountPlayersByStatus(ctx context.Context, auctionID uuid.UUID, status models.PlayerStatus) (int, error)

	// AppendActionEvent allocates the event's per-auction sequence number
	// and returns the stored event.
	AppendActionEvent(ctx context.Context, event *models.ActionEvent) (*models.ActionEvent, error)
	// GetUndoableTail returns the newest n events, newest first.
	GetUndoableTail(ctx context.Context, auctionID uuid.UUID, n int) ([]*models.ActionEvent, error)
	MarkEventUndone(ctx context.Context, eventID uuid.UUID) error

	AppendBidAudit(ctx context.Context, entry *models.BidAuditEntry) error
	// VoidBidAudit flags every audit entry for the given lot as voided.
	VoidBidAudit(ctx context.Context, auctionID, playerID uuid.UUID) error
}
