package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/crickstack/auctioneer/internal/models"
)

func TestAppendActionEvent_AllocatesGaplessSeq(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	auctionID := uuid.New()
	otherID := uuid.New()

	for i := 1; i <= 3; i++ {
		stored, err := s.AppendActionEvent(ctx, &models.ActionEvent{
			AuctionID: auctionID,
			Type:      models.ActionPlayerSold,
		})
		assert.Nil(t, err)
		check.Equal(t, int64(i), stored.Seq)
	}

	// Sequences are per auction, not global.
	stored, err := s.AppendActionEvent(ctx, &models.ActionEvent{
		AuctionID: otherID,
		Type:      models.ActionPlayerUnsold,
	})
	assert.Nil(t, err)
	check.Equal(t, int64(1), stored.Seq)
}

func TestGetUndoableTail_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	auctionID := uuid.New()

	types := []models.ActionType{
		models.ActionPlayerSold,
		models.ActionPlayerUnsold,
		models.ActionPlayerSkipped,
	}
	for _, typ := range types {
		_, err := s.AppendActionEvent(ctx, &models.ActionEvent{AuctionID: auctionID, Type: typ})
		assert.Nil(t, err)
	}

	tail, err := s.GetUndoableTail(ctx, auctionID, 2)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(tail))
	check.Equal(t, models.ActionPlayerSkipped, tail[0].Type)
	check.Equal(t, models.ActionPlayerUnsold, tail[1].Type)
	check.Equal(t, int64(3), tail[0].Seq)
}

func TestMarkEventUndone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	auctionID := uuid.New()

	stored, err := s.AppendActionEvent(ctx, &models.ActionEvent{
		AuctionID: auctionID,
		Type:      models.ActionPlayerSold,
	})
	assert.Nil(t, err)

	assert.Nil(t, s.MarkEventUndone(ctx, stored.ID))

	tail, err := s.GetUndoableTail(ctx, auctionID, 1)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(tail))
	check.True(t, tail[0].Undone)

	check.True(t, s.MarkEventUndone(ctx, uuid.New()) == ErrEventNotFound)
}

func TestVoidBidAudit_FlagsOnlyMatchingLot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	auctionID := uuid.New()
	lotA := uuid.New()
	lotB := uuid.New()

	for _, playerID := range []uuid.UUID{lotA, lotA, lotB} {
		err := s.AppendBidAudit(ctx, &models.BidAuditEntry{
			AuctionID: auctionID,
			PlayerID:  playerID,
			TeamID:    uuid.New(),
			Amount:    10000,
			Reason:    "exceeds_max_bid",
		})
		assert.Nil(t, err)
	}

	assert.Nil(t, s.VoidBidAudit(ctx, auctionID, lotA))

	entries := s.BidAuditEntries(auctionID)
	assert.Equal(t, 3, len(entries))
	for _, e := range entries {
		check.Equal(t, e.PlayerID == lotA, e.Voided)
	}
}

func TestLoadAuction_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	auction := &models.Auction{
		ID:               uuid.New(),
		Name:             "season opener",
		Status:           models.AuctionStatusLive,
		RemainingPlayers: []uuid.UUID{uuid.New()},
	}
	assert.Nil(t, s.SaveAuction(ctx, auction))

	loaded, err := s.LoadAuction(ctx, auction.ID)
	assert.Nil(t, err)

	loaded.RemainingPlayers[0] = uuid.New()
	loaded.Status = models.AuctionStatusPaused

	again, err := s.LoadAuction(ctx, auction.ID)
	assert.Nil(t, err)
	check.Equal(t, models.AuctionStatusLive, again.Status)
	check.Equal(t, auction.RemainingPlayers[0], again.RemainingPlayers[0])
}
