package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/crickstack/auctioneer/internal/models"
)

// sellLot drives one full lot to SOLD with a single bid from teamID.
func (r *rig) sellLot(t *testing.T, teamID uuid.UUID) uuid.UUID {
	t.Helper()
	playerID := r.openLot(t)
	r.bid(t, teamID)
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.Equal(t, models.PhaseSold, r.phase(t))
	return playerID
}

func TestUndo_SoldRestoresPreSaleState(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 2})
	r.start(t)
	ctx := context.Background()
	playerID := r.sellLot(t, r.teamA)

	res, err := r.engine.Undo(ctx, r.auctionID, "admin")
	assert.Nil(t, err)
	check.Equal(t, string(models.ActionPlayerSold), res.ReversedType)

	team, err := r.store.LoadTeam(ctx, r.teamA)
	assert.Nil(t, err)
	check.Equal(t, int64(100_000), team.PurseRemaining)
	check.Equal(t, 0, len(team.Roster))

	player, err := r.store.LoadPlayer(ctx, playerID)
	assert.Nil(t, err)
	check.Equal(t, models.PlayerStatusPool, player.Status)
	check.Nil(t, player.SoldPrice)
	check.Nil(t, player.SoldTo)

	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	found := false
	for _, id := range auction.RemainingPlayers {
		if id == playerID {
			found = true
		}
	}
	check.True(t, found)

	// The journal entry is flagged, never deleted.
	tail, err := r.store.GetUndoableTail(ctx, r.auctionID, 1)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(tail))
	check.True(t, tail[0].Undone)
}

func TestUndo_UnsoldReturnsPlayerToPool(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	ctx := context.Background()
	playerID := r.openLot(t)

	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.Equal(t, models.PhaseUnsold, r.phase(t))

	_, err := r.engine.Undo(ctx, r.auctionID, "admin")
	assert.Nil(t, err)

	player, err := r.store.LoadPlayer(ctx, playerID)
	assert.Nil(t, err)
	check.Equal(t, models.PlayerStatusPool, player.Status)

	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, 1, len(auction.RemainingPlayers))
}

func TestUndo_DisqualifiedSoldBranchReDeductsPurse(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 2})
	r.start(t)
	ctx := context.Background()
	playerID := r.sellLot(t, r.teamA)

	assert.Nil(t, r.engine.Disqualify(ctx, r.auctionID, playerID, "age fraud", "admin"))

	res, err := r.engine.Undo(ctx, r.auctionID, "admin")
	assert.Nil(t, err)
	check.Equal(t, string(models.ActionPlayerDisqualified), res.ReversedType)

	// The sale is back in force: purse re-deducted, roster re-added.
	team, err := r.store.LoadTeam(ctx, r.teamA)
	assert.Nil(t, err)
	check.Equal(t, int64(90_000), team.PurseRemaining)
	assert.Equal(t, 1, len(team.Roster))
	check.Equal(t, playerID, team.Roster[0].PlayerID)

	player, err := r.store.LoadPlayer(ctx, playerID)
	assert.Nil(t, err)
	check.Equal(t, models.PlayerStatusSold, player.Status)
	assert.NotNil(t, player.SoldTo)
	check.Equal(t, r.teamA, *player.SoldTo)
}

func TestUndo_FourthConsecutiveAttemptRejected(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 4, minSquadSize: 1})
	r.start(t)
	ctx := context.Background()

	teams := []uuid.UUID{r.teamA, r.teamB}
	for i := 0; i < 4; i++ {
		r.sellLot(t, teams[i%2])
	}

	for i := 0; i < 3; i++ {
		_, err := r.engine.Undo(ctx, r.auctionID, "admin")
		assert.Nil(t, err)
	}

	_, err := r.engine.Undo(ctx, r.auctionID, "admin")
	check.True(t, err == ErrUndoLimit)
}

func TestUndo_BoundResetsAfterNewAction(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 5})
	r.start(t)
	ctx := context.Background()

	teams := []uuid.UUID{r.teamA, r.teamB}
	for i := 0; i < 4; i++ {
		r.sellLot(t, teams[i%2])
	}
	for i := 0; i < 3; i++ {
		_, err := r.engine.Undo(ctx, r.auctionID, "admin")
		assert.Nil(t, err)
	}

	// A fresh sale breaks the consecutive-undo run.
	r.sellLot(t, r.teamA)
	_, err := r.engine.Undo(ctx, r.auctionID, "admin")
	assert.Nil(t, err)
}

func TestUndo_NothingToUndo(t *testing.T) {
	r := newRig(t, rigOpts{})
	r.start(t)

	_, err := r.engine.Undo(context.Background(), r.auctionID, "admin")
	check.True(t, err == ErrNothingToUndo)
}

func TestUndo_NonReversibleActionRejected(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	ctx := context.Background()

	r.openLot(t)
	assert.Nil(t, r.engine.Skip(ctx, r.auctionID, "admin"))

	_, err := r.engine.Undo(ctx, r.auctionID, "admin")
	check.True(t, err == ErrNotReversible)
}
