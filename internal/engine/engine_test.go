package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/crickstack/auctioneer/internal/events"
	"github.com/crickstack/auctioneer/internal/models"
	"github.com/crickstack/auctioneer/internal/store"
)

// recordingBroadcaster captures published events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recordingBroadcaster) Publish(ctx context.Context, ev *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingBroadcaster) last(typ events.EventType) *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i]
		}
	}
	return nil
}

type rig struct {
	engine    *Engine
	store     *store.MemoryStore
	clock     *clockwork.FakeClock
	bus       *recordingBroadcaster
	auctionID uuid.UUID
	teamA     uuid.UUID
	teamB     uuid.UUID
	players   []uuid.UUID
}

type rigOpts struct {
	maxRounds    int
	minSquadSize int
	purse        int64
	playerCount  int
}

func newRig(t *testing.T, opts rigOpts) *rig {
	t.Helper()
	if opts.maxRounds == 0 {
		opts.maxRounds = 3
	}
	if opts.minSquadSize == 0 {
		opts.minSquadSize = 1
	}
	if opts.purse == 0 {
		opts.purse = 100_000
	}
	if opts.playerCount == 0 {
		opts.playerCount = 3
	}

	st := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	bus := &recordingBroadcaster{}
	eng := NewEngine(st, bus, Options{
		Clock:    clock,
		RandIntN: func(n int) int { return 0 },
	})

	ctx := context.Background()
	auctionID := uuid.New()
	auction := &models.Auction{
		ID:     auctionID,
		Name:   "Test Premier Auction",
		Status: models.AuctionStatusConfigured,
		Config: models.AuctionConfig{
			MaxRounds:       opts.maxRounds,
			RevealDelay:     2 * time.Second,
			BidTimer:        30 * time.Second,
			BidResetTimer:   20 * time.Second,
			GoingOnceTimer:  10 * time.Second,
			GoingTwiceTimer: 10 * time.Second,
			BasePrice:       10_000,
			PurseValue:      opts.purse,
			MinSquadSize:    opts.minSquadSize,
			MaxSquadSize:    5,
			IncrementTiers:  []models.IncrementTier{{UpTo: nil, Step: 5_000}},
		},
	}
	assert.Nil(t, st.SaveAuction(ctx, auction))

	r := &rig{
		engine:    eng,
		store:     st,
		clock:     clock,
		bus:       bus,
		auctionID: auctionID,
	}
	r.teamA = r.addTeam(t, "Alpha Kings", opts.purse)
	r.teamB = r.addTeam(t, "Bravo Blasters", opts.purse)

	names := []string{"Player 01", "Player 02", "Player 03", "Player 04", "Player 05", "Player 06"}
	for i := 0; i < opts.playerCount; i++ {
		id := uuid.New()
		assert.Nil(t, st.SavePlayer(ctx, &models.Player{
			ID:        id,
			AuctionID: auctionID,
			Name:      names[i],
			Role:      "Batter",
			Status:    models.PlayerStatusPool,
		}))
		r.players = append(r.players, id)
	}
	return r
}

func (r *rig) addTeam(t *testing.T, name string, purse int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	assert.Nil(t, r.store.SaveTeam(context.Background(), &models.Team{
		ID:             id,
		AuctionID:      r.auctionID,
		Name:           name,
		PurseTotal:     purse,
		PurseRemaining: purse,
		Active:         true,
	}))
	return id
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	assert.Nil(t, r.engine.Start(context.Background(), r.auctionID))
}

// openLot picks the next lot and fires the reveal timer so bidding opens.
func (r *rig) openLot(t *testing.T) uuid.UUID {
	t.Helper()
	assert.Nil(t, r.engine.PickNext(context.Background(), r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	s, ok := r.engine.currentSession(r.auctionID)
	assert.True(t, ok)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, models.PhaseOpen, s.auction.Bidding.Phase)
	return s.auction.Bidding.PlayerID
}

func (r *rig) bid(t *testing.T, teamID uuid.UUID) *BidResult {
	t.Helper()
	// Step past the gate hold from any previous bid.
	r.clock.Advance(time.Second)
	res, err := r.engine.PlaceBid(context.Background(), r.auctionID, teamID)
	assert.Nil(t, err)
	return res
}

func (r *rig) phase(t *testing.T) models.BidPhase {
	t.Helper()
	s, ok := r.engine.currentSession(r.auctionID)
	assert.True(t, ok)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auction.Bidding == nil {
		return models.PhaseWaiting
	}
	return s.auction.Bidding.Phase
}

func TestStart_AssemblesPoolAndGoesLive(t *testing.T) {
	r := newRig(t, rigOpts{})
	r.start(t)

	ctx := context.Background()
	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, models.AuctionStatusLive, auction.Status)
	check.Equal(t, 1, auction.CurrentRound)
	check.Equal(t, 3, len(auction.RemainingPlayers))

	ev := r.bus.last(events.EventAuctionStatusChange)
	assert.NotNil(t, ev)
	check.Equal(t, events.AudiencePublic, ev.Audience)
}

func TestScenario_SoldToHighestBidder(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	playerID := r.openLot(t)
	ctx := context.Background()

	// First accepted bid equals the base price.
	resA := r.bid(t, r.teamA)
	check.Equal(t, int64(10_000), resA.Amount)
	check.Equal(t, int64(15_000), resA.NextBidAmount)

	resB := r.bid(t, r.teamB)
	check.Equal(t, int64(15_000), resB.Amount)

	// No further bids; burn down open, going once, going twice.
	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseGoingOnce, r.phase(t))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseGoingTwice, r.phase(t))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseSold, r.phase(t))

	teamB, err := r.store.LoadTeam(ctx, r.teamB)
	assert.Nil(t, err)
	check.Equal(t, int64(85_000), teamB.PurseRemaining)
	assert.Equal(t, 1, len(teamB.Roster))
	check.Equal(t, int64(15_000), teamB.Roster[0].Price)

	teamA, err := r.store.LoadTeam(ctx, r.teamA)
	assert.Nil(t, err)
	check.Equal(t, int64(100_000), teamA.PurseRemaining)

	player, err := r.store.LoadPlayer(ctx, playerID)
	assert.Nil(t, err)
	check.Equal(t, models.PlayerStatusSold, player.Status)
	assert.NotNil(t, player.SoldPrice)
	check.Equal(t, int64(15_000), *player.SoldPrice)

	tail, err := r.store.GetUndoableTail(ctx, r.auctionID, 1)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(tail))
	check.Equal(t, models.ActionPlayerSold, tail[0].Type)
	check.Equal(t, int64(1), tail[0].Seq)

	sold := r.bus.last(events.EventPlayerSold)
	assert.NotNil(t, sold)
	check.Equal(t, events.AudiencePublic, sold.Audience)

	update := r.bus.last(events.EventTeamUpdate)
	assert.NotNil(t, update)
	check.Equal(t, events.AudienceTeam, update.Audience)
	assert.NotNil(t, update.TeamID)
	check.Equal(t, r.teamB, *update.TeamID)
}

func TestScenario_NoBidsGoesUnsoldAndNewRound(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	playerID := r.openLot(t)
	ctx := context.Background()

	assert.True(t, r.engine.fireTimer(r.auctionID)) // open -> going once
	assert.True(t, r.engine.fireTimer(r.auctionID)) // going once -> going twice
	assert.True(t, r.engine.fireTimer(r.auctionID)) // going twice -> unsold
	check.Equal(t, models.PhaseUnsold, r.phase(t))

	player, err := r.store.LoadPlayer(ctx, playerID)
	assert.Nil(t, err)
	check.Equal(t, models.PlayerStatusUnsold, player.Status)

	for _, teamID := range []uuid.UUID{r.teamA, r.teamB} {
		team, err := r.store.LoadTeam(ctx, teamID)
		assert.Nil(t, err)
		check.Equal(t, int64(100_000), team.PurseRemaining)
	}

	// The empty pool promotes the unsold player into round 2.
	assert.Nil(t, r.engine.PickNext(ctx, r.auctionID))
	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, 2, auction.CurrentRound)
	assert.NotNil(t, auction.Bidding)
	check.Equal(t, models.PhaseRevealed, auction.Bidding.Phase)
	check.Equal(t, playerID, auction.Bidding.PlayerID)
}

func TestPickNext_PoolExhaustedCompletesAuction(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1, maxRounds: 1})
	r.start(t)
	r.openLot(t)
	ctx := context.Background()

	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseUnsold, r.phase(t))

	// Single round: nothing to promote, the auction completes.
	assert.Nil(t, r.engine.PickNext(ctx, r.auctionID))
	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, models.AuctionStatusCompleted, auction.Status)

	_, ok := r.engine.currentSession(r.auctionID)
	check.False(t, ok)
}

func TestScenario_MaxBidRejectionIsAuditedAndInert(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	playerID := r.openLot(t)
	ctx := context.Background()

	// Shrink B's purse so its computed next bid exceeds its max bid.
	teamB, err := r.store.LoadTeam(ctx, r.teamB)
	assert.Nil(t, err)
	teamB.PurseRemaining = 12_000
	assert.Nil(t, r.store.SaveTeam(ctx, teamB))
	s, _ := r.engine.currentSession(r.auctionID)
	s.mu.Lock()
	s.teams[r.teamB].PurseRemaining = 12_000
	s.mu.Unlock()

	r.bid(t, r.teamA) // 10,000

	r.clock.Advance(time.Second)
	_, err = r.engine.PlaceBid(ctx, r.auctionID, r.teamB) // would be 15,000
	check.True(t, err == ErrExceedsMaxBid)

	// Rejection mutated nothing.
	check.Equal(t, models.PhaseOpen, r.phase(t))
	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, int64(10_000), auction.Bidding.CurrentBid)

	entries := r.store.BidAuditEntries(r.auctionID)
	assert.Equal(t, 1, len(entries))
	check.Equal(t, r.teamB, entries[0].TeamID)
	check.Equal(t, playerID, entries[0].PlayerID)
	check.Equal(t, int64(15_000), entries[0].Amount)

	rejected := r.bus.last(events.EventBidRejected)
	assert.NotNil(t, rejected)
	check.Equal(t, events.AudienceAdmin, rejected.Audience)
}

func TestPlaceBid_ValidationOrder(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	ctx := context.Background()

	// Before any lot is on the floor.
	_, err := r.engine.PlaceBid(ctx, r.auctionID, r.teamA)
	check.True(t, err == ErrBiddingClosed)

	// During the reveal delay bidding is still closed.
	assert.Nil(t, r.engine.PickNext(ctx, r.auctionID))
	r.clock.Advance(time.Second)
	_, err = r.engine.PlaceBid(ctx, r.auctionID, r.teamA)
	check.True(t, err == ErrBiddingClosed)

	assert.True(t, r.engine.fireTimer(r.auctionID))
	r.bid(t, r.teamA)

	// Highest bidder cannot raise itself.
	r.clock.Advance(time.Second)
	_, err = r.engine.PlaceBid(ctx, r.auctionID, r.teamA)
	check.True(t, err == ErrAlreadyHighest)

	// Unknown team.
	r.clock.Advance(time.Second)
	_, err = r.engine.PlaceBid(ctx, r.auctionID, uuid.New())
	check.True(t, err == ErrTeamNotFound)

	// Inactive team.
	s, _ := r.engine.currentSession(r.auctionID)
	s.mu.Lock()
	s.teams[r.teamB].Active = false
	s.mu.Unlock()
	r.clock.Advance(time.Second)
	_, err = r.engine.PlaceBid(ctx, r.auctionID, r.teamB)
	check.True(t, err == ErrTeamInactive)
}

func TestPlaceBid_GateRejectsBurst(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	r.openLot(t)
	ctx := context.Background()

	r.bid(t, r.teamA)

	// Same instant: gate still held from A's resolution.
	_, err := r.engine.PlaceBid(ctx, r.auctionID, r.teamB)
	check.True(t, err == ErrBidGateHeld)

	// After the hold window the same bid goes through.
	r.clock.Advance(250 * time.Millisecond)
	res, err := r.engine.PlaceBid(ctx, r.auctionID, r.teamB)
	assert.Nil(t, err)
	check.Equal(t, int64(15_000), res.Amount)
}

func TestBid_RevivesGoingPhases(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	r.openLot(t)

	r.bid(t, r.teamA)
	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseGoingOnce, r.phase(t))

	// A bid during going-once demotes back to OPEN.
	r.bid(t, r.teamB)
	check.Equal(t, models.PhaseOpen, r.phase(t))

	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseGoingOnce, r.phase(t))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseGoingTwice, r.phase(t))

	// A bid during going-twice also revives.
	r.bid(t, r.teamA)
	check.Equal(t, models.PhaseOpen, r.phase(t))
}

func TestBids_StrictlyIncreasing(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	r.openLot(t)

	teams := []uuid.UUID{r.teamA, r.teamB}
	var last int64
	for i := 0; i < 6; i++ {
		res := r.bid(t, teams[i%2])
		check.True(t, res.Amount > last)
		last = res.Amount
	}
	check.Equal(t, int64(35_000), last)
}

func TestStaleTimerFireIsNoOp(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	r.openLot(t)
	ctx := context.Background()

	s, _ := r.engine.currentSession(r.auctionID)
	s.mu.Lock()
	staleFire := s.timerFire
	s.mu.Unlock()

	// Pause invalidates the timer generation before the callback runs.
	assert.Nil(t, r.engine.Pause(ctx, r.auctionID, "admin", "break"))
	staleFire()

	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, models.AuctionStatusPaused, auction.Status)
	// The voided lot stayed voided; the stale fire created no phase.
	check.Nil(t, auction.Bidding)
}

func TestPause_VoidsMidBidLotAndAudit(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	playerID := r.openLot(t)
	ctx := context.Background()

	// Produce one audit entry for the lot, then pause mid-bidding.
	s, _ := r.engine.currentSession(r.auctionID)
	s.mu.Lock()
	s.teams[r.teamB].PurseRemaining = 5_000
	s.mu.Unlock()
	_, err := r.engine.PlaceBid(ctx, r.auctionID, r.teamB)
	check.True(t, err == ErrExceedsMaxBid)

	assert.Nil(t, r.engine.Pause(ctx, r.auctionID, "admin", "technical issue"))

	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, models.AuctionStatusPaused, auction.Status)
	check.Nil(t, auction.Bidding)

	player, err := r.store.LoadPlayer(ctx, playerID)
	assert.Nil(t, err)
	check.Equal(t, models.PlayerStatusPool, player.Status)
	check.Equal(t, 1, len(auction.RemainingPlayers))

	entries := r.store.BidAuditEntries(r.auctionID)
	assert.Equal(t, 1, len(entries))
	check.True(t, entries[0].Voided)
}

func TestPauseResume_KeepsRevealRemainingTime(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	ctx := context.Background()

	// Reveal delay is 2s; burn 1s before pausing.
	assert.Nil(t, r.engine.PickNext(ctx, r.auctionID))
	r.clock.Advance(time.Second)
	assert.Nil(t, r.engine.Pause(ctx, r.auctionID, "admin", "break"))

	// A revealed-but-not-open lot survives the pause.
	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	assert.NotNil(t, auction.Bidding)
	check.Equal(t, models.PhaseRevealed, auction.Bidding.Phase)

	r.clock.Advance(time.Minute)
	assert.Nil(t, r.engine.Resume(ctx, r.auctionID, "admin"))

	// Expiry already elapsed, so the re-armed timer gets the 1s floor.
	auction, err = r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, models.AuctionStatusLive, auction.Status)
	check.Equal(t, r.clock.Now().Add(time.Second), auction.Bidding.TimerExpiresAt)

	// And it still opens bidding.
	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseOpen, r.phase(t))
}

func TestSkip_ReturnsLotToPool(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	playerID := r.openLot(t)
	ctx := context.Background()

	r.bid(t, r.teamA)
	assert.Nil(t, r.engine.Skip(ctx, r.auctionID, "admin"))

	auction, err := r.store.LoadAuction(ctx, r.auctionID)
	assert.Nil(t, err)
	check.Nil(t, auction.Bidding)
	check.Equal(t, 1, len(auction.RemainingPlayers))

	player, err := r.store.LoadPlayer(ctx, playerID)
	assert.Nil(t, err)
	check.Equal(t, models.PlayerStatusPool, player.Status)

	// The team's purse is untouched: nothing was finalized.
	team, err := r.store.LoadTeam(ctx, r.teamA)
	assert.Nil(t, err)
	check.Equal(t, int64(100_000), team.PurseRemaining)

	tail, err := r.store.GetUndoableTail(ctx, r.auctionID, 1)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(tail))
	check.Equal(t, models.ActionPlayerSkipped, tail[0].Type)
}

func TestPurseConservation(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 3})
	r.start(t)
	ctx := context.Background()

	teams := []uuid.UUID{r.teamA, r.teamB}
	for i := 0; i < 3; i++ {
		r.openLot(t)
		r.bid(t, teams[i%2])
		assert.True(t, r.engine.fireTimer(r.auctionID))
		assert.True(t, r.engine.fireTimer(r.auctionID))
		assert.True(t, r.engine.fireTimer(r.auctionID))
		check.Equal(t, models.PhaseSold, r.phase(t))
	}

	for _, teamID := range teams {
		team, err := r.store.LoadTeam(ctx, teamID)
		assert.Nil(t, err)
		var spent int64
		for _, slot := range team.Roster {
			spent += slot.Price
		}
		check.Equal(t, team.PurseTotal, team.PurseRemaining+spent)
	}
}

func TestDisqualify_SoldPlayerRefundsBuyer(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 2})
	r.start(t)
	playerID := r.openLot(t)
	ctx := context.Background()

	r.bid(t, r.teamA)
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	check.Equal(t, models.PhaseSold, r.phase(t))

	assert.Nil(t, r.engine.Disqualify(ctx, r.auctionID, playerID, "age fraud", "admin"))

	team, err := r.store.LoadTeam(ctx, r.teamA)
	assert.Nil(t, err)
	check.Equal(t, int64(100_000), team.PurseRemaining)
	check.Equal(t, 0, len(team.Roster))

	player, err := r.store.LoadPlayer(ctx, playerID)
	assert.Nil(t, err)
	check.Equal(t, models.PlayerStatusDisqualified, player.Status)
	check.Nil(t, player.SoldTo)
}

func TestDisqualify_RejectsLotOnFloor(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 1})
	r.start(t)
	playerID := r.openLot(t)

	err := r.engine.Disqualify(context.Background(), r.auctionID, playerID, "reason", "admin")
	check.True(t, err == ErrPlayerOnFloor)
}

func TestAnnounce_PublishesToPublic(t *testing.T) {
	r := newRig(t, rigOpts{})
	r.start(t)

	assert.Nil(t, r.engine.Announce(context.Background(), r.auctionID, "tea break in 5 minutes"))
	ev := r.bus.last(events.EventAdminAnnouncement)
	assert.NotNil(t, ev)
	check.Equal(t, events.AudiencePublic, ev.Audience)
}

func TestSnapshot_RecomputesDerivedCounts(t *testing.T) {
	r := newRig(t, rigOpts{playerCount: 3})
	r.start(t)

	// Sell one lot to team A.
	r.openLot(t)
	r.bid(t, r.teamA)
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))
	assert.True(t, r.engine.fireTimer(r.auctionID))

	snap, err := r.engine.Snapshot(context.Background(), r.auctionID)
	assert.Nil(t, err)
	check.Equal(t, 2, snap.PoolCount)
	check.Equal(t, 1, snap.SoldCount)
	check.Equal(t, 0, snap.UnsoldCount)
	assert.Equal(t, 2, len(snap.Teams))

	var buyer events.TeamSummary
	for _, ts := range snap.Teams {
		if ts.TeamID == r.teamA.String() {
			buyer = ts
		}
	}
	check.Equal(t, 1, buyer.SquadSize)
	check.Equal(t, int64(90_000), buyer.PurseRemaining)
}
