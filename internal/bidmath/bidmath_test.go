package bidmath

import (
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/crickstack/auctioneer/internal/models"
)

func ptr(v int64) *int64 { return &v }

func tiers() []models.IncrementTier {
	return []models.IncrementTier{
		{UpTo: ptr(100_000), Step: 5_000},
		{UpTo: ptr(500_000), Step: 10_000},
		{UpTo: nil, Step: 25_000},
	}
}

func TestNextIncrement_TierLadder(t *testing.T) {
	tt := tiers()

	check.Equal(t, int64(5_000), NextIncrement(0, tt))
	check.Equal(t, int64(5_000), NextIncrement(99_999, tt))
	// Bound is exclusive: a bid sitting exactly on the bound moves to the
	// next tier.
	check.Equal(t, int64(10_000), NextIncrement(100_000, tt))
	check.Equal(t, int64(10_000), NextIncrement(499_999, tt))
	check.Equal(t, int64(25_000), NextIncrement(500_000, tt))
	check.Equal(t, int64(25_000), NextIncrement(10_000_000, tt))
}

func TestNextIncrement_OpenTopTierOnly(t *testing.T) {
	tt := []models.IncrementTier{{UpTo: nil, Step: 5_000}}
	check.Equal(t, int64(5_000), NextIncrement(0, tt))
	check.Equal(t, int64(5_000), NextIncrement(1_000_000, tt))
}

func TestNextIncrement_NoTiers(t *testing.T) {
	check.Equal(t, int64(0), NextIncrement(50_000, nil))
}

func TestNextBidAmount(t *testing.T) {
	tt := tiers()
	// First bid is always the base price.
	check.Equal(t, int64(20_000), NextBidAmount(0, false, 20_000, tt))
	// Later bids step by the tier increment.
	check.Equal(t, int64(25_000), NextBidAmount(20_000, true, 20_000, tt))
	check.Equal(t, int64(510_000), NextBidAmount(500_000, true, 20_000, tt))
}

func cfg() models.AuctionConfig {
	return models.AuctionConfig{
		BasePrice:    10_000,
		MinSquadSize: 4,
		MaxSquadSize: 8,
	}
}

func teamWithSquad(purse int64, squad int) *models.Team {
	tm := &models.Team{PurseRemaining: purse, Active: true}
	for i := 0; i < squad; i++ {
		tm.Roster = append(tm.Roster, models.RosterSlot{Price: 1})
	}
	return tm
}

func TestMaxBid_MinSquadMet(t *testing.T) {
	tm := teamWithSquad(70_000, 4)
	check.Equal(t, int64(70_000), MaxBid(tm, cfg()))
}

func TestMaxBid_ReservesMandatorySlots(t *testing.T) {
	// Squad 1 of min 4: two further mandatory slots beyond the lot on the
	// floor, so 2*basePrice stays reserved.
	tm := teamWithSquad(70_000, 1)
	check.Equal(t, int64(50_000), MaxBid(tm, cfg()))
}

func TestMaxBid_LastMandatorySlotBoundary(t *testing.T) {
	// Squad 3 of min 4: the lot being bid on is the last mandatory slot,
	// nothing else to reserve. Full purse is biddable.
	tm := teamWithSquad(70_000, 3)
	check.Equal(t, int64(70_000), MaxBid(tm, cfg()))
}

func TestMaxBid_FlooredToZeroWhenBroke(t *testing.T) {
	// Purse cannot cover reserve plus base price.
	tm := teamWithSquad(25_000, 1)
	check.Equal(t, int64(0), MaxBid(tm, cfg()))
}

func TestMaxBid_Fencing(t *testing.T) {
	// For all squads below the minimum, max bid never eats into the
	// reserve for remaining mandatory slots.
	c := cfg()
	for squad := 0; squad < c.MinSquadSize; squad++ {
		for purse := int64(0); purse <= 100_000; purse += 7_500 {
			tm := teamWithSquad(purse, squad)
			reserve := int64(c.MinSquadSize-squad-1) * c.BasePrice
			if purse-reserve >= 0 {
				check.True(t, MaxBid(tm, c) <= purse-reserve)
			} else {
				check.Equal(t, int64(0), MaxBid(tm, c))
			}
		}
	}
}

func TestCanBid(t *testing.T) {
	c := cfg()

	tm := teamWithSquad(70_000, 4)
	check.True(t, CanBid(tm, c, 15_000))

	inactive := teamWithSquad(70_000, 4)
	inactive.Active = false
	check.False(t, CanBid(inactive, c, 15_000))

	full := teamWithSquad(70_000, 8)
	check.False(t, CanBid(full, c, 15_000))

	broke := teamWithSquad(10_000, 4)
	check.False(t, CanBid(broke, c, 15_000))
}
