// Package bidmath holds the pure bid and purse arithmetic used by the
// auction engine. Nothing here touches auction state or the clock.
package bidmath

import (
	"github.com/crickstack/auctioneer/internal/models"
)

// NextIncrement walks the ordered tier ladder and returns the step of the
// first tier whose bound exceeds currentBid. When no bound matches, the
// last tier acts as the open-ended top tier.
func NextIncrement(currentBid int64, tiers []models.IncrementTier) int64 {
	if len(tiers) == 0 {
		return 0
	}
	for _, tier := range tiers {
		if tier.UpTo == nil || currentBid < *tier.UpTo {
			return tier.Step
		}
	}
	return tiers[len(tiers)-1].Step
}

// NextBidAmount computes the amount the next accepted bid would be worth:
// the base price when the lot has no bids yet, otherwise the current bid
// plus the tier increment.
func NextBidAmount(currentBid int64, hasBids bool, basePrice int64, tiers []models.IncrementTier) int64 {
	if !hasBids {
		return basePrice
	}
	return currentBid + NextIncrement(currentBid, tiers)
}

// MaxBid returns the highest amount the team may legally bid. A team that
// has not yet met the minimum squad size must keep basePrice in reserve
// for each remaining mandatory slot, counting the lot on the floor as one
// of them. Teams that cannot cover even the base price get 0.
func MaxBid(team *models.Team, cfg models.AuctionConfig) int64 {
	squad := team.SquadSize()
	if squad >= cfg.MinSquadSize {
		return team.PurseRemaining
	}
	reservedSlots := int64(cfg.MinSquadSize - squad - 1)
	max := team.PurseRemaining - reservedSlots*cfg.BasePrice
	if max < cfg.BasePrice {
		return 0
	}
	return max
}

// CanBid reports whether the team is in a position to place any bid at
// all: active, under the squad cap, and able to afford the next amount.
func CanBid(team *models.Team, cfg models.AuctionConfig, nextAmount int64) bool {
	if !team.Active {
		return false
	}
	if team.SquadSize() >= cfg.MaxSquadSize {
		return false
	}
	return nextAmount <= MaxBid(team, cfg) && nextAmount <= team.PurseRemaining
}
