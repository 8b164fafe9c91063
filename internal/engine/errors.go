package engine

import "errors"

var (
	ErrAuctionNotLive      = errors.New("auction is not live")
	ErrAuctionNotPaused    = errors.New("auction is not paused")
	ErrNoSession           = errors.New("no active session for auction")
	ErrLotOnFloor          = errors.New("a lot is already on the floor")
	ErrNoLotOnFloor        = errors.New("no lot is on the floor")
	ErrBiddingClosed       = errors.New("bidding is not open for the current lot")
	ErrAlreadyHighest      = errors.New("team already holds the highest bid")
	ErrTeamNotFound        = errors.New("team not found in this auction")
	ErrTeamInactive        = errors.New("team is not active")
	ErrExceedsMaxBid       = errors.New("bid exceeds team's maximum bid")
	ErrInsufficientPurse   = errors.New("bid exceeds purse remaining")
	ErrSquadFull           = errors.New("team squad is already at maximum size")
	ErrBidGateHeld         = errors.New("another bid is being processed, try again")
	ErrPlayerNotInAuction  = errors.New("player does not belong to this auction")
	ErrPlayerOnFloor       = errors.New("player is currently on the floor")
	ErrNothingToUndo       = errors.New("no reversible action to undo")
	ErrUndoLimit           = errors.New("maximum consecutive undos reached")
	ErrNotReversible       = errors.New("latest action cannot be reversed")
	ErrUndoWouldBreakPurse = errors.New("undo would drive purse negative")
)
