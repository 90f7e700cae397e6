// Package auction holds the pure bidding rules: the increment ladder, bid
// validation, the going-once countdown and the rejection taxonomy.
package auction

import (
	"player-auction-bot/internal/model"
)

const (
	// IncrementThreshold is the price at which the step grows.
	IncrementThreshold int64 = 700
	// LowIncrement applies below IncrementThreshold.
	LowIncrement int64 = 50
	// HighIncrement applies from IncrementThreshold upwards.
	HighIncrement int64 = 100
)

// Increment returns the step that follows a standing bid of current.
func Increment(current int64) int64 {
	if current < IncrementThreshold {
		return LowIncrement
	}
	return HighIncrement
}

// NextBid returns the only amount that may be accepted next for a player.
// The opening bid is always the base price.
func NextBid(currentBid, basePrice int64) int64 {
	if currentBid == 0 {
		return basePrice
	}
	return currentBid + Increment(currentBid)
}

// BidRequest is everything needed to decide on a proposed bid.
// All values must come from rows locked by the caller.
type BidRequest struct {
	Session *model.AuctionSession
	Player  *model.Player
	Team    *model.TeamStanding
	Amount  int64
}

// ValidateBid decides whether a proposed bid is legal. It returns nil when
// the bid may be accepted, otherwise an *Error describing the first failed
// check.
func ValidateBid(req BidRequest) error {
	if !req.Session.IsLive() {
		return ErrNoActiveSession
	}
	if req.Player == nil || !req.Session.HasCurrentPlayer(req.Player.ID) {
		return ErrWrongPlayer
	}
	if req.Team.SlotsRemaining() <= 0 {
		return Reject(KindRosterFull, "%s has reached maximum player limit", req.Team.Name)
	}
	if req.Team.PurseRemaining < req.Amount {
		return Reject(KindInsufficientPurse, "%s has insufficient purse (₹%d remaining)",
			req.Team.Name, req.Team.PurseRemaining)
	}

	expected := NextBid(req.Player.CurrentBid, req.Player.BasePrice)
	if req.Amount != expected {
		if req.Player.CurrentBid == 0 {
			return Reject(KindInvalidIncrement, "first bid must be base price: ₹%d", expected)
		}
		return Reject(KindInvalidIncrement, "next bid must be: ₹%d", expected)
	}
	return nil
}

// ValidateSale re-checks that the winning team can still take the player at
// the winning amount.
func ValidateSale(team *model.TeamStanding, amount int64) error {
	if team.SlotsRemaining() <= 0 {
		return Reject(KindRosterFull, "%s has reached maximum player limit", team.Name)
	}
	if team.PurseRemaining < amount {
		return Reject(KindInsufficientPurse,
			"%s no longer has enough purse (₹%d remaining, ₹%d needed)",
			team.Name, team.PurseRemaining, amount)
	}
	return nil
}
