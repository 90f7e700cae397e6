// Package model defines the data models for the player auction.
package model

import "time"

// MaxIconicPlayers is the per-team cap on zero-cost iconic assignments.
const MaxIconicPlayers = 2

// PlayerCategory is the playing role of a player.
type PlayerCategory string

// Player categories.
const (
	CategoryBatsman      PlayerCategory = "batsman"
	CategoryBowler       PlayerCategory = "bowler"
	CategoryAllRounder   PlayerCategory = "all_rounder"
	CategoryWicketKeeper PlayerCategory = "wicket_keeper"
)

// PlayerStatus is the registration / auction status of a player.
type PlayerStatus string

// Player statuses.
const (
	PlayerPending  PlayerStatus = "pending"
	PlayerApproved PlayerStatus = "approved"
	PlayerRejected PlayerStatus = "rejected"
	PlayerSold     PlayerStatus = "sold"
	PlayerUnsold   PlayerStatus = "unsold"
)

// Finalized reports whether the player already went under the hammer.
func (s PlayerStatus) Finalized() bool {
	return s == PlayerSold || s == PlayerUnsold
}

// SessionStatus is the lifecycle state of an auction session.
type SessionStatus string

// Session statuses.
const (
	SessionUpcoming  SessionStatus = "upcoming"
	SessionLive      SessionStatus = "live"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// Team is a franchise competing for players.
type Team struct {
	ID                 int64     `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	OwnerID            int64     `db:"owner_id" json:"owner_id"`
	TotalPurse         int64     `db:"total_purse" json:"total_purse"`
	PurseRemaining     int64     `db:"purse_remaining" json:"purse_remaining"`
	MaxPlayers         int       `db:"max_players" json:"max_players"`
	IconicPlayersCount int       `db:"iconic_players_count" json:"iconic_players_count"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveMaxPlayers is the number of roster slots left for bought players
// once iconic reservations are taken out.
func (t *Team) EffectiveMaxPlayers() int {
	return t.MaxPlayers - t.IconicPlayersCount
}

// PurseSpent is the amount already paid out of the purse.
func (t *Team) PurseSpent() int64 {
	return t.TotalPurse - t.PurseRemaining
}

// TeamStanding is a team together with its non-iconic roster size.
type TeamStanding struct {
	Team
	RegularPlayers int `db:"regular_players" json:"regular_players"`
}

// SlotsRemaining is the number of players the team may still buy.
func (s *TeamStanding) SlotsRemaining() int {
	return s.EffectiveMaxPlayers() - s.RegularPlayers
}

// CanBid is the single eligibility predicate used everywhere a team's
// ability to take a player at the given amount is decided.
func (s *TeamStanding) CanBid(amount int64) bool {
	return s.SlotsRemaining() > 0 && s.PurseRemaining >= amount
}

// Player is an auctionable player.
type Player struct {
	ID             int64          `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	RollNumber     *string        `db:"roll_number" json:"roll_number,omitempty"`
	Category       PlayerCategory `db:"category" json:"category"`
	BasePrice      int64          `db:"base_price" json:"base_price"`
	CurrentBid     int64          `db:"current_bid" json:"current_bid"`
	Status         PlayerStatus   `db:"status" json:"status"`
	TeamID         *int64         `db:"team_id" json:"team_id,omitempty"`
	IsIconic       bool           `db:"is_iconic" json:"is_iconic"`
	IconicEligible bool           `db:"iconic_eligible" json:"iconic_eligible"`
	AssignedAt     *time.Time     `db:"assigned_at" json:"assigned_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// AuctionSession is one auction event, e.g. a day of the player draft.
type AuctionSession struct {
	ID              int64         `db:"id" json:"id"`
	Name            string        `db:"name" json:"name"`
	Status          SessionStatus `db:"status" json:"status"`
	CurrentPlayerID *int64        `db:"current_player_id" json:"current_player_id,omitempty"`
	LastBidTeamID   *int64        `db:"last_bid_team_id" json:"last_bid_team_id,omitempty"`
	BidCallCount    int           `db:"bid_call_count" json:"bid_call_count"`
	StartedAt       *time.Time    `db:"started_at" json:"started_at,omitempty"`
	EndedAt         *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// IsLive reports whether bidding commands may run against the session.
func (s *AuctionSession) IsLive() bool {
	return s != nil && s.Status == SessionLive
}

// HasCurrentPlayer reports whether the given player is under the hammer.
func (s *AuctionSession) HasCurrentPlayer(playerID int64) bool {
	return s.CurrentPlayerID != nil && *s.CurrentPlayerID == playerID
}

// ClearCurrentPlayer returns the session to the no-player-selected state.
func (s *AuctionSession) ClearCurrentPlayer() {
	s.CurrentPlayerID = nil
	s.LastBidTeamID = nil
	s.BidCallCount = 0
}

// Bid is an accepted bid. Bids are never updated or deleted.
type Bid struct {
	ID        int64     `db:"id" json:"id"`
	SessionID int64     `db:"session_id" json:"session_id"`
	PlayerID  int64     `db:"player_id" json:"player_id"`
	TeamID    int64     `db:"team_id" json:"team_id"`
	Amount    int64     `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PaddleRaise is a team owner's non-binding signal of intent to bid.
type PaddleRaise struct {
	ID             int64      `db:"id" json:"id"`
	SessionID      int64      `db:"session_id" json:"session_id"`
	PlayerID       int64      `db:"player_id" json:"player_id"`
	TeamID         int64      `db:"team_id" json:"team_id"`
	Amount         int64      `db:"amount" json:"amount"`
	Acknowledged   bool       `db:"acknowledged" json:"acknowledged"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// SaleRecord is the settlement of one player in one session.
type SaleRecord struct {
	ID          int64     `db:"id" json:"id"`
	SessionID   int64     `db:"session_id" json:"session_id"`
	PlayerID    int64     `db:"player_id" json:"player_id"`
	TeamID      *int64    `db:"team_id" json:"team_id,omitempty"`
	FinalAmount int64     `db:"final_amount" json:"final_amount"`
	Sold        bool      `db:"sold" json:"sold"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
