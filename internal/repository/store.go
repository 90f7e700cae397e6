// Package repository provides the ledger store: durable state for teams,
// players, auction sessions, bids, paddle raises and sale records.
package repository

import (
	"context"
	"errors"
	"time"

	"player-auction-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrNotFound = errors.New("record not found")
	// ErrLockNotAvailable is returned when a row lock could not be taken
	// without waiting (NoWait) or within the lock timeout.
	ErrLockNotAvailable = errors.New("row lock not available")
	// ErrConflict is returned when a write violates a uniqueness rule, such
	// as a second live session.
	ErrConflict = errors.New("conflicting write")
)

// TxOptions controls how a unit of work waits for row locks.
type TxOptions struct {
	// NoWait makes every row lock fail immediately when held elsewhere.
	NoWait bool
	// LockTimeout bounds waiting for a row lock when NoWait is false.
	// Zero waits indefinitely.
	LockTimeout time.Duration
}

// Reader is the lock-free read side of the ledger.
type Reader interface {
	GetSession(ctx context.Context, id int64) (*model.AuctionSession, error)
	LiveSession(ctx context.Context) (*model.AuctionSession, error)
	ListSessions(ctx context.Context) ([]*model.AuctionSession, error)
	GetPlayer(ctx context.Context, id int64) (*model.Player, error)
	ListPlayers(ctx context.Context, status model.PlayerStatus) ([]*model.Player, error)
	GetTeam(ctx context.Context, id int64) (*model.TeamStanding, error)
	TeamByOwner(ctx context.Context, ownerID int64) (*model.TeamStanding, error)
	ListTeams(ctx context.Context) ([]*model.TeamStanding, error)
	TeamPlayers(ctx context.Context, teamID int64) ([]*model.Player, error)
	RecentBids(ctx context.Context, sessionID, playerID int64, limit int) ([]*model.Bid, error)
	PendingPaddles(ctx context.Context, sessionID int64) ([]*model.PaddleRaise, error)
	RecentSales(ctx context.Context, sessionID int64, limit int) ([]*model.SaleRecord, error)
}

// Tx is one atomic unit of work. Lock* methods take exclusive row locks
// that are held until the unit of work ends. Callers lock in the order
// session, player, team. Resetting a team is the one exception: it locks
// the team before releasing its players, so a sale onto that team either
// commits first or waits for the reset.
type Tx interface {
	LockSession(ctx context.Context, id int64) (*model.AuctionSession, error)
	LockLiveSessions(ctx context.Context) ([]*model.AuctionSession, error)
	LockPlayer(ctx context.Context, id int64) (*model.Player, error)
	LockTeam(ctx context.Context, id int64) (*model.TeamStanding, error)
	LockPaddle(ctx context.Context, id int64) (*model.PaddleRaise, error)

	HighestBid(ctx context.Context, sessionID, playerID int64) (*model.Bid, error)
	LatestSale(ctx context.Context, playerID int64) (*model.SaleRecord, error)
	SaleExists(ctx context.Context, sessionID, playerID int64) (bool, error)
	// SessionHoldingPlayer returns the session that has the player under
	// the hammer, or ErrNotFound.
	SessionHoldingPlayer(ctx context.Context, playerID int64) (*model.AuctionSession, error)
	ListTeams(ctx context.Context) ([]*model.TeamStanding, error)

	CreateSession(ctx context.Context, name string) (*model.AuctionSession, error)
	UpdateSession(ctx context.Context, s *model.AuctionSession) error
	InsertTeam(ctx context.Context, t *model.Team) error
	UpdateTeam(ctx context.Context, t *model.Team) error
	InsertPlayer(ctx context.Context, p *model.Player) error
	UpdatePlayer(ctx context.Context, p *model.Player) error
	ReleaseTeamPlayers(ctx context.Context, teamID int64) (int, error)
	InsertBid(ctx context.Context, b *model.Bid) error
	InsertSale(ctx context.Context, r *model.SaleRecord) error
	InsertPaddle(ctx context.Context, p *model.PaddleRaise) error
	UpdatePaddle(ctx context.Context, p *model.PaddleRaise) error
}

// Store is the full ledger: lock-free reads plus atomic units of work.
// Atomic commits when fn returns nil and rolls back everything otherwise.
type Store interface {
	Reader
	Atomic(ctx context.Context, opts TxOptions, fn func(tx Tx) error) error
}
