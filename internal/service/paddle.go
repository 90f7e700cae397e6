package service

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/broadcast"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/pkg/lock"
	"player-auction-bot/internal/repository"
)

const (
	// DefaultPaddleCooldown is the minimum gap between two raises of the
	// same team for the same player.
	DefaultPaddleCooldown = time.Second

	paddleCacheSize = 1024
)

type paddleKey struct {
	sessionID, teamID, playerID int64
}

// PaddleService records non-binding paddle raises from team owners. A raise
// never changes bidding state: the auctioneer turns it into a bid.
type PaddleService struct {
	executor
	cooldown time.Duration

	mu     sync.Mutex
	recent *lru.Cache
}

// NewPaddleService creates a new PaddleService instance.
func NewPaddleService(store repository.Store, gate *lock.Gate, events broadcast.Publisher, cooldown time.Duration) *PaddleService {
	if cooldown < 0 {
		cooldown = 0
	}
	recent, _ := lru.New(paddleCacheSize)
	return &PaddleService{
		executor: newExecutor(store, gate, events, 0),
		cooldown: cooldown,
		recent:   recent,
	}
}

// RaisePaddle signals a team's intent to bid on the current player. A zero
// amount means the next legal bid.
func (s *PaddleService) RaisePaddle(ctx context.Context, sessionID, teamID, playerID, amount int64) (*model.PaddleRaise, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, classify(notFound(err, "auction session %d", sessionID), "raise paddle")
	}
	if !session.IsLive() {
		return nil, auction.ErrNoActiveSession
	}
	if !session.HasCurrentPlayer(playerID) {
		return nil, auction.ErrWrongPlayer
	}
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, classify(notFound(err, "player %d", playerID), "raise paddle")
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, classify(notFound(err, "team %d", teamID), "raise paddle")
	}

	if amount == 0 {
		amount = auction.NextBid(player.CurrentBid, player.BasePrice)
	}
	if amount < 0 {
		return nil, auction.Reject(auction.KindInvalidIncrement, "paddle amount must be positive")
	}
	if team.SlotsRemaining() <= 0 {
		return nil, auction.ErrRosterFull
	}
	if team.PurseRemaining < amount {
		return nil, auction.Reject(auction.KindInsufficientPurse,
			"insufficient purse: ₹%d available, ₹%d needed", team.PurseRemaining, amount)
	}

	if !s.allow(paddleKey{sessionID, teamID, playerID}) {
		return nil, auction.ErrRateLimited
	}

	paddle := &model.PaddleRaise{SessionID: sessionID, PlayerID: playerID, TeamID: teamID, Amount: amount}
	err = s.inTx(ctx, "raise paddle", func(tx repository.Tx) error {
		return tx.InsertPaddle(ctx, paddle)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("session_id", sessionID).
		Int64("team_id", teamID).
		Int64("player_id", playerID).
		Int64("amount", amount).
		Msg("Paddle raised")

	s.publish(ctx, broadcast.NewEvent(broadcast.EventPaddleRaised, sessionID, broadcast.PaddleUpdate{
		Paddle:   paddle,
		TeamName: team.Name,
	}))
	return paddle, nil
}

// allow debounces repeated raises of the same paddle.
func (s *PaddleService) allow(key paddleKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if v, ok := s.recent.Get(key); ok {
		if last, ok := v.(time.Time); ok && now.Sub(last) < s.cooldown {
			return false
		}
	}
	s.recent.Add(key, now)
	return true
}

// AcknowledgePaddle marks a raise as seen by the auctioneer. Acknowledging
// twice is a no-op.
func (s *PaddleService) AcknowledgePaddle(ctx context.Context, paddleID int64) (*model.PaddleRaise, error) {
	var (
		paddle  *model.PaddleRaise
		changed bool
	)
	err := s.inTx(ctx, "acknowledge paddle", func(tx repository.Tx) error {
		var err error
		paddle, err = tx.LockPaddle(ctx, paddleID)
		if err != nil {
			return notFound(err, "paddle %d", paddleID)
		}
		if paddle.Acknowledged {
			return nil
		}
		now := s.now()
		paddle.Acknowledged = true
		paddle.AcknowledgedAt = &now
		changed = true
		return tx.UpdatePaddle(ctx, paddle)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, broadcast.NewEvent(broadcast.EventPaddleAcknowledged, paddle.SessionID, broadcast.PaddleUpdate{
			Paddle: paddle,
		}))
	}
	return paddle, nil
}

// PendingPaddles lists the unacknowledged raises of a session, oldest first.
func (s *PaddleService) PendingPaddles(ctx context.Context, sessionID int64) ([]*model.PaddleRaise, error) {
	paddles, err := s.store.PendingPaddles(ctx, sessionID)
	if err != nil {
		return nil, classify(err, "list pending paddles")
	}
	return paddles, nil
}
