package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/broadcast"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/pkg/lock"
	"player-auction-bot/internal/repository"
)

// SessionChange is the result of a session lifecycle command.
type SessionChange struct {
	Session *model.AuctionSession `json:"session"`
	Paused  []int64               `json:"paused,omitempty"`
}

// SessionService manages the auction session lifecycle. At most one
// session is live at any moment.
type SessionService struct {
	executor
}

// NewSessionService creates a new SessionService instance.
func NewSessionService(store repository.Store, gate *lock.Gate, events broadcast.Publisher, lockWait time.Duration) *SessionService {
	return &SessionService{executor: newExecutor(store, gate, events, lockWait)}
}

// CreateSession adds a new pending session.
func (s *SessionService) CreateSession(ctx context.Context, name string) (*model.AuctionSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, auction.Reject(auction.KindInvalidState, "session name cannot be empty")
	}

	var session *model.AuctionSession
	err := s.inTx(ctx, "create session", func(tx repository.Tx) error {
		var err error
		session, err = tx.CreateSession(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("session_id", session.ID).Str("name", name).Msg("Auction session created")
	return session, nil
}

// StartSession makes a session live, pausing whichever session was live.
func (s *SessionService) StartSession(ctx context.Context, sessionID int64) (*SessionChange, error) {
	change := &SessionChange{}

	err := s.inSession(ctx, sessionID, false, "start session", func(tx repository.Tx) error {
		live, err := tx.LockLiveSessions(ctx)
		if err != nil {
			return err
		}
		target, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return notFound(err, "auction session %d", sessionID)
		}
		switch target.Status {
		case model.SessionCompleted:
			return auction.Reject(auction.KindInvalidState, "session \"%s\" has ended", target.Name)
		case model.SessionLive:
			return auction.Reject(auction.KindInvalidState, "session \"%s\" is already live", target.Name)
		}

		// The previous live session must be paused before the new one goes
		// live or the one-live-session index rejects the update.
		for _, other := range live {
			if other.ID == target.ID {
				continue
			}
			other.Status = model.SessionPaused
			if err := tx.UpdateSession(ctx, other); err != nil {
				return err
			}
			change.Paused = append(change.Paused, other.ID)
		}

		target.Status = model.SessionLive
		if target.StartedAt == nil {
			now := s.now()
			target.StartedAt = &now
		}
		if err := tx.UpdateSession(ctx, target); err != nil {
			return err
		}
		change.Session = target
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, auction.Reject(auction.KindInvalidState, "another session went live concurrently")
		}
		return nil, err
	}

	log.Info().Int64("session_id", sessionID).Ints64("paused", change.Paused).Msg("Auction session live")
	s.publishChange(ctx, change)
	return change, nil
}

// PauseSession suspends a live session. The current player, if any, stays
// under the hammer until the session resumes.
func (s *SessionService) PauseSession(ctx context.Context, sessionID int64) (*SessionChange, error) {
	change := &SessionChange{}

	err := s.inSession(ctx, sessionID, false, "pause session", func(tx repository.Tx) error {
		session, err := lockLive(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		session.Status = model.SessionPaused
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}
		change.Session = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("session_id", sessionID).Msg("Auction session paused")
	s.publishChange(ctx, change)
	return change, nil
}

// EndSession completes a session. A player left under the hammer goes back
// to the pool untouched.
func (s *SessionService) EndSession(ctx context.Context, sessionID int64) (*SessionChange, error) {
	change := &SessionChange{}

	err := s.inSession(ctx, sessionID, false, "end session", func(tx repository.Tx) error {
		session, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return notFound(err, "auction session %d", sessionID)
		}
		if session.Status == model.SessionCompleted {
			return auction.Reject(auction.KindAlreadyProcessed, "session \"%s\" has already ended", session.Name)
		}

		if session.CurrentPlayerID != nil {
			player, err := tx.LockPlayer(ctx, *session.CurrentPlayerID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if player != nil && player.Status == model.PlayerApproved {
				player.CurrentBid = 0
				if err := tx.UpdatePlayer(ctx, player); err != nil {
					return err
				}
			}
			session.ClearCurrentPlayer()
		}

		now := s.now()
		session.Status = model.SessionCompleted
		session.EndedAt = &now
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}
		change.Session = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("session_id", sessionID).Msg("Auction session ended")
	s.publishChange(ctx, change)
	return change, nil
}

// ListSessions returns every session, newest first.
func (s *SessionService) ListSessions(ctx context.Context) ([]*model.AuctionSession, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, classify(err, "list sessions")
	}
	return sessions, nil
}

func (s *SessionService) publishChange(ctx context.Context, change *SessionChange) {
	s.publish(ctx, broadcast.NewEvent(broadcast.EventSessionUpdate, change.Session.ID, broadcast.SessionUpdate{
		Session: change.Session,
		Paused:  change.Paused,
	}))
}
