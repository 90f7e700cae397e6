package bot

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/config"
	"player-auction-bot/internal/handler"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/repository"
	"player-auction-bot/internal/role"
)

// TeamLookup finds the team a Telegram user owns.
type TeamLookup interface {
	TeamByOwner(ctx context.Context, ownerID int64) (*model.TeamStanding, error)
}

// AllowedChatsMiddleware ignores group updates from chats outside the
// configured list. Private chats are always served: roles, not chats,
// decide what a user may do.
func AllowedChatsMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil || c.Sender() == nil {
				return nil
			}
			if chat.Type == tele.ChatPrivate || cfg.IsChatAllowed(chat.ID) {
				return next(c)
			}
			log.Debug().
				Int64("chat_id", chat.ID).
				Msg("Ignoring command from chat not in allow list")
			return nil
		}
	}
}

// IdentityMiddleware resolves the sender's role and owned team for every
// update.
func IdentityMiddleware(dir *role.Directory, teams TeamLookup) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			team, err := teams.TeamByOwner(context.Background(), sender.ID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to resolve team owner")
				}
				team = nil
			}

			handler.SetIdentity(c, dir.Resolve(sender.ID, team != nil), team)
			return next(c)
		}
	}
}

// RequireCapability rejects commands the sender's role may not run.
func RequireCapability(cmd role.Command) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			r := handler.RoleOf(c)
			if !r.Can(cmd) {
				logEvent := log.Warn().
					Str("role", r.String()).
					Str("command", string(cmd))
				if sender := c.Sender(); sender != nil {
					logEvent = logEvent.Int64("user_id", sender.ID)
				}
				logEvent.Msg("Command denied for role")
				return c.Reply("❌ Permission denied: your role cannot run this command")
			}
			return next(c)
		}
	}
}

// LoggingMiddleware creates a middleware that logs all incoming messages.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received message")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("text", c.Text()).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ internal error, please try again")
				}
			}()
			return next(c)
		}
	}
}
