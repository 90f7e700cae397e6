package handler

import (
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/auth"
)

// TokenHandler hands out console tokens.
type TokenHandler struct {
	issuer *auth.Issuer
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(issuer *auth.Issuer) *TokenHandler {
	return &TokenHandler{issuer: issuer}
}

// HandleToken handles the /token command. Tokens are only sent in private chat.
func (h *TokenHandler) HandleToken(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
		return c.Reply("🔒 Send /token to me in a private chat")
	}

	r := RoleOf(c)
	var teamID int64
	if team := TeamOf(c); team != nil {
		teamID = team.ID
	}

	token, expires, err := h.issuer.GenerateToken(sender.ID, r, teamID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to issue console token")
		return c.Reply("❌ internal error, please try again")
	}

	log.Info().Int64("user_id", sender.ID).Str("role", r.String()).Msg("Console token issued")
	return c.Reply(fmt.Sprintf(
		"🔑 Console token for role %s\nValid until %s UTC\n\n%s",
		r, expires.UTC().Format("2006-01-02 15:04"), token,
	))
}
