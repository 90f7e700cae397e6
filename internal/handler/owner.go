package handler

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/service"
)

// OwnerHandler handles team owner commands. Owners never bid directly: a
// raised paddle only asks the auctioneer to call their bid.
type OwnerHandler struct {
	paddles *service.PaddleService
	query   *service.QueryService
}

// NewOwnerHandler creates a new OwnerHandler.
func NewOwnerHandler(paddles *service.PaddleService, query *service.QueryService) *OwnerHandler {
	return &OwnerHandler{paddles: paddles, query: query}
}

// HandlePaddle handles the /paddle command.
// Format: /paddle [amount]
func (h *OwnerHandler) HandlePaddle(c tele.Context) error {
	ctx := context.Background()
	team := TeamOf(c)
	if team == nil {
		return c.Reply("❌ You do not own a team")
	}

	var amount int64
	if args := c.Args(); len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || v <= 0 {
			return c.Reply("❌ Usage: /paddle [amount]")
		}
		amount = v
	}

	lot, err := h.query.CurrentLot(ctx)
	if err != nil {
		return replyError(c, err)
	}
	paddle, err := h.paddles.RaisePaddle(ctx, lot.Session.ID, team.ID, lot.Player.ID, amount)
	if err != nil {
		return replyError(c, err)
	}

	return c.Reply(fmt.Sprintf(
		"🙋 %s raised a paddle for %s at %s\nThe auctioneer will call it.",
		team.Name, lot.Player.Name, rupees(paddle.Amount),
	))
}
