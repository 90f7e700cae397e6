package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/service"
)

// AuctionHandler handles the auctioneer's hammer commands.
type AuctionHandler struct {
	auction *service.AuctionService
	paddles *service.PaddleService
	query   *service.QueryService
}

// NewAuctionHandler creates a new AuctionHandler.
func NewAuctionHandler(auction *service.AuctionService, paddles *service.PaddleService, query *service.QueryService) *AuctionHandler {
	return &AuctionHandler{auction: auction, paddles: paddles, query: query}
}

// HandleNext handles the /next command.
// Format: /next <player_id>
func (h *AuctionHandler) HandleNext(c tele.Context) error {
	ctx := context.Background()
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /next <player_id>")
	}
	playerID, err := parseID(args[0], "player")
	if err != nil {
		return c.Reply(err.Error())
	}

	session, err := h.query.LiveSession(ctx)
	if err != nil {
		return replyError(c, err)
	}
	state, err := h.auction.StartPlayer(ctx, session.ID, playerID)
	if err != nil {
		return replyError(c, err)
	}

	return c.Reply(fmt.Sprintf(
		"🏏 %s is under the hammer\nOpening bid: %s",
		state.Player.Name, rupees(state.NextBid),
	))
}

// HandleBid handles the /bid command. Without an amount the next legal bid
// is used.
// Format: /bid <team> [amount]
func (h *AuctionHandler) HandleBid(c tele.Context) error {
	ctx := context.Background()
	ref, amount, err := splitAmount(c.Args())
	if errors.Is(err, errUsage) {
		return c.Reply("❌ Usage: /bid <team> [amount]")
	}
	if err != nil {
		return c.Reply(err.Error())
	}

	lot, err := h.query.CurrentLot(ctx)
	if err != nil {
		return replyError(c, err)
	}
	team, err := h.query.FindTeam(ctx, ref)
	if err != nil {
		return replyError(c, err)
	}
	if amount == 0 {
		amount = lot.NextBid
	}

	res, err := h.auction.AcceptBid(ctx, lot.Session.ID, team.ID, lot.Player.ID, amount)
	if err != nil {
		return replyError(c, err)
	}

	return c.Reply(fmt.Sprintf(
		"✅ %s bid %s for %s\nNext bid: %s",
		res.Team.Name, rupees(res.Bid.Amount), res.Player.Name, rupees(res.NextBid),
	))
}

// HandleGoing handles the /going command.
func (h *AuctionHandler) HandleGoing(c tele.Context) error {
	ctx := context.Background()
	session, err := h.query.LiveSession(ctx)
	if err != nil {
		return replyError(c, err)
	}
	res, err := h.auction.CallGoing(ctx, session.ID)
	if err != nil {
		return replyError(c, err)
	}

	text := "🔨 " + res.CallText
	if res.ShouldComplete {
		text += "\nUse /sold to close the lot."
	}
	return c.Reply(text)
}

// HandleSold handles the /sold command and closes the current lot.
func (h *AuctionHandler) HandleSold(c tele.Context) error {
	ctx := context.Background()
	lot, err := h.query.CurrentLot(ctx)
	if err != nil {
		return replyError(c, err)
	}
	res, err := h.auction.CompleteSale(ctx, lot.Session.ID, lot.Player.ID)
	if err != nil {
		return replyError(c, err)
	}

	if !res.Sold {
		return c.Reply(fmt.Sprintf("❌ %s is unsold (base price %s)", res.Player.Name, rupees(res.Amount)))
	}
	return c.Reply(fmt.Sprintf(
		"✅ SOLD! %s to %s for %s\n%s",
		res.Player.Name, res.Team.Name, rupees(res.Amount), teamLine(res.Team),
	))
}

// HandlePaddles handles the /paddles command.
func (h *AuctionHandler) HandlePaddles(c tele.Context) error {
	ctx := context.Background()
	session, err := h.query.LiveSession(ctx)
	if err != nil {
		return replyError(c, err)
	}
	paddles, err := h.paddles.PendingPaddles(ctx, session.ID)
	if err != nil {
		return replyError(c, err)
	}
	if len(paddles) == 0 {
		return c.Reply("🙋 No raised paddles")
	}

	var sb strings.Builder
	sb.WriteString("🙋 Raised paddles\n")
	for _, p := range paddles {
		fmt.Fprintf(&sb, "\n#%d team %d for player %d at %s", p.ID, p.TeamID, p.PlayerID, rupees(p.Amount))
	}
	sb.WriteString("\n\nUse /ack <id> once handled.")
	return c.Reply(sb.String())
}

// HandleAck handles the /ack command.
// Format: /ack <paddle_id>
func (h *AuctionHandler) HandleAck(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /ack <paddle_id>")
	}
	id, err := parseID(args[0], "paddle")
	if err != nil {
		return c.Reply(err.Error())
	}
	if _, err := h.paddles.AcknowledgePaddle(context.Background(), id); err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("👌 Paddle #%d acknowledged", id))
}
