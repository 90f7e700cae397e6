package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/role"
	"player-auction-bot/internal/service"
)

// ViewerHandler handles the read-only commands everyone may use.
type ViewerHandler struct {
	query *service.QueryService
}

// NewViewerHandler creates a new ViewerHandler.
func NewViewerHandler(query *service.QueryService) *ViewerHandler {
	return &ViewerHandler{query: query}
}

var helpSections = []struct {
	cmd  role.Command
	text string
}{
	{role.ViewState, "/status - current lot and team standings\n/team [team] - roster of a team\n/search <name> - find players in the pool"},
	{role.RaisePaddle, "/paddle [amount] - raise your paddle for the current player"},
	{role.StartPlayer, "/next <player_id> - put a player under the hammer\n/bid <team> [amount] - accept a bid\n/going - going once, twice, sold\n/sold - close the lot"},
	{role.AcknowledgePaddle, "/paddles - raised paddles\n/ack <paddle_id> - acknowledge a paddle"},
	{role.ManageSession, "/session_new <name>\n/session_start <id>\n/session_pause <id>\n/session_end <id>"},
	{role.ManageRoster, "/iconic <team> <player_id>\n/iconic_remove <player_id>\n/release <team> <player_id>\n/reset_team <team>\n/requeue <player_id>"},
	{role.IssueToken, "/token - console login token (private chat)"},
}

// HandleStart handles /start and /help with the commands the sender may use.
func (h *ViewerHandler) HandleStart(c tele.Context) error {
	r := RoleOf(c)

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏏 Player auction bot\nYour role: %s\n", r)
	if team := TeamOf(c); team != nil {
		fmt.Fprintf(&sb, "Your team: %s\n", team.Name)
	}
	for _, s := range helpSections {
		if r.Can(s.cmd) {
			sb.WriteString("\n" + s.text + "\n")
		}
	}
	return c.Reply(sb.String())
}

// HandleStatus handles the /status command.
func (h *ViewerHandler) HandleStatus(c tele.Context) error {
	snap, err := h.query.State(context.Background())
	if err != nil {
		return replyError(c, err)
	}

	var sb strings.Builder
	switch {
	case snap.Session == nil:
		sb.WriteString("💤 No live auction session\n")
	case snap.CurrentPlayer == nil:
		fmt.Fprintf(&sb, "📣 %s is live, waiting for the next player\n", snap.Session.Name)
	default:
		p := snap.CurrentPlayer
		fmt.Fprintf(&sb, "📣 %s\n🏏 %s (%s), base %s\n", snap.Session.Name, p.Name, p.Category, rupees(p.BasePrice))
		if p.CurrentBid > 0 && len(snap.RecentBids) > 0 {
			fmt.Fprintf(&sb, "💰 Current bid %s by team %d\n", rupees(p.CurrentBid), snap.RecentBids[0].TeamID)
		}
		fmt.Fprintf(&sb, "➡️ Next bid %s\n", rupees(snap.NextBid))
	}

	if len(snap.Teams) > 0 {
		sb.WriteString("\n🏆 Teams\n")
		for _, t := range snap.Teams {
			sb.WriteString(teamLine(t.TeamStanding) + "\n")
		}
	}
	return c.Reply(sb.String())
}

// HandleTeam handles the /team command. Without an argument it shows the
// sender's own team.
// Format: /team [team]
func (h *ViewerHandler) HandleTeam(c tele.Context) error {
	ctx := context.Background()

	var (
		info *service.TeamInfo
		err  error
	)
	if ref := strings.Join(c.Args(), " "); ref != "" {
		var team *model.TeamStanding
		team, err = h.query.FindTeam(ctx, ref)
		if err == nil {
			info, err = h.query.TeamInfo(ctx, team.ID)
		}
	} else if sender := c.Sender(); sender != nil {
		info, err = h.query.TeamForOwner(ctx, sender.ID)
		if errors.Is(err, auction.ErrNotFound) {
			return c.Reply("❌ Usage: /team <team>")
		}
	} else {
		return nil
	}
	if err != nil {
		return replyError(c, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 %s\n", info.Name)
	fmt.Fprintf(&sb, "💰 Purse %s of %s (spent %s)\n", rupees(info.PurseRemaining), rupees(info.TotalPurse), rupees(info.PurseSpent))
	fmt.Fprintf(&sb, "👥 %d bought, %d iconic, %d slots left\n", info.RegularPlayers, info.IconicPlayersCount, info.SlotsRemaining)
	if len(info.Players) > 0 {
		sb.WriteString("\n")
		for _, p := range info.Players {
			star := ""
			if p.IsIconic {
				star = " ⭐"
			}
			fmt.Fprintf(&sb, "• %s (%s)%s\n", p.Name, p.Category, star)
		}
	}
	return c.Reply(sb.String())
}

// HandleSearch handles the /search command.
// Format: /search <name>
func (h *ViewerHandler) HandleSearch(c tele.Context) error {
	query := strings.Join(c.Args(), " ")
	if query == "" {
		return c.Reply("❌ Usage: /search <name>")
	}
	players, err := h.query.SearchPlayers(context.Background(), query, 0)
	if err != nil {
		return replyError(c, err)
	}
	if len(players) == 0 {
		return c.Reply(fmt.Sprintf("🔍 No players in the pool match \"%s\"", query))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Players matching \"%s\"\n", query)
	for _, p := range players {
		fmt.Fprintf(&sb, "\n#%d %s (%s), base %s", p.ID, p.Name, p.Category, rupees(p.BasePrice))
	}
	return c.Reply(sb.String())
}
