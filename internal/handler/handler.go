// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/role"
)

const (
	roleKey = "auction_role"
	teamKey = "auction_team"
)

var errUsage = errors.New("usage")

// SetIdentity stores the sender's role and owned team on the update context.
func SetIdentity(c tele.Context, r role.Role, team *model.TeamStanding) {
	c.Set(roleKey, r)
	if team != nil {
		c.Set(teamKey, team)
	}
}

// RoleOf returns the sender's role, Viewer when unknown.
func RoleOf(c tele.Context) role.Role {
	if r, ok := c.Get(roleKey).(role.Role); ok {
		return r
	}
	return role.Viewer
}

// TeamOf returns the team owned by the sender, if any.
func TeamOf(c tele.Context) *model.TeamStanding {
	if t, ok := c.Get(teamKey).(*model.TeamStanding); ok {
		return t
	}
	return nil
}

// replyError shows a rejected command to the user. Internal failures are
// logged and replaced by a generic reason.
func replyError(c tele.Context, err error) error {
	kind := auction.KindOf(err)
	if kind == auction.KindInternal {
		logEvent := log.Error().Err(err).Str("command", c.Text())
		if sender := c.Sender(); sender != nil {
			logEvent = logEvent.Int64("user_id", sender.ID)
		}
		logEvent.Msg("Command failed")
	}

	icon := "❌"
	if kind.Retryable() {
		icon = "⏳"
	}
	return c.Reply(fmt.Sprintf("%s %s", icon, auction.ReasonOf(err)))
}

// parseID parses a positive numeric id argument.
func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("❌ invalid %s id: %s", what, arg)
	}
	return id, nil
}

// splitAmount separates an optional trailing amount from a team reference,
// so "/bid Royal Strikers 350" and "/bid 3" both parse.
func splitAmount(args []string) (ref string, amount int64, err error) {
	if len(args) == 0 {
		return "", 0, errUsage
	}
	if len(args) > 1 {
		if v, perr := strconv.ParseInt(args[len(args)-1], 10, 64); perr == nil {
			if v <= 0 {
				return "", 0, fmt.Errorf("❌ amount must be positive")
			}
			return strings.Join(args[:len(args)-1], " "), v, nil
		}
	}
	return strings.Join(args, " "), 0, nil
}

func rupees(v int64) string {
	return fmt.Sprintf("₹%d", v)
}

func teamLine(t *model.TeamStanding) string {
	return fmt.Sprintf("%s: purse %s / %s, slots left %d",
		t.Name, rupees(t.PurseRemaining), rupees(t.TotalPurse), t.SlotsRemaining())
}
