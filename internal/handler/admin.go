package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/service"
)

// AdminHandler handles session lifecycle and roster commands.
type AdminHandler struct {
	sessions *service.SessionService
	roster   *service.RosterService
	query    *service.QueryService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sessions *service.SessionService, roster *service.RosterService, query *service.QueryService) *AdminHandler {
	return &AdminHandler{sessions: sessions, roster: roster, query: query}
}

func logAdmin(c tele.Context, operation string) {
	logEvent := log.Info().Str("operation", operation)
	if sender := c.Sender(); sender != nil {
		logEvent = logEvent.Int64("admin_id", sender.ID)
	}
	logEvent.Strs("args", c.Args()).Msg("Admin operation executed")
}

// HandleSessionNew handles the /session_new command.
// Format: /session_new <name>
func (h *AdminHandler) HandleSessionNew(c tele.Context) error {
	name := strings.Join(c.Args(), " ")
	if name == "" {
		return c.Reply("❌ Usage: /session_new <name>")
	}
	session, err := h.sessions.CreateSession(context.Background(), name)
	if err != nil {
		return replyError(c, err)
	}
	logAdmin(c, "session_new")
	return c.Reply(fmt.Sprintf("✅ Session #%d \"%s\" created\nStart it with /session_start %d", session.ID, session.Name, session.ID))
}

// sessionCommand parses the session id argument shared by the lifecycle
// commands and runs fn.
func (h *AdminHandler) sessionCommand(c tele.Context, usage string, fn func(ctx context.Context, id int64) (*service.SessionChange, error)) (*service.SessionChange, error) {
	args := c.Args()
	if len(args) != 1 {
		return nil, c.Reply("❌ Usage: " + usage)
	}
	id, err := parseID(args[0], "session")
	if err != nil {
		return nil, c.Reply(err.Error())
	}
	change, err := fn(context.Background(), id)
	if err != nil {
		return nil, replyError(c, err)
	}
	return change, nil
}

// HandleSessionStart handles the /session_start command.
// Format: /session_start <session_id>
func (h *AdminHandler) HandleSessionStart(c tele.Context) error {
	change, err := h.sessionCommand(c, "/session_start <session_id>", h.sessions.StartSession)
	if change == nil {
		return err
	}
	logAdmin(c, "session_start")

	text := fmt.Sprintf("▶️ Session \"%s\" is live", change.Session.Name)
	if len(change.Paused) > 0 {
		text += fmt.Sprintf("\nPaused sessions: %v", change.Paused)
	}
	return c.Reply(text)
}

// HandleSessionPause handles the /session_pause command.
// Format: /session_pause <session_id>
func (h *AdminHandler) HandleSessionPause(c tele.Context) error {
	change, err := h.sessionCommand(c, "/session_pause <session_id>", h.sessions.PauseSession)
	if change == nil {
		return err
	}
	logAdmin(c, "session_pause")
	return c.Reply(fmt.Sprintf("⏸ Session \"%s\" paused", change.Session.Name))
}

// HandleSessionEnd handles the /session_end command.
// Format: /session_end <session_id>
func (h *AdminHandler) HandleSessionEnd(c tele.Context) error {
	change, err := h.sessionCommand(c, "/session_end <session_id>", h.sessions.EndSession)
	if change == nil {
		return err
	}
	logAdmin(c, "session_end")
	return c.Reply(fmt.Sprintf("⏹ Session \"%s\" ended", change.Session.Name))
}

// teamAndPlayer parses "<team> <player_id>" where the team may be a
// multi-word name.
func (h *AdminHandler) teamAndPlayer(c tele.Context, usage string) (teamID, playerID int64, ok bool, err error) {
	args := c.Args()
	if len(args) < 2 {
		return 0, 0, false, c.Reply("❌ Usage: " + usage)
	}
	playerID, err = parseID(args[len(args)-1], "player")
	if err != nil {
		return 0, 0, false, c.Reply(err.Error())
	}
	team, err := h.query.FindTeam(context.Background(), strings.Join(args[:len(args)-1], " "))
	if err != nil {
		return 0, 0, false, replyError(c, err)
	}
	return team.ID, playerID, true, nil
}

// HandleIconic handles the /iconic command.
// Format: /iconic <team> <player_id>
func (h *AdminHandler) HandleIconic(c tele.Context) error {
	teamID, playerID, ok, err := h.teamAndPlayer(c, "/iconic <team> <player_id>")
	if !ok {
		return err
	}
	change, err := h.roster.AssignIconic(context.Background(), teamID, playerID)
	if err != nil {
		return replyError(c, err)
	}
	logAdmin(c, "iconic_assign")
	return c.Reply(fmt.Sprintf(
		"⭐ %s assigned to %s as iconic player\nIconic players: %d, slots left %d",
		change.Player.Name, change.Team.Name, change.Team.IconicPlayersCount, change.Team.SlotsRemaining(),
	))
}

// HandleIconicRemove handles the /iconic_remove command.
// Format: /iconic_remove <player_id>
func (h *AdminHandler) HandleIconicRemove(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /iconic_remove <player_id>")
	}
	playerID, err := parseID(args[0], "player")
	if err != nil {
		return c.Reply(err.Error())
	}
	change, err := h.roster.RemoveIconic(context.Background(), playerID)
	if err != nil {
		return replyError(c, err)
	}
	logAdmin(c, "iconic_remove")
	return c.Reply(fmt.Sprintf("✅ %s removed from %s", change.Player.Name, change.Team.Name))
}

// HandleRelease handles the /release command.
// Format: /release <team> <player_id>
func (h *AdminHandler) HandleRelease(c tele.Context) error {
	teamID, playerID, ok, err := h.teamAndPlayer(c, "/release <team> <player_id>")
	if !ok {
		return err
	}
	change, err := h.roster.ReleasePlayer(context.Background(), teamID, playerID)
	if err != nil {
		return replyError(c, err)
	}
	logAdmin(c, "release")
	return c.Reply(fmt.Sprintf(
		"✅ %s released from %s, refunded %s\n%s",
		change.Player.Name, change.Team.Name, rupees(change.Refund), teamLine(change.Team),
	))
}

// HandleResetTeam handles the /reset_team command.
// Format: /reset_team <team>
func (h *AdminHandler) HandleResetTeam(c tele.Context) error {
	ref := strings.Join(c.Args(), " ")
	if ref == "" {
		return c.Reply("❌ Usage: /reset_team <team>")
	}
	ctx := context.Background()
	team, err := h.query.FindTeam(ctx, ref)
	if err != nil {
		return replyError(c, err)
	}
	change, err := h.roster.ResetTeam(ctx, team.ID)
	if err != nil {
		return replyError(c, err)
	}
	logAdmin(c, "reset_team")
	return c.Reply(fmt.Sprintf("♻️ %s reset, %d players released\n%s", change.Team.Name, change.Released, teamLine(change.Team)))
}

// HandleRequeue handles the /requeue command.
// Format: /requeue <player_id>
func (h *AdminHandler) HandleRequeue(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /requeue <player_id>")
	}
	playerID, err := parseID(args[0], "player")
	if err != nil {
		return c.Reply(err.Error())
	}
	change, err := h.roster.RequeuePlayer(context.Background(), playerID)
	if err != nil {
		return replyError(c, err)
	}
	logAdmin(c, "requeue")
	return c.Reply(fmt.Sprintf("🔁 %s is back in the auction pool", change.Player.Name))
}
