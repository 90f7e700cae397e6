package broadcast

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"
)

// Sender is the part of *tele.Bot the announcer needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Announcer posts auction events to the auction group chat.
type Announcer struct {
	sender Sender
	chat   tele.Recipient
}

// NewAnnouncer creates an Announcer for the given chat.
func NewAnnouncer(sender Sender, chatID int64) *Announcer {
	return &Announcer{sender: sender, chat: tele.ChatID(chatID)}
}

// Publish implements Publisher. Events without a chat rendering are skipped.
func (a *Announcer) Publish(_ context.Context, ev Event) error {
	text := FormatEvent(ev)
	if text == "" {
		return nil
	}
	if _, err := a.sender.Send(a.chat, text); err != nil {
		return fmt.Errorf("failed to announce %s: %w", ev.Type, err)
	}
	return nil
}

// FormatEvent renders an event as a chat message.
func FormatEvent(ev Event) string {
	switch d := ev.Data.(type) {
	case PlayerUpdate:
		return fmt.Sprintf("🏏 Now on the block: %s (%s)\nBase price: ₹%d",
			d.Player.Name, categoryLabel(string(d.Player.Category)), d.Player.BasePrice)
	case BidUpdate:
		return fmt.Sprintf("💰 %s bids ₹%d for %s\nNext bid: ₹%d | purse left ₹%d | slots left %d",
			d.Team.Name, d.Amount, d.PlayerName, d.NextBid, d.PurseRemaining, d.SlotsRemaining)
	case GoingCall:
		return "🔨 " + d.CallText
	case BiddingEnd:
		if d.Sold && d.Team != nil && d.Amount != nil {
			return fmt.Sprintf("✅ SOLD! %s goes to %s for ₹%d", d.Player.Name, d.Team.Name, *d.Amount)
		}
		return fmt.Sprintf("❌ %s is unsold", d.Player.Name)
	case SessionUpdate:
		return fmt.Sprintf("📣 Session \"%s\" is now %s", d.Session.Name, d.Session.Status)
	case RosterUpdate:
		return formatRoster(d)
	}
	return ""
}

func formatRoster(d RosterUpdate) string {
	switch d.Action {
	case RosterIconicAssigned:
		if d.Player != nil && d.Team != nil {
			return fmt.Sprintf("⭐ %s joins %s as an iconic player", d.Player.Name, d.Team.Name)
		}
	case RosterTeamReset:
		if d.Team != nil {
			return fmt.Sprintf("♻️ %s was reset, %d players released", d.Team.Name, d.Players)
		}
	}
	return ""
}

func categoryLabel(c string) string {
	return strings.ReplaceAll(c, "_", "-")
}
