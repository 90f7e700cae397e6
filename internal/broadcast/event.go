// Package broadcast fans auction state changes out to viewers: websocket
// subscribers, other service instances through Redis, and the auction chat.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"player-auction-bot/internal/model"
)

// EventType names a broadcast event.
type EventType string

// Event types.
const (
	EventPlayerUpdate       EventType = "player_update"
	EventBidUpdate          EventType = "bid_update"
	EventBiddingEnd         EventType = "bidding_end"
	EventGoingCall          EventType = "going_call"
	EventSessionUpdate      EventType = "session_update"
	EventPaddleRaised       EventType = "paddle_raised"
	EventPaddleAcknowledged EventType = "paddle_acknowledged"
	EventRosterUpdate       EventType = "roster_update"
)

// Event is the envelope every subscriber receives. ID lets subscribers drop
// duplicates, since delivery is at least once.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SessionID int64     `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
	Data      any       `json:"data"`
}

// NewEvent stamps a payload with a fresh id and time.
func NewEvent(t EventType, sessionID int64, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SessionID: sessionID,
		At:        time.Now().UTC(),
		Data:      data,
	}
}

// UnmarshalJSON decodes Data into the payload type named by Type, so relayed
// events render the same as local ones. Unknown types keep the raw JSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	type plain Event
	var wire struct {
		plain
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*e = Event(wire.plain)

	var data any
	switch e.Type {
	case EventPlayerUpdate:
		data = &PlayerUpdate{}
	case EventBidUpdate:
		data = &BidUpdate{}
	case EventBiddingEnd:
		data = &BiddingEnd{}
	case EventGoingCall:
		data = &GoingCall{}
	case EventSessionUpdate:
		data = &SessionUpdate{}
	case EventPaddleRaised, EventPaddleAcknowledged:
		data = &PaddleUpdate{}
	case EventRosterUpdate:
		data = &RosterUpdate{}
	default:
		e.Data = wire.Data
		return nil
	}
	if len(wire.Data) == 0 || string(wire.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(wire.Data, data); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	e.Data = deref(data)
	return nil
}

func deref(v any) any {
	switch d := v.(type) {
	case *PlayerUpdate:
		return *d
	case *BidUpdate:
		return *d
	case *BiddingEnd:
		return *d
	case *GoingCall:
		return *d
	case *SessionUpdate:
		return *d
	case *PaddleUpdate:
		return *d
	case *RosterUpdate:
		return *d
	}
	return v
}

// TeamRef identifies a team in event payloads.
type TeamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PlayerUpdate announces the player now under the hammer.
type PlayerUpdate struct {
	Player  *model.Player `json:"player"`
	NextBid int64         `json:"next_bid"`
}

// BidUpdate announces an accepted bid.
type BidUpdate struct {
	BidID          int64   `json:"bid_id"`
	PlayerID       int64   `json:"player_id"`
	PlayerName     string  `json:"player_name"`
	Team           TeamRef `json:"team"`
	Amount         int64   `json:"amount"`
	NextBid        int64   `json:"next_bid"`
	PurseRemaining int64   `json:"purse_remaining"`
	SlotsRemaining int     `json:"slots_remaining"`
	EligibleTeams  []int64 `json:"eligible_teams"`
}

// BiddingEnd announces the outcome of a lot. Team, Amount and
// PurseRemaining are set only for a sale.
type BiddingEnd struct {
	Sold           bool          `json:"sold"`
	Player         *model.Player `json:"player"`
	Team           *TeamRef      `json:"team,omitempty"`
	Amount         *int64        `json:"amount,omitempty"`
	PurseRemaining *int64        `json:"purse_remaining,omitempty"`
}

// GoingCall announces a going-once/twice/sold call.
type GoingCall struct {
	PlayerID       int64  `json:"player_id"`
	CallCount      int    `json:"call_count"`
	CallText       string `json:"call_text"`
	ShouldComplete bool   `json:"should_complete"`
}

// SessionUpdate announces a session lifecycle change. Paused lists live
// sessions that were paused because another one started.
type SessionUpdate struct {
	Session *model.AuctionSession `json:"session"`
	Paused  []int64               `json:"paused,omitempty"`
}

// PaddleUpdate announces a paddle raise or its acknowledgement.
type PaddleUpdate struct {
	Paddle   *model.PaddleRaise `json:"paddle"`
	TeamName string             `json:"team_name"`
}

// RosterAction names an out-of-auction roster change.
type RosterAction string

// Roster actions.
const (
	RosterIconicAssigned RosterAction = "iconic_assigned"
	RosterIconicRemoved  RosterAction = "iconic_removed"
	RosterReleased       RosterAction = "player_released"
	RosterTeamReset      RosterAction = "team_reset"
	RosterRequeued       RosterAction = "player_requeued"
)

// RosterUpdate announces an admin roster change.
type RosterUpdate struct {
	Action  RosterAction  `json:"action"`
	Player  *model.Player `json:"player,omitempty"`
	Team    *TeamRef      `json:"team,omitempty"`
	Refund  int64         `json:"refund,omitempty"`
	Players int           `json:"players,omitempty"`
}

// Publisher delivers events to some audience.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Fanout publishes every event to all of its publishers and joins their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
