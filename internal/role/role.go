// Package role defines who may issue which auction command.
package role

import (
	"fmt"
	"strings"
)

// Role is the closed set of identities the auction recognises.
type Role int

const (
	Viewer Role = iota
	TeamOwner
	Auctioneer
	Admin
)

var roleNames = map[Role]string{
	Viewer:     "viewer",
	TeamOwner:  "team_owner",
	Auctioneer: "auctioneer",
	Admin:      "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Parse converts a role name, as carried in console tokens, into a Role.
func Parse(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return Viewer, fmt.Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Command identifies an operation for capability checks.
type Command string

// Commands.
const (
	ViewState Command = "view_state"

	StartPlayer       Command = "start_player"
	AcceptBid         Command = "accept_bid"
	CallGoing         Command = "call_going"
	CompleteSale      Command = "complete_sale"
	AcknowledgePaddle Command = "acknowledge_paddle"
	ListPaddles       Command = "list_paddles"

	RaisePaddle Command = "raise_paddle"

	ManageSession Command = "manage_session"
	ManageRoster  Command = "manage_roster"

	IssueToken Command = "issue_token"
)

// capabilities is the full permission table. Anything not listed is denied.
var capabilities = map[Role]map[Command]bool{
	Viewer: {
		ViewState: true,
	},
	TeamOwner: {
		ViewState:   true,
		RaisePaddle: true,
	},
	Auctioneer: {
		ViewState:         true,
		StartPlayer:       true,
		AcceptBid:         true,
		CallGoing:         true,
		CompleteSale:      true,
		AcknowledgePaddle: true,
		ListPaddles:       true,
		IssueToken:        true,
	},
	Admin: {
		ViewState:     true,
		ListPaddles:   true,
		ManageSession: true,
		ManageRoster:  true,
		IssueToken:    true,
	},
}

// Can reports whether role r may run cmd.
func (r Role) Can(cmd Command) bool {
	return capabilities[r][cmd]
}

// Mutates reports whether cmd changes auction state.
func (c Command) Mutates() bool {
	switch c {
	case ViewState, ListPaddles, IssueToken:
		return false
	}
	return true
}

// Directory resolves Telegram users into roles.
type Directory struct {
	admins      map[int64]bool
	auctioneers map[int64]bool
}

// NewDirectory builds a Directory from the configured id lists.
func NewDirectory(adminIDs, auctioneerIDs []int64) *Directory {
	d := &Directory{
		admins:      make(map[int64]bool, len(adminIDs)),
		auctioneers: make(map[int64]bool, len(auctioneerIDs)),
	}
	for _, id := range adminIDs {
		d.admins[id] = true
	}
	for _, id := range auctioneerIDs {
		d.auctioneers[id] = true
	}
	return d
}

// Resolve picks the strongest role a user holds. ownsTeam is whether the
// user owns a team in the ledger.
func (d *Directory) Resolve(userID int64, ownsTeam bool) Role {
	switch {
	case d.admins[userID]:
		return Admin
	case d.auctioneers[userID]:
		return Auctioneer
	case ownsTeam:
		return TeamOwner
	default:
		return Viewer
	}
}
