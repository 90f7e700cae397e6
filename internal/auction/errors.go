package auction

import (
	"errors"
	"fmt"
)

// Kind is the machine-checkable class of a rejected command.
type Kind string

// Error kinds returned to the auctioneer console and the bot.
const (
	KindNoActiveSession   Kind = "no_active_session"
	KindWrongPlayer       Kind = "wrong_player"
	KindRosterFull        Kind = "roster_full"
	KindInsufficientPurse Kind = "insufficient_purse"
	KindInvalidIncrement  Kind = "invalid_increment"
	KindAlreadyProcessed  Kind = "already_processed"
	KindNotFound          Kind = "not_found"
	KindLockContention    Kind = "lock_contention"
	KindInvalidRole       Kind = "invalid_role"
	KindInvalidState      Kind = "invalid_state"
	KindRateLimited       Kind = "rate_limited"
	KindInternal          Kind = "internal"
)

// Retryable reports whether the same command may succeed if simply sent again.
func (k Kind) Retryable() bool {
	return k == KindLockContention || k == KindRateLimited
}

// Error is a rejected command. Reason is meant to be shown to a human as is.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Is matches on kind so callers can write errors.Is(err, auction.ErrRosterFull).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Reject builds an Error with a formatted reason.
func Reject(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Kind sentinels for errors.Is matching.
var (
	ErrNoActiveSession   = &Error{Kind: KindNoActiveSession, Reason: "no active auction session"}
	ErrWrongPlayer       = &Error{Kind: KindWrongPlayer, Reason: "this player is not currently being auctioned"}
	ErrRosterFull        = &Error{Kind: KindRosterFull, Reason: "team has reached its player limit"}
	ErrInsufficientPurse = &Error{Kind: KindInsufficientPurse, Reason: "team has insufficient purse"}
	ErrInvalidIncrement  = &Error{Kind: KindInvalidIncrement, Reason: "bid is not the next legal amount"}
	ErrAlreadyProcessed  = &Error{Kind: KindAlreadyProcessed, Reason: "player already processed"}
	ErrNotFound          = &Error{Kind: KindNotFound, Reason: "not found"}
	ErrLockContention    = &Error{Kind: KindLockContention, Reason: "auction is busy, try again"}
	ErrInvalidRole       = &Error{Kind: KindInvalidRole, Reason: "you are not allowed to run this command"}
	ErrInvalidState      = &Error{Kind: KindInvalidState, Reason: "command is not valid in the current state"}
	ErrRateLimited       = &Error{Kind: KindRateLimited, Reason: "slow down"}
)

// KindOf classifies any error returned by the command layer.
// Errors that are not domain rejections are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// ReasonOf returns the human-readable reason of err. Internal errors are
// masked so infrastructure details do not leak to chat or the console.
func ReasonOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return "internal error, please try again"
}
