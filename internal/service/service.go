// Package service implements the auction commands and queries on top of the
// ledger store, the session gate and the event broadcaster.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/broadcast"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/pkg/lock"
	"player-auction-bot/internal/repository"
)

// DefaultLockWait bounds waits on the session gate and on row locks.
const DefaultLockWait = 2 * time.Second

// executor runs units of work under the concurrency gate and publishes
// events after commit.
type executor struct {
	store    repository.Store
	gate     *lock.Gate
	events   broadcast.Publisher
	lockWait time.Duration
	now      func() time.Time
}

func newExecutor(store repository.Store, gate *lock.Gate, events broadcast.Publisher, lockWait time.Duration) executor {
	if events == nil {
		events = broadcast.Nop{}
	}
	if gate == nil {
		gate = lock.NewGate()
	}
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return executor{store: store, gate: gate, events: events, lockWait: lockWait, now: time.Now}
}

// inSession runs fn holding the session's gate and a database transaction.
// With fastFail the gate and every row lock must be free immediately.
func (e *executor) inSession(ctx context.Context, sessionID int64, fastFail bool, action string, fn func(tx repository.Tx) error) error {
	wait := e.lockWait
	if fastFail {
		wait = 0
	}
	err := e.gate.Do(ctx, sessionID, wait, func() error {
		return e.store.Atomic(ctx, repository.TxOptions{NoWait: fastFail, LockTimeout: e.lockWait}, fn)
	})
	return classify(err, action)
}

// inTx runs fn in a database transaction without the session gate.
func (e *executor) inTx(ctx context.Context, action string, fn func(tx repository.Tx) error) error {
	err := e.store.Atomic(ctx, repository.TxOptions{LockTimeout: e.lockWait}, fn)
	return classify(err, action)
}

// publish delivers events after commit. Delivery failures are logged only:
// viewers recover from a missed event by reloading the full state.
func (e *executor) publish(ctx context.Context, events ...broadcast.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, ev := range events {
		if err := e.events.Publish(ctx, ev); err != nil {
			log.Error().Err(err).
				Str("event_id", ev.ID).
				Str("type", string(ev.Type)).
				Int64("session_id", ev.SessionID).
				Msg("Failed to broadcast event")
		}
	}
}

// classify turns infrastructure errors into domain rejections where one
// applies and wraps the rest.
func classify(err error, action string) error {
	if err == nil {
		return nil
	}
	var ae *auction.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, lock.ErrBusy), errors.Is(err, repository.ErrLockNotAvailable):
		return auction.ErrLockContention
	case errors.Is(err, repository.ErrNotFound):
		return auction.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// notFound turns a missing row into a NotFound rejection naming it.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return auction.Reject(auction.KindNotFound, format+" not found", args...)
	}
	return err
}

// notUnderHammer rejects a locked player that some session, live or
// paused, still has under the hammer.
func notUnderHammer(ctx context.Context, tx repository.Tx, player *model.Player) error {
	holder, err := tx.SessionHoldingPlayer(ctx, player.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return auction.Reject(auction.KindInvalidState,
		"%s is under the hammer in session \"%s\" (%s)", player.Name, holder.Name, holder.Status)
}

func teamRef(id int64, name string) *broadcast.TeamRef {
	return &broadcast.TeamRef{ID: id, Name: name}
}
