// Package lock provides the in-process side of the auction concurrency gate:
// one mutex per auction session, with a non-blocking path for the bid hot
// path and a bounded wait for everything else.
package lock

import (
	"context"
	"sync"
	"time"
)

// retryInterval is how often a bounded wait retries the mutex.
const retryInterval = 5 * time.Millisecond

type entry struct {
	mu   sync.Mutex
	refs int
}

// Gate serialises commands per key (an auction session id).
// Entries are dropped once nobody holds or waits on them.
type Gate struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewGate creates an empty Gate.
func NewGate() *Gate {
	return &Gate{entries: make(map[int64]*entry)}
}

func (g *Gate) acquire(key int64) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok {
		e = &entry{}
		g.entries[key] = e
	}
	e.refs++
	return e
}

func (g *Gate) release(key int64, e *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(g.entries, key)
	}
}

// Lock blocks until the key is held.
func (g *Gate) Lock(key int64) {
	g.acquire(key).mu.Lock()
}

// Unlock releases a key held by Lock, TryLock or LockWithTimeout.
func (g *Gate) Unlock(key int64) {
	g.mu.Lock()
	e, ok := g.entries[key]
	g.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	g.release(key, e)
}

// TryLock takes the key only if it is free right now.
func (g *Gate) TryLock(key int64) bool {
	e := g.acquire(key)
	if e.mu.TryLock() {
		return true
	}
	g.release(key, e)
	return false
}

// LockWithTimeout waits up to timeout (or until ctx ends) for the key.
func (g *Gate) LockWithTimeout(ctx context.Context, key int64, timeout time.Duration) bool {
	e := g.acquire(key)
	if e.mu.TryLock() {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.release(key, e)
			return false
		case <-timer.C:
			g.release(key, e)
			return false
		case <-ticker.C:
			if e.mu.TryLock() {
				return true
			}
		}
	}
}

// Do runs fn while holding key. With wait == 0 the key must be free
// immediately, otherwise Do waits up to wait. ErrBusy is returned when the
// key could not be taken.
func (g *Gate) Do(ctx context.Context, key int64, wait time.Duration, fn func() error) error {
	var ok bool
	if wait <= 0 {
		ok = g.TryLock(key)
	} else {
		ok = g.LockWithTimeout(ctx, key, wait)
	}
	if !ok {
		return ErrBusy
	}
	defer g.Unlock(key)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// IsLocked is a point-in-time check used by diagnostics.
func (g *Gate) IsLocked(key int64) bool {
	g.mu.Lock()
	e, ok := g.entries[key]
	g.mu.Unlock()
	if !ok {
		return false
	}
	if e.mu.TryLock() {
		e.mu.Unlock()
		return false
	}
	return true
}

// Size returns the number of keys currently tracked.
func (g *Gate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
