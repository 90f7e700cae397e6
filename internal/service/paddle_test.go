package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/broadcast"
)

func TestPaddle_RaiseAndAcknowledge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 5)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")
	_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)

	f.events.Reset()
	paddle, err := f.paddles.RaisePaddle(ctx, session.ID, a.ID, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(300), paddle.Amount)
	assert.False(t, paddle.Acknowledged)

	// A paddle is advisory: no bid was placed.
	assert.Zero(t, f.getPlayer(t, p.ID).CurrentBid)

	pending, err := f.paddles.PendingPaddles(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, paddle.ID, pending[0].ID)

	acked, err := f.paddles.AcknowledgePaddle(ctx, paddle.ID)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.NotNil(t, acked.AcknowledgedAt)

	_, err = f.paddles.AcknowledgePaddle(ctx, paddle.ID)
	require.NoError(t, err)

	pending, err = f.paddles.PendingPaddles(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, []broadcast.EventType{
		broadcast.EventPaddleRaised,
		broadcast.EventPaddleAcknowledged,
	}, f.events.Types())

	_, err = f.paddles.AcknowledgePaddle(ctx, 9999)
	assert.Equal(t, auction.KindNotFound, auction.KindOf(err))
}

func TestPaddle_Debounce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 5)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")
	_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	f.paddles.now = func() time.Time { return now }

	_, err = f.paddles.RaisePaddle(ctx, session.ID, a.ID, p.ID, 0)
	require.NoError(t, err)

	_, err = f.paddles.RaisePaddle(ctx, session.ID, a.ID, p.ID, 0)
	require.Error(t, err)
	assert.Equal(t, auction.KindRateLimited, auction.KindOf(err))

	now = now.Add(2 * time.Minute)
	_, err = f.paddles.RaisePaddle(ctx, session.ID, a.ID, p.ID, 0)
	require.NoError(t, err)
}

func TestPaddle_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	poor := f.team(t, "Poor", 1, 100, 5)
	p := f.player(t, "Player P", 300, false)
	q := f.player(t, "Player Q", 300, false)
	session := f.liveSession(t, "Day 1")

	_, err := f.paddles.RaisePaddle(ctx, session.ID, poor.ID, p.ID, 0)
	assert.Equal(t, auction.KindWrongPlayer, auction.KindOf(err))

	_, err = f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)

	_, err = f.paddles.RaisePaddle(ctx, session.ID, poor.ID, q.ID, 0)
	assert.Equal(t, auction.KindWrongPlayer, auction.KindOf(err))

	_, err = f.paddles.RaisePaddle(ctx, session.ID, poor.ID, p.ID, 0)
	assert.Equal(t, auction.KindInsufficientPurse, auction.KindOf(err))

	_, err = f.paddles.RaisePaddle(ctx, session.ID, 9999, p.ID, 0)
	assert.Equal(t, auction.KindNotFound, auction.KindOf(err))

	_, err = f.sessions.PauseSession(ctx, session.ID)
	require.NoError(t, err)
	_, err = f.paddles.RaisePaddle(ctx, session.ID, poor.ID, p.ID, 0)
	assert.Equal(t, auction.KindNoActiveSession, auction.KindOf(err))
}
