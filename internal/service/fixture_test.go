package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"player-auction-bot/internal/broadcast"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/pkg/lock"
	"player-auction-bot/internal/repository"
	"player-auction-bot/internal/repository/memstore"
)

type fixture struct {
	store    *memstore.Store
	events   *broadcast.Recorder
	auction  *AuctionService
	sessions *SessionService
	roster   *RosterService
	paddles  *PaddleService
	query    *QueryService
}

func newFixture() *fixture {
	store := memstore.New()
	events := &broadcast.Recorder{}
	gate := lock.NewGate()
	wait := 200 * time.Millisecond
	return &fixture{
		store:    store,
		events:   events,
		auction:  NewAuctionService(store, gate, events, wait),
		sessions: NewSessionService(store, gate, events, wait),
		roster:   NewRosterService(store, gate, events, wait),
		paddles:  NewPaddleService(store, gate, events, time.Minute),
		query:    NewQueryService(store, 0, 0),
	}
}

func (f *fixture) team(t require.TestingT, name string, owner, purse int64, maxPlayers int) *model.Team {
	team := &model.Team{
		Name:           name,
		OwnerID:        owner,
		TotalPurse:     purse,
		PurseRemaining: purse,
		MaxPlayers:     maxPlayers,
	}
	err := f.store.Atomic(context.Background(), repository.TxOptions{}, func(tx repository.Tx) error {
		return tx.InsertTeam(context.Background(), team)
	})
	require.NoError(t, err)
	return team
}

func (f *fixture) player(t require.TestingT, name string, basePrice int64, iconicEligible bool) *model.Player {
	player := &model.Player{
		Name:           name,
		Category:       model.CategoryBatsman,
		BasePrice:      basePrice,
		Status:         model.PlayerApproved,
		IconicEligible: iconicEligible,
	}
	err := f.store.Atomic(context.Background(), repository.TxOptions{}, func(tx repository.Tx) error {
		return tx.InsertPlayer(context.Background(), player)
	})
	require.NoError(t, err)
	return player
}

// sell runs a whole lot: start, one opening bid, complete.
func (f *fixture) sell(t require.TestingT, sessionID int64, team *model.Team, player *model.Player) {
	ctx := context.Background()
	_, err := f.auction.StartPlayer(ctx, sessionID, player.ID)
	require.NoError(t, err)
	_, err = f.auction.AcceptBid(ctx, sessionID, team.ID, player.ID, player.BasePrice)
	require.NoError(t, err)
	res, err := f.auction.CompleteSale(ctx, sessionID, player.ID)
	require.NoError(t, err)
	require.True(t, res.Sold)
}

func (f *fixture) liveSession(t require.TestingT, name string) *model.AuctionSession {
	ctx := context.Background()
	session, err := f.sessions.CreateSession(ctx, name)
	require.NoError(t, err)
	change, err := f.sessions.StartSession(ctx, session.ID)
	require.NoError(t, err)
	return change.Session
}

func (f *fixture) getTeam(t *testing.T, id int64) *model.TeamStanding {
	team, err := f.store.GetTeam(context.Background(), id)
	require.NoError(t, err)
	return team
}

func (f *fixture) getPlayer(t *testing.T, id int64) *model.Player {
	player, err := f.store.GetPlayer(context.Background(), id)
	require.NoError(t, err)
	return player
}
