package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/broadcast"
	"player-auction-bot/internal/model"
)

func TestAuction_SoldToHighestBidder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 5)
	b := f.team(t, "Bravo", 2, 10000, 5)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")
	f.events.Reset()

	state, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), state.NextBid)

	res, err := f.auction.AcceptBid(ctx, session.ID, a.ID, p.ID, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Player.CurrentBid)
	assert.Equal(t, int64(350), res.NextBid)

	_, err = f.auction.AcceptBid(ctx, session.ID, b.ID, p.ID, 350)
	require.NoError(t, err)
	res, err = f.auction.AcceptBid(ctx, session.ID, a.ID, p.ID, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(450), res.NextBid)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, res.EligibleTeams)

	sale, err := f.auction.CompleteSale(ctx, session.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, sale.Sold)
	assert.Equal(t, int64(400), sale.Amount)
	assert.Equal(t, a.ID, sale.Team.ID)
	assert.True(t, sale.Record.Sold)
	assert.Equal(t, int64(400), sale.Record.FinalAmount)

	assert.Equal(t, int64(9600), f.getTeam(t, a.ID).PurseRemaining)
	assert.Equal(t, int64(10000), f.getTeam(t, b.ID).PurseRemaining)
	assert.Equal(t, 1, f.getTeam(t, a.ID).RegularPlayers)

	got := f.getPlayer(t, p.ID)
	assert.Equal(t, model.PlayerSold, got.Status)
	require.NotNil(t, got.TeamID)
	assert.Equal(t, a.ID, *got.TeamID)

	live, err := f.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, live.CurrentPlayerID)
	assert.Nil(t, live.LastBidTeamID)
	assert.Zero(t, live.BidCallCount)

	assert.Equal(t, []broadcast.EventType{
		broadcast.EventPlayerUpdate,
		broadcast.EventBidUpdate,
		broadcast.EventBidUpdate,
		broadcast.EventBidUpdate,
		broadcast.EventBiddingEnd,
	}, f.events.Types())
}

func TestAuction_UnsoldWithoutBids(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.team(t, "Alpha", 1, 10000, 5)
	q := f.player(t, "Player Q", 500, false)
	session := f.liveSession(t, "Day 1")

	_, err := f.auction.StartPlayer(ctx, session.ID, q.ID)
	require.NoError(t, err)

	sale, err := f.auction.CompleteSale(ctx, session.ID, q.ID)
	require.NoError(t, err)
	assert.False(t, sale.Sold)
	assert.Nil(t, sale.Team)
	assert.False(t, sale.Record.Sold)
	assert.Equal(t, int64(500), sale.Record.FinalAmount)
	assert.Nil(t, sale.Record.TeamID)
	assert.Equal(t, model.PlayerUnsold, f.getPlayer(t, q.ID).Status)
}

func TestAuction_CompleteSaleIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 5)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")
	f.sell(t, session.ID, a, p)

	before := f.getTeam(t, a.ID)
	_, err := f.auction.CompleteSale(ctx, session.ID, p.ID)
	require.Error(t, err)
	assert.Equal(t, auction.KindAlreadyProcessed, auction.KindOf(err))

	after := f.getTeam(t, a.ID)
	assert.Equal(t, before.PurseRemaining, after.PurseRemaining)
	sales, err := f.store.RecentSales(ctx, session.ID, 10)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestAuction_StaleBidIsInvalidIncrement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 5)
	b := f.team(t, "Bravo", 2, 10000, 5)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")

	_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)
	_, err = f.auction.AcceptBid(ctx, session.ID, a.ID, p.ID, 300)
	require.NoError(t, err)

	_, err = f.auction.AcceptBid(ctx, session.ID, b.ID, p.ID, 300)
	require.Error(t, err)
	assert.True(t, errors.Is(err, auction.ErrInvalidIncrement))
	assert.Contains(t, err.Error(), "350")
}

func TestAuction_ConcurrentBidsForSameAmount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.player(t, "Player P", 300, false)
	teams := make([]*model.Team, 8)
	for i := range teams {
		teams[i] = f.team(t, string(rune('A'+i))+" XI", int64(i+1), 10000, 5)
	}
	session := f.liveSession(t, "Day 1")
	_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		kinds   []auction.Kind
	)
	for _, team := range teams {
		wg.Add(1)
		go func(teamID int64) {
			defer wg.Done()
			// A loser that hit the gate retries until it sees the advanced bid.
			for {
				_, err := f.auction.AcceptBid(ctx, session.ID, teamID, p.ID, 300)
				if err != nil && auction.KindOf(err) == auction.KindLockContention {
					continue
				}
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					success++
				} else {
					kinds = append(kinds, auction.KindOf(err))
				}
				return
			}
		}(team.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	require.Len(t, kinds, len(teams)-1)
	for _, k := range kinds {
		assert.Equal(t, auction.KindInvalidIncrement, k)
	}
	assert.Equal(t, int64(300), f.getPlayer(t, p.ID).CurrentBid)

	bids, err := f.store.RecentBids(ctx, session.ID, p.ID, 100)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestAuction_BidRejectedWhenBusy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 5)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")
	_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)

	f.auction.gate.Lock(session.ID)
	_, err = f.auction.AcceptBid(ctx, session.ID, a.ID, p.ID, 300)
	f.auction.gate.Unlock(session.ID)

	require.Error(t, err)
	assert.Equal(t, auction.KindLockContention, auction.KindOf(err))
	assert.True(t, auction.KindOf(err).Retryable())
	assert.Zero(t, f.getPlayer(t, p.ID).CurrentBid)
}

func TestAuction_RosterFullRegardlessOfPurse(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rich := f.team(t, "Rich", 1, 1_000_000, 1)
	filler := f.player(t, "Filler", 100, false)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")
	f.sell(t, session.ID, rich, filler)

	_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)
	_, err = f.auction.AcceptBid(ctx, session.ID, rich.ID, p.ID, 300)
	require.Error(t, err)
	assert.Equal(t, auction.KindRosterFull, auction.KindOf(err))
}

func TestAuction_SaleRevalidatesWinningTeam(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 2)
	icon := f.player(t, "Icon", 0, true)
	p := f.player(t, "Player P", 300, false)
	q := f.player(t, "Player Q", 300, false)
	session := f.liveSession(t, "Day 1")

	f.sell(t, session.ID, a, q)

	_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)
	_, err = f.auction.AcceptBid(ctx, session.ID, a.ID, p.ID, 300)
	require.NoError(t, err)

	// The last slot goes to an iconic player while the bid is open.
	// The iconic path refuses the player under the hammer, not other players.
	_, err = f.roster.AssignIconic(ctx, a.ID, icon.ID)
	require.NoError(t, err)

	_, err = f.auction.CompleteSale(ctx, session.ID, p.ID)
	require.Error(t, err)
	assert.Equal(t, auction.KindRosterFull, auction.KindOf(err))

	got := f.getPlayer(t, p.ID)
	assert.Equal(t, model.PlayerApproved, got.Status)
	assert.Equal(t, int64(9700), f.getTeam(t, a.ID).PurseRemaining)
}

func TestAuction_FailedSaleRollsBack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 5)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")

	_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)
	_, err = f.auction.AcceptBid(ctx, session.ID, a.ID, p.ID, 300)
	require.NoError(t, err)

	f.events.Reset()
	f.store.InjectFault("InsertSale", errors.New("connection reset"))
	_, err = f.auction.CompleteSale(ctx, session.ID, p.ID)
	require.Error(t, err)
	assert.Equal(t, auction.KindInternal, auction.KindOf(err))
	assert.Empty(t, f.events.Events())

	assert.Equal(t, int64(10000), f.getTeam(t, a.ID).PurseRemaining)
	got := f.getPlayer(t, p.ID)
	assert.Equal(t, model.PlayerApproved, got.Status)
	assert.Nil(t, got.TeamID)

	f.store.InjectFault("InsertSale", nil)
	sale, err := f.auction.CompleteSale(ctx, session.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, sale.Sold)
	assert.Equal(t, int64(9700), f.getTeam(t, a.ID).PurseRemaining)
}

func TestAuction_StartPlayerRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.player(t, "Player P", 300, false)
	q := f.player(t, "Player Q", 300, false)

	session, err := f.sessions.CreateSession(ctx, "Day 1")
	require.NoError(t, err)
	_, err = f.auction.StartPlayer(ctx, session.ID, p.ID)
	assert.Equal(t, auction.KindNoActiveSession, auction.KindOf(err))

	_, err = f.sessions.StartSession(ctx, session.ID)
	require.NoError(t, err)

	_, err = f.auction.StartPlayer(ctx, session.ID, 9999)
	assert.Equal(t, auction.KindNotFound, auction.KindOf(err))

	_, err = f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)
	_, err = f.auction.StartPlayer(ctx, session.ID, q.ID)
	assert.Equal(t, auction.KindInvalidState, auction.KindOf(err))

	_, err = f.auction.CompleteSale(ctx, session.ID, q.ID)
	assert.Equal(t, auction.KindWrongPlayer, auction.KindOf(err))

	_, err = f.auction.CompleteSale(ctx, session.ID, p.ID)
	require.NoError(t, err)

	// Unsold in this session: requeued players wait for the next session.
	_, err = f.roster.RequeuePlayer(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.auction.StartPlayer(ctx, session.ID, p.ID)
	assert.Equal(t, auction.KindAlreadyProcessed, auction.KindOf(err))
}

func TestAuction_CallGoingCountdown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.team(t, "Alpha", 1, 10000, 5)
	p := f.player(t, "Player P", 300, false)
	session := f.liveSession(t, "Day 1")

	_, err := f.auction.CallGoing(ctx, session.ID)
	assert.Equal(t, auction.KindInvalidState, auction.KindOf(err))

	_, err = f.auction.StartPlayer(ctx, session.ID, p.ID)
	require.NoError(t, err)

	want := []string{"Going once...", "Going twice...", "SOLD!", "SOLD!"}
	for i, text := range want {
		res, err := f.auction.CallGoing(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, text, res.CallText)
		assert.Equal(t, i >= 2, res.ShouldComplete)
	}

	// The countdown is advisory: the player is still open.
	assert.Equal(t, model.PlayerApproved, f.getPlayer(t, p.ID).Status)

	_, err = f.auction.AcceptBid(ctx, session.ID, a.ID, p.ID, 300)
	require.NoError(t, err)
	live, err := f.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, live.BidCallCount)
}

// TestAuction_LedgerInvariantsProperty drives random bid/sale sequences and
// checks that purses stay within bounds and rosters within capacity.
func TestAuction_LedgerInvariantsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture()
		ctx := context.Background()

		nTeams := rapid.IntRange(2, 4).Draw(rt, "teams")
		teams := make([]*model.Team, nTeams)
		for i := range teams {
			purse := rapid.Int64Range(0, 3000).Draw(rt, "purse")
			slots := rapid.IntRange(1, 3).Draw(rt, "slots")
			teams[i] = f.team(rt, string(rune('A'+i)), int64(i+1), purse, slots)
		}
		session := f.liveSession(rt, "Day 1")

		lots := rapid.IntRange(1, 6).Draw(rt, "lots")
		for l := 0; l < lots; l++ {
			base := rapid.SampledFrom([]int64{100, 200, 300, 500, 800}).Draw(rt, "base")
			p := f.player(rt, "P", base, false)
			_, err := f.auction.StartPlayer(ctx, session.ID, p.ID)
			require.NoError(rt, err)

			bids := rapid.IntRange(0, 8).Draw(rt, "bids")
			current := int64(0)
			for b := 0; b < bids; b++ {
				team := teams[rapid.IntRange(0, nTeams-1).Draw(rt, "bidder")]
				amount := auction.NextBid(current, base)
				if _, err := f.auction.AcceptBid(ctx, session.ID, team.ID, p.ID, amount); err == nil {
					current = amount
				}
			}
			_, err = f.auction.CompleteSale(ctx, session.ID, p.ID)
			if err != nil {
				require.Contains(rt, []auction.Kind{auction.KindRosterFull, auction.KindInsufficientPurse}, auction.KindOf(err))
				_, err = f.sessions.EndSession(ctx, session.ID)
				require.NoError(rt, err)
				session = f.liveSession(rt, "Next")
			}
		}

		all, err := f.store.ListTeams(ctx)
		require.NoError(rt, err)
		for _, team := range all {
			require.GreaterOrEqual(rt, team.PurseRemaining, int64(0))
			require.LessOrEqual(rt, team.PurseRemaining, team.TotalPurse)
			require.LessOrEqual(rt, team.RegularPlayers, team.EffectiveMaxPlayers())
		}
	})
}
