package auction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"player-auction-bot/internal/model"
)

func int64Ptr(v int64) *int64 { return &v }

func liveSession(currentPlayer int64) *model.AuctionSession {
	return &model.AuctionSession{ID: 1, Status: model.SessionLive, CurrentPlayerID: int64Ptr(currentPlayer)}
}

func standing(purse int64, maxPlayers, iconic, regular int) *model.TeamStanding {
	return &model.TeamStanding{
		Team: model.Team{
			ID:                 10,
			Name:               "Strikers",
			TotalPurse:         10000,
			PurseRemaining:     purse,
			MaxPlayers:         maxPlayers,
			IconicPlayersCount: iconic,
		},
		RegularPlayers: regular,
	}
}

func TestIncrement(t *testing.T) {
	tests := []struct {
		current  int64
		expected int64
	}{
		{300, 50},
		{650, 50},
		{699, 50},
		{700, 100},
		{1500, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Increment(tt.current), "current=%d", tt.current)
	}
}

func TestNextBid(t *testing.T) {
	assert.Equal(t, int64(300), NextBid(0, 300))
	assert.Equal(t, int64(350), NextBid(300, 300))
	assert.Equal(t, int64(700), NextBid(650, 300))
	assert.Equal(t, int64(800), NextBid(700, 300))
}

func TestValidateBid_CheckOrder(t *testing.T) {
	player := &model.Player{ID: 5, BasePrice: 300, Status: model.PlayerApproved}

	tests := []struct {
		name    string
		req     BidRequest
		want    Kind
		wantNil bool
	}{
		{
			name: "no session",
			req:  BidRequest{Session: nil, Player: player, Team: standing(1000, 16, 0, 0), Amount: 300},
			want: KindNoActiveSession,
		},
		{
			name: "paused session",
			req: BidRequest{
				Session: &model.AuctionSession{Status: model.SessionPaused, CurrentPlayerID: int64Ptr(5)},
				Player:  player, Team: standing(1000, 16, 0, 0), Amount: 300,
			},
			want: KindNoActiveSession,
		},
		{
			name: "other player under the hammer",
			req:  BidRequest{Session: liveSession(6), Player: player, Team: standing(1000, 16, 0, 0), Amount: 300},
			want: KindWrongPlayer,
		},
		{
			name: "no player selected",
			req: BidRequest{
				Session: &model.AuctionSession{Status: model.SessionLive},
				Player:  player, Team: standing(1000, 16, 0, 0), Amount: 300,
			},
			want: KindWrongPlayer,
		},
		{
			name: "roster full beats purse",
			req:  BidRequest{Session: liveSession(5), Player: player, Team: standing(0, 16, 2, 14), Amount: 300},
			want: KindRosterFull,
		},
		{
			name: "insufficient purse",
			req:  BidRequest{Session: liveSession(5), Player: player, Team: standing(299, 16, 0, 3), Amount: 300},
			want: KindInsufficientPurse,
		},
		{
			name: "opening bid above base",
			req:  BidRequest{Session: liveSession(5), Player: player, Team: standing(1000, 16, 0, 3), Amount: 350},
			want: KindInvalidIncrement,
		},
		{
			name:    "opening bid at base",
			req:     BidRequest{Session: liveSession(5), Player: player, Team: standing(1000, 16, 0, 3), Amount: 300},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBid(tt.req)
			if tt.wantNil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.NotEmpty(t, ReasonOf(err))
		})
	}
}

func TestValidateSale(t *testing.T) {
	require.NoError(t, ValidateSale(standing(400, 16, 0, 15), 400))
	assert.True(t, errors.Is(ValidateSale(standing(400, 16, 1, 15), 400), ErrRosterFull))
	assert.True(t, errors.Is(ValidateSale(standing(399, 16, 0, 0), 400), ErrInsufficientPurse))
}

// The opening bid must equal the base price exactly.
func TestOpeningBidProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Int64Range(1, 5000).Draw(t, "base")
		amount := rapid.Int64Range(1, 20000).Draw(t, "amount")

		player := &model.Player{ID: 5, BasePrice: base, Status: model.PlayerApproved}
		err := ValidateBid(BidRequest{
			Session: liveSession(5),
			Player:  player,
			Team:    standing(1_000_000, 16, 0, 0),
			Amount:  amount,
		})

		if amount == base && err != nil {
			t.Fatalf("bid at base price %d rejected: %v", base, err)
		}
		if amount != base && KindOf(err) != KindInvalidIncrement {
			t.Fatalf("opening bid %d with base %d: got %v, want invalid increment", amount, base, err)
		}
	})
}

// After the opening bid only current+50 (below 700) or current+100 is legal.
func TestIncrementLadderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := rapid.Int64Range(1, 5000).Draw(t, "current")
		amount := rapid.Int64Range(1, 6000).Draw(t, "amount")

		player := &model.Player{ID: 5, BasePrice: 100, CurrentBid: current, Status: model.PlayerApproved}
		err := ValidateBid(BidRequest{
			Session: liveSession(5),
			Player:  player,
			Team:    standing(1_000_000, 16, 0, 0),
			Amount:  amount,
		})

		step := int64(100)
		if current < 700 {
			step = 50
		}
		legal := current + step
		if amount == legal && err != nil {
			t.Fatalf("legal bid %d over %d rejected: %v", amount, current, err)
		}
		if amount != legal && KindOf(err) != KindInvalidIncrement {
			t.Fatalf("bid %d over %d: got %v, want invalid increment", amount, current, err)
		}
	})
}

// A team without a free slot is rejected whatever its purse.
func TestRosterFullRegardlessOfPurseProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxPlayers := rapid.IntRange(1, 25).Draw(t, "maxPlayers")
		iconic := rapid.IntRange(0, model.MaxIconicPlayers).Draw(t, "iconic")
		purse := rapid.Int64Range(0, 1_000_000).Draw(t, "purse")
		regular := maxPlayers - iconic
		if regular < 0 {
			regular = 0
		}

		team := standing(purse, maxPlayers, iconic, regular)
		err := ValidateBid(BidRequest{
			Session: liveSession(5),
			Player:  &model.Player{ID: 5, BasePrice: 300},
			Team:    team,
			Amount:  300,
		})
		if KindOf(err) != KindRosterFull {
			t.Fatalf("expected roster full, got %v", err)
		}
	})
}

func TestCallCountdown(t *testing.T) {
	count := 0
	var texts []string
	for i := 0; i < 5; i++ {
		count = NextCall(count)
		texts = append(texts, CallText(count))
	}
	assert.Equal(t, []string{"Going once...", "Going twice...", "SOLD!", "SOLD!", "SOLD!"}, texts)
	assert.Equal(t, MaxCalls, count)
	assert.True(t, ShouldComplete(count))
	assert.False(t, ShouldComplete(2))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindLockContention, KindOf(ErrLockContention))
	assert.True(t, KindLockContention.Retryable())
	assert.False(t, KindRosterFull.Retryable())
	assert.Equal(t, "internal error, please try again", ReasonOf(errors.New("pg down")))
}
