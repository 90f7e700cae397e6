package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCapabilityTable(t *testing.T) {
	bidding := []Command{StartPlayer, AcceptBid, CallGoing, CompleteSale, AcknowledgePaddle}

	for _, cmd := range bidding {
		assert.True(t, Auctioneer.Can(cmd), "auctioneer should run %s", cmd)
		assert.False(t, TeamOwner.Can(cmd), "team owner must not run %s", cmd)
		assert.False(t, Viewer.Can(cmd), "viewer must not run %s", cmd)
		assert.False(t, Admin.Can(cmd), "admin does not run the hammer: %s", cmd)
	}

	assert.True(t, TeamOwner.Can(RaisePaddle))
	assert.False(t, Auctioneer.Can(RaisePaddle))
	assert.True(t, Admin.Can(ManageSession))
	assert.True(t, Admin.Can(ManageRoster))
	assert.False(t, Auctioneer.Can(ManageRoster))
}

func TestViewersNeverMutateProperty(t *testing.T) {
	all := []Command{ViewState, StartPlayer, AcceptBid, CallGoing, CompleteSale, AcknowledgePaddle,
		ListPaddles, RaisePaddle, ManageSession, ManageRoster, IssueToken}

	rapid.Check(t, func(t *rapid.T) {
		cmd := rapid.SampledFrom(all).Draw(t, "cmd")
		if Viewer.Can(cmd) && cmd.Mutates() {
			t.Fatalf("viewer allowed to mutate via %s", cmd)
		}
	})
}

func TestParseRoundTrip(t *testing.T) {
	for _, r := range []Role{Viewer, TeamOwner, Auctioneer, Admin} {
		parsed, err := Parse(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := Parse("umpire")
	assert.Error(t, err)
}

func TestDirectoryResolve(t *testing.T) {
	d := NewDirectory([]int64{1}, []int64{2, 1})

	assert.Equal(t, Admin, d.Resolve(1, true))
	assert.Equal(t, Auctioneer, d.Resolve(2, true))
	assert.Equal(t, TeamOwner, d.Resolve(3, true))
	assert.Equal(t, Viewer, d.Resolve(4, false))
}
