package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"player-auction-bot/internal/config"
	"player-auction-bot/internal/handler"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/repository"
	"player-auction-bot/internal/role"
)

type fakeContext struct {
	tele.Context
	sender  *tele.User
	chat    *tele.Chat
	values  map[string]interface{}
	replies []string
}

func newContext(userID, chatID int64, chatType tele.ChatType) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID},
		chat:   &tele.Chat{ID: chatID, Type: chatType},
		values: make(map[string]interface{}),
	}
}

func (c *fakeContext) Sender() *tele.User                  { return c.sender }
func (c *fakeContext) Chat() *tele.Chat                    { return c.chat }
func (c *fakeContext) Text() string                        { return "/cmd" }
func (c *fakeContext) Get(key string) interface{}          { return c.values[key] }
func (c *fakeContext) Set(key string, value interface{})   { c.values[key] = value }
func (c *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, what.(string))
	return nil
}

type teamsByOwner map[int64]*model.TeamStanding

func (m teamsByOwner) TeamByOwner(_ context.Context, ownerID int64) (*model.TeamStanding, error) {
	if t, ok := m[ownerID]; ok {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func chain(h tele.HandlerFunc, mws ...tele.MiddlewareFunc) tele.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// TestCapabilityMiddlewareProperty checks that a command runs exactly when
// the resolved role holds the capability.
func TestCapabilityMiddlewareProperty(t *testing.T) {
	commands := []role.Command{
		role.ViewState, role.StartPlayer, role.AcceptBid, role.CallGoing,
		role.CompleteSale, role.AcknowledgePaddle, role.ListPaddles,
		role.RaisePaddle, role.ManageSession, role.ManageRoster, role.IssueToken,
	}

	rapid.Check(t, func(t *rapid.T) {
		admins := rapid.SliceOfDistinct(rapid.Int64Range(1, 50), func(v int64) int64 { return v }).Draw(t, "admins")
		auctioneers := rapid.SliceOfDistinct(rapid.Int64Range(1, 50), func(v int64) int64 { return v }).Draw(t, "auctioneers")
		owners := teamsByOwner{}
		for _, id := range rapid.SliceOfDistinct(rapid.Int64Range(1, 50), func(v int64) int64 { return v }).Draw(t, "owners") {
			owners[id] = &model.TeamStanding{Team: model.Team{ID: id * 100, OwnerID: id}}
		}
		dir := role.NewDirectory(admins, auctioneers)

		userID := rapid.Int64Range(1, 60).Draw(t, "user")
		cmd := rapid.SampledFrom(commands).Draw(t, "command")

		ran := false
		h := chain(func(c tele.Context) error {
			ran = true
			return nil
		}, IdentityMiddleware(dir, owners), RequireCapability(cmd))

		c := newContext(userID, userID, tele.ChatPrivate)
		if err := h(c); err != nil {
			t.Fatalf("handler returned %v", err)
		}

		_, owns := owners[userID]
		want := dir.Resolve(userID, owns)
		if got := handler.RoleOf(c); got != want {
			t.Fatalf("role = %s, want %s", got, want)
		}
		if ran != want.Can(cmd) {
			t.Fatalf("role %s command %s: ran=%v", want, cmd, ran)
		}
		if !ran && len(c.replies) != 1 {
			t.Fatalf("denied command must reply once, got %d replies", len(c.replies))
		}
	})
}

func TestIdentityMiddleware_AttachesOwnedTeam(t *testing.T) {
	team := &model.TeamStanding{Team: model.Team{ID: 7, Name: "Alpha", OwnerID: 42}}
	dir := role.NewDirectory(nil, nil)

	var seen *model.TeamStanding
	h := chain(func(c tele.Context) error {
		seen = handler.TeamOf(c)
		return nil
	}, IdentityMiddleware(dir, teamsByOwner{42: team}))

	c := newContext(42, 42, tele.ChatPrivate)
	require.NoError(t, h(c))
	assert.Equal(t, role.TeamOwner, handler.RoleOf(c))
	assert.Same(t, team, seen)
}

type failingLookup struct{}

func (failingLookup) TeamByOwner(context.Context, int64) (*model.TeamStanding, error) {
	return nil, errors.New("db down")
}

func TestIdentityMiddleware_LookupFailureFallsBackToDirectory(t *testing.T) {
	dir := role.NewDirectory([]int64{1}, nil)
	h := chain(func(tele.Context) error { return nil }, IdentityMiddleware(dir, failingLookup{}))

	admin := newContext(1, 1, tele.ChatPrivate)
	require.NoError(t, h(admin))
	assert.Equal(t, role.Admin, handler.RoleOf(admin))

	other := newContext(2, 2, tele.ChatPrivate)
	require.NoError(t, h(other))
	assert.Equal(t, role.Viewer, handler.RoleOf(other))
	assert.Nil(t, handler.TeamOf(other))
}

// TestAllowedChatsProperty checks that group updates pass exactly when the
// chat is allowed and private chats always pass.
func TestAllowedChatsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		allowed := rapid.SliceOfN(rapid.Int64Range(-1000, -1), 0, 5).Draw(t, "allowed")
		cfg := &config.Config{Bot: config.BotConfig{AllowedChats: allowed}}

		chatID := rapid.Int64Range(-1000, -1).Draw(t, "chat")
		private := rapid.Bool().Draw(t, "private")
		chatType := tele.ChatGroup
		if private {
			chatType = tele.ChatPrivate
		}

		ran := false
		h := AllowedChatsMiddleware(cfg)(func(tele.Context) error {
			ran = true
			return nil
		})
		if err := h(newContext(5, chatID, chatType)); err != nil {
			t.Fatalf("handler returned %v", err)
		}

		want := private || cfg.IsChatAllowed(chatID)
		if ran != want {
			t.Fatalf("chat %d private=%v allowed=%v: ran=%v", chatID, private, allowed, ran)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware()(func(tele.Context) error {
		panic("boom")
	})
	c := newContext(1, 1, tele.ChatPrivate)
	require.NoError(t, h(c))
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "internal error")
}
