package handler

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/auth"
	"player-auction-bot/internal/broadcast"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/pkg/lock"
	"player-auction-bot/internal/repository"
	"player-auction-bot/internal/repository/memstore"
	"player-auction-bot/internal/role"
	"player-auction-bot/internal/service"
)

// fakeContext implements the parts of tele.Context the handlers use.
type fakeContext struct {
	tele.Context
	sender  *tele.User
	chat    *tele.Chat
	text    string
	values  map[string]interface{}
	replies []string
}

func newContext(userID int64, text string) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID, Username: "user"},
		chat:   &tele.Chat{ID: -100, Type: tele.ChatGroup},
		text:   text,
		values: make(map[string]interface{}),
	}
}

func (c *fakeContext) Sender() *tele.User { return c.sender }
func (c *fakeContext) Chat() *tele.Chat   { return c.chat }
func (c *fakeContext) Text() string       { return c.text }

func (c *fakeContext) Args() []string {
	fields := strings.Fields(c.text)
	if len(fields) <= 1 {
		return []string{}
	}
	return fields[1:]
}

func (c *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, what.(string))
	return nil
}

func (c *fakeContext) Get(key string) interface{}          { return c.values[key] }
func (c *fakeContext) Set(key string, value interface{}) { c.values[key] = value }

func (c *fakeContext) lastReply() string {
	if len(c.replies) == 0 {
		return ""
	}
	return c.replies[len(c.replies)-1]
}

type env struct {
	store    *memstore.Store
	auction  *AuctionHandler
	owner    *OwnerHandler
	viewer   *ViewerHandler
	admin    *AdminHandler
	token    *TokenHandler
	issuer   *auth.Issuer
	alpha    *model.Team
	bravo    *model.Team
	player   *model.Player
	iconic   *model.Player
	sessions *service.SessionService
}

func newEnv(t *testing.T) *env {
	store := memstore.New()
	gate := lock.NewGate()
	events := broadcast.Nop{}
	wait := 200 * time.Millisecond

	auctionSvc := service.NewAuctionService(store, gate, events, wait)
	sessions := service.NewSessionService(store, gate, events, wait)
	roster := service.NewRosterService(store, gate, events, wait)
	paddles := service.NewPaddleService(store, gate, events, time.Minute)
	query := service.NewQueryService(store, 0, 0)
	issuer, err := auth.NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	e := &env{
		store:    store,
		auction:  NewAuctionHandler(auctionSvc, paddles, query),
		owner:    NewOwnerHandler(paddles, query),
		viewer:   NewViewerHandler(query),
		admin:    NewAdminHandler(sessions, roster, query),
		token:    NewTokenHandler(issuer),
		issuer:   issuer,
		sessions: sessions,
	}

	ctx := context.Background()
	err = store.Atomic(ctx, repository.TxOptions{}, func(tx repository.Tx) error {
		e.alpha = &model.Team{Name: "Royal Strikers", OwnerID: 10, TotalPurse: 10000, PurseRemaining: 10000, MaxPlayers: 5}
		e.bravo = &model.Team{Name: "Bravo", OwnerID: 20, TotalPurse: 10000, PurseRemaining: 10000, MaxPlayers: 5}
		e.player = &model.Player{Name: "Virat Kohli", Category: model.CategoryBatsman, BasePrice: 300, Status: model.PlayerApproved}
		e.iconic = &model.Player{Name: "Icon", Category: model.CategoryAllRounder, Status: model.PlayerApproved, IconicEligible: true}
		for _, team := range []*model.Team{e.alpha, e.bravo} {
			if err := tx.InsertTeam(ctx, team); err != nil {
				return err
			}
		}
		if err := tx.InsertPlayer(ctx, e.player); err != nil {
			return err
		}
		return tx.InsertPlayer(ctx, e.iconic)
	})
	require.NoError(t, err)
	return e
}

func (e *env) run(t *testing.T, h tele.HandlerFunc, userID int64, text string) string {
	c := newContext(userID, text)
	require.NoError(t, h(c))
	return c.lastReply()
}

func TestHandlers_FullLot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	reply := e.run(t, e.auction.HandleNext, 1, "/next 1")
	assert.Contains(t, reply, "no active auction session")

	reply = e.run(t, e.admin.HandleSessionNew, 1, "/session_new Day One")
	assert.Contains(t, reply, "\"Day One\" created")
	sessions, err := e.sessions.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	sid := sessions[0].ID

	reply = e.run(t, e.admin.HandleSessionStart, 1, "/session_start "+itoa(sid))
	assert.Contains(t, reply, "is live")

	reply = e.run(t, e.auction.HandleNext, 1, "/next "+itoa(e.player.ID))
	assert.Contains(t, reply, "Virat Kohli is under the hammer")
	assert.Contains(t, reply, "₹300")

	reply = e.run(t, e.auction.HandleBid, 1, "/bid royal strikers")
	assert.Contains(t, reply, "Royal Strikers bid ₹300")
	assert.Contains(t, reply, "Next bid: ₹350")

	reply = e.run(t, e.auction.HandleBid, 1, "/bid Bravo 400")
	assert.Contains(t, reply, "next bid must be: ₹350")

	reply = e.run(t, e.auction.HandleBid, 1, "/bid "+itoa(e.bravo.ID)+" 350")
	assert.Contains(t, reply, "Bravo bid ₹350")

	reply = e.run(t, e.auction.HandleGoing, 1, "/going")
	assert.Contains(t, reply, "Going once...")

	reply = e.run(t, e.auction.HandleSold, 1, "/sold")
	assert.Contains(t, reply, "SOLD! Virat Kohli to Bravo for ₹350")

	reply = e.run(t, e.auction.HandleSold, 1, "/sold")
	assert.Contains(t, reply, "no player is being auctioned")

	reply = e.run(t, e.viewer.HandleTeam, 20, "/team")
	assert.Contains(t, reply, "Bravo")
	assert.Contains(t, reply, "Virat Kohli")
	assert.Contains(t, reply, "spent ₹350")
}

func TestHandlers_Paddle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s, err := e.sessions.CreateSession(ctx, "Day 1")
	require.NoError(t, err)
	_, err = e.sessions.StartSession(ctx, s.ID)
	require.NoError(t, err)
	e.run(t, e.auction.HandleNext, 1, "/next "+itoa(e.player.ID))

	c := newContext(99, "/paddle")
	require.NoError(t, e.owner.HandlePaddle(c))
	assert.Contains(t, c.lastReply(), "do not own a team")

	team, err := e.store.GetTeam(ctx, e.alpha.ID)
	require.NoError(t, err)
	c = newContext(10, "/paddle")
	SetIdentity(c, role.TeamOwner, team)
	require.NoError(t, e.owner.HandlePaddle(c))
	assert.Contains(t, c.lastReply(), "raised a paddle for Virat Kohli at ₹300")

	reply := e.run(t, e.auction.HandlePaddles, 1, "/paddles")
	assert.Contains(t, reply, "team "+itoa(e.alpha.ID))

	paddles, err := e.store.PendingPaddles(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, paddles, 1)

	reply = e.run(t, e.auction.HandleAck, 1, "/ack "+itoa(paddles[0].ID))
	assert.Contains(t, reply, "acknowledged")
	reply = e.run(t, e.auction.HandlePaddles, 1, "/paddles")
	assert.Contains(t, reply, "No raised paddles")
}

func TestHandlers_AdminRoster(t *testing.T) {
	e := newEnv(t)

	reply := e.run(t, e.admin.HandleIconic, 1, "/iconic Royal Strikers "+itoa(e.iconic.ID))
	assert.Contains(t, reply, "Icon assigned to Royal Strikers")

	reply = e.run(t, e.admin.HandleIconic, 1, "/iconic Bravo "+itoa(e.player.ID))
	assert.Contains(t, reply, "not eligible")

	reply = e.run(t, e.admin.HandleIconicRemove, 1, "/iconic_remove "+itoa(e.iconic.ID))
	assert.Contains(t, reply, "Icon removed from Royal Strikers")

	reply = e.run(t, e.admin.HandleResetTeam, 1, "/reset_team Nowhere")
	assert.Contains(t, reply, "not found")

	reply = e.run(t, e.admin.HandleResetTeam, 1, "/reset_team Bravo")
	assert.Contains(t, reply, "Bravo reset, 0 players released")

	reply = e.run(t, e.admin.HandleRequeue, 1, "/requeue abc")
	assert.Contains(t, reply, "invalid player id")

	reply = e.run(t, e.admin.HandleRelease, 1, "/release Bravo")
	assert.Contains(t, reply, "Usage")
}

func TestHandlers_SearchAndStatus(t *testing.T) {
	e := newEnv(t)

	reply := e.run(t, e.viewer.HandleSearch, 5, "/search kohli")
	assert.Contains(t, reply, "Virat Kohli")

	reply = e.run(t, e.viewer.HandleSearch, 5, "/search")
	assert.Contains(t, reply, "Usage")

	reply = e.run(t, e.viewer.HandleStatus, 5, "/status")
	assert.Contains(t, reply, "No live auction session")
	assert.Contains(t, reply, "Royal Strikers: purse ₹10000 / ₹10000, slots left 5")
}

func TestHandlers_StartListsCommandsForRole(t *testing.T) {
	e := newEnv(t)

	c := newContext(5, "/start")
	SetIdentity(c, role.Viewer, nil)
	require.NoError(t, e.viewer.HandleStart(c))
	assert.Contains(t, c.lastReply(), "/status")
	assert.NotContains(t, c.lastReply(), "/bid")

	c = newContext(1, "/start")
	SetIdentity(c, role.Auctioneer, nil)
	require.NoError(t, e.viewer.HandleStart(c))
	assert.Contains(t, c.lastReply(), "/bid")
	assert.NotContains(t, c.lastReply(), "/reset_team")
}

func TestHandlers_Token(t *testing.T) {
	e := newEnv(t)

	c := newContext(1, "/token")
	require.NoError(t, e.token.HandleToken(c))
	assert.Contains(t, c.lastReply(), "private chat")

	c = newContext(1, "/token")
	c.chat = &tele.Chat{ID: 1, Type: tele.ChatPrivate}
	SetIdentity(c, role.Auctioneer, nil)
	require.NoError(t, e.token.HandleToken(c))

	lines := strings.Split(c.lastReply(), "\n")
	claims, err := e.issuer.ValidateToken(lines[len(lines)-1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, role.Auctioneer, claims.Role)
}

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		args    []string
		ref     string
		amount  int64
		wantErr bool
	}{
		{args: []string{"3"}, ref: "3"},
		{args: []string{"3", "350"}, ref: "3", amount: 350},
		{args: []string{"Royal", "Strikers", "800"}, ref: "Royal Strikers", amount: 800},
		{args: []string{"Royal", "Strikers"}, ref: "Royal Strikers"},
		{args: []string{"Bravo", "-5"}, wantErr: true},
		{args: nil, wantErr: true},
	}
	for _, tt := range tests {
		ref, amount, err := splitAmount(tt.args)
		if tt.wantErr {
			assert.Error(t, err, tt.args)
			continue
		}
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.ref, ref)
		assert.Equal(t, tt.amount, amount)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
