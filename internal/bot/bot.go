// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"player-auction-bot/internal/auth"
	"player-auction-bot/internal/config"
	"player-auction-bot/internal/handler"
	"player-auction-bot/internal/role"
	"player-auction-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	viewerHandler  *handler.ViewerHandler
	ownerHandler   *handler.OwnerHandler
	auctionHandler *handler.AuctionHandler
	adminHandler   *handler.AdminHandler
	tokenHandler   *handler.TokenHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	Directory      *role.Directory
	Teams          TeamLookup
	AuctionService *service.AuctionService
	SessionService *service.SessionService
	RosterService  *service.RosterService
	PaddleService  *service.PaddleService
	QueryService   *service.QueryService
	// Issuer is optional. Without it /token is not registered.
	Issuer *auth.Issuer
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		viewerHandler:  handler.NewViewerHandler(deps.QueryService),
		ownerHandler:   handler.NewOwnerHandler(deps.PaddleService, deps.QueryService),
		auctionHandler: handler.NewAuctionHandler(deps.AuctionService, deps.PaddleService, deps.QueryService),
		adminHandler:   handler.NewAdminHandler(deps.SessionService, deps.RosterService, deps.QueryService),
	}
	if deps.Issuer != nil {
		b.tokenHandler = handler.NewTokenHandler(deps.Issuer)
	}

	b.registerMiddleware(deps)
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware(deps *Dependencies) {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(AllowedChatsMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
	b.bot.Use(IdentityMiddleware(deps.Directory, deps.Teams))
}

// route is one command and the capability it needs.
type route struct {
	command string
	need    role.Command
	handle  tele.HandlerFunc
}

func (b *Bot) routes() []route {
	routes := []route{
		{"/start", role.ViewState, b.viewerHandler.HandleStart},
		{"/help", role.ViewState, b.viewerHandler.HandleStart},
		{"/status", role.ViewState, b.viewerHandler.HandleStatus},
		{"/team", role.ViewState, b.viewerHandler.HandleTeam},
		{"/search", role.ViewState, b.viewerHandler.HandleSearch},

		{"/paddle", role.RaisePaddle, b.ownerHandler.HandlePaddle},

		{"/next", role.StartPlayer, b.auctionHandler.HandleNext},
		{"/bid", role.AcceptBid, b.auctionHandler.HandleBid},
		{"/going", role.CallGoing, b.auctionHandler.HandleGoing},
		{"/sold", role.CompleteSale, b.auctionHandler.HandleSold},
		{"/paddles", role.ListPaddles, b.auctionHandler.HandlePaddles},
		{"/ack", role.AcknowledgePaddle, b.auctionHandler.HandleAck},

		{"/session_new", role.ManageSession, b.adminHandler.HandleSessionNew},
		{"/session_start", role.ManageSession, b.adminHandler.HandleSessionStart},
		{"/session_pause", role.ManageSession, b.adminHandler.HandleSessionPause},
		{"/session_end", role.ManageSession, b.adminHandler.HandleSessionEnd},
		{"/iconic", role.ManageRoster, b.adminHandler.HandleIconic},
		{"/iconic_remove", role.ManageRoster, b.adminHandler.HandleIconicRemove},
		{"/release", role.ManageRoster, b.adminHandler.HandleRelease},
		{"/reset_team", role.ManageRoster, b.adminHandler.HandleResetTeam},
		{"/requeue", role.ManageRoster, b.adminHandler.HandleRequeue},
	}
	if b.tokenHandler != nil {
		routes = append(routes, route{"/token", role.IssueToken, b.tokenHandler.HandleToken})
	}
	return routes
}

// registerHandlers registers every command behind its capability check.
func (b *Bot) registerHandlers() {
	for _, r := range b.routes() {
		b.bot.Handle(r.command, r.handle, RequireCapability(r.need))
	}
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// Telebot returns the underlying telebot instance.
func (b *Bot) Telebot() *tele.Bot {
	return b.bot
}
