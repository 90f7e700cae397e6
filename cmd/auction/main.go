// Package main is the entry point for the player auction service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"player-auction-bot/internal/auth"
	"player-auction-bot/internal/bot"
	"player-auction-bot/internal/broadcast"
	"player-auction-bot/internal/config"
	"player-auction-bot/internal/httpapi"
	"player-auction-bot/internal/pkg/db"
	"player-auction-bot/internal/pkg/lock"
	"player-auction-bot/internal/repository"
	"player-auction-bot/internal/role"
	"player-auction-bot/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(&cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	store := repository.NewPostgresStore(dbPool.Pool)

	// Local viewers always get events. With Redis enabled, commands publish
	// to the channel and every instance's relay feeds its own hub.
	hub := broadcast.NewHub(cfg.HTTP.AllowedOrigins)
	local := broadcast.Fanout{hub}

	var (
		events      broadcast.Publisher = &local
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		events = broadcast.NewRedisPublisher(redisClient, cfg.Redis.Channel)
		log.Info().Str("channel", cfg.Redis.Channel).Msg("Event relay enabled")
	}

	gate := lock.NewGate()
	auctionService := service.NewAuctionService(store, gate, events, cfg.Auction.LockWait)
	sessionService := service.NewSessionService(store, gate, events, cfg.Auction.LockWait)
	rosterService := service.NewRosterService(store, gate, events, cfg.Auction.LockWait)
	paddleService := service.NewPaddleService(store, gate, events, cfg.Auction.PaddleCooldown)
	queryService := service.NewQueryService(store, cfg.Auction.RecentBids, cfg.Auction.RecentSales)

	var issuer *auth.Issuer
	if cfg.HTTP.JWTSecret != "" {
		issuer, err = auth.NewIssuer(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create token issuer")
		}
	}

	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(&bot.Dependencies{
			Config:         cfg,
			Directory:      role.NewDirectory(cfg.Roles.Admins, cfg.Roles.Auctioneers),
			Teams:          store,
			AuctionService: auctionService,
			SessionService: sessionService,
			RosterService:  rosterService,
			PaddleService:  paddleService,
			QueryService:   queryService,
			Issuer:         issuer,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		if cfg.Bot.AuctionChatID != 0 {
			local = append(local, broadcast.NewAnnouncer(telegramBot.Telebot(), cfg.Bot.AuctionChatID))
			log.Info().Int64("chat_id", cfg.Bot.AuctionChatID).Msg("Auction chat announcements enabled")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if redisClient != nil {
		relay := broadcast.NewRelay(redisClient, cfg.Redis.Channel, &local)
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	if cfg.HTTP.Addr != "" {
		router := httpapi.NewRouter(&httpapi.Dependencies{
			Issuer:         issuer,
			AuctionService: auctionService,
			SessionService: sessionService,
			RosterService:  rosterService,
			PaddleService:  paddleService,
			QueryService:   queryService,
			LiveFeed:       hub,
			Health:         dbPool.HealthCheck,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		})
		g.Go(func() error {
			defer hub.Close()
			return httpapi.Serve(gctx, cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout)
		})
	}

	if telegramBot != nil {
		g.Go(func() error {
			telegramBot.Start()
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			telegramBot.Stop()
			return nil
		})
	}

	<-gctx.Done()
	log.Info().Msg("Shutting down")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		return
	}
	log.Info().Msg("Service stopped gracefully")
}

func setupLogging(cfg *config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.Pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
