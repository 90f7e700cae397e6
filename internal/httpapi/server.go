// Package httpapi serves the auctioneer console: a JSON command API behind
// bearer tokens, the public dashboard reads and the websocket live feed.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"player-auction-bot/internal/auth"
	"player-auction-bot/internal/role"
	"player-auction-bot/internal/service"
)

// Dependencies holds everything the API routes call into.
type Dependencies struct {
	Issuer         *auth.Issuer
	AuctionService *service.AuctionService
	SessionService *service.SessionService
	RosterService  *service.RosterService
	PaddleService  *service.PaddleService
	QueryService   *service.QueryService
	// LiveFeed serves GET /ws. Optional.
	LiveFeed http.Handler
	// Health is probed by GET /healthz. Optional.
	Health         func(ctx context.Context) error
	AllowedOrigins []string
}

// Server holds the API handlers.
type Server struct {
	deps *Dependencies
}

// NewRouter builds the console router.
func NewRouter(deps *Dependencies) http.Handler {
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler)

	r.Get("/healthz", s.health)
	if deps.LiveFeed != nil {
		r.Handle("/ws", deps.LiveFeed)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.state)
		r.Get("/sessions", s.listSessions)
		r.Get("/teams/{teamID}", s.teamInfo)
		r.Get("/players/search", s.searchPlayers)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(deps.Issuer))

			r.With(requireCap(role.ManageSession)).Post("/sessions", s.createSession)
			r.With(requireCap(role.ManageSession)).Post("/sessions/{sessionID}/start", s.startSession)
			r.With(requireCap(role.ManageSession)).Post("/sessions/{sessionID}/pause", s.pauseSession)
			r.With(requireCap(role.ManageSession)).Post("/sessions/{sessionID}/end", s.endSession)

			r.With(requireCap(role.StartPlayer)).Post("/sessions/{sessionID}/players/{playerID}/start", s.startPlayer)
			r.With(requireCap(role.AcceptBid)).Post("/sessions/{sessionID}/bids", s.acceptBid)
			r.With(requireCap(role.CallGoing)).Post("/sessions/{sessionID}/going", s.callGoing)
			r.With(requireCap(role.CompleteSale)).Post("/sessions/{sessionID}/players/{playerID}/complete", s.completeSale)

			r.With(requireCap(role.ListPaddles)).Get("/sessions/{sessionID}/paddles", s.pendingPaddles)
			r.With(requireCap(role.RaisePaddle)).Post("/sessions/{sessionID}/paddles", s.raisePaddle)
			r.With(requireCap(role.AcknowledgePaddle)).Post("/paddles/{paddleID}/ack", s.acknowledgePaddle)

			r.With(requireCap(role.ManageRoster)).Post("/iconic", s.assignIconic)
			r.With(requireCap(role.ManageRoster)).Delete("/iconic/{playerID}", s.removeIconic)
			r.With(requireCap(role.ManageRoster)).Post("/teams/{teamID}/players/{playerID}/release", s.releasePlayer)
			r.With(requireCap(role.ManageRoster)).Post("/teams/{teamID}/reset", s.resetTeam)
			r.With(requireCap(role.ManageRoster)).Post("/players/{playerID}/requeue", s.requeuePlayer)
		})
	})

	return r
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// within shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
