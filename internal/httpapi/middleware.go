package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/auth"
	"player-auction-bot/internal/role"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	identityKey
)

const requestIDHeader = "X-Request-ID"

// Identity is the console user behind an authenticated request.
type Identity struct {
	UserID int64
	Role   role.Role
	TeamID int64
}

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// requestID tags each request with a uuid, reusing a well formed one sent
// by the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("request_id", RequestID(r.Context())).
					Str("path", r.URL.Path).
					Msg("Recovered from panic in HTTP handler")
				sendResponse(w, httpResp{
					Status:  http.StatusInternalServerError,
					IsError: true,
					Kind:    auction.KindInternal,
					Error:   "internal error, please try again",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate requires a valid bearer token and stores its identity.
// Without an issuer every command route is closed.
func authenticate(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || issuer == nil {
				sendResponse(w, httpResp{Status: http.StatusUnauthorized, IsError: true, Kind: auction.KindInvalidRole, Error: "Unauthorized"})
				return
			}

			claims, err := issuer.ValidateToken(token)
			if err != nil {
				log.Debug().Err(err).Str("request_id", RequestID(r.Context())).Msg("Rejected console token")
				sendResponse(w, httpResp{Status: http.StatusUnauthorized, IsError: true, Kind: auction.KindInvalidRole, Error: "Unauthorized"})
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, Identity{
				UserID: claims.UserID,
				Role:   claims.Role,
				TeamID: claims.TeamID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireCap rejects requests whose role lacks the capability for cmd.
func requireCap(cmd role.Command) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFrom(r.Context())
			if !id.Role.Can(cmd) {
				log.Warn().
					Int64("user_id", id.UserID).
					Str("role", id.Role.String()).
					Str("command", string(cmd)).
					Msg("Command denied for role")
				sendError(w, r, auction.ErrInvalidRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
