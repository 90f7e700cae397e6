package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/service"
)

type createSessionRequest struct {
	Name string `json:"name"`
}

type bidRequest struct {
	TeamID   int64 `json:"team_id"`
	PlayerID int64 `json:"player_id"`
	// Amount zero takes the next legal bid.
	Amount int64 `json:"amount"`
}

type paddleRequest struct {
	PlayerID int64 `json:"player_id"`
	Amount   int64 `json:"amount"`
}

type iconicRequest struct {
	TeamID   int64 `json:"team_id"`
	PlayerID int64 `json:"player_id"`
}

// pathID reads a positive numeric URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		sendBadRequest(w, "invalid %s: %q", name, raw)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := getBody(r, v); err != nil {
		sendBadRequest(w, "%s", err.Error())
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			sendResponse(w, httpResp{
				Status:  http.StatusServiceUnavailable,
				IsError: true,
				Kind:    auction.KindInternal,
				Error:   "database unavailable",
			})
			return
		}
	}
	sendData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.QueryService.State(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, snap)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.SessionService.ListSessions(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, sessions)
}

func (s *Server) teamInfo(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r, "teamID")
	if !ok {
		return
	}
	info, err := s.deps.QueryService.TeamInfo(r.Context(), teamID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, info)
}

func (s *Server) searchPlayers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		sendBadRequest(w, "q is required")
		return
	}
	limit := service.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			sendBadRequest(w, "invalid limit: %q", raw)
			return
		}
		limit = v
	}

	players, err := s.deps.QueryService.SearchPlayers(r.Context(), q, limit)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, players)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decode(w, r, &req) {
		return
	}
	session, err := s.deps.SessionService.CreateSession(r.Context(), req.Name)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusCreated, session)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	s.sessionCommand(w, r, s.deps.SessionService.StartSession)
}

func (s *Server) pauseSession(w http.ResponseWriter, r *http.Request) {
	s.sessionCommand(w, r, s.deps.SessionService.PauseSession)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	s.sessionCommand(w, r, s.deps.SessionService.EndSession)
}

func (s *Server) sessionCommand(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, id int64) (*service.SessionChange, error)) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	change, err := run(r.Context(), sessionID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, change)
}

func (s *Server) startPlayer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	state, err := s.deps.AuctionService.StartPlayer(r.Context(), sessionID, playerID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, state)
}

func (s *Server) acceptBid(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	var req bidRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TeamID <= 0 || req.PlayerID <= 0 || req.Amount < 0 {
		sendBadRequest(w, "team_id and player_id are required and amount may not be negative")
		return
	}

	amount := req.Amount
	if amount == 0 {
		lot, err := s.deps.QueryService.CurrentLot(r.Context())
		if err != nil {
			sendError(w, r, err)
			return
		}
		if lot.Session.ID != sessionID || lot.Player.ID != req.PlayerID {
			sendError(w, r, auction.ErrWrongPlayer)
			return
		}
		amount = lot.NextBid
	}

	res, err := s.deps.AuctionService.AcceptBid(r.Context(), sessionID, req.TeamID, req.PlayerID, amount)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, res)
}

func (s *Server) callGoing(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	res, err := s.deps.AuctionService.CallGoing(r.Context(), sessionID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, res)
}

func (s *Server) completeSale(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	res, err := s.deps.AuctionService.CompleteSale(r.Context(), sessionID, playerID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, res)
}

func (s *Server) pendingPaddles(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	paddles, err := s.deps.PaddleService.PendingPaddles(r.Context(), sessionID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, paddles)
}

// raisePaddle raises a paddle for the caller's own team.
func (s *Server) raisePaddle(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	id, _ := IdentityFrom(r.Context())
	if id.TeamID == 0 {
		sendError(w, r, auction.Reject(auction.KindInvalidRole, "token does not belong to a team owner"))
		return
	}
	var req paddleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlayerID <= 0 || req.Amount < 0 {
		sendBadRequest(w, "player_id is required and amount may not be negative")
		return
	}

	paddle, err := s.deps.PaddleService.RaisePaddle(r.Context(), sessionID, id.TeamID, req.PlayerID, req.Amount)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusCreated, paddle)
}

func (s *Server) acknowledgePaddle(w http.ResponseWriter, r *http.Request) {
	paddleID, ok := pathID(w, r, "paddleID")
	if !ok {
		return
	}
	paddle, err := s.deps.PaddleService.AcknowledgePaddle(r.Context(), paddleID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, paddle)
}

func (s *Server) assignIconic(w http.ResponseWriter, r *http.Request) {
	var req iconicRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TeamID <= 0 || req.PlayerID <= 0 {
		sendBadRequest(w, "team_id and player_id are required")
		return
	}
	change, err := s.deps.RosterService.AssignIconic(r.Context(), req.TeamID, req.PlayerID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, change)
}

func (s *Server) removeIconic(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	change, err := s.deps.RosterService.RemoveIconic(r.Context(), playerID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, change)
}

func (s *Server) releasePlayer(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r, "teamID")
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	change, err := s.deps.RosterService.ReleasePlayer(r.Context(), teamID, playerID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, change)
}

func (s *Server) resetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r, "teamID")
	if !ok {
		return
	}
	change, err := s.deps.RosterService.ResetTeam(r.Context(), teamID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, change)
}

func (s *Server) requeuePlayer(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	change, err := s.deps.RosterService.RequeuePlayer(r.Context(), playerID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, change)
}
