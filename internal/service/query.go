package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/repository"
)

// Default sizes of the state snapshot lists.
const (
	DefaultRecentBids  = 5
	DefaultRecentSales = 10
	DefaultSearchLimit = 10
)

// TeamSummary is a team as shown on the auction board.
type TeamSummary struct {
	*model.TeamStanding
	EffectiveMaxPlayers int   `json:"effective_max_players"`
	SlotsRemaining      int   `json:"slots_remaining"`
	PurseSpent          int64 `json:"purse_spent"`
	CanBid              bool  `json:"can_bid"`
}

func summarize(t *model.TeamStanding, amount int64) TeamSummary {
	return TeamSummary{
		TeamStanding:        t,
		EffectiveMaxPlayers: t.EffectiveMaxPlayers(),
		SlotsRemaining:      t.SlotsRemaining(),
		PurseSpent:          t.PurseSpent(),
		CanBid:              t.CanBid(amount),
	}
}

// TeamInfo is a team together with its roster.
type TeamInfo struct {
	TeamSummary
	Players      []*model.Player `json:"players"`
	MaxIconic    int             `json:"max_iconic"`
	CanAddIconic bool            `json:"can_add_iconic"`
}

// Snapshot is the full auction state a reconnecting viewer loads.
type Snapshot struct {
	Session        *model.AuctionSession `json:"session"`
	CurrentPlayer  *model.Player         `json:"current_player,omitempty"`
	NextBid        int64                 `json:"next_bid,omitempty"`
	RecentBids     []*model.Bid          `json:"recent_bids"`
	Teams          []TeamSummary         `json:"teams"`
	PendingPaddles []*model.PaddleRaise  `json:"pending_paddles"`
	RecentSales    []*model.SaleRecord   `json:"recent_sales"`
}

// QueryService answers read-only questions about the auction. It takes no
// locks and may observe a state a moment older than a concurrent command.
type QueryService struct {
	store       repository.Reader
	recentBids  int
	recentSales int
}

// NewQueryService creates a new QueryService instance.
func NewQueryService(store repository.Reader, recentBids, recentSales int) *QueryService {
	if recentBids <= 0 {
		recentBids = DefaultRecentBids
	}
	if recentSales <= 0 {
		recentSales = DefaultRecentSales
	}
	return &QueryService{store: store, recentBids: recentBids, recentSales: recentSales}
}

// LiveSession returns the live session or ErrNoActiveSession.
func (s *QueryService) LiveSession(ctx context.Context) (*model.AuctionSession, error) {
	session, err := s.store.LiveSession(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auction.ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get live session: %w", err)
	}
	return session, nil
}

// Lot is the player currently under the hammer.
type Lot struct {
	Session *model.AuctionSession `json:"session"`
	Player  *model.Player         `json:"player"`
	NextBid int64                 `json:"next_bid"`
}

// CurrentLot returns the live session's current player.
func (s *QueryService) CurrentLot(ctx context.Context) (*Lot, error) {
	session, err := s.LiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.CurrentPlayerID == nil {
		return nil, auction.Reject(auction.KindInvalidState, "no player is being auctioned")
	}
	player, err := s.store.GetPlayer(ctx, *session.CurrentPlayerID)
	if err != nil {
		return nil, classify(notFound(err, "player %d", *session.CurrentPlayerID), "get current player")
	}
	return &Lot{
		Session: session,
		Player:  player,
		NextBid: auction.NextBid(player.CurrentBid, player.BasePrice),
	}, nil
}

// FindTeam resolves a team by id or by case-insensitive name.
func (s *QueryService) FindTeam(ctx context.Context, ref string) (*model.TeamStanding, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		team, err := s.store.GetTeam(ctx, id)
		if err != nil {
			return nil, classify(notFound(err, "team %d", id), "get team")
		}
		return team, nil
	}

	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	for _, t := range teams {
		if strings.EqualFold(t.Name, ref) {
			return t, nil
		}
	}
	return nil, auction.Reject(auction.KindNotFound, "team %q not found", ref)
}

// State returns the full auction state. Without a live session only the
// teams are filled in.
func (s *QueryService) State(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		RecentBids:     []*model.Bid{},
		PendingPaddles: []*model.PaddleRaise{},
		RecentSales:    []*model.SaleRecord{},
	}

	session, err := s.LiveSession(ctx)
	switch {
	case err == nil:
		snap.Session = session
	case !errors.Is(err, auction.ErrNoActiveSession):
		return nil, err
	}

	if session != nil {
		if err := s.fillSession(ctx, snap, session); err != nil {
			return nil, err
		}
	}

	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	snap.Teams = make([]TeamSummary, len(teams))
	for i, t := range teams {
		snap.Teams[i] = summarize(t, snap.NextBid)
	}
	return snap, nil
}

func (s *QueryService) fillSession(ctx context.Context, snap *Snapshot, session *model.AuctionSession) error {
	if session.CurrentPlayerID != nil {
		player, err := s.store.GetPlayer(ctx, *session.CurrentPlayerID)
		if err != nil {
			return fmt.Errorf("failed to get current player: %w", err)
		}
		snap.CurrentPlayer = player
		snap.NextBid = auction.NextBid(player.CurrentBid, player.BasePrice)

		bids, err := s.store.RecentBids(ctx, session.ID, player.ID, s.recentBids)
		if err != nil {
			return fmt.Errorf("failed to list recent bids: %w", err)
		}
		snap.RecentBids = bids
	}

	paddles, err := s.store.PendingPaddles(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to list pending paddles: %w", err)
	}
	snap.PendingPaddles = paddles

	sales, err := s.store.RecentSales(ctx, session.ID, s.recentSales)
	if err != nil {
		return fmt.Errorf("failed to list recent sales: %w", err)
	}
	snap.RecentSales = sales
	return nil
}

// TeamInfo returns a team with its roster, iconic players first.
func (s *QueryService) TeamInfo(ctx context.Context, teamID int64) (*TeamInfo, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, classify(notFound(err, "team %d", teamID), "get team")
	}
	return s.teamInfo(ctx, team)
}

// TeamForOwner returns the team owned by a Telegram user.
func (s *QueryService) TeamForOwner(ctx context.Context, ownerID int64) (*TeamInfo, error) {
	team, err := s.store.TeamByOwner(ctx, ownerID)
	if err != nil {
		return nil, classify(notFound(err, "team of user %d", ownerID), "get team")
	}
	return s.teamInfo(ctx, team)
}

func (s *QueryService) teamInfo(ctx context.Context, team *model.TeamStanding) (*TeamInfo, error) {
	players, err := s.store.TeamPlayers(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team players: %w", err)
	}
	return &TeamInfo{
		TeamSummary:  summarize(team, 0),
		Players:      players,
		MaxIconic:    model.MaxIconicPlayers,
		CanAddIconic: team.IconicPlayersCount < model.MaxIconicPlayers && team.SlotsRemaining() > 0,
	}, nil
}

// playerSource adapts players to fuzzy.Source.
type playerSource []*model.Player

func (p playerSource) Len() int { return len(p) }

func (p playerSource) String(i int) string {
	s := strings.ToLower(p[i].Name)
	if p[i].RollNumber != nil {
		s += " " + strings.ToLower(*p[i].RollNumber)
	}
	return s
}

// SearchPlayers fuzzy-matches approved players by name or roll number,
// best match first.
func (s *QueryService) SearchPlayers(ctx context.Context, query string, limit int) ([]*model.Player, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []*model.Player{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	players, err := s.store.ListPlayers(ctx, model.PlayerApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	source := playerSource(players)
	matches := fuzzy.FindFrom(query, source)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*model.Player, len(matches))
	for i, m := range matches {
		out[i] = source[m.Index]
	}
	return out, nil
}
