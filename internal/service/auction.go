package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"player-auction-bot/internal/auction"
	"player-auction-bot/internal/broadcast"
	"player-auction-bot/internal/model"
	"player-auction-bot/internal/pkg/lock"
	"player-auction-bot/internal/repository"
)

// PlayerState is the result of putting a player under the hammer.
type PlayerState struct {
	SessionID int64         `json:"session_id"`
	Player    *model.Player `json:"player"`
	NextBid   int64         `json:"next_bid"`
}

// BidResult is the result of an accepted bid.
type BidResult struct {
	Bid            *model.Bid          `json:"bid"`
	Player         *model.Player       `json:"player"`
	Team           *model.TeamStanding `json:"team"`
	NextBid        int64               `json:"next_bid"`
	PurseRemaining int64               `json:"purse_remaining"`
	SlotsRemaining int                 `json:"slots_remaining"`
	EligibleTeams  []int64             `json:"eligible_teams"`
}

// CallResult is the result of a going-once call.
type CallResult struct {
	SessionID      int64  `json:"session_id"`
	PlayerID       int64  `json:"player_id"`
	CallCount      int    `json:"call_count"`
	CallText       string `json:"call_text"`
	ShouldComplete bool   `json:"should_complete"`
}

// SaleResult is the outcome of a lot. Team is nil when the player went unsold.
type SaleResult struct {
	SessionID int64               `json:"session_id"`
	Sold      bool                `json:"sold"`
	Player    *model.Player       `json:"player"`
	Team      *model.TeamStanding `json:"team,omitempty"`
	Amount    int64               `json:"amount"`
	Record    *model.SaleRecord   `json:"record"`
}

// AuctionService runs the bidding state machine of a live session.
type AuctionService struct {
	executor
}

// NewAuctionService creates a new AuctionService instance.
func NewAuctionService(store repository.Store, gate *lock.Gate, events broadcast.Publisher, lockWait time.Duration) *AuctionService {
	return &AuctionService{executor: newExecutor(store, gate, events, lockWait)}
}

// lockLive locks a session and requires it to be live.
func lockLive(ctx context.Context, tx repository.Tx, sessionID int64) (*model.AuctionSession, error) {
	session, err := tx.LockSession(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, "auction session %d", sessionID)
	}
	if !session.IsLive() {
		return nil, auction.Reject(auction.KindNoActiveSession, "session \"%s\" is %s, not live", session.Name, session.Status)
	}
	return session, nil
}

// StartPlayer puts an approved player under the hammer.
func (s *AuctionService) StartPlayer(ctx context.Context, sessionID, playerID int64) (*PlayerState, error) {
	var state *PlayerState

	err := s.inSession(ctx, sessionID, false, "start player", func(tx repository.Tx) error {
		session, err := lockLive(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.CurrentPlayerID != nil {
			return auction.Reject(auction.KindInvalidState,
				"player %d is still under the hammer, complete the sale first", *session.CurrentPlayerID)
		}

		player, err := tx.LockPlayer(ctx, playerID)
		if err != nil {
			return notFound(err, "player %d", playerID)
		}
		if player.Status != model.PlayerApproved {
			return auction.Reject(auction.KindInvalidState,
				"%s is %s, only approved players can be auctioned", player.Name, player.Status)
		}
		if err := notUnderHammer(ctx, tx, player); err != nil {
			return err
		}
		done, err := tx.SaleExists(ctx, sessionID, playerID)
		if err != nil {
			return err
		}
		if done {
			return auction.Reject(auction.KindAlreadyProcessed,
				"%s was already auctioned in this session", player.Name)
		}

		player.CurrentBid = 0
		if err := tx.UpdatePlayer(ctx, player); err != nil {
			return err
		}

		session.CurrentPlayerID = &player.ID
		session.LastBidTeamID = nil
		session.BidCallCount = 0
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}

		state = &PlayerState{SessionID: sessionID, Player: player, NextBid: player.BasePrice}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, auction.Reject(auction.KindInvalidState, "player %d went under the hammer in another session", playerID)
		}
		return nil, err
	}

	log.Info().
		Int64("session_id", sessionID).
		Int64("player_id", playerID).
		Int64("base_price", state.Player.BasePrice).
		Msg("Player under the hammer")

	s.publish(ctx, broadcast.NewEvent(broadcast.EventPlayerUpdate, sessionID, broadcast.PlayerUpdate{
		Player:  state.Player,
		NextBid: state.NextBid,
	}))
	return state, nil
}

// AcceptBid records the next legal bid for the current player. It never
// waits for a busy session: a concurrent command yields LockContention.
func (s *AuctionService) AcceptBid(ctx context.Context, sessionID, teamID, playerID, amount int64) (*BidResult, error) {
	var result *BidResult

	err := s.inSession(ctx, sessionID, true, "accept bid", func(tx repository.Tx) error {
		session, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return notFound(err, "auction session %d", sessionID)
		}
		if !session.IsLive() {
			return auction.ErrNoActiveSession
		}
		player, err := tx.LockPlayer(ctx, playerID)
		if err != nil {
			return notFound(err, "player %d", playerID)
		}
		team, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return notFound(err, "team %d", teamID)
		}

		if err := auction.ValidateBid(auction.BidRequest{
			Session: session,
			Player:  player,
			Team:    team,
			Amount:  amount,
		}); err != nil {
			return err
		}

		bid := &model.Bid{SessionID: sessionID, PlayerID: playerID, TeamID: teamID, Amount: amount}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		player.CurrentBid = amount
		if err := tx.UpdatePlayer(ctx, player); err != nil {
			return err
		}

		session.LastBidTeamID = &team.ID
		session.BidCallCount = 0
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}

		next := auction.NextBid(amount, player.BasePrice)
		teams, err := tx.ListTeams(ctx)
		if err != nil {
			return err
		}

		result = &BidResult{
			Bid:            bid,
			Player:         player,
			Team:           team,
			NextBid:        next,
			PurseRemaining: team.PurseRemaining,
			SlotsRemaining: team.SlotsRemaining(),
			EligibleTeams:  eligibleTeams(teams, next),
		}
		return nil
	})
	if err != nil {
		if auction.KindOf(err) != auction.KindInternal {
			log.Debug().Err(err).Int64("team_id", teamID).Int64("amount", amount).Msg("Bid rejected")
		}
		return nil, err
	}

	log.Info().
		Int64("session_id", sessionID).
		Int64("player_id", playerID).
		Int64("team_id", teamID).
		Int64("amount", amount).
		Msg("Bid accepted")

	s.publish(ctx, broadcast.NewEvent(broadcast.EventBidUpdate, sessionID, broadcast.BidUpdate{
		BidID:          result.Bid.ID,
		PlayerID:       playerID,
		PlayerName:     result.Player.Name,
		Team:           *teamRef(result.Team.ID, result.Team.Name),
		Amount:         amount,
		NextBid:        result.NextBid,
		PurseRemaining: result.PurseRemaining,
		SlotsRemaining: result.SlotsRemaining,
		EligibleTeams:  result.EligibleTeams,
	}))
	return result, nil
}

// eligibleTeams lists the teams that could take the player at amount.
func eligibleTeams(teams []*model.TeamStanding, amount int64) []int64 {
	ids := make([]int64, 0, len(teams))
	for _, t := range teams {
		if t.CanBid(amount) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// CallGoing advances the going-once/twice/sold countdown. It never
// completes a sale by itself.
func (s *AuctionService) CallGoing(ctx context.Context, sessionID int64) (*CallResult, error) {
	var result *CallResult

	err := s.inSession(ctx, sessionID, false, "call going", func(tx repository.Tx) error {
		session, err := lockLive(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.CurrentPlayerID == nil {
			return auction.Reject(auction.KindInvalidState, "no player is being auctioned")
		}

		session.BidCallCount = auction.NextCall(session.BidCallCount)
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}

		result = &CallResult{
			SessionID:      sessionID,
			PlayerID:       *session.CurrentPlayerID,
			CallCount:      session.BidCallCount,
			CallText:       auction.CallText(session.BidCallCount),
			ShouldComplete: auction.ShouldComplete(session.BidCallCount),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, broadcast.NewEvent(broadcast.EventGoingCall, sessionID, broadcast.GoingCall{
		PlayerID:       result.PlayerID,
		CallCount:      result.CallCount,
		CallText:       result.CallText,
		ShouldComplete: result.ShouldComplete,
	}))
	return result, nil
}

// CompleteSale closes the lot of the current player: sold to the highest
// bidder if that team can still afford and fit the player, unsold at base
// price when nobody bid. Retrying a completed lot yields AlreadyProcessed.
func (s *AuctionService) CompleteSale(ctx context.Context, sessionID, playerID int64) (*SaleResult, error) {
	var result *SaleResult

	err := s.inSession(ctx, sessionID, false, "complete sale", func(tx repository.Tx) error {
		session, err := lockLive(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		player, err := tx.LockPlayer(ctx, playerID)
		if err != nil {
			return notFound(err, "player %d", playerID)
		}
		if player.Status.Finalized() {
			return auction.Reject(auction.KindAlreadyProcessed,
				"player already %s, cannot process again", player.Status)
		}
		if !session.HasCurrentPlayer(playerID) {
			return auction.ErrWrongPlayer
		}

		result = &SaleResult{SessionID: sessionID, Player: player}

		winning, err := tx.HighestBid(ctx, sessionID, playerID)
		switch {
		case err == nil:
			if err := sell(ctx, tx, player, winning, result); err != nil {
				return err
			}
		case errors.Is(err, repository.ErrNotFound):
			player.Status = model.PlayerUnsold
			player.CurrentBid = 0
			if err := tx.UpdatePlayer(ctx, player); err != nil {
				return err
			}
			result.Amount = player.BasePrice
			result.Record = &model.SaleRecord{
				SessionID:   sessionID,
				PlayerID:    playerID,
				FinalAmount: player.BasePrice,
				Sold:        false,
			}
		default:
			return err
		}

		if err := tx.InsertSale(ctx, result.Record); err != nil {
			return err
		}

		session.ClearCurrentPlayer()
		return tx.UpdateSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	end := broadcast.BiddingEnd{Sold: result.Sold, Player: result.Player}
	logEvent := log.Info().Int64("session_id", sessionID).Int64("player_id", playerID).Bool("sold", result.Sold)
	if result.Sold {
		amount, purse := result.Amount, result.Team.PurseRemaining
		end.Team = teamRef(result.Team.ID, result.Team.Name)
		end.Amount = &amount
		end.PurseRemaining = &purse
		logEvent = logEvent.Int64("team_id", result.Team.ID).Int64("amount", amount)
	}
	logEvent.Msg("Lot closed")

	s.publish(ctx, broadcast.NewEvent(broadcast.EventBiddingEnd, sessionID, end))
	return result, nil
}

// sell settles a lot for the winning bid after re-validating the team
// under its row lock.
func sell(ctx context.Context, tx repository.Tx, player *model.Player, winning *model.Bid, result *SaleResult) error {
	team, err := tx.LockTeam(ctx, winning.TeamID)
	if err != nil {
		return notFound(err, "team %d", winning.TeamID)
	}
	if err := auction.ValidateSale(team, winning.Amount); err != nil {
		return err
	}

	team.PurseRemaining -= winning.Amount
	if err := tx.UpdateTeam(ctx, &team.Team); err != nil {
		return err
	}

	player.Status = model.PlayerSold
	player.TeamID = &team.ID
	player.CurrentBid = 0
	if err := tx.UpdatePlayer(ctx, player); err != nil {
		return err
	}
	team.RegularPlayers++

	result.Sold = true
	result.Team = team
	result.Amount = winning.Amount
	result.Record = &model.SaleRecord{
		SessionID:   winning.SessionID,
		PlayerID:    player.ID,
		TeamID:      &team.ID,
		FinalAmount: winning.Amount,
		Sold:        true,
	}
	return nil
}
