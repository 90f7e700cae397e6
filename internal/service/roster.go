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

// RosterChange is the result of an admin roster command.
type RosterChange struct {
	Action   broadcast.RosterAction `json:"action"`
	Player   *model.Player          `json:"player,omitempty"`
	Team     *model.TeamStanding    `json:"team,omitempty"`
	Refund   int64                  `json:"refund,omitempty"`
	Released int                    `json:"released,omitempty"`
}

// RosterService applies admin roster changes outside the bidding flow.
type RosterService struct {
	executor
}

// NewRosterService creates a new RosterService instance.
func NewRosterService(store repository.Store, gate *lock.Gate, events broadcast.Publisher, lockWait time.Duration) *RosterService {
	return &RosterService{executor: newExecutor(store, gate, events, lockWait)}
}

// AssignIconic places an iconic-eligible player on a team without bidding.
// A team holds at most model.MaxIconicPlayers iconic players, and each one
// consumes a roster slot.
func (s *RosterService) AssignIconic(ctx context.Context, teamID, playerID int64) (*RosterChange, error) {
	change := &RosterChange{Action: broadcast.RosterIconicAssigned}

	err := s.inTx(ctx, "assign iconic player", func(tx repository.Tx) error {
		player, err := tx.LockPlayer(ctx, playerID)
		if err != nil {
			return notFound(err, "player %d", playerID)
		}
		if err := notUnderHammer(ctx, tx, player); err != nil {
			return err
		}
		if !player.IconicEligible {
			return auction.Reject(auction.KindInvalidState, "%s is not eligible to be an iconic player", player.Name)
		}
		if player.TeamID != nil || player.Status != model.PlayerApproved {
			return auction.Reject(auction.KindInvalidState, "%s is already %s", player.Name, player.Status)
		}

		team, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return notFound(err, "team %d", teamID)
		}
		if team.IconicPlayersCount >= model.MaxIconicPlayers {
			return auction.Reject(auction.KindRosterFull,
				"%s already has %d iconic players (maximum allowed)", team.Name, model.MaxIconicPlayers)
		}
		if team.SlotsRemaining() <= 0 {
			return auction.Reject(auction.KindRosterFull, "%s has no roster slot left", team.Name)
		}

		now := s.now()
		player.TeamID = &team.ID
		player.IsIconic = true
		player.Status = model.PlayerSold
		player.CurrentBid = 0
		player.AssignedAt = &now
		if err := tx.UpdatePlayer(ctx, player); err != nil {
			return err
		}

		team.IconicPlayersCount++
		if err := tx.UpdateTeam(ctx, &team.Team); err != nil {
			return err
		}

		change.Player, change.Team = player, team
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("team_id", teamID).Int64("player_id", playerID).Msg("Iconic player assigned")
	s.publishChange(ctx, change)
	return change, nil
}

// RemoveIconic returns an iconic player to the pool.
func (s *RosterService) RemoveIconic(ctx context.Context, playerID int64) (*RosterChange, error) {
	change := &RosterChange{Action: broadcast.RosterIconicRemoved}

	err := s.inTx(ctx, "remove iconic player", func(tx repository.Tx) error {
		player, err := tx.LockPlayer(ctx, playerID)
		if err != nil {
			return notFound(err, "player %d", playerID)
		}
		if !player.IsIconic || player.TeamID == nil {
			return auction.Reject(auction.KindNotFound, "%s is not an assigned iconic player", player.Name)
		}
		team, err := tx.LockTeam(ctx, *player.TeamID)
		if err != nil {
			return notFound(err, "team %d", *player.TeamID)
		}
		if err := s.detach(ctx, tx, player, team, 0); err != nil {
			return err
		}
		change.Player, change.Team = player, team
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("player_id", playerID).Int64("team_id", change.Team.ID).Msg("Iconic player removed")
	s.publishChange(ctx, change)
	return change, nil
}

// ReleasePlayer removes a player from a team. A bought player's price is
// refunded, never pushing the purse past its total.
func (s *RosterService) ReleasePlayer(ctx context.Context, teamID, playerID int64) (*RosterChange, error) {
	change := &RosterChange{Action: broadcast.RosterReleased}

	err := s.inTx(ctx, "release player", func(tx repository.Tx) error {
		player, err := tx.LockPlayer(ctx, playerID)
		if err != nil {
			return notFound(err, "player %d", playerID)
		}
		if player.TeamID == nil || *player.TeamID != teamID {
			return auction.Reject(auction.KindNotFound, "%s is not on team %d", player.Name, teamID)
		}
		if err := notUnderHammer(ctx, tx, player); err != nil {
			return err
		}
		team, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return notFound(err, "team %d", teamID)
		}

		var refund int64
		if !player.IsIconic {
			sale, err := tx.LatestSale(ctx, playerID)
			switch {
			case err == nil:
				if sale.Sold && sale.TeamID != nil && *sale.TeamID == teamID {
					refund = sale.FinalAmount
				}
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}

		if err := s.detach(ctx, tx, player, team, refund); err != nil {
			return err
		}
		change.Player, change.Team, change.Refund = player, team, refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("team_id", teamID).
		Int64("player_id", playerID).
		Int64("refund", change.Refund).
		Msg("Player released")
	s.publishChange(ctx, change)
	return change, nil
}

// detach returns player to the pool and credits team with up to refund.
func (s *RosterService) detach(ctx context.Context, tx repository.Tx, player *model.Player, team *model.TeamStanding, refund int64) error {
	wasIconic := player.IsIconic

	player.TeamID = nil
	player.IsIconic = false
	player.Status = model.PlayerApproved
	player.CurrentBid = 0
	player.AssignedAt = nil
	if err := tx.UpdatePlayer(ctx, player); err != nil {
		return err
	}

	if wasIconic {
		team.IconicPlayersCount = max(0, team.IconicPlayersCount-1)
	} else if team.RegularPlayers > 0 {
		team.RegularPlayers--
	}
	team.PurseRemaining = min(team.TotalPurse, team.PurseRemaining+refund)
	return tx.UpdateTeam(ctx, &team.Team)
}

// ResetTeam releases every player of a team and restores its full purse.
// The team is locked first so a sale onto it is either released here or
// waits until the reset commits.
func (s *RosterService) ResetTeam(ctx context.Context, teamID int64) (*RosterChange, error) {
	change := &RosterChange{Action: broadcast.RosterTeamReset}

	err := s.inTx(ctx, "reset team", func(tx repository.Tx) error {
		team, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return notFound(err, "team %d", teamID)
		}
		released, err := tx.ReleaseTeamPlayers(ctx, teamID)
		if err != nil {
			return err
		}
		team.PurseRemaining = team.TotalPurse
		team.IconicPlayersCount = 0
		team.RegularPlayers = 0
		if err := tx.UpdateTeam(ctx, &team.Team); err != nil {
			return err
		}
		change.Team, change.Released = team, released
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("team_id", teamID).Int("released", change.Released).Msg("Team reset")
	s.publishChange(ctx, change)
	return change, nil
}

// RequeuePlayer puts an unsold player back into the auction pool.
func (s *RosterService) RequeuePlayer(ctx context.Context, playerID int64) (*RosterChange, error) {
	change := &RosterChange{Action: broadcast.RosterRequeued}

	err := s.inTx(ctx, "requeue player", func(tx repository.Tx) error {
		player, err := tx.LockPlayer(ctx, playerID)
		if err != nil {
			return notFound(err, "player %d", playerID)
		}
		if player.Status != model.PlayerUnsold {
			return auction.Reject(auction.KindInvalidState, "only unsold players can be requeued, %s is %s", player.Name, player.Status)
		}
		player.Status = model.PlayerApproved
		player.CurrentBid = 0
		if err := tx.UpdatePlayer(ctx, player); err != nil {
			return err
		}
		change.Player = player
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("player_id", playerID).Msg("Player requeued")
	s.publishChange(ctx, change)
	return change, nil
}

func (s *RosterService) publishChange(ctx context.Context, change *RosterChange) {
	update := broadcast.RosterUpdate{
		Action:  change.Action,
		Player:  change.Player,
		Refund:  change.Refund,
		Players: change.Released,
	}
	if change.Team != nil {
		update.Team = teamRef(change.Team.ID, change.Team.Name)
	}
	s.publish(ctx, broadcast.NewEvent(broadcast.EventRosterUpdate, 0, update))
}
