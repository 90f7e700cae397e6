package repository

import (
	"context"

	"player-auction-bot/internal/model"
)

// teamStandingQuery selects teams with their non-iconic roster size.
const teamStandingQuery = `
	SELECT t.id, t.name, t.owner_id, t.total_purse, t.purse_remaining, t.max_players,
		t.iconic_players_count, t.created_at, t.updated_at,
		(SELECT COUNT(*) FROM players p WHERE p.team_id = t.id AND NOT p.is_iconic) AS regular_players
	FROM teams t
`

func scanTeam(row scanner) (*model.TeamStanding, error) {
	var s model.TeamStanding
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.OwnerID,
		&s.TotalPurse,
		&s.PurseRemaining,
		&s.MaxPlayers,
		&s.IconicPlayersCount,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.RegularPlayers,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetTeam retrieves a team and its roster size.
func (s *PostgresStore) GetTeam(ctx context.Context, id int64) (*model.TeamStanding, error) {
	team, err := scanTeam(s.pool.QueryRow(ctx, teamStandingQuery+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, translate(err, "get team")
	}
	return team, nil
}

// TeamByOwner retrieves the team owned by a Telegram user.
func (s *PostgresStore) TeamByOwner(ctx context.Context, ownerID int64) (*model.TeamStanding, error) {
	team, err := scanTeam(s.pool.QueryRow(ctx, teamStandingQuery+` WHERE t.owner_id = $1`, ownerID))
	if err != nil {
		return nil, translate(err, "get team by owner")
	}
	return team, nil
}

// ListTeams returns every team ordered by name.
func (s *PostgresStore) ListTeams(ctx context.Context) ([]*model.TeamStanding, error) {
	return listTeams(ctx, s.pool)
}

func listTeams(ctx context.Context, q querier) ([]*model.TeamStanding, error) {
	rows, err := q.Query(ctx, teamStandingQuery+` ORDER BY t.name, t.id`)
	if err != nil {
		return nil, translate(err, "list teams")
	}
	teams, err := collect(rows, scanTeam)
	if err != nil {
		return nil, translate(err, "scan teams")
	}
	return teams, nil
}

// ListTeams reads every team inside the unit of work without locking.
func (t *pgTx) ListTeams(ctx context.Context) ([]*model.TeamStanding, error) {
	return listTeams(ctx, t.q)
}

// LockTeam locks a team row and then counts its regular players. Every
// write that moves a player onto a team locks that team first, so the
// count cannot change while the lock is held.
func (t *pgTx) LockTeam(ctx context.Context, id int64) (*model.TeamStanding, error) {
	query := `
		SELECT id, name, owner_id, total_purse, purse_remaining, max_players,
			iconic_players_count, created_at, updated_at, 0
		FROM teams WHERE id = $1` + t.lockClause()

	team, err := scanTeam(t.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "lock team")
	}

	const countQuery = `SELECT COUNT(*) FROM players WHERE team_id = $1 AND NOT is_iconic`
	if err := t.q.QueryRow(ctx, countQuery, id).Scan(&team.RegularPlayers); err != nil {
		return nil, translate(err, "count team players")
	}
	return team, nil
}

// InsertTeam creates a team and fills in its generated fields.
func (t *pgTx) InsertTeam(ctx context.Context, team *model.Team) error {
	const query = `
		INSERT INTO teams (name, owner_id, total_purse, purse_remaining, max_players, iconic_players_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := t.q.QueryRow(ctx, query,
		team.Name, team.OwnerID, team.TotalPurse, team.PurseRemaining, team.MaxPlayers, team.IconicPlayersCount,
	).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return translate(err, "insert team")
	}
	return nil
}

// UpdateTeam writes the purse and iconic counter.
func (t *pgTx) UpdateTeam(ctx context.Context, team *model.Team) error {
	const query = `
		UPDATE teams
		SET purse_remaining = $2, iconic_players_count = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := t.q.QueryRow(ctx, query, team.ID, team.PurseRemaining, team.IconicPlayersCount).Scan(&team.UpdatedAt)
	if err != nil {
		return translate(err, "update team")
	}
	return nil
}
