package repository

import (
	"context"

	"player-auction-bot/internal/model"
)

const playerColumns = `id, name, roll_number, category, base_price, current_bid, status, team_id,
	is_iconic, iconic_eligible, assigned_at, created_at, updated_at`

func scanPlayer(row scanner) (*model.Player, error) {
	var p model.Player
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.RollNumber,
		&p.Category,
		&p.BasePrice,
		&p.CurrentBid,
		&p.Status,
		&p.TeamID,
		&p.IsIconic,
		&p.IconicEligible,
		&p.AssignedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlayer retrieves a player by ID.
func (s *PostgresStore) GetPlayer(ctx context.Context, id int64) (*model.Player, error) {
	const query = `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	player, err := scanPlayer(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "get player")
	}
	return player, nil
}

// ListPlayers returns players with the given status ordered by name.
// An empty status lists everyone.
func (s *PostgresStore) ListPlayers(ctx context.Context, status model.PlayerStatus) ([]*model.Player, error) {
	const query = `
		SELECT ` + playerColumns + ` FROM players
		WHERE $1::text = '' OR status = $1::text
		ORDER BY name, id
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, translate(err, "list players")
	}
	players, err := collect(rows, scanPlayer)
	if err != nil {
		return nil, translate(err, "scan players")
	}
	return players, nil
}

// TeamPlayers returns a team's roster, iconic players first.
func (s *PostgresStore) TeamPlayers(ctx context.Context, teamID int64) ([]*model.Player, error) {
	const query = `
		SELECT ` + playerColumns + ` FROM players
		WHERE team_id = $1
		ORDER BY is_iconic DESC, name, id
	`

	rows, err := s.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, translate(err, "list team players")
	}
	players, err := collect(rows, scanPlayer)
	if err != nil {
		return nil, translate(err, "scan team players")
	}
	return players, nil
}

// LockPlayer locks one player row.
func (t *pgTx) LockPlayer(ctx context.Context, id int64) (*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1` + t.lockClause()

	player, err := scanPlayer(t.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "lock player")
	}
	return player, nil
}

// InsertPlayer registers a player and fills in its generated fields.
func (t *pgTx) InsertPlayer(ctx context.Context, p *model.Player) error {
	const query = `
		INSERT INTO players (name, roll_number, category, base_price, current_bid, status, team_id,
			is_iconic, iconic_eligible, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := t.q.QueryRow(ctx, query,
		p.Name, p.RollNumber, string(p.Category), p.BasePrice, p.CurrentBid, string(p.Status), p.TeamID,
		p.IsIconic, p.IconicEligible, p.AssignedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translate(err, "insert player")
	}
	return nil
}

// UpdatePlayer writes the auction-owned player columns.
func (t *pgTx) UpdatePlayer(ctx context.Context, p *model.Player) error {
	const query = `
		UPDATE players
		SET current_bid = $2, status = $3, team_id = $4, is_iconic = $5, assigned_at = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := t.q.QueryRow(ctx, query,
		p.ID, p.CurrentBid, string(p.Status), p.TeamID, p.IsIconic, p.AssignedAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return translate(err, "update player")
	}
	return nil
}

// ReleaseTeamPlayers returns every player of a team to the approved pool.
func (t *pgTx) ReleaseTeamPlayers(ctx context.Context, teamID int64) (int, error) {
	const query = `
		UPDATE players
		SET team_id = NULL, status = 'approved', current_bid = 0, is_iconic = FALSE,
			assigned_at = NULL, updated_at = NOW()
		WHERE team_id = $1
	`

	tag, err := t.q.Exec(ctx, query, teamID)
	if err != nil {
		return 0, translate(err, "release team players")
	}
	return int(tag.RowsAffected()), nil
}
