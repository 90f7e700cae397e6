package repository

import (
	"context"

	"player-auction-bot/internal/model"
)

const paddleColumns = `id, session_id, player_id, team_id, amount, acknowledged, acknowledged_at, created_at`

func scanPaddle(row scanner) (*model.PaddleRaise, error) {
	var p model.PaddleRaise
	err := row.Scan(&p.ID, &p.SessionID, &p.PlayerID, &p.TeamID, &p.Amount, &p.Acknowledged, &p.AcknowledgedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PendingPaddles lists unacknowledged paddle raises of a session, oldest first.
func (s *PostgresStore) PendingPaddles(ctx context.Context, sessionID int64) ([]*model.PaddleRaise, error) {
	const query = `
		SELECT ` + paddleColumns + ` FROM paddle_raises
		WHERE session_id = $1 AND NOT acknowledged
		ORDER BY created_at, id
	`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, translate(err, "list pending paddles")
	}
	paddles, err := collect(rows, scanPaddle)
	if err != nil {
		return nil, translate(err, "scan paddles")
	}
	return paddles, nil
}

// LockPaddle locks one paddle raise.
func (t *pgTx) LockPaddle(ctx context.Context, id int64) (*model.PaddleRaise, error) {
	query := `SELECT ` + paddleColumns + ` FROM paddle_raises WHERE id = $1` + t.lockClause()

	paddle, err := scanPaddle(t.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "lock paddle")
	}
	return paddle, nil
}

// InsertPaddle records a paddle raise.
func (t *pgTx) InsertPaddle(ctx context.Context, p *model.PaddleRaise) error {
	const query = `
		INSERT INTO paddle_raises (session_id, player_id, team_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := t.q.QueryRow(ctx, query, p.SessionID, p.PlayerID, p.TeamID, p.Amount).Scan(&p.ID, &p.CreatedAt); err != nil {
		return translate(err, "insert paddle")
	}
	return nil
}

// UpdatePaddle writes the acknowledgement state.
func (t *pgTx) UpdatePaddle(ctx context.Context, p *model.PaddleRaise) error {
	const query = `
		UPDATE paddle_raises
		SET acknowledged = $2, acknowledged_at = $3
		WHERE id = $1
	`

	tag, err := t.q.Exec(ctx, query, p.ID, p.Acknowledged, p.AcknowledgedAt)
	if err != nil {
		return translate(err, "update paddle")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
