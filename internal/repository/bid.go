package repository

import (
	"context"

	"player-auction-bot/internal/model"
)

const bidColumns = `id, session_id, player_id, team_id, amount, created_at`

func scanBid(row scanner) (*model.Bid, error) {
	var b model.Bid
	if err := row.Scan(&b.ID, &b.SessionID, &b.PlayerID, &b.TeamID, &b.Amount, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// RecentBids returns the latest bids on a player in a session, newest first.
func (s *PostgresStore) RecentBids(ctx context.Context, sessionID, playerID int64, limit int) ([]*model.Bid, error) {
	const query = `
		SELECT ` + bidColumns + ` FROM bids
		WHERE session_id = $1 AND player_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, sessionID, playerID, limit)
	if err != nil {
		return nil, translate(err, "list recent bids")
	}
	bids, err := collect(rows, scanBid)
	if err != nil {
		return nil, translate(err, "scan bids")
	}
	return bids, nil
}

// HighestBid returns the winning bid for a player in a session, or
// ErrNotFound when nobody bid.
func (t *pgTx) HighestBid(ctx context.Context, sessionID, playerID int64) (*model.Bid, error) {
	const query = `
		SELECT ` + bidColumns + ` FROM bids
		WHERE session_id = $1 AND player_id = $2
		ORDER BY amount DESC, created_at DESC
		LIMIT 1
	`

	bid, err := scanBid(t.q.QueryRow(ctx, query, sessionID, playerID))
	if err != nil {
		return nil, translate(err, "get highest bid")
	}
	return bid, nil
}

// InsertBid appends a bid.
func (t *pgTx) InsertBid(ctx context.Context, b *model.Bid) error {
	const query = `
		INSERT INTO bids (session_id, player_id, team_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := t.q.QueryRow(ctx, query, b.SessionID, b.PlayerID, b.TeamID, b.Amount).Scan(&b.ID, &b.CreatedAt); err != nil {
		return translate(err, "insert bid")
	}
	return nil
}
