package repository

import (
	"context"

	"player-auction-bot/internal/model"
)

const saleColumns = `id, session_id, player_id, team_id, final_amount, sold, created_at`

func scanSale(row scanner) (*model.SaleRecord, error) {
	var r model.SaleRecord
	if err := row.Scan(&r.ID, &r.SessionID, &r.PlayerID, &r.TeamID, &r.FinalAmount, &r.Sold, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// RecentSales returns the latest settlements of a session, newest first.
func (s *PostgresStore) RecentSales(ctx context.Context, sessionID int64, limit int) ([]*model.SaleRecord, error) {
	const query = `
		SELECT ` + saleColumns + ` FROM sale_records
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, translate(err, "list recent sales")
	}
	sales, err := collect(rows, scanSale)
	if err != nil {
		return nil, translate(err, "scan sales")
	}
	return sales, nil
}

// LatestSale returns the most recent settlement of a player in any session.
func (t *pgTx) LatestSale(ctx context.Context, playerID int64) (*model.SaleRecord, error) {
	const query = `
		SELECT ` + saleColumns + ` FROM sale_records
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	sale, err := scanSale(t.q.QueryRow(ctx, query, playerID))
	if err != nil {
		return nil, translate(err, "get latest sale")
	}
	return sale, nil
}

// SaleExists reports whether the player was already settled in the session.
func (t *pgTx) SaleExists(ctx context.Context, sessionID, playerID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sale_records WHERE session_id = $1 AND player_id = $2)`

	var exists bool
	if err := t.q.QueryRow(ctx, query, sessionID, playerID).Scan(&exists); err != nil {
		return false, translate(err, "check sale record")
	}
	return exists, nil
}

// InsertSale writes a settlement. A second settlement of the same player in
// the same session fails with ErrConflict.
func (t *pgTx) InsertSale(ctx context.Context, r *model.SaleRecord) error {
	const query = `
		INSERT INTO sale_records (session_id, player_id, team_id, final_amount, sold)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := t.q.QueryRow(ctx, query, r.SessionID, r.PlayerID, r.TeamID, r.FinalAmount, r.Sold).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return translate(err, "insert sale record")
	}
	return nil
}
