package repository

import (
	"context"

	"player-auction-bot/internal/model"
)

const sessionColumns = `id, name, status, current_player_id, last_bid_team_id, bid_call_count,
	started_at, ended_at, created_at, updated_at`

func scanSession(row scanner) (*model.AuctionSession, error) {
	var s model.AuctionSession
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Status,
		&s.CurrentPlayerID,
		&s.LastBidTeamID,
		&s.BidCallCount,
		&s.StartedAt,
		&s.EndedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession retrieves an auction session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, id int64) (*model.AuctionSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM auction_sessions WHERE id = $1`

	session, err := scanSession(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "get session")
	}
	return session, nil
}

// LiveSession returns the live session, or ErrNotFound when none is live.
func (s *PostgresStore) LiveSession(ctx context.Context) (*model.AuctionSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM auction_sessions WHERE status = 'live'`

	session, err := scanSession(s.pool.QueryRow(ctx, query))
	if err != nil {
		return nil, translate(err, "get live session")
	}
	return session, nil
}

// ListSessions returns every session, newest first.
func (s *PostgresStore) ListSessions(ctx context.Context) ([]*model.AuctionSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM auction_sessions ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, translate(err, "list sessions")
	}
	sessions, err := collect(rows, scanSession)
	if err != nil {
		return nil, translate(err, "scan sessions")
	}
	return sessions, nil
}

// LockSession locks one session row.
func (t *pgTx) LockSession(ctx context.Context, id int64) (*model.AuctionSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auction_sessions WHERE id = $1` + t.lockClause()

	session, err := scanSession(t.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "lock session")
	}
	return session, nil
}

// LockLiveSessions locks every live session row. The unique index allows at
// most one, but callers treat the result as a list so a violated
// invariant is repaired rather than hidden.
func (t *pgTx) LockLiveSessions(ctx context.Context) ([]*model.AuctionSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auction_sessions WHERE status = 'live' ORDER BY id` + t.lockClause()

	rows, err := t.q.Query(ctx, query)
	if err != nil {
		return nil, translate(err, "lock live sessions")
	}
	sessions, err := collect(rows, scanSession)
	if err != nil {
		return nil, translate(err, "lock live sessions")
	}
	return sessions, nil
}

// SessionHoldingPlayer reads the session whose current player is playerID.
// ux_auction_sessions_current_player allows at most one.
func (t *pgTx) SessionHoldingPlayer(ctx context.Context, playerID int64) (*model.AuctionSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM auction_sessions WHERE current_player_id = $1`

	session, err := scanSession(t.q.QueryRow(ctx, query, playerID))
	if err != nil {
		return nil, translate(err, "find session holding player")
	}
	return session, nil
}

// CreateSession inserts a new upcoming session.
func (t *pgTx) CreateSession(ctx context.Context, name string) (*model.AuctionSession, error) {
	const query = `
		INSERT INTO auction_sessions (name, status)
		VALUES ($1, 'upcoming')
		RETURNING ` + sessionColumns

	session, err := scanSession(t.q.QueryRow(ctx, query, name))
	if err != nil {
		return nil, translate(err, "create session")
	}
	return session, nil
}

// UpdateSession writes every mutable session column.
func (t *pgTx) UpdateSession(ctx context.Context, s *model.AuctionSession) error {
	const query = `
		UPDATE auction_sessions
		SET status = $2, current_player_id = $3, last_bid_team_id = $4, bid_call_count = $5,
			started_at = $6, ended_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := t.q.QueryRow(ctx, query,
		s.ID, string(s.Status), s.CurrentPlayerID, s.LastBidTeamID, s.BidCallCount, s.StartedAt, s.EndedAt,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return translate(err, "update session")
	}
	return nil
}
