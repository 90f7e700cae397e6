package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "teams",
		sql: `
		CREATE TABLE IF NOT EXISTS teams (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			owner_id BIGINT NOT NULL UNIQUE,
			total_purse BIGINT NOT NULL DEFAULT 10000,
			purse_remaining BIGINT NOT NULL DEFAULT 10000,
			max_players INT NOT NULL DEFAULT 16,
			iconic_players_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT teams_purse_bounds CHECK (purse_remaining >= 0 AND purse_remaining <= total_purse),
			CONSTRAINT teams_iconic_cap CHECK (iconic_players_count >= 0 AND iconic_players_count <= 2)
		);`,
	},
	{
		name: "players",
		sql: `
		CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			roll_number VARCHAR(20) UNIQUE,
			category VARCHAR(20) NOT NULL,
			base_price BIGINT NOT NULL DEFAULT 300,
			current_bid BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			team_id BIGINT REFERENCES teams(id) ON DELETE SET NULL,
			is_iconic BOOLEAN NOT NULL DEFAULT FALSE,
			iconic_eligible BOOLEAN NOT NULL DEFAULT FALSE,
			assigned_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT players_sold_has_team CHECK ((status = 'sold') = (team_id IS NOT NULL)),
			CONSTRAINT players_iconic_free CHECK (NOT is_iconic OR current_bid = 0)
		);
		CREATE INDEX IF NOT EXISTS idx_players_team ON players(team_id);
		CREATE INDEX IF NOT EXISTS idx_players_status ON players(status);`,
	},
	{
		name: "auction_sessions",
		sql: `
		CREATE TABLE IF NOT EXISTS auction_sessions (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'upcoming',
			current_player_id BIGINT REFERENCES players(id) ON DELETE SET NULL,
			last_bid_team_id BIGINT REFERENCES teams(id) ON DELETE SET NULL,
			bid_call_count INT NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ,
			ended_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT sessions_call_count CHECK (bid_call_count BETWEEN 0 AND 3)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_auction_sessions_live
			ON auction_sessions ((status)) WHERE status = 'live';
		CREATE UNIQUE INDEX IF NOT EXISTS ux_auction_sessions_current_player
			ON auction_sessions (current_player_id) WHERE current_player_id IS NOT NULL;`,
	},
	{
		name: "bids",
		sql: `
		CREATE TABLE IF NOT EXISTS bids (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL REFERENCES auction_sessions(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL CHECK (amount > 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		);
		CREATE INDEX IF NOT EXISTS idx_bids_player_session_amount
			ON bids(player_id, session_id, amount DESC);`,
	},
	{
		name: "paddle_raises",
		sql: `
		CREATE TABLE IF NOT EXISTS paddle_raises (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL REFERENCES auction_sessions(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			acknowledged_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		);
		CREATE INDEX IF NOT EXISTS idx_paddles_pending
			ON paddle_raises(session_id, player_id) WHERE NOT acknowledged;`,
	},
	{
		name: "sale_records",
		sql: `
		CREATE TABLE IF NOT EXISTS sale_records (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL REFERENCES auction_sessions(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			team_id BIGINT REFERENCES teams(id) ON DELETE SET NULL,
			final_amount BIGINT NOT NULL,
			sold BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			CONSTRAINT sale_records_once UNIQUE (player_id, session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_sale_records_session_time
			ON sale_records(session_id, created_at DESC);`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
