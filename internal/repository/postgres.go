package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQL error codes the store translates.
const (
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
	pgUniqueViolation  = "23505"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the pgx implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Atomic runs fn inside a READ COMMITTED transaction. Row locks are taken
// with FOR UPDATE (NOWAIT when requested), so every value fn reads through
// a Lock* method is the latest committed version.
func (s *PostgresStore) Atomic(ctx context.Context, opts TxOptions, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if !opts.NoWait && opts.LockTimeout > 0 {
		const query = `SELECT set_config('lock_timeout', $1, true)`
		timeout := fmt.Sprintf("%dms", opts.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, query, timeout); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(&pgTx{q: tx, noWait: opts.NoWait}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return translate(err, "commit transaction")
	}
	return nil
}

// pgTx implements Tx on top of a pgx transaction.
type pgTx struct {
	q      querier
	noWait bool
}

func (t *pgTx) lockClause() string {
	if t.noWait {
		return " FOR UPDATE NOWAIT"
	}
	return " FOR UPDATE"
}

// translate maps driver errors onto the repository sentinels.
func translate(err error, action string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected:
			return fmt.Errorf("failed to %s: %w", action, errors.Join(ErrLockNotAvailable, err))
		case pgUniqueViolation:
			return fmt.Errorf("failed to %s: %w", action, errors.Join(ErrConflict, err))
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

type scanner interface {
	Scan(dest ...any) error
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, scan func(scanner) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*pgTx)(nil)
)
