// Package db provides PostgreSQL-backed repositories for Growgent. Every
// repository accepts a DBTX, which is satisfied by both *pgxpool.Pool and
// pgx.Tx, so the same code runs inside or outside a transaction.
package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"growgent/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txBeginner is satisfied by *pgxpool.Pool and pgx.Tx.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// withTx runs fn inside a transaction when db can start one, committing if fn
// succeeds. Other DBTX values run fn directly.
func withTx(ctx context.Context, db DBTX, fn func(q DBTX) error) error {
	b, ok := db.(txBeginner)
	if !ok {
		return fn(db)
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
