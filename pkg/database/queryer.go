package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Queryer is the read/write surface shared by DB and Tx. Repository methods
// run against a Queryer so they transparently join a transaction carried on
// the context, or fall back to the pool.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

// QueryerFromContext returns the open transaction from the context if there
// is one, otherwise the database handle.
func QueryerFromContext(ctx context.Context, db DB) Queryer {
	tx, ok := ctx.Value(txKey).(Tx)
	if ok && tx != nil && tx.IsOpen() {
		if status, ok := ctx.Value(txStatusKey).(string); ok && status == "open" {
			return tx
		}
	}
	return db
}
