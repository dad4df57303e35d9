package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type contextKey string

// DBTxKey carries an open transaction through a request context.
const DBTxKey contextKey = "db_tx"

// WithTx returns a context carrying the given transaction. Repositories
// prefer it over the pool when present.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, DBTxKey, tx)
}

// TxFromContext retrieves the transaction from context, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}
