package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// withTx stores tx in ctx so repositories sharing this package's pool can
// pick it up and participate in the integrator's per-chunk transaction
// instead of issuing their statements directly against the pool.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// dbFromContext returns the active transaction stored in ctx, or fallback
// (ordinarily the pool) if none is active.
func dbFromContext(ctx context.Context, fallback DB) DB {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}
