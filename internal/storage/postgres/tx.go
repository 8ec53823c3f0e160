package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner implements domain.TxRunner against a pgxpool.Pool: each call
// begins a transaction, runs fn against it, and commits or rolls back
// depending on fn's return, mirroring the teacher's
// BeginTx/PrepareContext/Commit/defer-Rollback shape in CreateBatch.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner constructs a TxRunner over pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithinTx runs fn inside a single transaction. The context passed to fn
// carries the active *pgx.Tx; repositories in this package call
// dbFromContext to pick it up transparently instead of requiring a
// transaction parameter on every method.
func (t *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("postgres: tx failed (%v) and rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}
