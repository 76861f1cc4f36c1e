package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxRunner decides how a business mutation and its audit entry are coupled.
// The relaxed default runs them as independent statements; a stricter
// deployment can wrap both in one database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx runs fn directly. Mutation and audit write commit independently.
type NoTx struct{}

var _ TxRunner = NoTx{}

// WithinTx implements TxRunner.
func (NoTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// PgxTxRunner wraps fn in a pgx transaction stored in the context, so every
// repository call made by fn joins it.
type PgxTxRunner struct {
	db     *DB
	logger *zap.Logger
}

var _ TxRunner = (*PgxTxRunner)(nil)

// NewPgxTxRunner creates a transactional runner on db.
func NewPgxTxRunner(db *DB, logger *zap.Logger) *PgxTxRunner {
	return &PgxTxRunner{db: db, logger: logger.Named("tx")}
}

// WithinTx implements TxRunner. Nested calls reuse the outer transaction.
func (r *PgxTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
