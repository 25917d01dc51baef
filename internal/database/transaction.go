package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgreSQL error codes that warrant retrying the whole transaction.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TxBeginner starts transactions. *pgxpool.Pool implements it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxManager provides transaction management capabilities.
type TxManager struct {
	db     TxBeginner
	logger *zap.Logger
}

// NewTxManager creates a new transaction manager over a pool.
func NewTxManager(pool *pgxpool.Pool, logger *zap.Logger) *TxManager {
	return newTxManager(pool, logger)
}

func newTxManager(db TxBeginner, logger *zap.Logger) *TxManager {
	return &TxManager{
		db:     db,
		logger: logger,
	}
}

// TxFunc runs within a transaction. Returning an error rolls it back.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// WithTransaction executes fn within a read-committed transaction.
func (tm *TxManager) WithTransaction(ctx context.Context, fn TxFunc) error {
	return tm.WithTransactionOptions(ctx, pgx.TxOptions{}, fn)
}

// WithTransactionOptions executes fn within a transaction with custom options.
func (tm *TxManager) WithTransactionOptions(ctx context.Context, opts pgx.TxOptions, fn TxFunc) error {
	tx, err := tm.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// No-op once committed.
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Error("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tm.logger.Debug("transaction rolling back due to error", zap.Error(err))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RetryableTransaction executes fn, retrying on serialization failures and deadlocks.
func (tm *TxManager) RetryableTransaction(ctx context.Context, maxRetries int, fn TxFunc) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			tm.logger.Debug("retrying transaction",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
		}

		err := tm.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

// Querier is implemented by both pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
