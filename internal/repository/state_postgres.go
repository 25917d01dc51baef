package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jkindrix/zenquote/internal/database"
	"github.com/jkindrix/zenquote/internal/domain"
)

const updateRetries = 3

// PostgresStateStore implements domain.StateStore on the app_state table.
type PostgresStateStore struct {
	db *database.DB
}

var _ domain.StateStore = (*PostgresStateStore)(nil)

// NewPostgresStateStore creates a new PostgreSQL-backed state store.
func NewPostgresStateStore(db *database.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

// Get returns the value stored under key.
func (s *PostgresStateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	return getValue(ctx, s.db.Pool, key, false)
}

// Put replaces the value stored under key.
func (s *PostgresStateStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	return putValue(ctx, s.db.Pool, key, value)
}

// Update reads, transforms and writes key inside one transaction. The row is
// locked with FOR UPDATE and an advisory lock on the key covers the case
// where the row does not exist yet.
func (s *PostgresStateStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	ctx, cancel := WithTransactionTimeout(ctx)
	defer cancel()

	return s.db.TxManager.RetryableTransaction(ctx, updateRetries, func(ctx context.Context, tx pgx.Tx) error {
		return updateValue(ctx, tx, key, fn)
	})
}

// Ping checks the database connection.
func (s *PostgresStateStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// updateValue runs the locked read-modify-write on q, which must be a transaction.
func updateValue(ctx context.Context, q database.Querier, key string, fn func(current []byte) ([]byte, error)) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock state key %s: %w", key, err)
	}

	current, _, err := getValue(ctx, q, key, true)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	return putValue(ctx, q, key, next)
}

func getValue(ctx context.Context, q database.Querier, key string, forUpdate bool) ([]byte, bool, error) {
	query := `SELECT value FROM app_state WHERE key = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var value []byte
	err := q.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, true, nil
}

func putValue(ctx context.Context, q database.Querier, key string, value []byte) error {
	query := `
		INSERT INTO app_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := q.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put state %s: %w", key, err)
	}
	return nil
}
