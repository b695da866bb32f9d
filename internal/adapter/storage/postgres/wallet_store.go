package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-escrow-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletStore implements ports.WalletStore backed by PostgreSQL.
type WalletStore struct {
	pool Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Create inserts a wallet row. ON CONFLICT DO NOTHING keeps lazy wallet
// creation idempotent under concurrent first references.
func (s *WalletStore) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := exec(ctx, s.pool, tx, query, w.UserID, w.Balance, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// Get fetches a wallet without locking. Returns nil, nil when absent.
func (s *WalletStore) Get(ctx context.Context, userID int64) (*domain.Wallet, error) {
	query := `SELECT user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1`

	w := &domain.Wallet{}
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// GetForUpdate fetches a wallet with a pessimistic row lock. MUST be
// called within a transaction.
func (s *WalletStore) GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	query := `SELECT user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE`

	w := &domain.Wallet{}
	err := tx.QueryRow(ctx, query, userID).Scan(
		&w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// UpdateBalance sets a wallet's balance within a transaction.
func (s *WalletStore) UpdateBalance(ctx context.Context, tx pgx.Tx, userID int64, balance int64) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2`

	tag, err := tx.Exec(ctx, query, balance, userID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %d", userID)
	}
	return nil
}

// exec routes a write through the transaction when one is supplied.
func exec(ctx context.Context, pool Pool, tx pgx.Tx, sql string, args ...any) (int64, error) {
	if tx != nil {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	tag, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
