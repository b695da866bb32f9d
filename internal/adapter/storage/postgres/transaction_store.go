package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionStore implements ports.TransactionStore backed by PostgreSQL.
// The transactions table is append-only; the sole permitted mutation is
// the guarded status transition in UpdateStatus.
type TransactionStore struct {
	pool Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const transactionColumns = `id, user_id, kind, amount, description, reference, status, created_at, processed_at`

// Create appends a ledger entry.
func (s *TransactionStore) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := exec(ctx, s.pool, tx, query,
		t.ID, t.UserID, t.Kind, t.Amount, t.Description,
		t.Reference, t.Status, t.CreatedAt, t.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Get fetches a ledger entry by id. Returns nil, nil when absent.
func (s *TransactionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t := &domain.Transaction{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Description,
		&t.Reference, &t.Status, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// GetByReference fetches a ledger entry by its external reference.
func (s *TransactionStore) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	t := &domain.Transaction{}
	err := s.pool.QueryRow(ctx, query, reference).Scan(
		&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Description,
		&t.Reference, &t.Status, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by reference: %w", err)
	}
	return t, nil
}

// UpdateStatus applies a guarded PENDING -> COMPLETED/FAILED transition.
// The WHERE clause carries the expected status so a lost race shows up as
// zero affected rows instead of a double settlement.
func (s *TransactionStore) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	query := `UPDATE transactions SET status = $1, processed_at = NOW()
		WHERE id = $2 AND status = $3`

	affected, err := exec(ctx, s.pool, tx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	return affected > 0, nil
}

// ListByUser returns a user's transactions in creation order with the
// total count, so callers can restart listing at any page.
func (s *TransactionStore) ListByUser(ctx context.Context, userID int64, params ports.ListParams) ([]domain.Transaction, int64, error) {
	params = params.Normalize()

	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	offset := (params.Page - 1) * params.PageSize
	rows, err := s.pool.Query(ctx, query, userID, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	result, err := scanTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// ListPending returns PENDING entries of one kind, oldest first.
func (s *TransactionStore) ListPending(ctx context.Context, kind domain.TransactionKind) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE kind = $1 AND status = $2
		ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, kind, domain.TransactionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var result []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Description,
			&t.Reference, &t.Status, &t.CreatedAt, &t.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}
