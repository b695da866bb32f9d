package ports

import (
	"context"

	"wallet-escrow-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletStore defines persistence for wallet balance records.
// Methods accepting pgx.Tx run inside a storage transaction; the in-memory
// driver ignores the handle and relies on the service-level wallet locks.
type WalletStore interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
	Get(ctx context.Context, userID int64) (*domain.Wallet, error)
	// GetForUpdate fetches the wallet with a pessimistic row lock.
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error)
	// UpdateBalance sets the wallet balance. The caller has already
	// validated that the new balance is non-negative.
	UpdateBalance(ctx context.Context, tx pgx.Tx, userID int64, balance int64) error
}

// TransactionStore defines persistence for the append-only ledger.
type TransactionStore interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	// UpdateStatus transitions a transaction from an expected status to a
	// new one. Returns (false, nil) when the record was not in the expected
	// status, so callers can detect lost races without a second read.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error)
	// ListByUser returns the user's transactions ordered by creation time
	// ascending, with the total count for restartable pagination.
	ListByUser(ctx context.Context, userID int64, params ListParams) ([]domain.Transaction, int64, error)
	// ListPending returns PENDING transactions of one kind, oldest first.
	ListPending(ctx context.Context, kind domain.TransactionKind) ([]domain.Transaction, error)
}

// ListParams holds pagination for transaction listings.
type ListParams struct {
	Page     int
	PageSize int
}

// Normalize clamps pagination to sane bounds.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
	return p
}

// DealStore defines persistence for escrow deals.
type DealStore interface {
	Create(ctx context.Context, tx pgx.Tx, d *domain.Deal) error
	Get(ctx context.Context, dealID string) (*domain.Deal, error)
	// UpdateStatus applies a guarded status transition: the write only
	// happens when the stored status still equals from. Returns
	// (false, nil) when the guard failed, keeping status monotonic even
	// under concurrent transitions.
	UpdateStatus(ctx context.Context, tx pgx.Tx, dealID string, from, to domain.DealStatus) (bool, error)
	// MarkFunded records the funding timestamp together with the
	// ACCEPTED -> FUNDED transition, under the same guard semantics.
	MarkFunded(ctx context.Context, tx pgx.Tx, dealID string) (bool, error)
	// ListByUser returns deals where the user is buyer or seller, newest
	// first.
	ListByUser(ctx context.Context, userID int64) ([]domain.Deal, error)
}

// Transactor provides storage transaction management.
type Transactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
