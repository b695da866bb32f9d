package ports

import (
	"context"
	"time"

	"wallet-escrow-engine/internal/core/domain"

	"github.com/google/uuid"
)

// Ledger is the atomic balance engine. Every balance mutation is paired
// with an immutable ledger entry inside one atomic unit, and all mutations
// of a single wallet are serialized.
type Ledger interface {
	CreateWallet(ctx context.Context, userID int64) (*domain.Wallet, error)
	GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error)
	Credit(ctx context.Context, userID int64, amount int64, description string) (*domain.Transaction, error)
	Debit(ctx context.Context, userID int64, amount int64, description string) (*domain.Transaction, error)
	Transfer(ctx context.Context, fromID, toID int64, amount int64, description string) (*TransferResult, error)
	ListTransactions(ctx context.Context, userID int64, params ListParams) ([]domain.Transaction, int64, error)
}

// TransferResult carries both legs of a completed transfer.
type TransferResult struct {
	Debit  *domain.Transaction `json:"debit"`
	Credit *domain.Transaction `json:"credit"`
}

// PaymentReference is an issued deposit reference: the caller pays through
// the external link and the deposit is later confirmed by reference.
type PaymentReference struct {
	Reference   string              `json:"reference"`
	PayLink     string              `json:"pay_link"`
	Transaction *domain.Transaction `json:"transaction"`
}

// DepositGateway issues payment references and settles them exactly once.
type DepositGateway interface {
	GeneratePaymentReference(ctx context.Context, userID int64, amount int64) (*PaymentReference, error)
	// ConfirmDeposit credits the wallet exactly once for the reference.
	// A second confirmation returns DuplicateOperation and moves no funds.
	ConfirmDeposit(ctx context.Context, reference string) (*domain.Transaction, error)
}

// WithdrawalQueue holds requested funds out of the spendable balance until
// an admin approves or rejects the payout.
type WithdrawalQueue interface {
	RequestWithdrawal(ctx context.Context, userID int64, amount int64, payoutAddress string) (*domain.Transaction, error)
	ApproveWithdrawal(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error)
	RejectWithdrawal(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error)
	ListPending(ctx context.Context) ([]domain.Transaction, error)
}

// EscrowEngine drives the buyer/seller deal state machine. Transitions
// that move funds treat the ledger call and the state write as one atomic
// unit: the state never advances on a failed ledger call, and a ledger
// call is reversed when the state write fails afterwards.
type EscrowEngine interface {
	CreateDeal(ctx context.Context, buyerID, sellerID int64, amount int64, description string) (*domain.Deal, error)
	Accept(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error)
	Pay(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error)
	Release(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error)
	Dispute(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error)
	Cancel(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error)
	// ResolveDispute is the admin exit path from DISPUTED. When the deal
	// was funded the held amount is routed per the resolution; otherwise
	// the deal is closed without moving money.
	ResolveDispute(ctx context.Context, dealID string, resolution domain.DealResolution) (*domain.Deal, error)
	GetDeal(ctx context.Context, dealID string) (*domain.Deal, error)
	ListDeals(ctx context.Context, userID int64) ([]domain.Deal, error)
}

// ReferenceCache is a best-effort fast path for settled deposit
// references. The store's guarded status transition remains the source of
// truth; a cache miss or failure only costs a storage round trip.
type ReferenceCache interface {
	// IsSettled returns true when the reference is known to be settled.
	IsSettled(ctx context.Context, reference string) (bool, error)
	MarkSettled(ctx context.Context, reference string, ttl time.Duration) error
}

// EventPublisher streams ledger and deal events to downstream consumers
// (dashboards, notification senders). Publishing is best-effort after the
// operation has committed; failures are logged, never surfaced.
type EventPublisher interface {
	PublishTransaction(ctx context.Context, t *domain.Transaction) error
	PublishDeal(ctx context.Context, d *domain.Deal, event string) error
	Close() error
}
