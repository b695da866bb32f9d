package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// TransactionKind represents the kind of ledger entry.
type TransactionKind string

const (
	TransactionKindCredit            TransactionKind = "CREDIT"
	TransactionKindDebit             TransactionKind = "DEBIT"
	TransactionKindDepositPending    TransactionKind = "DEPOSIT_PENDING"
	TransactionKindWithdrawalRequest TransactionKind = "WITHDRAWAL_REQUEST"
)

// TransactionStatus represents the lifecycle state of a transaction.
// Records are append-only: the only permitted mutation is
// PENDING -> COMPLETED or PENDING -> FAILED.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is an immutable ledger entry for a balance-affecting event.
// Reference carries the deposit payment reference or the withdrawal payout
// address, depending on Kind; it is empty for plain credits and debits.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	UserID      int64             `json:"user_id"`
	Kind        TransactionKind   `json:"kind"`
	Amount      int64             `json:"amount"` // minor units
	Description string            `json:"description"`
	Reference   string            `json:"reference,omitempty"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
}

// payoutAddressRe matches UPI-style payout addresses (name@psp). The
// mandatory @ keeps payout addresses disjoint from 8-hex payment
// references, since both live in the Reference field.
var payoutAddressRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+@[a-zA-Z0-9_\-\.]+$`)

// ValidPayoutAddress reports whether s is an acceptable withdrawal payout
// address.
func ValidPayoutAddress(s string) bool {
	return payoutAddressRe.MatchString(s)
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// CountsTowardBalance reports whether this entry enters the balance
// reconciliation sum: balance == Σ completed credits − Σ completed debits.
func (t *Transaction) CountsTowardBalance() bool {
	if t.Status != TransactionStatusCompleted {
		return false
	}
	return t.Kind == TransactionKindCredit || t.Kind == TransactionKindDebit
}

// NewTransaction builds a ledger entry with a fresh id.
func NewTransaction(userID int64, kind TransactionKind, amount int64, description string, status TransactionStatus) *Transaction {
	now := time.Now().UTC()
	txn := &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		Status:      status,
		CreatedAt:   now,
	}
	if status == TransactionStatusCompleted {
		txn.ProcessedAt = &now
	}
	return txn
}
