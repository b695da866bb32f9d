package service

import (
	"context"
	"testing"

	"wallet-escrow-engine/internal/adapter/storage/memory"
	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type withdrawalFixture struct {
	svc     *WithdrawalService
	ledger  *LedgerService
	wallets *memory.WalletStore
	txns    *memory.TransactionStore
}

func newWithdrawalFixture(t *testing.T) *withdrawalFixture {
	t.Helper()
	wallets := memory.NewWalletStore()
	txns := memory.NewTransactionStore()
	transactor := memory.NewTransactor()
	locker := NewWalletLocker()
	return &withdrawalFixture{
		svc:     NewWithdrawalService(wallets, txns, transactor, locker, nil, zerolog.Nop()),
		ledger:  NewLedgerService(wallets, txns, transactor, locker, nil, zerolog.Nop()),
		wallets: wallets,
		txns:    txns,
	}
}

func (f *withdrawalFixture) seed(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), userID, amount, "seed")
	require.NoError(t, err)
}

func TestWithdrawalService_Request_HoldsFunds(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 1000)

	request, err := f.svc.RequestWithdrawal(ctx, 1, 600, "user@upi")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionKindWithdrawalRequest, request.Kind)
	assert.Equal(t, domain.TransactionStatusPending, request.Status)
	assert.Equal(t, "user@upi", request.Reference)

	// Held amount leaves the spendable balance immediately.
	w, err := f.wallets.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(400), w.Balance)

	// The hold is a completed debit in the ledger.
	items, _, err := f.txns.ListByUser(ctx, 1, ports.ListParams{})
	require.NoError(t, err)
	var holds int
	for i := range items {
		if items[i].Kind == domain.TransactionKindDebit && items[i].Status == domain.TransactionStatusCompleted {
			holds++
		}
	}
	assert.Equal(t, 1, holds)
}

func TestWithdrawalService_Request_Insufficient(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.seed(t, 1, 100)

	_, err := f.svc.RequestWithdrawal(context.Background(), 1, 200, "user@upi")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WLT_002", appErr.Code)
}

func TestWithdrawalService_Request_MissingAddress(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.seed(t, 1, 100)

	_, err := f.svc.RequestWithdrawal(context.Background(), 1, 50, "")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WLT_001", appErr.Code)
}

func TestWithdrawalService_Request_MalformedAddress(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 1000)

	// A bare 8-hex string would be indistinguishable from a deposit
	// payment reference, since both are stored in Reference.
	for _, addr := range []string{"deadbeef", "no-at-sign", "user@", "@psp"} {
		_, err := f.svc.RequestWithdrawal(ctx, 1, 50, addr)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr, addr)
		assert.Equal(t, "WLT_001", appErr.Code, addr)
	}

	// Nothing was held.
	w, err := f.wallets.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Balance)
}

func TestWithdrawalService_Approve(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 1000)

	request, err := f.svc.RequestWithdrawal(ctx, 1, 600, "user@upi")
	require.NoError(t, err)

	approved, err := f.svc.ApproveWithdrawal(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, approved.Status)
	require.NotNil(t, approved.ProcessedAt)

	// Approval pays out the hold; the balance does not change again.
	w, err := f.wallets.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(400), w.Balance)

	// A second approval is a duplicate.
	_, err = f.svc.ApproveWithdrawal(ctx, request.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WLT_004", appErr.Code)
}

func TestWithdrawalService_Reject_RefundsHold(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 1000)

	request, err := f.svc.RequestWithdrawal(ctx, 1, 600, "user@upi")
	require.NoError(t, err)

	rejected, err := f.svc.RejectWithdrawal(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, rejected.Status)

	w, err := f.wallets.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Balance, "rejection must restore the held amount")

	// Reject after reject is a duplicate, and must not refund twice.
	_, err = f.svc.RejectWithdrawal(ctx, request.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WLT_004", appErr.Code)

	w, err = f.wallets.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Balance)
}

func TestWithdrawalService_ApproveThenReject(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 500)

	request, err := f.svc.RequestWithdrawal(ctx, 1, 500, "user@upi")
	require.NoError(t, err)

	_, err = f.svc.ApproveWithdrawal(ctx, request.ID)
	require.NoError(t, err)

	// An approved request cannot be rejected anymore.
	_, err = f.svc.RejectWithdrawal(ctx, request.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WLT_004", appErr.Code)
}

func TestWithdrawalService_UnknownRequest(t *testing.T) {
	f := newWithdrawalFixture(t)

	_, err := f.svc.ApproveWithdrawal(context.Background(), uuid.New())
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WLT_003", appErr.Code)
}

func TestWithdrawalService_ApproveRejectsNonRequestEntries(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 100)

	// The seed credit's id is a real transaction, but not a withdrawal
	// request.
	items, _, err := f.txns.ListByUser(ctx, 1, ports.ListParams{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = f.svc.ApproveWithdrawal(ctx, items[0].ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WLT_003", appErr.Code)
}

func TestWithdrawalService_ListPending(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()
	f.seed(t, 1, 1000)
	f.seed(t, 2, 1000)

	r1, err := f.svc.RequestWithdrawal(ctx, 1, 100, "a@upi")
	require.NoError(t, err)
	r2, err := f.svc.RequestWithdrawal(ctx, 2, 200, "b@upi")
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, r1.ID, pending[0].ID, "oldest first")
	assert.Equal(t, r2.ID, pending[1].ID)

	_, err = f.svc.ApproveWithdrawal(ctx, r1.ID)
	require.NoError(t, err)

	pending, err = f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, r2.ID, pending[0].ID)
}
