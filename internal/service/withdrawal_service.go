package service

import (
	"context"
	"fmt"

	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"
	"wallet-escrow-engine/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WithdrawalService implements ports.WithdrawalQueue using a hold pattern:
// requesting a withdrawal debits the wallet immediately and files a PENDING
// request record. Approval only flips the request; rejection refunds the
// hold with a compensating credit. The balance reconciliation invariant
// holds at every step because the hold itself is a completed debit.
type WithdrawalService struct {
	wallets    ports.WalletStore
	txns       ports.TransactionStore
	transactor ports.Transactor
	locker     *WalletLocker
	events     ports.EventPublisher
	log        zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalService. locker must be the
// same instance handed to every service mutating balances. events may be
// nil.
func NewWithdrawalService(
	wallets ports.WalletStore,
	txns ports.TransactionStore,
	transactor ports.Transactor,
	locker *WalletLocker,
	events ports.EventPublisher,
	log zerolog.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		wallets:    wallets,
		txns:       txns,
		transactor: transactor,
		locker:     locker,
		events:     events,
		log:        log,
	}
}

// RequestWithdrawal holds amount out of the spendable balance and queues a
// payout request to payoutAddress for admin review.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID int64, amount int64, payoutAddress string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if payoutAddress == "" {
		return nil, apperror.Validation("Payout address is required")
	}
	if !domain.ValidPayoutAddress(payoutAddress) {
		return nil, apperror.Validation("Invalid payout address")
	}

	s.locker.Lock(userID)
	defer s.locker.Unlock(userID)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.wallets.GetForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.Balance < amount {
		return nil, apperror.ErrInsufficientBalance()
	}

	if err := s.wallets.UpdateBalance(ctx, dbTx, userID, wallet.Balance-amount); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("update balance: %w", err))
	}

	hold := domain.NewTransaction(userID, domain.TransactionKindDebit, amount, "Withdrawal hold", domain.TransactionStatusCompleted)
	if err := s.txns.Create(ctx, dbTx, hold); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create hold: %w", err))
	}

	request := domain.NewTransaction(userID, domain.TransactionKindWithdrawalRequest, amount, "Withdrawal request", domain.TransactionStatusPending)
	request.Reference = payoutAddress
	if err := s.txns.Create(ctx, dbTx, request); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create request: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("commit tx: %w", err))
	}

	metrics.RecordTransaction(string(hold.Kind), string(hold.Status))
	metrics.RecordTransaction(string(request.Kind), string(request.Status))
	metrics.AddPendingWithdrawals(1)
	s.publish(ctx, request)

	s.log.Info().
		Int64("user_id", userID).
		Int64("amount", amount).
		Str("tx_id", request.ID.String()).
		Msg("withdrawal requested, funds held")
	return request, nil
}

// ApproveWithdrawal marks a pending request as paid out. The funds were
// already debited at request time, so no balance changes here.
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error) {
	request, err := s.getRequest(ctx, txID)
	if err != nil {
		return nil, err
	}

	ok, err := s.txns.UpdateStatus(ctx, nil, request.ID, domain.TransactionStatusPending, domain.TransactionStatusCompleted)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("approve request: %w", err))
	}
	if !ok {
		return nil, apperror.ErrDuplicateOperation()
	}

	metrics.AddPendingWithdrawals(-1)

	approved, err := s.txns.Get(ctx, request.ID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("reload request: %w", err))
	}
	s.publish(ctx, approved)

	s.log.Info().
		Int64("user_id", approved.UserID).
		Int64("amount", approved.Amount).
		Str("tx_id", approved.ID.String()).
		Msg("withdrawal approved")
	return approved, nil
}

// RejectWithdrawal fails a pending request and refunds the held amount.
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error) {
	request, err := s.getRequest(ctx, txID)
	if err != nil {
		return nil, err
	}

	s.locker.Lock(request.UserID)
	defer s.locker.Unlock(request.UserID)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.txns.UpdateStatus(ctx, dbTx, request.ID, domain.TransactionStatusPending, domain.TransactionStatusFailed)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("reject request: %w", err))
	}
	if !ok {
		return nil, apperror.ErrDuplicateOperation()
	}

	wallet, err := s.wallets.GetForUpdate(ctx, dbTx, request.UserID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if err := s.wallets.UpdateBalance(ctx, dbTx, request.UserID, wallet.Balance+request.Amount); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("update balance: %w", err))
	}

	refund := domain.NewTransaction(request.UserID, domain.TransactionKindCredit, request.Amount, "Withdrawal rejected, hold refunded", domain.TransactionStatusCompleted)
	if err := s.txns.Create(ctx, dbTx, refund); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create refund: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("commit tx: %w", err))
	}

	metrics.RecordTransaction(string(refund.Kind), string(refund.Status))
	metrics.AddPendingWithdrawals(-1)

	rejected, err := s.txns.Get(ctx, request.ID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("reload request: %w", err))
	}
	s.publish(ctx, rejected)

	s.log.Info().
		Int64("user_id", rejected.UserID).
		Int64("amount", rejected.Amount).
		Str("tx_id", rejected.ID.String()).
		Msg("withdrawal rejected, hold refunded")
	return rejected, nil
}

// ListPending returns withdrawal requests awaiting admin action, oldest
// first.
func (s *WithdrawalService) ListPending(ctx context.Context) ([]domain.Transaction, error) {
	pending, err := s.txns.ListPending(ctx, domain.TransactionKindWithdrawalRequest)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list pending withdrawals: %w", err))
	}
	return pending, nil
}

func (s *WithdrawalService) getRequest(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error) {
	request, err := s.txns.Get(ctx, txID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get request: %w", err))
	}
	if request == nil || request.Kind != domain.TransactionKindWithdrawalRequest {
		return nil, apperror.ErrNotFound("withdrawal request")
	}
	return request, nil
}

func (s *WithdrawalService) publish(ctx context.Context, txn *domain.Transaction) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransaction(ctx, txn); err != nil {
		s.log.Warn().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to publish withdrawal event")
	}
}
