package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"wallet-escrow-engine/config"
	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"
	"wallet-escrow-engine/pkg/metrics"

	"github.com/rs/zerolog"
)

// settledReferenceTTL bounds how long a settled reference stays in the
// cache fast path. The guarded status transition in storage remains the
// source of truth after expiry.
const settledReferenceTTL = 24 * time.Hour

// DepositService implements ports.DepositGateway. References are settled
// exactly once: the PENDING -> COMPLETED transition on the reference record
// is guarded, and a Redis cache short-circuits repeat confirmations.
type DepositService struct {
	wallets    ports.WalletStore
	txns       ports.TransactionStore
	transactor ports.Transactor
	refCache   ports.ReferenceCache
	locker     *WalletLocker
	events     ports.EventPublisher
	payments   config.PaymentsConfig
	log        zerolog.Logger
}

// NewDepositService creates a new DepositService. locker must be the same
// instance handed to every service mutating balances. refCache and events
// may be nil when the corresponding backends are disabled.
func NewDepositService(
	wallets ports.WalletStore,
	txns ports.TransactionStore,
	transactor ports.Transactor,
	locker *WalletLocker,
	refCache ports.ReferenceCache,
	events ports.EventPublisher,
	payments config.PaymentsConfig,
	log zerolog.Logger,
) *DepositService {
	return &DepositService{
		wallets:    wallets,
		txns:       txns,
		transactor: transactor,
		refCache:   refCache,
		locker:     locker,
		events:     events,
		payments:   payments,
		log:        log,
	}
}

// GeneratePaymentReference issues a fresh deposit reference and the pay
// link the user completes the payment through. No funds move until the
// deposit is confirmed.
func (s *DepositService) GeneratePaymentReference(ctx context.Context, userID int64, amount int64) (*ports.PaymentReference, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	txn := domain.NewTransaction(userID, domain.TransactionKindDepositPending, amount, "Wallet deposit", domain.TransactionStatusPending)
	txn.Reference = domain.NewDealID()

	if err := s.txns.Create(ctx, nil, txn); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create deposit reference: %w", err))
	}

	metrics.RecordTransaction(string(txn.Kind), string(txn.Status))
	s.log.Info().
		Int64("user_id", userID).
		Int64("amount", amount).
		Str("reference", txn.Reference).
		Msg("payment reference issued")

	return &ports.PaymentReference{
		Reference:   txn.Reference,
		PayLink:     s.buildPayLink(txn.Reference, amount),
		Transaction: txn,
	}, nil
}

// ConfirmDeposit settles a payment reference and credits the wallet.
// Confirming the same reference twice moves no funds the second time.
func (s *DepositService) ConfirmDeposit(ctx context.Context, reference string) (*domain.Transaction, error) {
	settled, err := s.isSettledCached(ctx, reference)
	if err == nil && settled {
		return nil, apperror.ErrDuplicateOperation()
	}

	pending, err := s.txns.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("find reference: %w", err))
	}
	if pending == nil || pending.Kind != domain.TransactionKindDepositPending {
		return nil, apperror.ErrNotFound("payment reference")
	}
	if pending.IsTerminal() {
		return nil, apperror.ErrDuplicateOperation()
	}

	s.locker.Lock(pending.UserID)
	defer s.locker.Unlock(pending.UserID)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The guard makes settlement exactly-once: a concurrent confirmation
	// already flipped the status when ok is false.
	ok, err := s.txns.UpdateStatus(ctx, dbTx, pending.ID, domain.TransactionStatusPending, domain.TransactionStatusCompleted)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("settle reference: %w", err))
	}
	if !ok {
		return nil, apperror.ErrDuplicateOperation()
	}

	wallet, err := s.wallets.GetForUpdate(ctx, dbTx, pending.UserID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		wallet = domain.NewWallet(pending.UserID)
		if err := s.wallets.Create(ctx, dbTx, wallet); err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("create wallet: %w", err))
		}
	}

	if err := s.wallets.UpdateBalance(ctx, dbTx, pending.UserID, wallet.Balance+pending.Amount); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("update balance: %w", err))
	}

	credit := domain.NewTransaction(pending.UserID, domain.TransactionKindCredit, pending.Amount, "Deposit settlement", domain.TransactionStatusCompleted)
	credit.Reference = reference
	if err := s.txns.Create(ctx, dbTx, credit); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create credit: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("commit tx: %w", err))
	}

	s.markSettledCached(ctx, reference)
	metrics.RecordTransaction(string(credit.Kind), string(credit.Status))
	if s.events != nil {
		if err := s.events.PublishTransaction(ctx, credit); err != nil {
			s.log.Warn().Err(err).Str("reference", reference).Msg("failed to publish deposit event")
		}
	}

	s.log.Info().
		Int64("user_id", pending.UserID).
		Int64("amount", pending.Amount).
		Str("reference", reference).
		Msg("deposit confirmed")
	return credit, nil
}

// buildPayLink renders a UPI-style deep link carrying the payee, the
// amount in major units, and the reference as the transaction note.
func (s *DepositService) buildPayLink(reference string, amount int64) string {
	q := url.Values{}
	q.Set("pa", s.payments.PayeeAddress)
	q.Set("pn", s.payments.PayeeName)
	q.Set("am", fmt.Sprintf("%d.%02d", amount/100, amount%100))
	q.Set("cu", s.payments.Currency)
	q.Set("tn", reference)
	return "upi://pay?" + q.Encode()
}

func (s *DepositService) isSettledCached(ctx context.Context, reference string) (bool, error) {
	if s.refCache == nil {
		return false, nil
	}
	settled, err := s.refCache.IsSettled(ctx, reference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("reference cache check failed, falling through to storage")
		return false, err
	}
	return settled, nil
}

func (s *DepositService) markSettledCached(ctx context.Context, reference string) {
	if s.refCache == nil {
		return
	}
	if err := s.refCache.MarkSettled(ctx, reference, settledReferenceTTL); err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("failed to cache settled reference")
	}
}
