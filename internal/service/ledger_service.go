package service

import (
	"context"
	"fmt"

	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"
	"wallet-escrow-engine/pkg/metrics"

	"github.com/rs/zerolog"
)

// LedgerService implements ports.Ledger. Every balance mutation runs under
// the wallet's lock and inside one storage transaction, pairing the balance
// write with an immutable ledger entry.
type LedgerService struct {
	wallets    ports.WalletStore
	txns       ports.TransactionStore
	transactor ports.Transactor
	locker     *WalletLocker
	events     ports.EventPublisher
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerService. locker must be the same
// instance handed to every service mutating balances. events may be nil
// when event streaming is disabled.
func NewLedgerService(
	wallets ports.WalletStore,
	txns ports.TransactionStore,
	transactor ports.Transactor,
	locker *WalletLocker,
	events ports.EventPublisher,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		wallets:    wallets,
		txns:       txns,
		transactor: transactor,
		locker:     locker,
		events:     events,
		log:        log,
	}
}

// CreateWallet creates the user's wallet if it does not exist yet and
// returns it. Repeated calls are idempotent and never reset the balance.
func (s *LedgerService) CreateWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	s.locker.Lock(userID)
	defer s.locker.Unlock(userID)

	existing, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get wallet: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	wallet := domain.NewWallet(userID)
	if err := s.wallets.Create(ctx, nil, wallet); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().Int64("user_id", userID).Msg("wallet created")
	return wallet, nil
}

// GetWallet returns the user's wallet.
func (s *LedgerService) GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// Credit adds funds to the user's wallet, creating it on first use.
func (s *LedgerService) Credit(ctx context.Context, userID int64, amount int64, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	s.locker.Lock(userID)
	defer s.locker.Unlock(userID)

	txn, err := s.creditLocked(ctx, userID, amount, description)
	if err != nil {
		return nil, err
	}

	s.publishTransaction(ctx, txn)
	s.log.Info().
		Int64("user_id", userID).
		Int64("amount", amount).
		Str("tx_id", txn.ID.String()).
		Msg("wallet credited")
	return txn, nil
}

// Debit removes funds from the user's wallet. The balance never goes
// negative: an insufficient balance fails the whole operation.
func (s *LedgerService) Debit(ctx context.Context, userID int64, amount int64, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	s.locker.Lock(userID)
	defer s.locker.Unlock(userID)

	txn, err := s.debitLocked(ctx, userID, amount, description)
	if err != nil {
		return nil, err
	}

	s.publishTransaction(ctx, txn)
	s.log.Info().
		Int64("user_id", userID).
		Int64("amount", amount).
		Str("tx_id", txn.ID.String()).
		Msg("wallet debited")
	return txn, nil
}

// Transfer moves funds between two wallets as a debit leg followed by a
// credit leg. The legs hold one wallet lock at a time; if the credit leg
// fails after the debit committed, a compensating credit restores the
// sender's balance.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID int64, amount int64, description string) (*ports.TransferResult, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if fromID == toID {
		return nil, apperror.Validation("Cannot transfer to the same wallet")
	}

	s.locker.Lock(fromID)
	debit, err := s.debitLocked(ctx, fromID, amount, description)
	s.locker.Unlock(fromID)
	if err != nil {
		return nil, err
	}

	s.locker.Lock(toID)
	credit, err := s.creditLocked(ctx, toID, amount, description)
	s.locker.Unlock(toID)
	if err != nil {
		s.compensateDebit(ctx, fromID, amount, description)
		return nil, err
	}

	s.publishTransaction(ctx, debit)
	s.publishTransaction(ctx, credit)
	s.log.Info().
		Int64("from", fromID).
		Int64("to", toID).
		Int64("amount", amount).
		Msg("transfer completed")
	return &ports.TransferResult{Debit: debit, Credit: credit}, nil
}

// ListTransactions returns a page of the user's ledger history.
func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, params ports.ListParams) ([]domain.Transaction, int64, error) {
	items, total, err := s.txns.ListByUser(ctx, userID, params.Normalize())
	if err != nil {
		return nil, 0, apperror.ErrStorage(fmt.Errorf("list transactions: %w", err))
	}
	return items, total, nil
}

// creditLocked applies a credit with the wallet lock already held. The
// wallet is created lazily when missing.
func (s *LedgerService) creditLocked(ctx context.Context, userID int64, amount int64, description string) (*domain.Transaction, error) {
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
		wallet = domain.NewWallet(userID)
		if err := s.wallets.Create(ctx, dbTx, wallet); err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("create wallet: %w", err))
		}
	}

	if err := s.wallets.UpdateBalance(ctx, dbTx, userID, wallet.Balance+amount); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("update balance: %w", err))
	}

	txn := domain.NewTransaction(userID, domain.TransactionKindCredit, amount, description, domain.TransactionStatusCompleted)
	if err := s.txns.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("commit tx: %w", err))
	}

	metrics.RecordTransaction(string(txn.Kind), string(txn.Status))
	return txn, nil
}

// debitLocked applies a debit with the wallet lock already held.
func (s *LedgerService) debitLocked(ctx context.Context, userID int64, amount int64, description string) (*domain.Transaction, error) {
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

	txn := domain.NewTransaction(userID, domain.TransactionKindDebit, amount, description, domain.TransactionStatusCompleted)
	if err := s.txns.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("commit tx: %w", err))
	}

	metrics.RecordTransaction(string(txn.Kind), string(txn.Status))
	return txn, nil
}

// compensateDebit restores the sender's balance after a failed credit leg.
// The compensation re-acquires the sender's lock on its own; a failure here
// is logged loudly since it leaves funds held.
func (s *LedgerService) compensateDebit(ctx context.Context, userID int64, amount int64, description string) {
	s.locker.Lock(userID)
	defer s.locker.Unlock(userID)

	if _, err := s.creditLocked(ctx, userID, amount, "Reversal: "+description); err != nil {
		s.log.Error().Err(err).
			Int64("user_id", userID).
			Int64("amount", amount).
			Msg("transfer compensation failed, funds held")
		return
	}
	metrics.RecordCompensation("transfer")
	s.log.Warn().
		Int64("user_id", userID).
		Int64("amount", amount).
		Msg("transfer credit leg failed, debit reversed")
}

// publishTransaction streams the entry to downstream consumers, best-effort.
func (s *LedgerService) publishTransaction(ctx context.Context, txn *domain.Transaction) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransaction(ctx, txn); err != nil {
		s.log.Warn().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to publish transaction event")
	}
}
