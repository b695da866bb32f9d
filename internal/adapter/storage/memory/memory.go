// Package memory provides in-process implementations of the storage
// ports. It backs tests and single-node deployments without PostgreSQL;
// atomicity of multi-write operations comes from the service-level
// per-wallet locks, so the no-op Transactor is sufficient here.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletStore implements ports.WalletStore in memory.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[int64]*domain.Wallet
}

// NewWalletStore creates an empty in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[int64]*domain.Wallet)}
}

func (s *WalletStore) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[w.UserID]; ok {
		return nil // idempotent
	}
	cp := *w
	s.wallets[w.UserID] = &cp
	return nil
}

func (s *WalletStore) Get(ctx context.Context, userID int64) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	// Row locking is a database concern; the caller already holds the
	// wallet's keyed lock.
	return s.Get(ctx, userID)
}

func (s *WalletStore) UpdateBalance(ctx context.Context, tx pgx.Tx, userID int64, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// TransactionStore implements ports.TransactionStore in memory.
// An insertion sequence keeps ordering stable when timestamps collide.
type TransactionStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*domain.Transaction
	seq     map[uuid.UUID]int
	nextSeq int
}

// NewTransactionStore creates an empty in-memory ledger.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		entries: make(map[uuid.UUID]*domain.Transaction),
		seq:     make(map[uuid.UUID]int),
	}
}

func (s *TransactionStore) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.entries[t.ID] = &cp
	s.seq[t.ID] = s.nextSeq
	s.nextSeq++
	return nil
}

func (s *TransactionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *TransactionStore) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.entries {
		if t.Reference == reference {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *TransactionStore) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.entries[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	now := time.Now().UTC()
	t.ProcessedAt = &now
	return true, nil
}

func (s *TransactionStore) ListByUser(ctx context.Context, userID int64, params ports.ListParams) ([]domain.Transaction, int64, error) {
	params = params.Normalize()

	s.mu.RLock()
	var all []domain.Transaction
	for _, t := range s.entries {
		if t.UserID == userID {
			all = append(all, *t)
		}
	}
	s.mu.RUnlock()

	s.sortByCreation(all)
	total := int64(len(all))

	start := (params.Page - 1) * params.PageSize
	if start >= len(all) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *TransactionStore) ListPending(ctx context.Context, kind domain.TransactionKind) ([]domain.Transaction, error) {
	s.mu.RLock()
	var pending []domain.Transaction
	for _, t := range s.entries {
		if t.Kind == kind && t.Status == domain.TransactionStatusPending {
			pending = append(pending, *t)
		}
	}
	s.mu.RUnlock()

	s.sortByCreation(pending)
	return pending, nil
}

func (s *TransactionStore) sortByCreation(ts []domain.Transaction) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return s.seq[ts[i].ID] < s.seq[ts[j].ID]
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}

// DealStore implements ports.DealStore in memory.
type DealStore struct {
	mu    sync.RWMutex
	deals map[string]*domain.Deal
}

// NewDealStore creates an empty in-memory deal store.
func NewDealStore() *DealStore {
	return &DealStore{deals: make(map[string]*domain.Deal)}
}

func (s *DealStore) Create(ctx context.Context, tx pgx.Tx, d *domain.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deals[d.ID] = &cp
	return nil
}

func (s *DealStore) Get(ctx context.Context, dealID string) (*domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deals[dealID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *DealStore) UpdateStatus(ctx context.Context, tx pgx.Tx, dealID string, from, to domain.DealStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[dealID]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *DealStore) MarkFunded(ctx context.Context, tx pgx.Tx, dealID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[dealID]
	if !ok || d.Status != domain.DealStatusAccepted {
		return false, nil
	}
	now := time.Now().UTC()
	d.Status = domain.DealStatusFunded
	d.FundedAt = &now
	d.UpdatedAt = now
	return true, nil
}

func (s *DealStore) ListByUser(ctx context.Context, userID int64) ([]domain.Deal, error) {
	s.mu.RLock()
	var deals []domain.Deal
	for _, d := range s.deals {
		if d.IsParticipant(userID) {
			deals = append(deals, *d)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].CreatedAt.After(deals[j].CreatedAt)
	})
	return deals, nil
}
