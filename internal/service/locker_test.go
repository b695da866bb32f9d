package service

import (
	"sync"
	"testing"

	"wallet-escrow-engine/internal/adapter/storage/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWalletLocker_SerializesSameWallet(t *testing.T) {
	locker := NewWalletLocker()

	var counter int
	const workers = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			locker.Lock(1)
			counter++
			locker.Unlock(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestWalletLocker_IndependentWalletsDoNotBlock(t *testing.T) {
	locker := NewWalletLocker()

	locker.Lock(1)

	done := make(chan struct{})
	go func() {
		locker.Lock(2)
		locker.Unlock(2)
		close(done)
	}()

	<-done
	locker.Unlock(1)
}

func TestWalletLocker_EntriesAreReclaimed(t *testing.T) {
	locker := NewWalletLocker()

	locker.Lock(1)
	locker.Unlock(1)
	locker.Lock(2)
	locker.Unlock(2)

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.locks)
}

// Every balance-mutating service must serialize through the one locker
// built at the composition root.
func TestWalletLocker_SharedAcrossServices(t *testing.T) {
	wallets := memory.NewWalletStore()
	txns := memory.NewTransactionStore()
	transactor := memory.NewTransactor()
	locker := NewWalletLocker()

	ledger := NewLedgerService(wallets, txns, transactor, locker, nil, zerolog.Nop())
	deposits := NewDepositService(wallets, txns, transactor, locker, nil, nil, testPayments, zerolog.Nop())
	withdrawals := NewWithdrawalService(wallets, txns, transactor, locker, nil, zerolog.Nop())

	assert.Same(t, locker, ledger.locker)
	assert.Same(t, locker, deposits.locker)
	assert.Same(t, locker, withdrawals.locker)
}
