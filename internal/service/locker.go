package service

import "sync"

// WalletLocker serializes balance mutations per wallet. Lock entries are
// reference counted and removed once the last holder releases, so the map
// stays bounded by the number of wallets currently being mutated.
//
// One instance must be shared by every service that mutates balances: the
// postgres driver additionally takes row locks, but the memory driver has
// no locking of its own and depends on all services locking through the
// same instance. The composition root constructs it once.
//
// Callers must never hold two wallet locks at once. Operations that touch
// two wallets take and release them one at a time.
type WalletLocker struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewWalletLocker creates an empty locker.
func NewWalletLocker() *WalletLocker {
	return &WalletLocker{locks: make(map[int64]*lockEntry)}
}

// Lock acquires the wallet's mutex, creating the entry on first use.
func (l *WalletLocker) Lock(userID int64) {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &lockEntry{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the wallet's mutex and drops the entry when no other
// goroutine is waiting on it.
func (l *WalletLocker) Unlock(userID int64) {
	l.mu.Lock()
	entry := l.locks[userID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, userID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
