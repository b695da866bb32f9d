package domain

import (
	"time"
)

// Wallet holds a single user's spendable balance.
// Balance is a fixed-point integer in minor units (never floating point)
// and must stay non-negative at all times. Wallets are created lazily on
// first reference.
type Wallet struct {
	UserID    int64     `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet creates an empty wallet for a user.
func NewWallet(userID int64) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		UserID:    userID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
