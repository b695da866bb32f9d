package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DealStatus represents the escrow deal lifecycle.
type DealStatus string

const (
	DealStatusPending   DealStatus = "PENDING"
	DealStatusAccepted  DealStatus = "ACCEPTED"
	DealStatusFunded    DealStatus = "FUNDED"
	DealStatusCompleted DealStatus = "COMPLETED"
	DealStatusDisputed  DealStatus = "DISPUTED"
	DealStatusResolved  DealStatus = "RESOLVED"
	DealStatusCancelled DealStatus = "CANCELLED"
)

// DealResolution is the admin settlement applied to a disputed deal.
type DealResolution string

const (
	ResolutionRefundBuyer DealResolution = "REFUND_BUYER"
	ResolutionPaySeller   DealResolution = "PAY_SELLER"
	ResolutionSplit       DealResolution = "SPLIT"
)

// dealTransitions is the complete set of legal status transitions.
// Anything not listed here is rejected.
var dealTransitions = map[DealStatus][]DealStatus{
	DealStatusPending:  {DealStatusAccepted, DealStatusCancelled},
	DealStatusAccepted: {DealStatusFunded, DealStatusDisputed},
	DealStatusFunded:   {DealStatusCompleted, DealStatusDisputed},
	DealStatusDisputed: {DealStatusResolved},
}

// Deal is a buyer/seller escrow agreement. Amount is immutable after
// creation. FundedAt records when the buyer's funds were taken into
// escrow; it stays nil for deals disputed before funding.
type Deal struct {
	ID          string     `json:"deal_id"`
	BuyerID     int64      `json:"buyer_id"`
	SellerID    int64      `json:"seller_id"`
	Amount      int64      `json:"amount"` // minor units
	Description string     `json:"description"`
	Status      DealStatus `json:"status"`
	FundedAt    *time.Time `json:"funded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewDeal creates a deal in the initial PENDING state with a short
// human-quotable id.
func NewDeal(buyerID, sellerID, amount int64, description string) *Deal {
	now := time.Now().UTC()
	return &Deal{
		ID:          NewDealID(),
		BuyerID:     buyerID,
		SellerID:    sellerID,
		Amount:      amount,
		Description: description,
		Status:      DealStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewDealID generates an 8-character deal reference.
func NewDealID() string {
	return strings.ToLower(uuid.New().String()[:8])
}

// IsTerminal returns true once the deal can no longer change state.
func (d *Deal) IsTerminal() bool {
	switch d.Status {
	case DealStatusCompleted, DealStatusResolved, DealStatusCancelled:
		return true
	}
	return false
}

// IsParticipant reports whether userID is the buyer or the seller.
func (d *Deal) IsParticipant(userID int64) bool {
	return userID == d.BuyerID || userID == d.SellerID
}

// IsFunded reports whether buyer funds are currently held by the escrow,
// i.e. debited from the buyer and not yet paid out or refunded.
func (d *Deal) IsFunded() bool {
	return d.FundedAt != nil && d.Status != DealStatusCompleted && d.Status != DealStatusResolved
}

// CanTransition checks the state machine for a legal move from the deal's
// current status to the target status.
func (d *Deal) CanTransition(to DealStatus) bool {
	for _, next := range dealTransitions[d.Status] {
		if next == to {
			return true
		}
	}
	return false
}
