package dto

// CreateWalletRequest is the request body for wallet creation.
type CreateWalletRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// AmountRequest is the request body for credits and debits.
type AmountRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=200"`
}

// TransferRequest is the request body for wallet-to-wallet transfers.
type TransferRequest struct {
	FromUserID  int64  `json:"from_user_id" binding:"required"`
	ToUserID    int64  `json:"to_user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=200"`
}

// DepositRequest is the request body for issuing a payment reference.
type DepositRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// WithdrawalRequest is the request body for queueing a withdrawal.
type WithdrawalRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	PayoutAddress string `json:"payout_address" binding:"required,max=100,payout_address"`
}

// CreateDealRequest is the request body for opening an escrow deal.
type CreateDealRequest struct {
	BuyerID     int64  `json:"buyer_id" binding:"required"`
	SellerID    int64  `json:"seller_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=500"`
}

// DealActionRequest identifies the participant performing a deal action.
type DealActionRequest struct {
	ActorID int64 `json:"actor_id" binding:"required"`
}

// ResolveDealRequest is the admin request body for settling a dispute.
type ResolveDealRequest struct {
	Resolution string `json:"resolution" binding:"required,oneof=REFUND_BUYER PAY_SELLER SPLIT"`
}

// WalletResponse is the response body for wallet queries.
type WalletResponse struct {
	UserID    int64  `json:"user_id"`
	Balance   int64  `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// TransactionResponse is the response body for ledger entries.
type TransactionResponse struct {
	ID          string  `json:"id"`
	UserID      int64   `json:"user_id"`
	Kind        string  `json:"kind"`
	Amount      int64   `json:"amount"`
	Description string  `json:"description,omitempty"`
	Reference   string  `json:"reference,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

// TransferResponse carries both legs of a completed transfer.
type TransferResponse struct {
	Debit  TransactionResponse `json:"debit"`
	Credit TransactionResponse `json:"credit"`
}

// PaymentReferenceResponse is the response for an issued deposit reference.
type PaymentReferenceResponse struct {
	Reference   string              `json:"reference"`
	PayLink     string              `json:"pay_link"`
	Transaction TransactionResponse `json:"transaction"`
}

// DealResponse is the response body for escrow deals.
type DealResponse struct {
	DealID      string  `json:"deal_id"`
	BuyerID     int64   `json:"buyer_id"`
	SellerID    int64   `json:"seller_id"`
	Amount      int64   `json:"amount"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	FundedAt    *string `json:"funded_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}
