package handler

import (
	"strconv"

	"wallet-escrow-engine/internal/adapter/http/dto"
	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"
	"wallet-escrow-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet and ledger endpoints.
type WalletHandler struct {
	ledger ports.Ledger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.Ledger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.ledger.CreateWallet(c.Request.Context(), req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// Get handles GET /api/v1/wallets/:user_id.
func (h *WalletHandler) Get(c *gin.Context) {
	userID, ok := pathUserID(c, "user_id")
	if !ok {
		return
	}

	wallet, err := h.ledger.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// Credit handles POST /api/v1/wallets/:user_id/credit.
func (h *WalletHandler) Credit(c *gin.Context) {
	userID, ok := pathUserID(c, "user_id")
	if !ok {
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.ledger.Credit(c.Request.Context(), userID, req.Amount, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// Debit handles POST /api/v1/wallets/:user_id/debit.
func (h *WalletHandler) Debit(c *gin.Context) {
	userID, ok := pathUserID(c, "user_id")
	if !ok {
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.ledger.Debit(c.Request.Context(), userID, req.Amount, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// Transfer handles POST /api/v1/transfers.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.ledger.Transfer(c.Request.Context(), req.FromUserID, req.ToUserID, req.Amount, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TransferResponse{
		Debit:  toTransactionResponse(result.Debit),
		Credit: toTransactionResponse(result.Credit),
	})
}

// ListTransactions handles GET /api/v1/wallets/:user_id/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := pathUserID(c, "user_id")
	if !ok {
		return
	}

	params := ports.ListParams{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}.Normalize()

	items, total, err := h.ledger.ListTransactions(c.Request.Context(), userID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.TransactionResponse, 0, len(items))
	for i := range items {
		out = append(out, toTransactionResponse(&items[i]))
	}

	totalPages := int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	response.OK(c, dto.TransactionListResponse{
		Items:      out,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	})
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		UserID:    w.UserID,
		Balance:   w.Balance,
		CreatedAt: w.CreatedAt.Format(timeFormat),
		UpdatedAt: w.UpdatedAt.Format(timeFormat),
	}
}

func pathUserID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		response.Error(c, apperror.Validation("Invalid user id"))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
