package handler

import (
	"wallet-escrow-engine/internal/adapter/http/dto"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"
	"wallet-escrow-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WithdrawalHandler handles withdrawal queue endpoints.
type WithdrawalHandler struct {
	withdrawals ports.WithdrawalQueue
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawals ports.WithdrawalQueue) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// Request handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), req.UserID, req.Amount, req.PayoutAddress)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// ListPending handles GET /api/v1/withdrawals/pending.
func (h *WithdrawalHandler) ListPending(c *gin.Context) {
	pending, err := h.withdrawals.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.TransactionResponse, 0, len(pending))
	for i := range pending {
		out = append(out, toTransactionResponse(&pending[i]))
	}
	response.OK(c, out)
}

// Approve handles POST /api/v1/withdrawals/:id/approve.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	id, ok := pathTxID(c)
	if !ok {
		return
	}

	txn, err := h.withdrawals.ApproveWithdrawal(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// Reject handles POST /api/v1/withdrawals/:id/reject.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	id, ok := pathTxID(c)
	if !ok {
		return
	}

	txn, err := h.withdrawals.RejectWithdrawal(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

func pathTxID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("Invalid transaction id"))
		return uuid.Nil, false
	}
	return id, true
}
