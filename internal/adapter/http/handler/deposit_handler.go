package handler

import (
	"wallet-escrow-engine/internal/adapter/http/dto"
	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"
	"wallet-escrow-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// DepositHandler handles deposit reference endpoints.
type DepositHandler struct {
	deposits ports.DepositGateway
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(deposits ports.DepositGateway) *DepositHandler {
	return &DepositHandler{deposits: deposits}
}

// Generate handles POST /api/v1/deposits.
func (h *DepositHandler) Generate(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	ref, err := h.deposits.GeneratePaymentReference(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.PaymentReferenceResponse{
		Reference:   ref.Reference,
		PayLink:     ref.PayLink,
		Transaction: toTransactionResponse(ref.Transaction),
	})
}

// Confirm handles POST /api/v1/deposits/:reference/confirm.
func (h *DepositHandler) Confirm(c *gin.Context) {
	reference := c.Param("reference")
	if !dto.ValidReference(reference) {
		response.Error(c, apperror.Validation("Invalid payment reference"))
		return
	}

	txn, err := h.deposits.ConfirmDeposit(c.Request.Context(), reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:          tx.ID.String(),
		UserID:      tx.UserID,
		Kind:        string(tx.Kind),
		Amount:      tx.Amount,
		Description: tx.Description,
		Reference:   tx.Reference,
		Status:      string(tx.Status),
		CreatedAt:   tx.CreatedAt.Format(timeFormat),
	}
	if tx.ProcessedAt != nil {
		s := tx.ProcessedAt.Format(timeFormat)
		resp.ProcessedAt = &s
	}
	return resp
}
