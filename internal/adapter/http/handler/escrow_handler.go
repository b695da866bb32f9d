package handler

import (
	"context"

	"wallet-escrow-engine/internal/adapter/http/dto"
	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"
	"wallet-escrow-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// EscrowHandler handles escrow deal endpoints.
type EscrowHandler struct {
	escrow ports.EscrowEngine
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(escrow ports.EscrowEngine) *EscrowHandler {
	return &EscrowHandler{escrow: escrow}
}

// Create handles POST /api/v1/deals.
func (h *EscrowHandler) Create(c *gin.Context) {
	var req dto.CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	deal, err := h.escrow.CreateDeal(c.Request.Context(), req.BuyerID, req.SellerID, req.Amount, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toDealResponse(deal))
}

// Get handles GET /api/v1/deals/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
	dealID, ok := pathDealID(c)
	if !ok {
		return
	}

	deal, err := h.escrow.GetDeal(c.Request.Context(), dealID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toDealResponse(deal))
}

// ListByUser handles GET /api/v1/users/:user_id/deals.
func (h *EscrowHandler) ListByUser(c *gin.Context) {
	userID, ok := pathUserID(c, "user_id")
	if !ok {
		return
	}

	deals, err := h.escrow.ListDeals(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.DealResponse, 0, len(deals))
	for i := range deals {
		out = append(out, toDealResponse(&deals[i]))
	}
	response.OK(c, out)
}

// Accept handles POST /api/v1/deals/:id/accept.
func (h *EscrowHandler) Accept(c *gin.Context) {
	h.action(c, h.escrow.Accept)
}

// Pay handles POST /api/v1/deals/:id/pay.
func (h *EscrowHandler) Pay(c *gin.Context) {
	h.action(c, h.escrow.Pay)
}

// Release handles POST /api/v1/deals/:id/release.
func (h *EscrowHandler) Release(c *gin.Context) {
	h.action(c, h.escrow.Release)
}

// Dispute handles POST /api/v1/deals/:id/dispute.
func (h *EscrowHandler) Dispute(c *gin.Context) {
	h.action(c, h.escrow.Dispute)
}

// Cancel handles POST /api/v1/deals/:id/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
	h.action(c, h.escrow.Cancel)
}

// Resolve handles POST /api/v1/deals/:id/resolve.
func (h *EscrowHandler) Resolve(c *gin.Context) {
	dealID, ok := pathDealID(c)
	if !ok {
		return
	}

	var req dto.ResolveDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	deal, err := h.escrow.ResolveDispute(c.Request.Context(), dealID, domain.DealResolution(req.Resolution))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toDealResponse(deal))
}

// action runs a participant-driven deal transition.
func (h *EscrowHandler) action(c *gin.Context, fn func(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error)) {
	dealID, ok := pathDealID(c)
	if !ok {
		return
	}

	var req dto.DealActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	deal, err := fn(c.Request.Context(), dealID, req.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toDealResponse(deal))
}

func toDealResponse(d *domain.Deal) dto.DealResponse {
	resp := dto.DealResponse{
		DealID:      d.ID,
		BuyerID:     d.BuyerID,
		SellerID:    d.SellerID,
		Amount:      d.Amount,
		Description: d.Description,
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt.Format(timeFormat),
		UpdatedAt:   d.UpdatedAt.Format(timeFormat),
	}
	if d.FundedAt != nil {
		s := d.FundedAt.Format(timeFormat)
		resp.FundedAt = &s
	}
	return resp
}

func pathDealID(c *gin.Context) (string, bool) {
	dealID := c.Param("id")
	if !dto.ValidReference(dealID) {
		response.Error(c, apperror.Validation("Invalid deal id"))
		return "", false
	}
	return dealID, true
}
