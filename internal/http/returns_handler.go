package http

import (
	"context"
	"net/http"
	"time"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/service"
)

type ReturnService interface {
	CreateReturn(ctx context.Context, userID, orderID int64, reason, details string) (*domain.Return, error)
	UpdateReturnStatus(ctx context.Context, returnID int64, status, adminNotes string) (*service.ReturnUpdateResult, error)
	GetReturn(ctx context.Context, id int64) (*domain.ReturnDetails, error)
	ListUserReturns(ctx context.Context, userID int64) ([]*domain.ReturnDetails, error)
	ListReturns(ctx context.Context) ([]*domain.ReturnDetails, error)
	DeleteReturn(ctx context.Context, id int64) error
}

type ReturnsHandler struct {
	svc     ReturnService
	timeout time.Duration
}

func NewReturnsHandler(svc ReturnService, timeout time.Duration) *ReturnsHandler {
	return &ReturnsHandler{
		svc:     svc,
		timeout: timeout,
	}
}

type CreateReturnRequestDTO struct {
	OrderID int64  `json:"orderId"`
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

type UpdateReturnRequestDTO struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
}

// POST /api/returns
func (h *ReturnsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateReturnRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.OrderID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a positive integer")
		return
	}

	ret, err := h.svc.CreateReturn(ctx, getUserIDFromContext(r.Context()), req.OrderID, req.Reason, req.Details)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, ret)
}

// GET /api/returns/my
func (h *ReturnsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	returns, err := h.svc.ListUserReturns(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, returns)
}

// GET /api/returns/admin/all
func (h *ReturnsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	returns, err := h.svc.ListReturns(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, returns)
}

// GET /api/returns/admin/{id}
func (h *ReturnsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_return_id", "return id must be a positive integer")
		return
	}

	ret, err := h.svc.GetReturn(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ret)
}

// PUT /api/returns/admin/{id}
func (h *ReturnsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_return_id", "return id must be a positive integer")
		return
	}

	var req UpdateReturnRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.svc.UpdateReturnStatus(ctx, id, req.Status, req.AdminNotes)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// DELETE /api/returns/admin/{id}
func (h *ReturnsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_return_id", "return id must be a positive integer")
		return
	}

	if err := h.svc.DeleteReturn(ctx, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
