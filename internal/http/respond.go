package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	cartrepo "github.com/smartdepot/storefront/internal/cart/repository"
	cartsvc "github.com/smartdepot/storefront/internal/cart/service"
	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/payment"
	"github.com/smartdepot/storefront/internal/service"
	"github.com/smartdepot/storefront/pkg/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

var validationErrors = []error{
	service.ErrEmptyCart,
	service.ErrMissingAddress,
	service.ErrInvalidPaymentMethod,
	service.ErrInvalidDeliveryMethod,
	service.ErrInvalidQuantity,
	service.ErrInvalidItem,
	service.ErrInvalidReason,
	service.ErrInvalidStatus,
	cartsvc.ErrInvalidQuantity,
}

var notFoundErrors = []error{
	domain.ErrOrderNotFound,
	domain.ErrReturnNotFound,
	domain.ErrProductNotFound,
	domain.ErrUserNotFound,
	cartrepo.ErrCartNotFound,
	cartrepo.ErrItemNotFound,
	payment.ErrSessionNotFound,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// handleServiceError converts workflow errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var stock *domain.InsufficientStockError

	switch {
	case isAny(err, validationErrors):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", "you do not have access to this resource")
	case isAny(err, notFoundErrors):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, service.ErrOrderNotReturnable):
		respondError(w, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.As(err, &stock):
		respondError(w, http.StatusConflict, "insufficient_stock", stock.Error())
	case errors.Is(err, domain.ErrDuplicateReturn):
		respondError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, domain.ErrProductInUse):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrPaymentSessionFailed), errors.Is(err, payment.ErrUnavailable):
		logger.FromContext(r.Context()).Error("payment gateway failure", zap.Error(err))
		respondError(w, http.StatusBadGateway, "payment_unavailable", "payment provider is unavailable, please try again")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// idParam parses a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
