package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/payment"
	"github.com/smartdepot/storefront/internal/service"
	"github.com/smartdepot/storefront/pkg/logger"
)

const maxWebhookBody = 64 << 10

type PaymentService interface {
	ConfirmPayment(ctx context.Context, req service.ConfirmPaymentRequest) error
	PaymentStatus(ctx context.Context, sessionID string) (*service.PaymentStatusResult, error)
}

type PaymentsHandler struct {
	svc       PaymentService
	secret    string
	tolerance time.Duration
	timeout   time.Duration
}

func NewPaymentsHandler(svc PaymentService, webhookSecret string, tolerance, timeout time.Duration) *PaymentsHandler {
	return &PaymentsHandler{
		svc:       svc,
		secret:    webhookSecret,
		tolerance: tolerance,
		timeout:   timeout,
	}
}

// POST /api/payments/webhook
//
// Once the signature checks out the event is acknowledged unless the failure
// is one a redelivery could fix.
func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read body")
		return
	}

	event, err := payment.ConstructEvent(body, r.Header.Get(payment.SignatureHeader), h.secret, h.tolerance)
	if err != nil {
		log.Warn("webhook rejected", zap.Error(err))
		respondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		return
	}
	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	switch event.Type {
	case payment.EventCheckoutCompleted:
		if err := h.confirm(r.Context(), event, log); err != nil {
			log.Error("payment confirmation failed, asking for redelivery", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal_error", "payment confirmation failed")
			return
		}
	case payment.EventPaymentIntentSucceeded:
		log.Info("payment intent succeeded")
	case payment.EventPaymentIntentFailed:
		log.Warn("payment intent failed")
	default:
		log.Debug("ignoring webhook event")
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// confirm returns an error only for failures worth a redelivery.
func (h *PaymentsHandler) confirm(ctx context.Context, event *payment.Event, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	sess, err := event.CheckoutSession()
	if err != nil {
		log.Error("malformed checkout session payload", zap.Error(err))
		return nil
	}
	orderID, err := sess.OrderID()
	if err != nil {
		log.Error("checkout session without a usable order id", zap.String("session_id", sess.ID), zap.Error(err))
		return nil
	}

	err = h.svc.ConfirmPayment(ctx, service.ConfirmPaymentRequest{
		EventID:      event.ID,
		OrderID:      orderID,
		Email:        sess.Email(),
		CustomerName: sess.CustomerDetails.Name,
		PaymentRef:   sess.PaymentRef(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrInvalidState):
		log.Error("payment for an order that cannot be paid",
			zap.Int64("order_id", orderID), zap.String("payment_ref", sess.PaymentRef()), zap.Error(err))
		return nil
	default:
		return err
	}
}

// GET /api/payments/status/{sessionId}
func (h *PaymentsHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "session id is required")
		return
	}

	res, err := h.svc.PaymentStatus(ctx, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}
