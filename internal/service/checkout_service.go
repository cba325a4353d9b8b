package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/payment"
	"github.com/smartdepot/storefront/pkg/logger"
)

const cashOrderMessage = "Order placed. You will pay on delivery."

// PlaceOrder validates the cart snapshot, commits the order with its stock
// decrements and then starts the payment path chosen by the customer.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	fromCart := len(req.Items) == 0 && s.carts != nil
	if fromCart {
		stored, err := s.carts.Snapshot(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		req.Items = stored
	}

	method, items, err := validatePlaceOrder(&req)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.CreateOrder(ctx, domain.NewOrder{
		UserID:        req.UserID,
		Address:       req.Address,
		PaymentMethod: method,
		Items:         items,
		CatalogOnly:   fromCart,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderPlaced(string(method))

	log := logger.FromContext(ctx).With(zap.Int64("order_id", order.ID), zap.Int64("user_id", req.UserID))
	log.Info("order placed",
		zap.String("payment_method", string(method)),
		zap.Int64("total_cents", order.TotalCents),
		zap.Int("items", len(order.Items)))

	result := &PlaceOrderResult{
		OrderID:    order.ID,
		Total:      domain.FormatCents(order.TotalCents),
		TotalCents: order.TotalCents,
	}

	if method == domain.PaymentMethodCard {
		session, err := s.startCardPayment(ctx, order, req.Email)
		if err != nil {
			log.Error("create checkout session", zap.Error(err))
			// nothing was charged: put the stock back
			if _, cancelErr := s.repo.TransitionOrder(ctx, order.ID, domain.OrderStatusCanceled); cancelErr != nil {
				log.Error("cancel order after payment session failure", zap.Error(cancelErr))
			}
			return nil, fmt.Errorf("%w: %w", ErrPaymentSessionFailed, err)
		}
		result.Status = domain.StatusPendingPayment
		result.PaymentURL = session.URL
		result.SessionID = session.ID
		return result, nil
	}

	email, name := s.recipient(ctx, req.UserID, req.Email, "")
	s.sendOrderConfirmation(ctx, order, email, name, false)

	result.Status = string(domain.OrderStatusPlaced)
	result.Message = cashOrderMessage
	return result, nil
}

func (s *CheckoutService) startCardPayment(ctx context.Context, order *domain.Order, email string) (*payment.CheckoutSession, error) {
	lines := make([]payment.LineItem, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, payment.LineItem{
			Name:       it.Title,
			UnitAmount: it.PriceCents,
			Quantity:   it.Quantity,
			ProductID:  it.ProductID,
		})
	}

	return s.gateway.CreateCheckoutSession(ctx, payment.SessionRequest{
		CustomerEmail: email,
		Currency:      s.cfg.Currency,
		LineItems:     lines,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		Metadata:      payment.Metadata{OrderID: strconv.FormatInt(order.ID, 10)},
	})
}

// validatePlaceOrder normalizes the request and returns the merged, id-ordered
// lines, each capped like a cart line. Sorting keeps concurrent checkouts
// locking products in the same order.
func validatePlaceOrder(req *PlaceOrderRequest) (domain.PaymentMethod, []domain.CartSnapshotItem, error) {
	if len(req.Items) == 0 {
		return "", nil, ErrEmptyCart
	}

	method, ok := domain.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if !ok {
		return "", nil, ErrInvalidPaymentMethod
	}

	delivery := domain.DeliveryMethod(strings.ToLower(strings.TrimSpace(req.DeliveryMethod)))
	switch delivery {
	case "":
		delivery = domain.DeliveryCourier
	case domain.DeliveryCourier, domain.DeliveryPickup:
	default:
		return "", nil, ErrInvalidDeliveryMethod
	}

	req.Address = strings.TrimSpace(req.Address)
	if delivery.RequiresAddress() && req.Address == "" {
		return "", nil, ErrMissingAddress
	}

	index := make(map[int64]int, len(req.Items))
	items := make([]domain.CartSnapshotItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID <= 0 || it.Price < 0 {
			return "", nil, ErrInvalidItem
		}
		if it.Quantity <= 0 || it.Quantity > domain.MaxCartItemQuantity {
			return "", nil, ErrInvalidQuantity
		}
		if i, seen := index[it.ProductID]; seen {
			merged := int64(items[i].Quantity) + int64(it.Quantity)
			if merged > domain.MaxCartItemQuantity {
				return "", nil, ErrInvalidQuantity
			}
			items[i].Quantity = int32(merged)
			continue
		}
		index[it.ProductID] = len(items)
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	return method, items, nil
}

// ConfirmPayment marks the order paid once per webhook event and sends the
// paid confirmation with the invoice. A redelivered event is a no-op.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) error {
	log := logger.FromContext(ctx).With(
		zap.Int64("order_id", req.OrderID),
		zap.String("event_id", req.EventID),
		zap.String("payment_ref", req.PaymentRef))

	order, err := s.repo.MarkOrderPaid(ctx, domain.PaymentConfirmation{
		EventID:    req.EventID,
		OrderID:    req.OrderID,
		PaymentRef: req.PaymentRef,
	})
	switch {
	case errors.Is(err, domain.ErrEventAlreadyProcessed):
		s.metrics.PaymentConfirmation("duplicate")
		log.Info("payment event already applied")
		return nil
	case errors.Is(err, domain.ErrPaymentRefAttached):
		s.metrics.PaymentConfirmation("ref_attached")
		log.Info("payment reference attached to order already marked paid")
		return nil
	case errors.Is(err, domain.ErrOrderNotFound):
		s.metrics.PaymentConfirmation("order_not_found")
		return err
	case errors.Is(err, domain.ErrInvalidState):
		s.metrics.PaymentConfirmation("invalid_state")
		return err
	case err != nil:
		s.metrics.PaymentConfirmation("error")
		return fmt.Errorf("confirm payment for order %d: %w", req.OrderID, err)
	}

	s.metrics.PaymentConfirmation("confirmed")
	log.Info("order paid")

	email, name := s.recipient(ctx, order.UserID, req.Email, req.CustomerName)
	s.sendOrderConfirmation(ctx, order, email, name, true)
	return nil
}

// PaymentStatus reports the gateway's view of a checkout session. A paid
// session whose webhook has not arrived yet is reconciled here.
func (s *CheckoutService) PaymentStatus(ctx context.Context, sessionID string) (*PaymentStatusResult, error) {
	session, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res := &PaymentStatusResult{
		SessionID:     session.ID,
		Status:        session.PaymentStatus,
		AmountTotal:   session.AmountTotal,
		CustomerEmail: session.CustomerEmail,
	}
	if id, err := strconv.ParseInt(session.Metadata.OrderID, 10, 64); err == nil {
		res.OrderID = id
	}

	if session.PaymentStatus == payment.SessionPaid && res.OrderID > 0 {
		ref := session.PaymentIntent
		if ref == "" {
			ref = session.ID
		}
		err := s.ConfirmPayment(ctx, ConfirmPaymentRequest{
			EventID:    "session:" + session.ID,
			OrderID:    res.OrderID,
			Email:      session.CustomerEmail,
			PaymentRef: ref,
		})
		if err != nil && !errors.Is(err, domain.ErrInvalidState) {
			logger.FromContext(ctx).Warn("reconcile paid session", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	return res, nil
}
