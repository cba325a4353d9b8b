package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/notify"
	"github.com/smartdepot/storefront/internal/payment"
	"github.com/smartdepot/storefront/pkg/logger"
)

// CreateReturn files a pending return for an order the user owns.
func (s *ReturnsService) CreateReturn(ctx context.Context, userID, orderID int64, reason, details string) (*domain.Return, error) {
	r := domain.ReturnReason(strings.TrimSpace(reason))
	if !r.Valid() {
		return nil, ErrInvalidReason
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status == domain.OrderStatusCanceled {
		return nil, ErrOrderNotReturnable
	}

	ret := &domain.Return{
		OrderID: orderID,
		UserID:  userID,
		Reason:  r,
		Details: strings.TrimSpace(details),
	}
	if err := s.repo.CreateReturn(ctx, ret); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(zap.Int64("return_id", ret.ID), zap.Int64("order_id", orderID))
	log.Info("return requested", zap.String("reason", string(r)))

	if u, err := s.repo.GetUser(ctx, userID); err != nil {
		log.Error("load user for return confirmation", zap.Error(err))
	} else if msg, err := notify.ReturnCreated(u.Email, ret); err != nil {
		log.Error("render return confirmation", zap.Error(err))
	} else {
		deliver(ctx, s.notifier, s.metrics, "return_created", msg, log)
	}
	return ret, nil
}

// UpdateReturnStatus applies an admin decision. Approving a return whose order
// was paid by card refunds the order total; the outcome is always reported.
func (s *ReturnsService) UpdateReturnStatus(ctx context.Context, returnID int64, status, adminNotes string) (*ReturnUpdateResult, error) {
	requested := domain.ReturnStatus(strings.ToLower(strings.TrimSpace(status)))
	if !requested.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.repo.GetReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(zap.Int64("return_id", returnID), zap.Int64("order_id", current.OrderID))

	update := domain.ReturnUpdate{
		ReturnID:   returnID,
		Status:     requested,
		AdminNotes: strings.TrimSpace(adminNotes),
		Refund:     domain.RefundOutcome{Kind: domain.RefundNotAttempted},
	}

	switch {
	case current.RefundID != nil && current.RefundStatus == domain.RefundPending:
		update.Refund = s.settlePendingRefund(ctx, current, log)
	case current.RefundID != nil:
		// money already moved: never refund twice
		update.Refund = domain.RefundOutcome{Kind: current.RefundStatus, RefundID: *current.RefundID}
	case requested == domain.ReturnStatusApproved:
		update.Refund = s.refund(ctx, current, log)
	}
	if current.RefundStatus != domain.RefundSucceeded && update.Refund.Kind == domain.RefundSucceeded {
		update.AdminNotes = strings.TrimSpace(fmt.Sprintf("%s [Automatic refund: %s]", update.AdminNotes, update.Refund.RefundID))
	}
	if requested == domain.ReturnStatusApproved && update.Refund.Kind == domain.RefundSucceeded {
		update.Status = domain.ReturnStatusCompleted
	}

	if err := s.repo.ApplyReturnUpdate(ctx, update); err != nil {
		return nil, err
	}
	log.Info("return status updated",
		zap.String("requested", string(requested)),
		zap.String("status", string(update.Status)),
		zap.String("refund", string(update.Refund.Kind)))

	updated, err := s.repo.GetReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}

	refundedNow := current.RefundStatus != domain.RefundSucceeded && update.Refund.Kind == domain.RefundSucceeded
	s.notifyReturnUpdate(ctx, updated, update, refundedNow, log)
	return &ReturnUpdateResult{Return: updated, Refund: update.Refund}, nil
}

func (s *ReturnsService) refund(ctx context.Context, ret *domain.ReturnDetails, log *zap.Logger) domain.RefundOutcome {
	if ret.PaymentRef == nil || *ret.PaymentRef == "" {
		return domain.RefundOutcome{Kind: domain.RefundNoPaymentOnFile}
	}

	rf, err := s.gateway.Refund(ctx, payment.RefundRequest{
		PaymentRef:     *ret.PaymentRef,
		AmountCents:    ret.OrderTotalCents,
		IdempotencyKey: fmt.Sprintf("return-%d", ret.ID),
	})
	if err != nil {
		s.metrics.Refund(string(domain.RefundFailed))
		log.Error("refund failed", zap.String("payment_ref", *ret.PaymentRef), zap.Error(err))
		return domain.RefundOutcome{Kind: domain.RefundFailed, Reason: err.Error()}
	}

	out := refundOutcome(rf)
	s.metrics.Refund(string(out.Kind))
	log.Info("refund issued", zap.String("refund_id", rf.ID), zap.String("status", rf.Status))
	return out
}

// settlePendingRefund asks the gateway how a pending refund ended. A failed
// lookup leaves the refund pending for the next attempt.
func (s *ReturnsService) settlePendingRefund(ctx context.Context, ret *domain.ReturnDetails, log *zap.Logger) domain.RefundOutcome {
	refundID := *ret.RefundID
	rf, err := s.gateway.GetRefund(ctx, refundID)
	if err != nil {
		log.Warn("look up pending refund", zap.String("refund_id", refundID), zap.Error(err))
		return domain.RefundOutcome{Kind: domain.RefundPending, RefundID: refundID}
	}

	out := refundOutcome(rf)
	out.RefundID = refundID
	if out.Kind != domain.RefundPending {
		s.metrics.Refund(string(out.Kind))
	}
	log.Info("pending refund looked up", zap.String("refund_id", refundID), zap.String("status", rf.Status))
	return out
}

func refundOutcome(rf *payment.Refund) domain.RefundOutcome {
	switch rf.Status {
	case payment.RefundSucceeded:
		return domain.RefundOutcome{Kind: domain.RefundSucceeded, RefundID: rf.ID}
	case payment.RefundPending:
		return domain.RefundOutcome{Kind: domain.RefundPending, RefundID: rf.ID}
	}
	reason := rf.FailureReason
	if reason == "" {
		reason = fmt.Sprintf("gateway reported refund status %q", rf.Status)
	}
	return domain.RefundOutcome{Kind: domain.RefundFailed, Reason: reason}
}

func (s *ReturnsService) notifyReturnUpdate(ctx context.Context, ret *domain.ReturnDetails, u domain.ReturnUpdate, refundedNow bool, log *zap.Logger) {
	if ret.UserEmail == "" {
		return
	}

	var (
		msg  notify.Message
		kind string
		err  error
	)
	if refundedNow {
		kind = "return_refunded"
		msg, err = notify.ReturnRefunded(ret.UserEmail, ret.OrderID, ret.OrderTotalCents, u.Refund.RefundID)
	} else {
		kind = "return_status"
		msg, err = notify.ReturnStatusChanged(ret.UserEmail, ret.OrderID, u.Status, u.AdminNotes)
	}
	if err != nil {
		s.metrics.NotificationFailed(kind)
		log.Error("render return email", zap.String("kind", kind), zap.Error(err))
		return
	}
	deliver(ctx, s.notifier, s.metrics, kind, msg, log)
}

func (s *ReturnsService) GetReturn(ctx context.Context, id int64) (*domain.ReturnDetails, error) {
	return s.repo.GetReturn(ctx, id)
}

func (s *ReturnsService) ListUserReturns(ctx context.Context, userID int64) ([]*domain.ReturnDetails, error) {
	return s.repo.ListReturnsByUser(ctx, userID)
}

func (s *ReturnsService) ListReturns(ctx context.Context) ([]*domain.ReturnDetails, error) {
	return s.repo.ListReturns(ctx)
}

func (s *ReturnsService) DeleteReturn(ctx context.Context, id int64) error {
	if err := s.repo.DeleteReturn(ctx, id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("return deleted", zap.Int64("return_id", id))
	return nil
}
