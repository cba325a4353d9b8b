package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/invoice"
	"github.com/smartdepot/storefront/internal/metrics"
	"github.com/smartdepot/storefront/internal/notify"
	"github.com/smartdepot/storefront/pkg/logger"
)

// recipient resolves who gets the mail: the explicit address first, then the account.
func (s *CheckoutService) recipient(ctx context.Context, userID int64, email, name string) (string, string) {
	if email != "" && name != "" {
		return email, name
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Warn("load user for notification", zap.Int64("user_id", userID), zap.Error(err))
		return email, name
	}
	if email == "" {
		email = u.Email
	}
	if name == "" {
		name = u.Name
	}
	return email, name
}

// sendOrderConfirmation renders the invoice and mails it. Failures are logged
// and counted, never returned: the order is already committed.
func (s *CheckoutService) sendOrderConfirmation(ctx context.Context, order *domain.Order, email, name string, paid bool) {
	log := logger.FromContext(ctx).With(zap.Int64("order_id", order.ID))
	if email == "" {
		s.metrics.NotificationFailed("order_confirmation")
		log.Error("no email address for order confirmation")
		return
	}

	pdf, err := invoice.Generate(order, invoice.Customer{Name: name, Email: email})
	if err != nil {
		s.metrics.NotificationFailed("invoice")
		log.Error("generate invoice", zap.Error(err))
	}

	msg, err := notify.OrderConfirmation(email, name, order, paid, pdf)
	if err != nil {
		s.metrics.NotificationFailed("order_confirmation")
		log.Error("render order confirmation", zap.Error(err))
		return
	}
	deliver(ctx, s.notifier, s.metrics, "order_confirmation", msg, log)
}

func deliver(ctx context.Context, n notify.Notifier, m *metrics.Metrics, kind string, msg notify.Message, log *zap.Logger) {
	if err := n.Send(ctx, msg); err != nil {
		m.NotificationFailed(kind)
		log.Error("send email", zap.String("kind", kind), zap.String("to", msg.To), zap.Error(err))
		return
	}
	log.Info("email sent", zap.String("kind", kind), zap.String("to", msg.To))
}
