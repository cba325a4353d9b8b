package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/pkg/logger"
)

// CancelOrder cancels a placed order on behalf of its owner and restores stock.
func (s *CheckoutService) CancelOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if !domain.CanTransitionTo(order.Status, domain.OrderStatusCanceled) {
		return nil, &domain.StateError{Current: order.Status, Wanted: domain.OrderStatusCanceled}
	}

	canceled, err := s.repo.TransitionOrder(ctx, orderID, domain.OrderStatusCanceled)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("order canceled by customer",
		zap.Int64("order_id", orderID), zap.Int64("user_id", userID))
	return canceled, nil
}

// GetUserOrder hides orders of other users behind ErrOrderNotFound.
func (s *CheckoutService) GetUserOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) ListUserOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, page, limit int) ([]*domain.Order, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	orders, err := s.repo.ListOrders(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}

func (s *CheckoutService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// UpdateOrderStatus is the admin transition, bound by the same status table.
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*domain.Order, error) {
	to := domain.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	order, err := s.repo.TransitionOrder(ctx, orderID, to)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("order status changed by admin",
		zap.Int64("order_id", orderID), zap.String("status", to.String()))
	return order, nil
}
