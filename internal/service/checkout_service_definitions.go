package service

import (
	"context"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/metrics"
	"github.com/smartdepot/storefront/internal/notify"
	"github.com/smartdepot/storefront/internal/payment"
)

// OrderRepository is the persistence the order workflow needs.
type OrderRepository interface {
	CreateOrder(ctx context.Context, in domain.NewOrder) (*domain.Order, error)
	MarkOrderPaid(ctx context.Context, c domain.PaymentConfirmation) (*domain.Order, error)
	TransitionOrder(ctx context.Context, orderID int64, to domain.OrderStatus) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// CartSource supplies the stored cart when a checkout carries no items.
type CartSource interface {
	Snapshot(ctx context.Context, userID int64) ([]domain.CartSnapshotItem, error)
}

// ReturnRepository is the persistence the returns workflow needs.
type ReturnRepository interface {
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateReturn(ctx context.Context, ret *domain.Return) error
	GetReturn(ctx context.Context, id int64) (*domain.ReturnDetails, error)
	ListReturnsByUser(ctx context.Context, userID int64) ([]*domain.ReturnDetails, error)
	ListReturns(ctx context.Context) ([]*domain.ReturnDetails, error)
	ApplyReturnUpdate(ctx context.Context, u domain.ReturnUpdate) error
	DeleteReturn(ctx context.Context, id int64) error
}

// CheckoutConfig holds the hosted payment page settings.
type CheckoutConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

type CheckoutService struct {
	repo     OrderRepository
	carts    CartSource
	gateway  payment.Gateway
	notifier notify.Notifier
	metrics  *metrics.Metrics
	cfg      CheckoutConfig
}

func NewCheckoutService(repo OrderRepository, carts CartSource, gateway payment.Gateway, notifier notify.Notifier, m *metrics.Metrics, cfg CheckoutConfig) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "ron"
	}
	return &CheckoutService{
		repo:     repo,
		carts:    carts,
		gateway:  gateway,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
	}
}

type ReturnsService struct {
	repo     ReturnRepository
	gateway  payment.Gateway
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func NewReturnsService(repo ReturnRepository, gateway payment.Gateway, notifier notify.Notifier, m *metrics.Metrics) *ReturnsService {
	return &ReturnsService{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		metrics:  m,
	}
}

// PlaceOrderRequest is a checkout submitted by an authenticated user. Without
// Items the user's stored cart is checked out.
type PlaceOrderRequest struct {
	UserID         int64
	Email          string
	Address        string
	PaymentMethod  string
	DeliveryMethod string
	Items          []domain.CartSnapshotItem
}

type PlaceOrderResult struct {
	OrderID    int64  `json:"orderId"`
	Total      string `json:"total"`
	TotalCents int64  `json:"total_cents"`
	Status     string `json:"status"`
	PaymentURL string `json:"paymentUrl,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ConfirmPaymentRequest is the verified content of a checkout-completed webhook.
type ConfirmPaymentRequest struct {
	EventID      string
	OrderID      int64
	Email        string
	CustomerName string
	PaymentRef   string
}

type PaymentStatusResult struct {
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	OrderID       int64  `json:"order_id,omitempty"`
	AmountTotal   int64  `json:"amount_total"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

type ReturnUpdateResult struct {
	Return *domain.ReturnDetails `json:"return"`
	Refund domain.RefundOutcome  `json:"refund"`
}
