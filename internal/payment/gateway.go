package payment

import (
	"context"
	"errors"
)

var (
	ErrUnavailable     = errors.New("payment gateway unavailable")
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrRefundNotFound  = errors.New("refund not found")
)

// Session statuses reported by the gateway.
const (
	SessionPaid              = "paid"
	SessionUnpaid            = "unpaid"
	SessionNoPaymentRequired = "no_payment_required"
)

// Refund statuses reported by the gateway.
const (
	RefundSucceeded = "succeeded"
	RefundPending   = "pending"
	RefundFailed    = "failed"
)

// Gateway is the hosted checkout and refund provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
	GetRefund(ctx context.Context, refundID string) (*Refund, error)
}

type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int32  `json:"quantity"`
	ProductID  int64  `json:"product_id"`
}

type SessionRequest struct {
	CustomerEmail string     `json:"customer_email,omitempty"`
	Currency      string     `json:"currency"`
	LineItems     []LineItem `json:"line_items"`
	SuccessURL    string     `json:"success_url"`
	CancelURL     string     `json:"cancel_url"`
	Metadata      Metadata   `json:"metadata"`
}

type Metadata struct {
	OrderID string `json:"orderId"`
}

type CheckoutSession struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	PaymentStatus string   `json:"payment_status"`
	AmountTotal   int64    `json:"amount_total"`
	CustomerEmail string   `json:"customer_email"`
	PaymentIntent string   `json:"payment_intent"`
	Metadata      Metadata `json:"metadata"`
}

type RefundRequest struct {
	PaymentRef     string `json:"payment_intent"`
	AmountCents    int64  `json:"amount"`
	IdempotencyKey string `json:"-"`
}

type Refund struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}
