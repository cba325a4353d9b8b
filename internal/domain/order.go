package domain

import "time"

type OrderStatus string

const (
	OrderStatusPlaced   OrderStatus = "placed"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusCanceled OrderStatus = "canceled"
)

// StatusPendingPayment is reported to the client after a card checkout; it is never persisted.
const StatusPendingPayment = "pending_payment"

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced: {OrderStatusPaid, OrderStatusCanceled},
}

// CanTransitionTo reports whether an order may move from one status to another.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCanceled
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusPaid, OrderStatusCanceled:
		return true
	}
	return false
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
)

// ParsePaymentMethod accepts "ramburs" as the cash-on-delivery alias used by older clients.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch s {
	case "card":
		return PaymentMethodCard, true
	case "cash", "ramburs":
		return PaymentMethodCash, true
	}
	return "", false
}

type DeliveryMethod string

const (
	DeliveryCourier DeliveryMethod = "courier"
	DeliveryPickup  DeliveryMethod = "pickup"
)

func (d DeliveryMethod) RequiresAddress() bool {
	return d != DeliveryPickup
}

type Order struct {
	ID           int64       `db:"id" json:"id"`
	UserID       int64       `db:"user_id" json:"user_id"`
	TotalCents   int64       `db:"total_cents" json:"total_cents"`
	Status       OrderStatus `db:"status" json:"status"`
	Address      string      `db:"address" json:"address"`
	PaymentRef   *string     `db:"payment_ref" json:"payment_ref,omitempty"`
	ReturnStatus *string     `db:"return_status" json:"return_status,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
	Items        []OrderItem `db:"-" json:"items"`
}

// OrderItem is the line snapshot taken at purchase time.
type OrderItem struct {
	ProductID  int64  `db:"product_id" json:"product_id"`
	Title      string `db:"title" json:"title"`
	Quantity   int32  `db:"qty" json:"quantity"`
	PriceCents int64  `db:"price_cents" json:"price_cents"`
}

func (i OrderItem) SubtotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}

// CartSnapshotItem is one line of the cart as submitted at checkout.
type CartSnapshotItem struct {
	ProductID int64   `json:"id"`
	Title     string  `json:"title"`
	Quantity  int32   `json:"quantity"`
	Price     float64 `json:"price"`
	Category  string  `json:"category"`
	Brand     string  `json:"brand"`
	ImageURL  string  `json:"thumbnail"`
}

// NewOrder is everything the repository needs to persist an order atomically.
type NewOrder struct {
	UserID        int64
	Address       string
	PaymentMethod PaymentMethod
	Items         []CartSnapshotItem
	// CatalogOnly fails lines for unknown products instead of provisioning them.
	CatalogOnly bool
}

// PaymentConfirmation carries a verified checkout-completed event.
type PaymentConfirmation struct {
	EventID    string
	OrderID    int64
	PaymentRef string
}
