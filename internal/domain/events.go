package domain

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced   = "order.placed"
	EventOrderPaid     = "order.paid"
	EventOrderCanceled = "order.canceled"
)

// OutboxEvent is a row of the transactional outbox waiting to be published.
type OutboxEvent struct {
	ID          int64           `db:"id"`
	EventID     string          `db:"event_id"`
	AggregateID string          `db:"aggregate_id"`
	EventType   string          `db:"event_type"`
	Payload     json.RawMessage `db:"payload"`
	CreatedAt   time.Time       `db:"created_at"`
	PublishedAt *time.Time      `db:"published_at"`
}

// OrderEvent is the payload of every order.* event.
type OrderEvent struct {
	EventID       string      `json:"event_id"`
	OrderID       int64       `json:"order_id"`
	UserID        int64       `json:"user_id"`
	Status        OrderStatus `json:"status"`
	TotalCents    int64       `json:"total_cents"`
	PaymentMethod string      `json:"payment_method,omitempty"`
	PaymentRef    string      `json:"payment_ref,omitempty"`
	ProductIDs    []int64     `json:"product_ids,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}
