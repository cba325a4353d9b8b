package domain

import "time"

type ReturnStatus string

const (
	ReturnStatusPending   ReturnStatus = "pending"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusCompleted ReturnStatus = "completed"
)

// OrderReturnRequested is written to orders.return_status when a return is filed.
const OrderReturnRequested = "requested"

func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusApproved, ReturnStatusRejected, ReturnStatusCompleted:
		return true
	}
	return false
}

type ReturnReason string

const (
	ReasonDefect      ReturnReason = "defect"
	ReasonMismatch    ReturnReason = "mismatch"
	ReasonChangedMind ReturnReason = "changed_mind"
	ReasonOther       ReturnReason = "other"
)

func (r ReturnReason) Valid() bool {
	switch r {
	case ReasonDefect, ReasonMismatch, ReasonChangedMind, ReasonOther:
		return true
	}
	return false
}

// Label is the human readable reason used in customer emails.
func (r ReturnReason) Label() string {
	switch r {
	case ReasonDefect:
		return "Defective product"
	case ReasonMismatch:
		return "Does not match the description"
	case ReasonChangedMind:
		return "Changed my mind"
	default:
		return "Other"
	}
}

type Return struct {
	ID           int64        `db:"id" json:"id"`
	OrderID      int64        `db:"order_id" json:"order_id"`
	UserID       int64        `db:"user_id" json:"user_id"`
	Reason       ReturnReason `db:"reason" json:"reason"`
	Details      string       `db:"details" json:"details"`
	Status       ReturnStatus `db:"status" json:"status"`
	AdminNotes   string       `db:"admin_notes" json:"admin_notes"`
	RefundStatus RefundKind   `db:"refund_status" json:"refund_status"`
	RefundID     *string      `db:"refund_id" json:"refund_id,omitempty"`
	RefundError  *string      `db:"refund_error" json:"refund_error,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// ReturnDetails is a return joined with its order and owner.
type ReturnDetails struct {
	Return
	OrderTotalCents int64       `db:"total_cents" json:"order_total_cents"`
	OrderAddress    string      `db:"address" json:"order_address"`
	OrderDate       time.Time   `db:"order_date" json:"order_date"`
	PaymentRef      *string     `db:"payment_ref" json:"payment_ref,omitempty"`
	UserName        string      `db:"user_name" json:"user_name"`
	UserEmail       string      `db:"user_email" json:"user_email"`
	Items           []OrderItem `db:"-" json:"items,omitempty"`
}

// RefundKind tags what happened to the money when a return was approved.
type RefundKind string

const (
	RefundNotAttempted    RefundKind = "not_attempted"
	RefundSucceeded       RefundKind = "refunded"
	RefundPending         RefundKind = "refund_pending"
	RefundFailed          RefundKind = "refund_failed"
	RefundNoPaymentOnFile RefundKind = "no_payment_on_file"
)

type RefundOutcome struct {
	Kind     RefundKind `json:"outcome"`
	RefundID string     `json:"refund_id,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// ReturnUpdate is the admin decision persisted for a return.
type ReturnUpdate struct {
	ReturnID   int64
	Status     ReturnStatus
	AdminNotes string
	Refund     RefundOutcome
}
