package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrReturnNotFound        = errors.New("return not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrProductInUse          = errors.New("product is referenced by orders")
	ErrUserNotFound          = errors.New("user not found")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidState          = errors.New("invalid state for requested transition")
	ErrDuplicateReturn       = errors.New("a return already exists for this order")
	ErrEventAlreadyProcessed = errors.New("payment event already processed")
	// ErrPaymentRefAttached: the order was already paid without a reference and now has one.
	ErrPaymentRefAttached = errors.New("payment reference attached to an order already marked paid")
)

// InsufficientStockError fails a checkout when a line asks for more than is on hand.
type InsufficientStockError struct {
	ProductID int64
	Title     string
	Available int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (product %d): available %d, requested %d",
		e.Title, e.ProductID, e.Available, e.Requested)
}

// StateError reports the current status that blocked a transition.
type StateError struct {
	Current OrderStatus
	Wanted  OrderStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("order is %s, cannot move to %s", e.Current, e.Wanted)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}
