package service

import "errors"

var (
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrMissingAddress        = errors.New("shipping address is required for courier delivery")
	ErrInvalidPaymentMethod  = errors.New("payment method must be card or cash")
	ErrInvalidDeliveryMethod = errors.New("delivery method must be courier or pickup")
	ErrInvalidQuantity       = errors.New("quantity per product must be between 1 and 99")
	ErrInvalidItem           = errors.New("cart item has an invalid product id or price")
	ErrInvalidReason         = errors.New("return reason must be one of defect, mismatch, changed_mind, other")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrPaymentSessionFailed  = errors.New("could not start card payment, order was canceled")
	ErrOrderNotReturnable    = errors.New("canceled orders cannot be returned")
)
