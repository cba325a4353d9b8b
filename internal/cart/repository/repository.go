package repository

import (
	"context"

	"github.com/smartdepot/storefront/internal/domain"
)

// CartRepository is the document store behind the cart.
type CartRepository interface {
	Load(ctx context.Context, userID int64) (*domain.Cart, error)
	PutItem(ctx context.Context, userID int64, item domain.CartItem) error
	SetQuantity(ctx context.Context, userID int64, productID int64, quantity int32) error
	// RemoveProducts drops every line for the given products.
	RemoveProducts(ctx context.Context, userID int64, productIDs ...int64) error
	// Clear deletes the cart; an absent cart is already clear.
	Clear(ctx context.Context, userID int64) error
}
