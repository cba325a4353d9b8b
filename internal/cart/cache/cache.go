package cache

import (
	"context"
	"errors"

	"github.com/smartdepot/storefront/internal/domain"
)

// CartCache is a read-through cache whose fills are guarded by a per-user
// version. Lookup reports the version on a miss; Fill stores the cart only if
// no Invalidate happened since, so a fill racing a cart write is dropped.
type CartCache interface {
	Lookup(ctx context.Context, userID int64) (*domain.Cart, int64, error)
	Fill(ctx context.Context, userID int64, version int64, cart *domain.Cart) error
	Invalidate(ctx context.Context, userID int64) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrStaleFill = errors.New("cart changed since lookup, fill dropped")
)
