package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/smartdepot/storefront/internal/cart/cache"
	"github.com/smartdepot/storefront/internal/cart/repository"
	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/pkg/logger"
)

var ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")

const cacheTimeout = time.Second

// Catalog is the product lookup used to reject unknown products.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog Catalog
	sfg     singleflight.Group
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog Catalog) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
	}
}

// GetCart reads through the cache. The fill is conditional on the version seen
// before the repository read, so a write that lands in between wins.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		log := logger.FromContext(ctx).With(zap.Int64("user_id", userID))

		cached, version, err := s.cache.Lookup(ctx, userID)
		if err == nil {
			return cached, nil
		}
		fillable := errors.Is(err, cache.ErrCacheMiss)
		if !fillable {
			log.Warn("cart cache lookup failed", zap.Error(err))
		}

		cart, err := s.repo.Load(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return emptyCart(userID), nil
		}
		if err != nil {
			return nil, err
		}

		if fillable {
			fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
			defer cancel()
			if err := s.cache.Fill(fillCtx, userID, version, cart); err != nil && !errors.Is(err, cache.ErrStaleFill) {
				log.Warn("cart cache fill failed", zap.Error(err))
			}
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// Snapshot returns the stored cart as checkout lines, priced later from the catalog.
func (s *CartService) Snapshot(ctx context.Context, userID int64) ([]domain.CartSnapshotItem, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read cart for checkout: %w", err)
	}
	lines := make([]domain.CartSnapshotItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		lines = append(lines, domain.CartSnapshotItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines, nil
}

func (s *CartService) AddItem(ctx context.Context, userID int64, productID int64, quantity int32) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return err
	}

	if err := s.repo.PutItem(ctx, userID, domain.CartItem{ProductID: productID, Quantity: quantity}); err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID int64, productID int64, quantity int32) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	if err := s.repo.SetQuantity(ctx, userID, productID, quantity); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID int64, productID int64) error {
	if err := s.repo.RemoveProducts(ctx, userID, productID); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

// ClearCart empties the cart; clearing an absent cart succeeds.
func (s *CartService) ClearCart(ctx context.Context, userID int64) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) invalidate(ctx context.Context, userID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logger.FromContext(ctx).Warn("cart cache invalidate failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func emptyCart(userID int64) *domain.Cart {
	now := time.Now()
	return &domain.Cart{UserID: userID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}
}

func validateQuantity(q int32) error {
	if q < 1 || q > domain.MaxCartItemQuantity {
		return ErrInvalidQuantity
	}
	return nil
}
