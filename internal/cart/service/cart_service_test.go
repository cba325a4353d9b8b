package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdepot/storefront/internal/cart/cache"
	"github.com/smartdepot/storefront/internal/cart/repository"
	"github.com/smartdepot/storefront/internal/domain"
)

type mockRepository struct {
	m         sync.RWMutex
	cart      *domain.Cart
	err       error
	loadCalls atomic.Int32
	loadDelay time.Duration
}

// Load hands out a copy so later writes do not reach carts already returned.
func (m *mockRepository) Load(context.Context, int64) (*domain.Cart, error) {
	m.loadCalls.Add(1)
	time.Sleep(m.loadDelay)
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	cp := *m.cart
	cp.Items = append([]domain.CartItem(nil), m.cart.Items...)
	return &cp, nil
}

func (m *mockRepository) PutItem(_ context.Context, userID int64, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		m.cart = &domain.Cart{UserID: userID}
	}
	m.cart.Items = append(m.cart.Items, item)
	return nil
}

func (m *mockRepository) SetQuantity(_ context.Context, _ int64, productID int64, quantity int32) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart != nil {
		for i := range m.cart.Items {
			if m.cart.Items[i].ProductID == productID {
				m.cart.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) RemoveProducts(_ context.Context, _ int64, productIDs ...int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		return repository.ErrCartNotFound
	}
	kept := m.cart.Items[:0]
	for _, item := range m.cart.Items {
		if !slices.Contains(productIDs, item.ProductID) {
			kept = append(kept, item)
		}
	}
	m.cart.Items = kept
	return nil
}

func (m *mockRepository) Clear(context.Context, int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = nil
	return nil
}

type mockCache struct {
	m             sync.RWMutex
	cart          *domain.Cart
	version       int64
	err           error
	invalidations int
}

func (m *mockCache) Lookup(context.Context, int64) (*domain.Cart, int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	if m.cart == nil {
		return nil, m.version, cache.ErrCacheMiss
	}
	return m.cart, m.version, nil
}

func (m *mockCache) Fill(_ context.Context, _ int64, version int64, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if version != m.version {
		return cache.ErrStaleFill
	}
	m.cart = cart
	return nil
}

func (m *mockCache) Invalidate(context.Context, int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	m.version++
	m.invalidations++
	return nil
}

func (m *mockCache) snapshot() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

// heldFillCache parks the first fill until release is closed.
type heldFillCache struct {
	cache.CartCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (h *heldFillCache) Fill(ctx context.Context, userID int64, version int64, cart *domain.Cart) error {
	h.once.Do(func() { close(h.entered) })
	<-h.release
	return h.CartCache.Fill(ctx, userID, version, cart)
}

type mockCatalog struct {
	products map[int64]*domain.Product
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if p, ok := m.products[id]; ok {
		return p, nil
	}
	return nil, domain.ErrProductNotFound
}

func newCatalog() *mockCatalog {
	return &mockCatalog{products: map[int64]*domain.Product{1: {ID: 1, Title: "Phone"}, 2: {ID: 2, Title: "Case"}}}
}

func TestGetCart_CacheHit(t *testing.T) {
	repo := &mockRepository{}
	c := &mockCache{cart: &domain.Cart{UserID: 5, Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}}}
	svc := NewCartService(repo, c, newCatalog())

	cart, err := svc.GetCart(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int32(0), repo.loadCalls.Load())
}

func TestGetCart_MissPopulatesCache(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: 5, Items: []domain.CartItem{{ProductID: 1, Quantity: 2}}}}
	c := &mockCache{}
	svc := NewCartService(repo, c, newCatalog())

	cart, err := svc.GetCart(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), cart.Items[0].Quantity)

	require.NotNil(t, c.snapshot())
	assert.Len(t, c.snapshot().Items, 1)
}

func TestGetCart_NotFoundReturnsEmptyCart(t *testing.T) {
	svc := NewCartService(&mockRepository{}, &mockCache{}, newCatalog())

	cart, err := svc.GetCart(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cart.UserID)
	assert.Empty(t, cart.Items)
}

func TestGetCart_CacheErrorFallsBackToRepository(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: 5}}
	svc := NewCartService(repo, &mockCache{err: errors.New("redis down")}, newCatalog())

	cart, err := svc.GetCart(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cart.UserID)
}

func TestGetCart_RepositoryError(t *testing.T) {
	svc := NewCartService(&mockRepository{err: errors.New("mongo down")}, &mockCache{}, newCatalog())

	_, err := svc.GetCart(context.Background(), 5)
	assert.Error(t, err)
}

func TestGetCart_SingleflightCollapsesConcurrentMisses(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: 5}, loadDelay: 50 * time.Millisecond}
	svc := NewCartService(repo, &mockCache{err: errors.New("redis down")}, newCatalog())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetCart(context.Background(), 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, repo.loadCalls.Load(), int32(10))
}

func TestAddItem_ValidatesAndInvalidates(t *testing.T) {
	repo := &mockRepository{}
	c := &mockCache{}
	svc := NewCartService(repo, c, newCatalog())
	ctx := context.Background()

	assert.ErrorIs(t, svc.AddItem(ctx, 5, 1, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.AddItem(ctx, 5, 1, 100), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.AddItem(ctx, 5, 999, 1), domain.ErrProductNotFound)

	require.NoError(t, svc.AddItem(ctx, 5, 1, 3))
	assert.Len(t, repo.cart.Items, 1)
	assert.Equal(t, 1, c.invalidations)
}

func TestUpdateQuantity(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: 5, Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}}}
	svc := NewCartService(repo, &mockCache{}, newCatalog())
	ctx := context.Background()

	require.NoError(t, svc.UpdateQuantity(ctx, 5, 1, 4))
	assert.Equal(t, int32(4), repo.cart.Items[0].Quantity)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, 5, 2, 4), repository.ErrItemNotFound)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, 5, 1, -1), ErrInvalidQuantity)
}

func TestRemoveItemAndClear(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: 5, Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}}}
	c := &mockCache{}
	svc := NewCartService(repo, c, newCatalog())
	ctx := context.Background()

	require.NoError(t, svc.RemoveItem(ctx, 5, 1))
	assert.Empty(t, repo.cart.Items)

	require.NoError(t, svc.ClearCart(ctx, 5))
	require.NoError(t, svc.ClearCart(ctx, 5), "clearing an absent cart succeeds")
	assert.Equal(t, 3, c.invalidations)
}

func TestGetCart_FillRacingAWriteIsDropped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	held := &heldFillCache{
		CartCache: cache.NewRedisCache(client),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	repo := &mockRepository{cart: &domain.Cart{UserID: 5, Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}}}
	svc := NewCartService(repo, held, newCatalog())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetCart(ctx, 5)
		done <- err
	}()

	// the first read has loaded the one-line cart and is about to fill
	<-held.entered
	require.NoError(t, svc.AddItem(ctx, 5, 2, 1))
	close(held.release)
	require.NoError(t, <-done)

	cart, err := svc.GetCart(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2, "the fill from before the write must not be served")
}

func TestSnapshot_MapsStoredLines(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: 5, Items: []domain.CartItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}}}
	svc := NewCartService(repo, &mockCache{}, newCatalog())

	lines, err := svc.Snapshot(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartSnapshotItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}, lines)

	empty, err := NewCartService(&mockRepository{}, &mockCache{}, newCatalog()).Snapshot(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
