package http

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/service"
)

const testSecret = "test-jwt-secret"

func bearer(t *testing.T, uid int64, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uid,
		Role:   role,
		Name:   "Test User",
		Email:  "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

type MockOrderService struct {
	placed    *service.PlaceOrderRequest
	placeRes  *service.PlaceOrderResult
	order     *domain.Order
	orders    []*domain.Order
	cancelled int64
	status    string
	err       error
}

func (m *MockOrderService) PlaceOrder(_ context.Context, req service.PlaceOrderRequest) (*service.PlaceOrderResult, error) {
	m.placed = &req
	if m.err != nil {
		return nil, m.err
	}
	return m.placeRes, nil
}

func (m *MockOrderService) ListUserOrders(context.Context, int64) ([]*domain.Order, error) {
	return m.orders, m.err
}

func (m *MockOrderService) GetUserOrder(context.Context, int64, int64) (*domain.Order, error) {
	return m.order, m.err
}

func (m *MockOrderService) CancelOrder(_ context.Context, orderID, _ int64) (*domain.Order, error) {
	m.cancelled = orderID
	return m.order, m.err
}

func (m *MockOrderService) ListOrders(context.Context, int, int) ([]*domain.Order, error) {
	return m.orders, m.err
}

func (m *MockOrderService) GetOrder(context.Context, int64) (*domain.Order, error) {
	return m.order, m.err
}

func (m *MockOrderService) UpdateOrderStatus(_ context.Context, _ int64, status string) (*domain.Order, error) {
	m.status = status
	return m.order, m.err
}

type MockPaymentService struct {
	confirmed []service.ConfirmPaymentRequest
	status    *service.PaymentStatusResult
	err       error
}

func (m *MockPaymentService) ConfirmPayment(_ context.Context, req service.ConfirmPaymentRequest) error {
	m.confirmed = append(m.confirmed, req)
	return m.err
}

func (m *MockPaymentService) PaymentStatus(context.Context, string) (*service.PaymentStatusResult, error) {
	return m.status, m.err
}

type MockReturnService struct {
	created *domain.Return
	details *domain.ReturnDetails
	update  *service.ReturnUpdateResult
	notes   string
	err     error
}

func (m *MockReturnService) CreateReturn(_ context.Context, userID, orderID int64, reason, details string) (*domain.Return, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &domain.Return{ID: 1, UserID: userID, OrderID: orderID, Reason: domain.ReturnReason(reason), Details: details, Status: domain.ReturnStatusPending}
	return m.created, nil
}

func (m *MockReturnService) UpdateReturnStatus(_ context.Context, _ int64, _, adminNotes string) (*service.ReturnUpdateResult, error) {
	m.notes = adminNotes
	return m.update, m.err
}

func (m *MockReturnService) GetReturn(context.Context, int64) (*domain.ReturnDetails, error) {
	return m.details, m.err
}

func (m *MockReturnService) ListUserReturns(context.Context, int64) ([]*domain.ReturnDetails, error) {
	return []*domain.ReturnDetails{}, m.err
}

func (m *MockReturnService) ListReturns(context.Context) ([]*domain.ReturnDetails, error) {
	return []*domain.ReturnDetails{}, m.err
}

func (m *MockReturnService) DeleteReturn(context.Context, int64) error {
	return m.err
}

type MockCartService struct {
	cart  *domain.Cart
	added []domain.CartItem
	err   error
}

func (m *MockCartService) GetCart(_ context.Context, userID int64) (*domain.Cart, error) {
	if m.cart == nil {
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	return m.cart, nil
}

func (m *MockCartService) AddItem(_ context.Context, _, productID int64, quantity int32) error {
	if m.err != nil {
		return m.err
	}
	m.added = append(m.added, domain.CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *MockCartService) UpdateQuantity(context.Context, int64, int64, int32) error {
	return m.err
}

func (m *MockCartService) RemoveItem(context.Context, int64, int64) error {
	return m.err
}

func (m *MockCartService) ClearCart(context.Context, int64) error {
	return m.err
}

type MockProductStore struct {
	products []domain.Product
	total    int
	filter   domain.ProductFilter
	err      error
}

func (m *MockProductStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (m *MockProductStore) ListProducts(_ context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	m.filter = f
	return m.products, m.total, m.err
}

func (m *MockProductStore) CreateProduct(_ context.Context, p *domain.Product) error {
	if m.err != nil {
		return m.err
	}
	p.ID = 77
	return nil
}

func (m *MockProductStore) UpdateProduct(context.Context, *domain.Product) error {
	return m.err
}

func (m *MockProductStore) DeleteProduct(context.Context, int64) error {
	return m.err
}
