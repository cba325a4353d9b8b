package service

import (
	"context"
	"sync"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/notify"
	"github.com/smartdepot/storefront/internal/payment"
)

// MockRepository implements OrderRepository and ReturnRepository for testing.
type MockRepository struct {
	Orders  map[int64]*domain.Order
	Users   map[int64]*domain.User
	Returns map[int64]*domain.ReturnDetails

	CreateErr     error
	MarkPaidErr   error
	TransitionErr error
	ApplyErr      error
	CreateRetErr  error

	CreatedOrder   *domain.NewOrder // captures the input of CreateOrder
	Confirmations  []domain.PaymentConfirmation
	Transitions    []domain.OrderStatus
	AppliedUpdates []domain.ReturnUpdate
	nextID         int64
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		Orders:  map[int64]*domain.Order{},
		Users:   map[int64]*domain.User{},
		Returns: map[int64]*domain.ReturnDetails{},
		nextID:  100,
	}
}

func (m *MockRepository) CreateOrder(_ context.Context, in domain.NewOrder) (*domain.Order, error) {
	m.CreatedOrder = &in
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.nextID++
	o := &domain.Order{ID: m.nextID, UserID: in.UserID, Address: in.Address, Status: domain.OrderStatusPlaced}
	for _, it := range in.Items {
		line := domain.OrderItem{ProductID: it.ProductID, Title: it.Title, Quantity: it.Quantity, PriceCents: domain.CentsFromMajor(it.Price)}
		o.Items = append(o.Items, line)
		o.TotalCents += line.SubtotalCents()
	}
	m.Orders[o.ID] = o
	return o, nil
}

func (m *MockRepository) MarkOrderPaid(_ context.Context, c domain.PaymentConfirmation) (*domain.Order, error) {
	m.Confirmations = append(m.Confirmations, c)
	if m.MarkPaidErr != nil {
		return nil, m.MarkPaidErr
	}
	o, ok := m.Orders[c.OrderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status == domain.OrderStatusPaid && o.PaymentRef != nil && *o.PaymentRef == c.PaymentRef {
		return nil, domain.ErrEventAlreadyProcessed
	}
	if o.Status == domain.OrderStatusPaid && o.PaymentRef == nil {
		ref := c.PaymentRef
		o.PaymentRef = &ref
		return nil, domain.ErrPaymentRefAttached
	}
	if !domain.CanTransitionTo(o.Status, domain.OrderStatusPaid) {
		return nil, &domain.StateError{Current: o.Status, Wanted: domain.OrderStatusPaid}
	}
	ref := c.PaymentRef
	o.Status = domain.OrderStatusPaid
	o.PaymentRef = &ref
	return o, nil
}

func (m *MockRepository) TransitionOrder(_ context.Context, orderID int64, to domain.OrderStatus) (*domain.Order, error) {
	m.Transitions = append(m.Transitions, to)
	if m.TransitionErr != nil {
		return nil, m.TransitionErr
	}
	o, ok := m.Orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !domain.CanTransitionTo(o.Status, to) {
		return nil, &domain.StateError{Current: o.Status, Wanted: to}
	}
	o.Status = to
	return o, nil
}

func (m *MockRepository) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := m.Orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockRepository) ListOrdersByUser(_ context.Context, userID int64) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range m.Orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockRepository) ListOrders(context.Context, int, int) ([]*domain.Order, error) {
	return nil, nil
}

func (m *MockRepository) GetUser(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m.Users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *MockRepository) CreateReturn(_ context.Context, ret *domain.Return) error {
	if m.CreateRetErr != nil {
		return m.CreateRetErr
	}
	for _, r := range m.Returns {
		if r.OrderID == ret.OrderID {
			return domain.ErrDuplicateReturn
		}
	}
	m.nextID++
	ret.ID = m.nextID
	ret.Status = domain.ReturnStatusPending
	ret.RefundStatus = domain.RefundNotAttempted
	m.Returns[ret.ID] = &domain.ReturnDetails{Return: *ret}
	return nil
}

func (m *MockRepository) GetReturn(_ context.Context, id int64) (*domain.ReturnDetails, error) {
	r, ok := m.Returns[id]
	if !ok {
		return nil, domain.ErrReturnNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockRepository) ListReturnsByUser(context.Context, int64) ([]*domain.ReturnDetails, error) {
	return []*domain.ReturnDetails{}, nil
}

func (m *MockRepository) ListReturns(context.Context) ([]*domain.ReturnDetails, error) {
	return []*domain.ReturnDetails{}, nil
}

func (m *MockRepository) ApplyReturnUpdate(_ context.Context, u domain.ReturnUpdate) error {
	m.AppliedUpdates = append(m.AppliedUpdates, u)
	if m.ApplyErr != nil {
		return m.ApplyErr
	}
	r, ok := m.Returns[u.ReturnID]
	if !ok {
		return domain.ErrReturnNotFound
	}
	r.Status = u.Status
	r.AdminNotes = u.AdminNotes
	r.RefundStatus = u.Refund.Kind
	if r.RefundID == nil && u.Refund.RefundID != "" {
		id := u.Refund.RefundID
		r.RefundID = &id
	}
	return nil
}

func (m *MockRepository) DeleteReturn(_ context.Context, id int64) error {
	if _, ok := m.Returns[id]; !ok {
		return domain.ErrReturnNotFound
	}
	delete(m.Returns, id)
	return nil
}

// MockCartSource serves a fixed stored cart.
type MockCartSource struct {
	Lines []domain.CartSnapshotItem
	Err   error
	Users []int64
}

func (m *MockCartSource) Snapshot(_ context.Context, userID int64) ([]domain.CartSnapshotItem, error) {
	m.Users = append(m.Users, userID)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Lines, nil
}

// MockGateway implements payment.Gateway for testing.
type MockGateway struct {
	Session    *payment.CheckoutSession
	SessionErr error
	Refunds    []payment.RefundRequest
	RefundResp *payment.Refund
	RefundErr  error
	Requests   []payment.SessionRequest

	Lookup    *payment.Refund
	LookupErr error
	Lookups   []string
}

func (m *MockGateway) CreateCheckoutSession(_ context.Context, req payment.SessionRequest) (*payment.CheckoutSession, error) {
	m.Requests = append(m.Requests, req)
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	return m.Session, nil
}

func (m *MockGateway) GetSession(_ context.Context, _ string) (*payment.CheckoutSession, error) {
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	return m.Session, nil
}

func (m *MockGateway) Refund(_ context.Context, req payment.RefundRequest) (*payment.Refund, error) {
	m.Refunds = append(m.Refunds, req)
	if m.RefundErr != nil {
		return nil, m.RefundErr
	}
	return m.RefundResp, nil
}

func (m *MockGateway) GetRefund(_ context.Context, refundID string) (*payment.Refund, error) {
	m.Lookups = append(m.Lookups, refundID)
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	if m.Lookup == nil {
		return nil, payment.ErrRefundNotFound
	}
	return m.Lookup, nil
}

// MockNotifier records every message it is asked to send.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []notify.Message
	Err  error
}

func (m *MockNotifier) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}
