package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/metrics"
	"github.com/smartdepot/storefront/internal/payment"
	"github.com/smartdepot/storefront/internal/service"
)

const webhookSecret = "whsec_test"

type testAPI struct {
	handler  http.Handler
	orders   *MockOrderService
	payments *MockPaymentService
	returns  *MockReturnService
	cart     *MockCartService
	products *MockProductStore
	metrics  *metrics.Metrics
}

func newTestAPI() *testAPI {
	api := &testAPI{
		orders:   &MockOrderService{},
		payments: &MockPaymentService{},
		returns:  &MockReturnService{},
		cart:     &MockCartService{},
		products: &MockProductStore{},
		metrics:  metrics.New(),
	}
	api.handler = NewRouter(RouterDeps{
		Orders:           api.orders,
		Payments:         api.payments,
		Returns:          api.returns,
		Cart:             api.cart,
		Products:         api.products,
		Auth:             NewAuthenticator(testSecret),
		Metrics:          api.metrics,
		Log:              zap.NewNop(),
		WebhookSecret:    webhookSecret,
		WebhookTolerance: payment.DefaultTolerance,
		RequestTimeout:   5 * time.Second,
		MaxBodySize:      1 << 20,
	})
	return api
}

func (api *testAPI) do(method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	api := newTestAPI()
	rec := api.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth_MissingOrInvalidToken(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/api/orders/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/api/orders/mine", "Bearer not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
}

func TestAuth_AdminRoutesRequireAdminRole(t *testing.T) {
	api := newTestAPI()
	api.orders.orders = []*domain.Order{}

	rec := api.do(http.MethodGet, "/api/admin/orders", bearer(t, 1, domain.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/api/returns/admin/all", bearer(t, 1, domain.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/api/admin/orders", bearer(t, 9, domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlaceOrder_Success(t *testing.T) {
	api := newTestAPI()
	api.orders.placeRes = &service.PlaceOrderResult{
		OrderID:    42,
		Total:      "100.00",
		TotalCents: 10000,
		Status:     domain.StatusPendingPayment,
		PaymentURL: "https://pay.example.com/cs_1",
		SessionID:  "cs_1",
	}

	rec := api.do(http.MethodPost, "/api/orders/place", bearer(t, 7, domain.RoleUser), map[string]interface{}{
		"address":       "Str. Lalelelor 1",
		"paymentMethod": "card",
		"items":         []map[string]interface{}{{"id": 1, "price": 50.0, "quantity": 2, "title": "Phone"}},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var res service.PlaceOrderResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, int64(42), res.OrderID)
	assert.Equal(t, "https://pay.example.com/cs_1", res.PaymentURL)

	require.NotNil(t, api.orders.placed)
	assert.Equal(t, int64(7), api.orders.placed.UserID)
	assert.Equal(t, "user@example.com", api.orders.placed.Email)
	require.Len(t, api.orders.placed.Items, 1)
	assert.Equal(t, int32(2), api.orders.placed.Items[0].Quantity)
}

func TestPlaceOrder_InvalidJSON(t *testing.T) {
	api := newTestAPI()
	req := httptest.NewRequest(http.MethodPost, "/api/orders/place", strings.NewReader("{"))
	req.Header.Set("Authorization", bearer(t, 7, domain.RoleUser))
	rec := httptest.NewRecorder()

	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, api.orders.placed)
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedHTTP int
		expectedCode string
	}{
		{"EmptyCart", service.ErrEmptyCart, http.StatusBadRequest, "invalid_request"},
		{"MissingAddress", service.ErrMissingAddress, http.StatusBadRequest, "invalid_request"},
		{"InsufficientStock", fmt.Errorf("place order: %w", &domain.InsufficientStockError{ProductID: 1, Title: "Phone", Available: 1, Requested: 2}), http.StatusConflict, "insufficient_stock"},
		{"PaymentSession", fmt.Errorf("%w: %w", service.ErrPaymentSessionFailed, payment.ErrUnavailable), http.StatusBadGateway, "payment_unavailable"},
		{"Internal", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI()
			api.orders.err = tt.err

			rec := api.do(http.MethodPost, "/api/orders/place", bearer(t, 7, domain.RoleUser), map[string]interface{}{
				"paymentMethod": "cash",
			})

			assert.Equal(t, tt.expectedHTTP, rec.Code)
			assert.Equal(t, tt.expectedCode, decodeError(t, rec).Code)
		})
	}
}

func TestCancelOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedHTTP int
	}{
		{"NotPlaced", &domain.StateError{Current: domain.OrderStatusPaid, Wanted: domain.OrderStatusCanceled}, http.StatusBadRequest},
		{"Forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"NotFound", domain.ErrOrderNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI()
			api.orders.err = tt.err

			rec := api.do(http.MethodPatch, "/api/orders/5/cancel", bearer(t, 7, domain.RoleUser), nil)
			assert.Equal(t, tt.expectedHTTP, rec.Code)
			assert.Equal(t, int64(5), api.orders.cancelled)
		})
	}
}

func TestCancelOrder_InvalidID(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodPatch, "/api/orders/abc/cancel", bearer(t, 7, domain.RoleUser), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, api.orders.cancelled)
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	api := newTestAPI()
	api.orders.order = &domain.Order{ID: 5, Status: domain.OrderStatusPaid, Items: []domain.OrderItem{}}

	rec := api.do(http.MethodPatch, "/api/admin/orders/5/status", bearer(t, 9, domain.RoleAdmin),
		map[string]string{"status": "paid"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", api.orders.status)
}

func TestPaymentStatus(t *testing.T) {
	api := newTestAPI()
	api.payments.status = &service.PaymentStatusResult{SessionID: "cs_1", Status: payment.SessionPaid, OrderID: 42, AmountTotal: 10000}

	for _, path := range []string{"/api/payments/status/cs_1", "/api/payment-status/cs_1"} {
		rec := api.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var res service.PaymentStatusResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.Equal(t, payment.SessionPaid, res.Status)
		assert.Equal(t, int64(42), res.OrderID)
	}
}

func TestPaymentStatus_UnknownSession(t *testing.T) {
	api := newTestAPI()
	api.payments.err = payment.ErrSessionNotFound

	rec := api.do(http.MethodGet, "/api/payments/status/cs_missing", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReturns_Create(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodPost, "/api/returns", bearer(t, 7, domain.RoleUser), map[string]interface{}{
		"orderId": 5,
		"reason":  "defect",
		"details": "screen cracked",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, api.returns.created)
	assert.Equal(t, int64(7), api.returns.created.UserID)
	assert.Equal(t, int64(5), api.returns.created.OrderID)
}

func TestReturns_CreateDuplicate(t *testing.T) {
	api := newTestAPI()
	api.returns.err = domain.ErrDuplicateReturn

	rec := api.do(http.MethodPost, "/api/returns", bearer(t, 7, domain.RoleUser), map[string]interface{}{
		"orderId": 5,
		"reason":  "defect",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", decodeError(t, rec).Code)
}

func TestReturns_CreateRequiresOrderID(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodPost, "/api/returns", bearer(t, 7, domain.RoleUser), map[string]interface{}{
		"reason": "defect",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, api.returns.created)
}

func TestReturns_AdminUpdateReportsRefundOutcome(t *testing.T) {
	api := newTestAPI()
	api.returns.update = &service.ReturnUpdateResult{
		Return: &domain.ReturnDetails{Return: domain.Return{ID: 3, Status: domain.ReturnStatusCompleted}},
		Refund: domain.RefundOutcome{Kind: domain.RefundSucceeded, RefundID: "re_1"},
	}

	rec := api.do(http.MethodPut, "/api/returns/admin/3", bearer(t, 9, domain.RoleAdmin), map[string]string{
		"status":     "approved",
		"adminNotes": "ok",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Return struct {
			Status string `json:"status"`
		} `json:"return"`
		Refund struct {
			Outcome  string `json:"outcome"`
			RefundID string `json:"refund_id"`
		} `json:"refund"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "completed", res.Return.Status)
	assert.Equal(t, "refunded", res.Refund.Outcome)
	assert.Equal(t, "re_1", res.Refund.RefundID)
	assert.Equal(t, "ok", api.returns.notes)
}

func TestReturns_AdminDelete(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodDelete, "/api/returns/admin/3", bearer(t, 9, domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	api.returns.err = domain.ErrReturnNotFound
	rec = api.do(http.MethodDelete, "/api/returns/admin/3", bearer(t, 9, domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	api := newTestAPI()
	api.products.products = []domain.Product{}

	rec := api.do(http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`storefront_http_requests_total{method="GET",route="/api/products",status="200"} 1`)
}
