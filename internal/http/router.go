package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/internal/metrics"
)

// RouterDeps wires the services behind the API.
type RouterDeps struct {
	Orders   OrderService
	Payments PaymentService
	Returns  ReturnService
	Cart     CartService
	Products ProductStore
	Auth     *Authenticator
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	WebhookSecret    string
	WebhookTolerance time.Duration
	RequestTimeout   time.Duration
	MaxBodySize      int64
}

func NewRouter(d RouterDeps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	ordersHandler := NewOrdersHandler(d.Orders, d.RequestTimeout)
	paymentsHandler := NewPaymentsHandler(d.Payments, d.WebhookSecret, d.WebhookTolerance, d.RequestTimeout)
	returnsHandler := NewReturnsHandler(d.Returns, d.RequestTimeout)
	cartHandler := NewCartHandler(d.Cart, d.RequestTimeout)
	productHandler := NewProductHandler(d.Products, d.RequestTimeout)
	admin := RequireRole(domain.RoleAdmin)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware(d.Log, d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// the webhook reads its own raw body with a separate cap
		r.Post("/payments/webhook", paymentsHandler.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(LimitBody(d.MaxBodySize))

			r.Get("/payments/status/{sessionId}", paymentsHandler.Status)
			r.Get("/payment-status/{sessionId}", paymentsHandler.Status)

			r.Get("/products", productHandler.List)
			r.Get("/products/{id}", productHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(d.Auth.RequireAuth)

				r.Route("/orders", func(r chi.Router) {
					r.Post("/place", ordersHandler.PlaceOrder)
					r.Get("/mine", ordersHandler.ListMine)
					r.Get("/{id}", ordersHandler.GetMine)
					r.Patch("/{id}/cancel", ordersHandler.Cancel)
				})

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", cartHandler.GetCart)
					r.Delete("/", cartHandler.ClearCart)
					r.Post("/items", cartHandler.AddItem)
					r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
					r.Delete("/items/{product_id}", cartHandler.RemoveItem)
				})

				r.Route("/returns", func(r chi.Router) {
					r.Post("/", returnsHandler.Create)
					r.Get("/my", returnsHandler.ListMine)

					r.Route("/admin", func(r chi.Router) {
						r.Use(admin)
						r.Get("/all", returnsHandler.ListAll)
						r.Get("/{id}", returnsHandler.Get)
						r.Put("/{id}", returnsHandler.UpdateStatus)
						r.Delete("/{id}", returnsHandler.Delete)
					})
				})

				r.Route("/admin", func(r chi.Router) {
					r.Use(admin)
					r.Get("/orders", ordersHandler.ListAll)
					r.Get("/orders/{id}", ordersHandler.Get)
					r.Patch("/orders/{id}/status", ordersHandler.UpdateStatus)

					r.Post("/products", productHandler.Create)
					r.Put("/products/{id}", productHandler.Update)
					r.Delete("/products/{id}", productHandler.Delete)
				})
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
