package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/smartdepot/storefront/internal/domain"
)

// ProductStore is the catalog persistence behind the product endpoints.
type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type ProductHandler struct {
	store   ProductStore
	timeout time.Duration
}

func NewProductHandler(store ProductStore, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		store:   store,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []domain.ProductView `json:"products"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	Limit    int                  `json:"limit"`
}

// ProductRequestDTO is the admin create/update body; price is in major units.
type ProductRequestDTO struct {
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Price              float64 `json:"price"`
	Stock              int32   `json:"stock"`
	Category           string  `json:"category"`
	Brand              string  `json:"brand"`
	ImageURL           string  `json:"image_url"`
	DiscountPercentage int32   `json:"discount_percentage"`
	IsRefurbished      bool    `json:"is_refurbished"`
}

func (d ProductRequestDTO) validate() string {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return "title is required"
	case d.Price < 0:
		return "price must not be negative"
	case d.Stock < 0:
		return "stock must not be negative"
	case d.DiscountPercentage < 0 || d.DiscountPercentage > 100:
		return "discount_percentage must be between 0 and 100"
	}
	return ""
}

func (d ProductRequestDTO) toProduct(id int64) *domain.Product {
	return &domain.Product{
		ID:                 id,
		Title:              strings.TrimSpace(d.Title),
		Description:        d.Description,
		PriceCents:         domain.CentsFromMajor(d.Price),
		Stock:              d.Stock,
		Category:           d.Category,
		Brand:              d.Brand,
		ImageURL:           d.ImageURL,
		DiscountPercentage: d.DiscountPercentage,
		IsRefurbished:      d.IsRefurbished,
	}
}

// GET /api/products?q=&category=&page=&limit=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter := domain.ProductFilter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 12),
	}.Normalize()

	products, total, err := h.store.ListProducts(ctx, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, domain.NewProductView(p))
	}

	respondJSON(w, http.StatusOK, ProductsResponse{
		Products: views,
		Total:    total,
		Page:     filter.Page,
		Limit:    filter.Limit,
	})
}

// GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}

	p, err := h.store.GetProduct(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, domain.NewProductView(*p))
}

// POST /api/admin/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	p := req.toProduct(0)
	if err := h.store.CreateProduct(ctx, p); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, domain.NewProductView(*p))
}

// PUT /api/admin/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}

	var req ProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	p := req.toProduct(id)
	if err := h.store.UpdateProduct(ctx, p); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, domain.NewProductView(*p))
}

// DELETE /api/admin/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}

	if err := h.store.DeleteProduct(ctx, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
