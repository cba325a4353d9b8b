package domain

import "time"

// PlaceholderStock is the initial stock of a product provisioned from checkout data.
const PlaceholderStock = 100

// LowStockThreshold triggers a warning after a decrement.
const LowStockThreshold = 5

type Product struct {
	ID                 int64     `db:"id"`
	Title              string    `db:"title"`
	Description        string    `db:"description"`
	PriceCents         int64     `db:"price_cents"`
	Stock              int32     `db:"stock"`
	Category           string    `db:"category"`
	Brand              string    `db:"brand"`
	ImageURL           string    `db:"image_url"`
	DiscountPercentage int32     `db:"discount_percentage"`
	IsRefurbished      bool      `db:"is_refurbished"`
	CreatedAt          time.Time `db:"created_at"`
}

// EffectivePriceCents is the unit price after the product discount.
func (p Product) EffectivePriceCents() int64 {
	return ApplyDiscount(p.PriceCents, p.DiscountPercentage)
}

// ProductView is the API shape of a product.
type ProductView struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Price              string    `json:"price"`
	PriceCents         int64     `json:"price_cents"`
	FinalPrice         string    `json:"final_price"`
	Stock              int32     `json:"stock"`
	Category           string    `json:"category"`
	Brand              string    `json:"brand"`
	ImageURL           string    `json:"image_url"`
	DiscountPercentage int32     `json:"discount_percentage"`
	IsRefurbished      bool      `json:"is_refurbished"`
	CreatedAt          time.Time `json:"created_at"`
}

func NewProductView(p Product) ProductView {
	discount := p.DiscountPercentage
	if discount < 0 || discount > 100 {
		discount = 0
	}
	return ProductView{
		ID:                 p.ID,
		Title:              p.Title,
		Description:        p.Description,
		Price:              FormatCents(p.PriceCents),
		PriceCents:         p.PriceCents,
		FinalPrice:         FormatCents(ApplyDiscount(p.PriceCents, discount)),
		Stock:              p.Stock,
		Category:           p.Category,
		Brand:              p.Brand,
		ImageURL:           p.ImageURL,
		DiscountPercentage: discount,
		IsRefurbished:      p.IsRefurbished,
		CreatedAt:          p.CreatedAt,
	}
}

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

// Normalize clamps paging to sane bounds.
func (f ProductFilter) Normalize() ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 12
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
