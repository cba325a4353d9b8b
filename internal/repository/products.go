package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/smartdepot/storefront/internal/domain"
)

const productColumns = `id, title, description, price_cents, stock, category, brand, image_url,
	discount_percentage, is_refurbished, created_at`

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.conn(ctx).GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

// ListProducts returns one page of products, newest first, and the total match count.
func (r *Repository) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	f = f.Normalize()

	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM products`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	products := []domain.Product{}
	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		productColumns, clause, len(args)-1, len(args))
	if err := r.conn(ctx).SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	return products, total, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	err := r.conn(ctx).GetContext(ctx, p,
		`INSERT INTO products (title, description, price_cents, stock, category, brand, image_url,
			discount_percentage, is_refurbished)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+productColumns,
		p.Title, p.Description, p.PriceCents, p.Stock, p.Category, p.Brand, p.ImageURL,
		p.DiscountPercentage, p.IsRefurbished)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	err := r.conn(ctx).GetContext(ctx, p,
		`UPDATE products SET title = $1, description = $2, price_cents = $3, stock = $4, category = $5,
			brand = $6, image_url = $7, discount_percentage = $8, is_refurbished = $9
		 WHERE id = $10
		 RETURNING `+productColumns,
		p.Title, p.Description, p.PriceCents, p.Stock, p.Category, p.Brand, p.ImageURL,
		p.DiscountPercentage, p.IsRefurbished, p.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isPQCode(err, pqForeignKeyViolation) {
			return domain.ErrProductInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
