package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
	"github.com/smartdepot/storefront/pkg/logger"
)

const orderColumns = `id, user_id, total_cents, status, address, payment_ref, return_status, created_at, updated_at`

const (
	placeholderTitle    = "Generated product"
	placeholderCategory = "general"
	placeholderBrand    = "Generic"
)

// CreateOrder persists the order, its items, the stock decrements and the
// order.placed outbox event in one transaction. Unit prices come from the
// catalog; the client price is only used to provision unknown products.
func (r *Repository) CreateOrder(ctx context.Context, in domain.NewOrder) (*domain.Order, error) {
	var order domain.Order

	err := r.Transact(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)

		insertErr := q.GetContext(ctx, &order,
			`INSERT INTO orders (user_id, address, status, total_cents)
			 VALUES ($1, $2, $3, 0)
			 RETURNING `+orderColumns,
			in.UserID, in.Address, domain.OrderStatusPlaced)
		if insertErr != nil {
			if isPQCode(insertErr, pqForeignKeyViolation) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("insert order: %w", insertErr)
		}

		var total int64
		order.Items = make([]domain.OrderItem, 0, len(in.Items))
		for _, item := range in.Items {
			line, err := r.takeStock(ctx, item, !in.CatalogOnly)
			if err != nil {
				return err
			}

			_, err = q.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, title, qty, price_cents)
				 VALUES ($1, $2, $3, $4, $5)`,
				order.ID, line.ProductID, line.Title, line.Quantity, line.PriceCents)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			total += line.SubtotalCents()
			order.Items = append(order.Items, line)
		}

		if err := q.GetContext(ctx, &order.UpdatedAt,
			`UPDATE orders SET total_cents = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`,
			total, order.ID); err != nil {
			return fmt.Errorf("update order total: %w", err)
		}
		order.TotalCents = total

		return r.insertOrderEvent(ctx, domain.EventOrderPlaced, &order, domain.OrderEvent{
			PaymentMethod: string(in.PaymentMethod),
		})
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

type stockRow struct {
	Title              string `db:"title"`
	PriceCents         int64  `db:"price_cents"`
	DiscountPercentage int32  `db:"discount_percentage"`
	Stock              int32  `db:"stock"`
}

// takeStock decrements stock for one line with a conditional update so
// concurrent checkouts serialize on the product row. Unknown products are
// provisioned only when provision is set.
func (r *Repository) takeStock(ctx context.Context, item domain.CartSnapshotItem, provision bool) (domain.OrderItem, error) {
	row, err := r.decrementStock(ctx, item.ProductID, item.Quantity)
	if err == nil {
		return r.lineFromStock(ctx, item, row), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.OrderItem{}, err
	}

	q := r.conn(ctx)
	var current stockRow
	err = q.GetContext(ctx, &current,
		`SELECT title, price_cents, discount_percentage, stock FROM products WHERE id = $1 FOR UPDATE`,
		item.ProductID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !provision {
			return domain.OrderItem{}, fmt.Errorf("product %d: %w", item.ProductID, domain.ErrProductNotFound)
		}
		if err := r.provisionProduct(ctx, item); err != nil {
			return domain.OrderItem{}, err
		}
	case err != nil:
		return domain.OrderItem{}, fmt.Errorf("lock product %d: %w", item.ProductID, err)
	default:
		return domain.OrderItem{}, &domain.InsufficientStockError{
			ProductID: item.ProductID,
			Title:     current.Title,
			Available: current.Stock,
			Requested: item.Quantity,
		}
	}

	row, err = r.decrementStock(ctx, item.ProductID, item.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OrderItem{}, &domain.InsufficientStockError{
			ProductID: item.ProductID,
			Title:     placeholderTitleFor(item),
			Available: domain.PlaceholderStock,
			Requested: item.Quantity,
		}
	}
	if err != nil {
		return domain.OrderItem{}, err
	}
	return r.lineFromStock(ctx, item, row), nil
}

func (r *Repository) decrementStock(ctx context.Context, productID int64, qty int32) (stockRow, error) {
	var row stockRow
	err := r.conn(ctx).GetContext(ctx, &row,
		`UPDATE products SET stock = stock - $1
		 WHERE id = $2 AND stock >= $1
		 RETURNING title, price_cents, discount_percentage, stock`,
		qty, productID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return row, fmt.Errorf("decrement stock for product %d: %w", productID, err)
	}
	return row, err
}

func (r *Repository) lineFromStock(ctx context.Context, item domain.CartSnapshotItem, row stockRow) domain.OrderItem {
	if row.Stock <= domain.LowStockThreshold {
		logger.FromContext(ctx).Warn("low stock",
			zap.Int64("product_id", item.ProductID),
			zap.String("title", row.Title),
			zap.Int32("stock", row.Stock))
	}
	p := domain.Product{PriceCents: row.PriceCents, DiscountPercentage: row.DiscountPercentage}
	return domain.OrderItem{
		ProductID:  item.ProductID,
		Title:      row.Title,
		Quantity:   item.Quantity,
		PriceCents: p.EffectivePriceCents(),
	}
}

// provisionProduct creates a catalog row for a product the cart knows but the
// catalog does not, priced from the submitted cart line.
func (r *Repository) provisionProduct(ctx context.Context, item domain.CartSnapshotItem) error {
	q := r.conn(ctx)
	category := item.Category
	if category == "" {
		category = placeholderCategory
	}
	brand := item.Brand
	if brand == "" {
		brand = placeholderBrand
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO products (id, title, price_cents, stock, category, brand, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		item.ProductID, placeholderTitleFor(item), domain.CentsFromMajor(item.Price),
		domain.PlaceholderStock, category, brand, item.ImageURL)
	if err != nil {
		return fmt.Errorf("provision product %d: %w", item.ProductID, err)
	}

	// keep the serial ahead of explicitly inserted ids
	_, err = q.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('products', 'id'), (SELECT MAX(id) FROM products))`)
	if err != nil {
		return fmt.Errorf("advance product sequence: %w", err)
	}

	logger.FromContext(ctx).Info("provisioned placeholder product",
		zap.Int64("product_id", item.ProductID),
		zap.String("title", placeholderTitleFor(item)))
	return nil
}

func placeholderTitleFor(item domain.CartSnapshotItem) string {
	if item.Title != "" {
		return item.Title
	}
	return placeholderTitle
}

// MarkOrderPaid applies a verified payment confirmation exactly once per event id.
// An order marked paid by hand gets the reference attached and reports
// ErrPaymentRefAttached, so refunds can still find the payment.
func (r *Repository) MarkOrderPaid(ctx context.Context, c domain.PaymentConfirmation) (*domain.Order, error) {
	var (
		order    domain.Order
		attached bool
	)

	err := r.Transact(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)

		res, err := q.ExecContext(ctx,
			`INSERT INTO processed_payment_events (event_id, order_id, payment_ref)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (event_id) DO NOTHING`,
			c.EventID, c.OrderID, c.PaymentRef)
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrEventAlreadyProcessed
		}

		if err := r.lockOrder(ctx, c.OrderID, &order); err != nil {
			return err
		}

		if order.Status == domain.OrderStatusPaid {
			switch {
			case order.PaymentRef == nil:
				attached = true
			case *order.PaymentRef == c.PaymentRef:
				return domain.ErrEventAlreadyProcessed
			default:
				return &domain.StateError{Current: order.Status, Wanted: domain.OrderStatusPaid}
			}
		}
		if !attached && !domain.CanTransitionTo(order.Status, domain.OrderStatusPaid) {
			return &domain.StateError{Current: order.Status, Wanted: domain.OrderStatusPaid}
		}

		if err := q.GetContext(ctx, &order,
			`UPDATE orders SET status = $1, payment_ref = $2, updated_at = NOW()
			 WHERE id = $3
			 RETURNING `+orderColumns,
			domain.OrderStatusPaid, c.PaymentRef, c.OrderID); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		if err := r.loadItems(ctx, &order); err != nil {
			return err
		}
		return r.insertOrderEvent(ctx, domain.EventOrderPaid, &order, domain.OrderEvent{PaymentRef: c.PaymentRef})
	})
	if err != nil {
		return nil, err
	}
	if attached {
		return nil, domain.ErrPaymentRefAttached
	}
	return &order, nil
}

// TransitionOrder moves an order along the status table. Canceling returns
// every item's quantity to stock in the same transaction.
func (r *Repository) TransitionOrder(ctx context.Context, orderID int64, to domain.OrderStatus) (*domain.Order, error) {
	var order domain.Order

	err := r.Transact(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)

		if err := r.lockOrder(ctx, orderID, &order); err != nil {
			return err
		}
		if !domain.CanTransitionTo(order.Status, to) {
			return &domain.StateError{Current: order.Status, Wanted: to}
		}

		if to == domain.OrderStatusCanceled {
			_, err := q.ExecContext(ctx,
				`UPDATE products p SET stock = p.stock + s.qty
				 FROM (SELECT product_id, SUM(qty) AS qty FROM order_items WHERE order_id = $1 GROUP BY product_id) s
				 WHERE p.id = s.product_id`,
				orderID)
			if err != nil {
				return fmt.Errorf("restore stock for order %d: %w", orderID, err)
			}
		}

		if err := q.GetContext(ctx, &order,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING `+orderColumns,
			to, orderID); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if err := r.loadItems(ctx, &order); err != nil {
			return err
		}

		eventType := domain.EventOrderCanceled
		if to == domain.OrderStatusPaid {
			eventType = domain.EventOrderPaid
		}
		return r.insertOrderEvent(ctx, eventType, &order, domain.OrderEvent{})
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) lockOrder(ctx context.Context, orderID int64, order *domain.Order) error {
	err := r.conn(ctx).GetContext(ctx, order,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("lock order %d: %w", orderID, err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	var order domain.Order
	err := r.conn(ctx).GetContext(ctx, &order,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	if err := r.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.conn(ctx).SelectContext(ctx, &orders,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) ListOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.conn(ctx).SelectContext(ctx, &orders,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) loadItems(ctx context.Context, order *domain.Order) error {
	order.Items = []domain.OrderItem{}
	err := r.conn(ctx).SelectContext(ctx, &order.Items,
		`SELECT product_id, title, qty, price_cents FROM order_items WHERE order_id = $1 ORDER BY id`,
		order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	return nil
}

// attachItems loads items for many orders with a single query.
func (r *Repository) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]*domain.Order, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}

	var rows []struct {
		OrderID int64 `db:"order_id"`
		domain.OrderItem
	}
	err := r.conn(ctx).SelectContext(ctx, &rows,
		`SELECT order_id, product_id, title, qty, price_cents
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	for _, row := range rows {
		if o, ok := byID[row.OrderID]; ok {
			o.Items = append(o.Items, row.OrderItem)
		}
	}
	return nil
}

func (r *Repository) insertOrderEvent(ctx context.Context, eventType string, order *domain.Order, ev domain.OrderEvent) error {
	ev.EventID = uuid.NewString()
	ev.OrderID = order.ID
	ev.UserID = order.UserID
	ev.Status = order.Status
	ev.TotalCents = order.TotalCents
	for _, it := range order.Items {
		ev.ProductIDs = append(ev.ProductIDs, it.ProductID)
	}
	ev.OccurredAt = time.Now().UTC()
	return r.insertOutboxEvent(ctx, ev.EventID, eventType, strconv.FormatInt(order.ID, 10), &ev)
}
