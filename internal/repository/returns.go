package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smartdepot/storefront/internal/domain"
)

const returnDetailsSelect = `SELECT r.id, r.order_id, r.user_id, r.reason, r.details, r.status, r.admin_notes,
	r.refund_status, r.refund_id, r.refund_error, r.created_at, r.updated_at,
	o.total_cents, o.address, o.created_at AS order_date, o.payment_ref,
	u.name AS user_name, u.email AS user_email
FROM order_returns r
JOIN orders o ON o.id = r.order_id
JOIN users u ON u.id = r.user_id`

// CreateReturn inserts a pending return and flags the order. The unique
// constraint on order_id rejects a second return even under concurrency.
func (r *Repository) CreateReturn(ctx context.Context, ret *domain.Return) error {
	return r.Transact(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)

		err := q.GetContext(ctx, ret,
			`INSERT INTO order_returns (order_id, user_id, reason, details, status, refund_status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, order_id, user_id, reason, details, status, admin_notes,
				refund_status, refund_id, refund_error, created_at, updated_at`,
			ret.OrderID, ret.UserID, ret.Reason, ret.Details, domain.ReturnStatusPending, domain.RefundNotAttempted)
		if err != nil {
			if isPQCode(err, pqUniqueViolation) {
				return domain.ErrDuplicateReturn
			}
			if isPQCode(err, pqForeignKeyViolation) {
				return domain.ErrOrderNotFound
			}
			return fmt.Errorf("insert return: %w", err)
		}

		_, err = q.ExecContext(ctx,
			`UPDATE orders SET return_status = $1, updated_at = NOW() WHERE id = $2`,
			domain.OrderReturnRequested, ret.OrderID)
		if err != nil {
			return fmt.Errorf("flag order return: %w", err)
		}
		return nil
	})
}

// GetReturn loads a return with its order summary, owner and order items.
func (r *Repository) GetReturn(ctx context.Context, id int64) (*domain.ReturnDetails, error) {
	var d domain.ReturnDetails
	err := r.conn(ctx).GetContext(ctx, &d, returnDetailsSelect+` WHERE r.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReturnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query return: %w", err)
	}

	d.Items = []domain.OrderItem{}
	err = r.conn(ctx).SelectContext(ctx, &d.Items,
		`SELECT product_id, title, qty, price_cents FROM order_items WHERE order_id = $1 ORDER BY id`,
		d.OrderID)
	if err != nil {
		return nil, fmt.Errorf("query return items: %w", err)
	}
	return &d, nil
}

func (r *Repository) ListReturnsByUser(ctx context.Context, userID int64) ([]*domain.ReturnDetails, error) {
	out := []*domain.ReturnDetails{}
	err := r.conn(ctx).SelectContext(ctx, &out,
		returnDetailsSelect+` WHERE r.user_id = $1 ORDER BY r.created_at DESC, r.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query returns by user: %w", err)
	}
	return out, nil
}

func (r *Repository) ListReturns(ctx context.Context) ([]*domain.ReturnDetails, error) {
	out := []*domain.ReturnDetails{}
	err := r.conn(ctx).SelectContext(ctx, &out,
		returnDetailsSelect+` ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query returns: %w", err)
	}
	return out, nil
}

// ApplyReturnUpdate persists an admin decision and mirrors the status onto the order.
// An existing refund id is never overwritten.
func (r *Repository) ApplyReturnUpdate(ctx context.Context, u domain.ReturnUpdate) error {
	return r.Transact(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)

		var refundID, refundErr *string
		if u.Refund.RefundID != "" {
			refundID = &u.Refund.RefundID
		}
		if u.Refund.Kind == domain.RefundFailed && u.Refund.Reason != "" {
			refundErr = &u.Refund.Reason
		}
		kind := u.Refund.Kind
		if kind == "" {
			kind = domain.RefundNotAttempted
		}

		var orderID int64
		err := q.GetContext(ctx, &orderID,
			`UPDATE order_returns
			 SET status = $1, admin_notes = $2, refund_status = $3,
				refund_id = COALESCE(refund_id, $4), refund_error = $5, updated_at = NOW()
			 WHERE id = $6
			 RETURNING order_id`,
			u.Status, u.AdminNotes, kind, refundID, refundErr, u.ReturnID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrReturnNotFound
		}
		if err != nil {
			return fmt.Errorf("update return: %w", err)
		}

		_, err = q.ExecContext(ctx,
			`UPDATE orders SET return_status = $1, updated_at = NOW() WHERE id = $2`,
			string(u.Status), orderID)
		if err != nil {
			return fmt.Errorf("mirror return status on order: %w", err)
		}
		return nil
	})
}

func (r *Repository) DeleteReturn(ctx context.Context, id int64) error {
	return r.Transact(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)

		var orderID int64
		err := q.GetContext(ctx, &orderID, `DELETE FROM order_returns WHERE id = $1 RETURNING order_id`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrReturnNotFound
		}
		if err != nil {
			return fmt.Errorf("delete return: %w", err)
		}

		_, err = q.ExecContext(ctx,
			`UPDATE orders SET return_status = NULL, updated_at = NOW() WHERE id = $1`, orderID)
		if err != nil {
			return fmt.Errorf("clear order return status: %w", err)
		}
		return nil
	})
}
