package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smartdepot/storefront/internal/domain"
)

func (r *Repository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.conn(ctx).GetContext(ctx, &u,
		`SELECT id, email, name, phone, role FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// CreateUser is used by seeding and tests; account registration lives elsewhere.
func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	err := r.conn(ctx).GetContext(ctx, &u.ID,
		`INSERT INTO users (email, name, phone, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		u.Email, u.Name, u.Phone, u.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
