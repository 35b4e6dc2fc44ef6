package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines user data access for the economy engine. Account
// lifecycle (signup, auth, profile editing) lives in another service;
// this side only reads.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// IsFriend reports whether the two users have an accepted friendship
	// in either direction.
	IsFriend(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, nickname, is_banned,
		       COALESCE(shipping_name, '') AS shipping_name,
		       COALESCE(shipping_phone, '') AS shipping_phone,
		       COALESCE(shipping_address, '') AS shipping_address,
		       created_at
		FROM users WHERE id = $1
	`
	var u User
	err := r.db.GetContext(ctx, &u, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND NOT is_banned)`, id)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repository) IsFriend(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM user_friends
			WHERE ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))
			  AND status = 'accepted'
		)
	`, a, b)
	if err != nil {
		return false, err
	}
	return exists, nil
}
