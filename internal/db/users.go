package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// UserRepo wraps reads against the users table that fall outside the
// ledger's own balance-mutating transactions, such as the active-user
// check Submit runs before it ever touches a row lock.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, userID)
	return u, err
}
