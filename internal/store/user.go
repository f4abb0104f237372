package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tasklane/apiserver/internal/db"
	"github.com/tasklane/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(conn *sql.DB) *UserRepository {
	return &UserRepository{db: conn}
}

// Create inserts user in a single transaction and returns it with the
// store-assigned id and creation time. A username or email clash rolls the
// transaction back and yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.Role == "" {
		user.Role = types.RoleBasic
	}

	const query = `
		INSERT INTO users (username, email, hashed_password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		return tx.QueryRowContext(
			ctx,
			query,
			user.Username,
			user.Email,
			user.PasswordHash,
			string(user.Role),
		).Scan(&user.ID, &user.CreatedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT id, username, email, hashed_password, role, created_at
		FROM users
		WHERE username = $1`
	return r.scanOne(ctx, query, username)
}

// GetByLogin looks a user up by username or email. When the value is one
// account's username and another account's email, the username match wins.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (types.User, error) {
	const query = `
		SELECT id, username, email, hashed_password, role, created_at
		FROM users
		WHERE username = $1 OR email = $1
		ORDER BY (username = $1) DESC
		LIMIT 1`
	return r.scanOne(ctx, query, login)
}

func (r *UserRepository) scanOne(ctx context.Context, query string, arg any) (types.User, error) {
	var user types.User
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("query user: %w", err)
	}
	user.Role = types.Role(role)
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	return false
}
