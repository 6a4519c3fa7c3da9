package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mbolis/quick-forms/model"
)

type accountRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r accountRow) user() model.User {
	return model.User(r)
}

// NormalizeEmail is the form under which emails are stored and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser stores a new account. A taken email yields model.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	now := s.timestamp()
	u.Email = NormalizeEmail(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = model.RoleUser
	}

	_, err := s.q.Exec(ctx, s.db, "insert-account",
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("insert account: %w", mapConstraintError(err))
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	var row accountRow
	if err := s.q.Get(ctx, s.db, "get-account", &row, id); err != nil {
		return model.User{}, notFound(err, "user", id)
	}
	return row.user(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	email = NormalizeEmail(email)

	var row accountRow
	if err := s.q.Get(ctx, s.db, "get-account-by-email", &row, email); err != nil {
		return model.User{}, notFound(err, "user", email)
	}
	return row.user(), nil
}

// UpdateUser writes back name, email, password hash and role.
func (s *Store) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	u.Email = NormalizeEmail(u.Email)
	u.UpdatedAt = s.timestamp()

	res, err := s.q.Exec(ctx, s.db, "update-account",
		u.Name, u.Email, u.PasswordHash, u.Role, u.UpdatedAt, u.ID)
	if err != nil {
		return model.User{}, fmt.Errorf("update account: %w", mapConstraintError(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.User{}, fmt.Errorf("update account: %w", err)
	} else if n == 0 {
		return model.User{}, fmt.Errorf("user %s: %w", u.ID, model.ErrNotFound)
	}
	return u, nil
}
