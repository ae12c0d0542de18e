package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/observability"
	"github.com/platinummonkey/pantry/pkg/storage"
)

const userColumns = `id, email, name, password_hash, is_active, is_staff, is_superuser, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var u auth.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser implements auth.UserStore
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	now := s.now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password_hash, is_active, is_staff, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		user.Email, user.Name, user.PasswordHash,
		user.IsActive, user.IsStaff, user.IsSuperuser,
		now, now,
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("user with email %s: %w", user.Email, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID implements auth.UserStore
func (s *Store) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail implements auth.UserStore
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateUser implements auth.UserStore
func (s *Store) UpdateUser(ctx context.Context, user *auth.User) error {
	now := s.now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $1, name = $2, password_hash = $3, is_active = $4,
		    is_staff = $5, is_superuser = $6, updated_at = $7
		WHERE id = $8
	`,
		user.Email, user.Name, user.PasswordHash, user.IsActive,
		user.IsStaff, user.IsSuperuser, now,
		user.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user with email %s: %w", user.Email, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	user.UpdatedAt = now
	s.notifyUserChanged(ctx, user.ID)
	return nil
}

// UserChangeListener is told after a user row has been updated
type UserChangeListener interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

// OnUserChange registers l to run after every successful UpdateUser
func (s *Store) OnUserChange(l UserChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notifyUserChanged(ctx context.Context, userID int64) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, l := range listeners {
		if err := l.InvalidateUser(ctx, userID); err != nil {
			observability.FromContext(ctx).
				WithError(err).
				WithField("user_id", userID).
				Warn("failed to invalidate cached credentials")
		}
	}
}
