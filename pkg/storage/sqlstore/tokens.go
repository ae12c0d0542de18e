package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/storage"
)

// LookupToken implements auth.TokenStore
func (s *Store) LookupToken(ctx context.Context, key string) (*auth.Token, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.LookupToken")
	defer span.End()

	var (
		t auth.Token
		u auth.User
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT t.token_key, t.user_id, t.created_at,
		       u.id, u.email, u.name, u.password_hash, u.is_active,
		       u.is_staff, u.is_superuser, u.created_at, u.updated_at
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_key = $1
	`, key).Scan(
		&t.Key, &t.UserID, &t.CreatedAt,
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive,
		&u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("token.found", false))
		return nil, storage.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token lookup failed")
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	span.SetAttributes(attribute.Bool("token.found", true), attribute.Int64("user.id", u.ID))
	t.User = &u
	return &t, nil
}

// GetOrCreateToken implements auth.TokenStore. The insert is skipped when the
// user already has a token, so concurrent logins converge on the stored row.
func (s *Store) GetOrCreateToken(ctx context.Context, userID int64, key string) (*auth.Token, bool, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.GetOrCreateToken")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (token_key, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, key, userID, s.now())
	if isForeignKeyViolation(err) {
		return nil, false, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token insert failed")
		return nil, false, fmt.Errorf("failed to create token: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to create token: %w", err)
	}

	var t auth.Token
	err = s.db.QueryRowContext(ctx,
		`SELECT token_key, user_id, created_at FROM auth_tokens WHERE user_id = $1`,
		userID,
	).Scan(&t.Key, &t.UserID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// The row was deleted between the insert and the select
		return nil, false, fmt.Errorf("token for user %d vanished: %w", userID, storage.ErrConflict)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token select failed")
		return nil, false, fmt.Errorf("failed to load token: %w", err)
	}

	created := inserted == 1
	span.SetAttributes(attribute.Bool("token.created", created))
	return &t, created, nil
}

// DeleteToken implements auth.TokenStore
func (s *Store) DeleteToken(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token_key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteInactiveUserTokens implements auth.TokenStore
func (s *Store) DeleteInactiveUserTokens(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.DeleteInactiveUserTokens")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM auth_tokens
		WHERE user_id IN (SELECT id FROM users WHERE is_active = $1)
		RETURNING token_key
	`, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token reap failed")
		return nil, fmt.Errorf("failed to delete inactive user tokens: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan token key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deleted tokens: %w", err)
	}

	span.SetAttributes(attribute.Int("tokens.deleted", len(keys)))
	return keys, nil
}
