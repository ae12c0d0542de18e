package auth

import "context"

// UserStore persists user accounts. Lookups return storage.ErrNotFound for
// unknown users and CreateUser returns storage.ErrConflict for a taken email.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
}

// TokenStore persists API tokens
type TokenStore interface {
	// LookupToken finds a token by exact key and populates Token.User.
	// Returns storage.ErrNotFound when the key is unknown.
	LookupToken(ctx context.Context, key string) (*Token, error)

	// GetOrCreateToken returns the user's token, inserting one with the given
	// key when none exists. It must be atomic: concurrent callers for the same
	// user all receive the first stored token. created reports whether key was used.
	GetOrCreateToken(ctx context.Context, userID int64, key string) (token *Token, created bool, err error)

	// DeleteToken removes a token by key
	DeleteToken(ctx context.Context, key string) error

	// DeleteInactiveUserTokens removes tokens owned by inactive users and
	// returns the removed keys
	DeleteInactiveUserTokens(ctx context.Context) ([]string, error)
}
