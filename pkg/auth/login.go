package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/pantry/pkg/storage"
)

// LoginService verifies email/password credentials and issues tokens
type LoginService struct {
	users     UserStore
	tokens    TokenStore
	hasher    PasswordHasher
	generator *TokenGenerator
}

// NewLoginService creates a login service
func NewLoginService(users UserStore, tokens TokenStore, hasher PasswordHasher) *LoginService {
	return &LoginService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		generator: NewTokenGenerator(),
	}
}

// LoginResult is the outcome of a successful login
type LoginResult struct {
	User    *User
	Token   *Token
	Created bool
}

// Login checks the credentials and returns the user's token, creating it on
// first login. Repeated logins return the same token.
func (s *LoginService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) || !user.IsActive {
		return nil, ErrInvalidLogin
	}

	key, err := s.generator.GenerateKey()
	if err != nil {
		return nil, err
	}

	token, created, err := s.tokens.GetOrCreateToken(ctx, user.ID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	token.User = user

	return &LoginResult{User: user, Token: token, Created: created}, nil
}

// Logout removes the token so neither header nor cookie can use it again
func (s *LoginService) Logout(ctx context.Context, token *Token) error {
	if err := s.tokens.DeleteToken(ctx, token.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Register creates an active user with a hashed password
func (s *LoginService) Register(ctx context.Context, email, password, name string) (*User, error) {
	return s.create(ctx, &User{Email: email, Name: name, IsActive: true}, password)
}

// RegisterSuperuser creates an active staff superuser
func (s *LoginService) RegisterSuperuser(ctx context.Context, email, password string) (*User, error) {
	return s.create(ctx, &User{Email: email, IsActive: true, IsStaff: true, IsSuperuser: true}, password)
}

func (s *LoginService) create(ctx context.Context, user *User, password string) (*User, error) {
	user.Email = NormalizeEmail(user.Email)
	if user.Email == "" {
		return nil, fmt.Errorf("users must have an email address")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// NormalizeEmail trims the address and lower-cases its domain part
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
