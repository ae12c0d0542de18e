package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/platinummonkey/pantry/pkg/storage"
)

// Verifier turns a raw credential into an authenticated identity
type Verifier interface {
	Verify(ctx context.Context, r *http.Request, cred *RawCredential) (*AuthContext, error)
}

// TokenAuthenticator validates raw credentials against the token store.
// Cookie credentials must pass the CSRF check before the store is queried.
type TokenAuthenticator struct {
	tokens TokenStore
	csrf   CSRFChecker
}

// NewTokenAuthenticator creates a token authenticator
func NewTokenAuthenticator(tokens TokenStore, csrf CSRFChecker) *TokenAuthenticator {
	return &TokenAuthenticator{
		tokens: tokens,
		csrf:   csrf,
	}
}

// Verify implements Verifier
func (a *TokenAuthenticator) Verify(ctx context.Context, r *http.Request, cred *RawCredential) (*AuthContext, error) {
	if cred.Source == SourceCookie {
		if reason := a.csrf.Check(r); reason != "" {
			return nil, csrfRejected(reason)
		}
	}

	token, err := a.tokens.LookupToken(ctx, cred.Value)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, failed(MsgInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}

	if token.User == nil || !token.User.IsActive {
		return nil, failed(MsgUserInactive)
	}

	return &AuthContext{
		User:   token.User,
		Token:  token,
		Source: cred.Source,
	}, nil
}

// Authenticator composes an Extractor and a Verifier
type Authenticator struct {
	extractor Extractor
	verifier  Verifier
}

// NewAuthenticator creates an authenticator from its two stages
func NewAuthenticator(extractor Extractor, verifier Verifier) *Authenticator {
	return &Authenticator{
		extractor: extractor,
		verifier:  verifier,
	}
}

// Authenticate resolves the identity of a request. Anonymous requests get a nil
// context and a nil error. The extracted credential is returned for reporting.
func (a *Authenticator) Authenticate(r *http.Request) (*AuthContext, *RawCredential, error) {
	cred, err := a.extractor.Extract(r)
	if err != nil || cred == nil {
		return nil, nil, err
	}

	authCtx, err := a.verifier.Verify(r.Context(), r, cred)
	if err != nil {
		return nil, cred, err
	}
	return authCtx, cred, nil
}
