package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies authentication failures
type Kind int

const (
	// KindMalformedHeader means the Authorization header used our keyword but was unusable
	KindMalformedHeader Kind = iota + 1
	// KindCSRFRejected means a cookie credential came without valid CSRF proof
	KindCSRFRejected
	// KindAuthenticationFailed covers unknown tokens and inactive users
	KindAuthenticationFailed
)

func (k Kind) String() string {
	switch k {
	case KindMalformedHeader:
		return "malformed_header"
	case KindCSRFRejected:
		return "csrf_rejected"
	case KindAuthenticationFailed:
		return "authentication_failed"
	default:
		return "unknown"
	}
}

// Messages returned to clients. Token-not-found and inactive-user are kept
// distinct here but both surface as authentication failures.
const (
	MsgNoCredentials      = "Invalid token header. No credentials provided."
	MsgTokenHasSpaces     = "Invalid token header. Token string should not contain spaces."
	MsgInvalidCharacters  = "Invalid token header. Token string should not contain invalid characters."
	MsgInvalidToken       = "Invalid token."
	MsgUserInactive       = "User inactive or deleted."
	MsgNotAuthenticated   = "Authentication credentials were not provided."
	MsgInvalidLogin       = "Unable to authenticate with provided credentials"
	MsgMissingLoginFields = `Must include "email" and "password".`
)

// Error is an authentication failure scoped to a single request
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode maps the failure to the HTTP status the API answers with
func (e *Error) StatusCode() int {
	if e.Kind == KindCSRFRejected {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

func malformed(msg string) *Error {
	return &Error{Kind: KindMalformedHeader, Message: msg}
}

func failed(msg string) *Error {
	return &Error{Kind: KindAuthenticationFailed, Message: msg}
}

func csrfRejected(reason string) *Error {
	return &Error{Kind: KindCSRFRejected, Message: fmt.Sprintf("CSRF Failed: %s", reason)}
}

// AsError extracts an *Error from err
func AsError(err error) (*Error, bool) {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// IsKind reports whether err is an authentication failure of the given kind
func IsKind(err error, kind Kind) bool {
	authErr, ok := AsError(err)
	return ok && authErr.Kind == kind
}

// ErrInvalidLogin is returned by Login for unknown users, bad passwords and inactive users
var ErrInvalidLogin = errors.New(MsgInvalidLogin)
