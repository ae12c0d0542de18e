package auth

import "time"

// User represents an account that can authenticate against the API
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never expose hash
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Token is the opaque API token bound to a single user.
// A user owns at most one token at a time.
type Token struct {
	Key       string    `json:"key"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	// User is populated by token lookups
	User *User `json:"-"`
}

// CredentialSource tells where a raw credential was read from
type CredentialSource string

const (
	SourceHeader CredentialSource = "header"
	SourceCookie CredentialSource = "cookie"
)

// RawCredential is an extracted, not yet validated token value
type RawCredential struct {
	Value  string
	Source CredentialSource
}

// AuthContext holds the authenticated identity of a request
type AuthContext struct {
	User   *User
	Token  *Token
	Source CredentialSource
}

// UserID returns the authenticated user id or 0 for an empty context
func (ac *AuthContext) UserID() int64 {
	if ac == nil || ac.User == nil {
		return 0
	}
	return ac.User.ID
}
