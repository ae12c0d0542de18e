package middleware

import (
	"net/http"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/contextkeys"
	"github.com/platinummonkey/pantry/pkg/httputil"
	"github.com/platinummonkey/pantry/pkg/observability"
)

// Authenticator resolves the identity behind a request; see auth.Authenticator
type Authenticator interface {
	Authenticate(r *http.Request) (*auth.AuthContext, *auth.RawCredential, error)
}

// AuthMiddleware authenticates every request. Requests without credentials
// continue anonymously; requests with bad credentials are refused here.
type AuthMiddleware struct {
	authenticator Authenticator
	keyword       string
	metrics       *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware. keyword is the
// Authorization scheme echoed in WWW-Authenticate challenges. metrics may be nil.
func NewAuthMiddleware(authenticator Authenticator, keyword string, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		keyword:       keyword,
		metrics:       metrics,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, cred, err := m.authenticator.Authenticate(r)

		source := "none"
		if cred != nil {
			source = string(cred.Source)
		}

		if err != nil {
			m.writeAuthError(w, r, source, err)
			return
		}

		if authCtx == nil {
			m.metrics.RecordAuth(source, "anonymous")
			next.ServeHTTP(w, r)
			return
		}

		m.metrics.RecordAuth(source, "success")
		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, authCtx.UserID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) writeAuthError(w http.ResponseWriter, r *http.Request, source string, err error) {
	logger := observability.FromContext(r.Context()).WithField("credential_source", source)

	authErr, ok := auth.AsError(err)
	if !ok {
		m.metrics.RecordAuth(source, "error")
		logger.WithError(err).Error("authentication failed with an internal error")
		httputil.WriteInternalError(w)
		return
	}

	m.metrics.RecordAuth(source, authErr.Kind.String())
	logger.WithField("reason", authErr.Kind.String()).Debug(authErr.Message)

	if authErr.StatusCode() == http.StatusUnauthorized {
		httputil.WriteUnauthorized(w, m.keyword, authErr.Message)
		return
	}
	httputil.WriteErrorMessage(w, authErr.StatusCode(), authErr.Message)
}

// RequireAuth refuses anonymous requests with 401. It must run after
// AuthMiddleware.
func RequireAuth(keyword string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetAuthContext(r) == nil {
				httputil.WriteUnauthorized(w, keyword, auth.MsgNotAuthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := contextkeys.Auth(r.Context()).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}
