package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/contextkeys"
	"github.com/platinummonkey/pantry/pkg/observability"
)

// authenticatorFunc adapts a function to Authenticator
type authenticatorFunc func(r *http.Request) (*auth.AuthContext, *auth.RawCredential, error)

func (f authenticatorFunc) Authenticate(r *http.Request) (*auth.AuthContext, *auth.RawCredential, error) {
	return f(r)
}

func fixedAuthenticator(authCtx *auth.AuthContext, cred *auth.RawCredential, err error) Authenticator {
	return authenticatorFunc(func(*http.Request) (*auth.AuthContext, *auth.RawCredential, error) {
		return authCtx, cred, err
	})
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestAuthMiddleware_Success(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	user := &auth.User{ID: 42, Email: "cook@example.com", IsActive: true}
	authCtx := &auth.AuthContext{User: user, Token: &auth.Token{Key: "k", UserID: 42}, Source: auth.SourceCookie}
	m := NewAuthMiddleware(fixedAuthenticator(authCtx, &auth.RawCredential{Value: "k", Source: auth.SourceCookie}, nil), "Token", metrics)

	var seen *auth.AuthContext
	var seenUserID int64
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAuthContext(r)
		seenUserID, _ = contextkeys.GetUserID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Same(t, authCtx, seen)
	assert.Equal(t, int64(42), seenUserID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthAttemptsTotal.WithLabelValues("cookie", "success")))
}

func TestAuthMiddleware_Anonymous(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m := NewAuthMiddleware(fixedAuthenticator(nil, nil, nil), "Token", metrics)

	called := false
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, GetAuthContext(r))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/user/create/", nil))

	assert.True(t, called, "anonymous requests reach the handler")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthAttemptsTotal.WithLabelValues("none", "anonymous")))
}

func TestAuthMiddleware_Errors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		source        auth.CredentialSource
		wantStatus    int
		wantMsg       string
		wantChallenge bool
		wantResult    string
	}{
		{
			name:          "malformed header",
			err:           &auth.Error{Kind: auth.KindMalformedHeader, Message: auth.MsgNoCredentials},
			source:        "",
			wantStatus:    http.StatusUnauthorized,
			wantMsg:       auth.MsgNoCredentials,
			wantChallenge: true,
			wantResult:    "malformed_header",
		},
		{
			name:          "invalid token",
			err:           &auth.Error{Kind: auth.KindAuthenticationFailed, Message: auth.MsgInvalidToken},
			source:        auth.SourceHeader,
			wantStatus:    http.StatusUnauthorized,
			wantMsg:       auth.MsgInvalidToken,
			wantChallenge: true,
			wantResult:    "authentication_failed",
		},
		{
			name:       "csrf rejected",
			err:        &auth.Error{Kind: auth.KindCSRFRejected, Message: "CSRF Failed: CSRF cookie not set."},
			source:     auth.SourceCookie,
			wantStatus: http.StatusForbidden,
			wantMsg:    "CSRF Failed: CSRF cookie not set.",
			wantResult: "csrf_rejected",
		},
		{
			name:       "store failure",
			err:        errors.New("token lookup failed: connection refused"),
			source:     auth.SourceHeader,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
			wantResult: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetrics(prometheus.NewRegistry())
			var cred *auth.RawCredential
			source := "none"
			if tt.source != "" {
				cred = &auth.RawCredential{Value: "k", Source: tt.source}
				source = string(tt.source)
			}
			m := NewAuthMiddleware(fixedAuthenticator(nil, cred, tt.err), "Token", metrics)
			handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, errorBody(t, w))
			if tt.wantChallenge {
				assert.Equal(t, "Token", w.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, w.Header().Get("WWW-Authenticate"))
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthAttemptsTotal.WithLabelValues(source, tt.wantResult)))
		})
	}
}

func TestAuthMiddleware_NilMetrics(t *testing.T) {
	m := NewAuthMiddleware(fixedAuthenticator(nil, nil, nil), "Token", nil)
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		m.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequireAuth(t *testing.T) {
	protected := RequireAuth("Token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("anonymous gets 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/recipe/recipes/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Token", w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, auth.MsgNotAuthenticated, errorBody(t, w))
	})

	t.Run("authenticated passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipe/recipes/", nil)
		req = req.WithContext(contextkeys.WithAuth(req.Context(), &auth.AuthContext{User: &auth.User{ID: 1}}))
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestGetAuthContext_WrongType(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextkeys.WithAuth(req.Context(), "not an auth context"))
	assert.Nil(t, GetAuthContext(req))
}
