package auth

import (
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mintPair returns a CSRF cookie and a matching masked token
func mintPair(t *testing.T, p *CSRFProtector) (*http.Cookie, string) {
	t.Helper()
	w := httptest.NewRecorder()
	token, err := p.Mint(w, httptest.NewRequest(http.MethodPost, "/api/user/token/", nil))
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0], token
}

func unsafeRequest(cookie *http.Cookie, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "http://api.example.com/api/recipe/tags/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if token != "" {
		req.Header.Set("X-CSRFToken", token)
	}
	return req
}

func TestCSRFProtector_Mint(t *testing.T) {
	p := NewCSRFProtector(DefaultConfig())
	w := httptest.NewRecorder()

	token, err := p.Mint(w, httptest.NewRequest(http.MethodPost, "/", nil))
	require.NoError(t, err)

	assert.Len(t, token, 4*csrfSecretLength)
	assert.Equal(t, token, w.Header().Get("X-CSRFToken"))

	cookie := w.Result().Cookies()[0]
	assert.Equal(t, "csrftoken", cookie.Name)
	assert.False(t, cookie.HttpOnly, "clients must be able to read the csrf cookie")
	assert.True(t, cookie.Secure)

	secret, err := hex.DecodeString(cookie.Value)
	require.NoError(t, err)
	unmasked, err := unmaskToken(token)
	require.NoError(t, err)
	assert.Equal(t, secret, unmasked)
}

func TestCSRFProtector_MintReusesSecret(t *testing.T) {
	p := NewCSRFProtector(DefaultConfig())
	cookie, first := mintPair(t, p)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	second, err := p.Mint(w, req)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "masking makes every token different")
	assert.Equal(t, cookie.Value, w.Result().Cookies()[0].Value)
	assert.Empty(t, p.Check(unsafeRequest(cookie, second)))
}

func TestCSRFProtector_Check(t *testing.T) {
	p := NewCSRFProtector(DefaultConfig())
	cookie, token := mintPair(t, p)
	_, otherToken := mintPair(t, p)

	tests := []struct {
		name string
		req  func() *http.Request
		want string
	}{
		{
			name: "valid pair",
			req:  func() *http.Request { return unsafeRequest(cookie, token) },
			want: "",
		},
		{
			name: "safe method needs nothing",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/", nil)
			},
			want: "",
		},
		{
			name: "missing cookie",
			req:  func() *http.Request { return unsafeRequest(nil, token) },
			want: ReasonNoCSRFCookie,
		},
		{
			name: "malformed cookie",
			req: func() *http.Request {
				return unsafeRequest(&http.Cookie{Name: "csrftoken", Value: "zz"}, token)
			},
			want: ReasonNoCSRFCookie,
		},
		{
			name: "missing header",
			req:  func() *http.Request { return unsafeRequest(cookie, "") },
			want: ReasonCSRFTokenMissing,
		},
		{
			name: "token for another secret",
			req:  func() *http.Request { return unsafeRequest(cookie, otherToken) },
			want: ReasonBadCSRFToken,
		},
		{
			name: "garbage token",
			req:  func() *http.Request { return unsafeRequest(cookie, "not-hex") },
			want: ReasonBadCSRFToken,
		},
		{
			name: "truncated token",
			req:  func() *http.Request { return unsafeRequest(cookie, token[:len(token)-2]) },
			want: ReasonBadCSRFToken,
		},
		{
			name: "same origin",
			req: func() *http.Request {
				req := unsafeRequest(cookie, token)
				req.Header.Set("Origin", "http://api.example.com")
				return req
			},
			want: "",
		},
		{
			name: "cross origin",
			req: func() *http.Request {
				req := unsafeRequest(cookie, token)
				req.Header.Set("Origin", "https://evil.example.com")
				return req
			},
			want: fmt.Sprintf(reasonBadOrigin, "https://evil.example.com"),
		},
		{
			name: "scheme mismatch",
			req: func() *http.Request {
				req := unsafeRequest(cookie, token)
				req.Header.Set("Origin", "https://api.example.com")
				return req
			},
			want: fmt.Sprintf(reasonBadOrigin, "https://api.example.com"),
		},
		{
			name: "https behind proxy",
			req: func() *http.Request {
				req := unsafeRequest(cookie, token)
				req.Header.Set("Origin", "https://api.example.com")
				req.Header.Set("X-Forwarded-Proto", "https")
				return req
			},
			want: "",
		},
		{
			name: "https via tls",
			req: func() *http.Request {
				req := unsafeRequest(cookie, token)
				req.Header.Set("Origin", "https://api.example.com")
				req.TLS = &tls.ConnectionState{}
				return req
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Check(tt.req()))
		})
	}
}

func TestCSRFProtector_Referer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrustedOrigins = []string{"https://app.example.com"}
	p := NewCSRFProtector(cfg)
	cookie, token := mintPair(t, p)

	secure := func(referer string) *http.Request {
		req := unsafeRequest(cookie, token)
		req.TLS = &tls.ConnectionState{}
		if referer != "" {
			req.Header.Set("Referer", referer)
		}
		return req
	}

	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"same host", secure("https://api.example.com/recipes"), ""},
		{"trusted origin", secure("https://app.example.com/edit"), ""},
		{"missing", secure(""), ReasonNoReferer},
		{"malformed", secure("not a url"), ReasonMalformedReferer},
		{"insecure", secure("http://api.example.com/"), ReasonInsecureReferer},
		{"foreign host", secure("https://evil.example.com/x"), fmt.Sprintf(reasonBadReferer, "https://evil.example.com/x")},
		{"plain http skips the check", unsafeRequest(cookie, token), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Check(tt.req))
		})
	}

	t.Run("origin takes precedence", func(t *testing.T) {
		req := secure("")
		req.Header.Set("Origin", "https://api.example.com")
		assert.Empty(t, p.Check(req))
	})
}

func TestCSRFProtector_TrustedOrigins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrustedOrigins = []string{"https://App.Example.com/"}
	p := NewCSRFProtector(cfg)
	cookie, token := mintPair(t, p)

	req := unsafeRequest(cookie, token)
	req.Header.Set("Origin", "https://app.example.com")
	assert.Empty(t, p.Check(req))
}

func TestCSRFProtector_CustomNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CSRFCookieName = "xsrf"
	cfg.CSRFHeaderName = "X-XSRF-Token"
	p := NewCSRFProtector(cfg)
	assert.Equal(t, "X-XSRF-Token", p.HeaderName())

	cookie, token := mintPair(t, p)
	assert.Equal(t, "xsrf", cookie.Name)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-XSRF-Token", token)
	assert.Empty(t, p.Check(req))

	req.Header.Del("X-XSRF-Token")
	req.Header.Set("X-CSRFToken", token)
	assert.Equal(t, ReasonCSRFTokenMissing, p.Check(req))
}

func TestMaskSecret_Distinct(t *testing.T) {
	secret := []byte(strings.Repeat("s", csrfSecretLength))
	a, err := maskSecret(secret)
	require.NoError(t, err)
	b, err := maskSecret(secret)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
