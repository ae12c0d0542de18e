package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(authorization string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/recipe/recipes/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestExtractor_Header(t *testing.T) {
	extractor := NewExtractor(DefaultConfig())

	tests := []struct {
		name    string
		header  string
		want    *RawCredential
		wantMsg string
	}{
		{
			name:   "keyword and token",
			header: "Token abc123",
			want:   &RawCredential{Value: "abc123", Source: SourceHeader},
		},
		{
			name:   "keyword is case insensitive",
			header: "tOkEn abc123",
			want:   &RawCredential{Value: "abc123", Source: SourceHeader},
		},
		{
			name:   "extra surrounding whitespace",
			header: "  Token \t abc123  ",
			want:   &RawCredential{Value: "abc123", Source: SourceHeader},
		},
		{
			name:    "keyword only",
			header:  "Token",
			wantMsg: MsgNoCredentials,
		},
		{
			name:    "token with spaces",
			header:  "Token abc 123",
			wantMsg: MsgTokenHasSpaces,
		},
		{
			name:    "invalid utf-8",
			header:  "Token \xff\xfe",
			wantMsg: MsgInvalidCharacters,
		},
		{
			name:   "foreign scheme is anonymous",
			header: "Bearer abc123",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := extractor.Extract(newRequest(tt.header, nil))

			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindMalformedHeader))
				assert.Equal(t, tt.wantMsg, err.Error())
				assert.Nil(t, cred)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cred)
		})
	}
}

func TestExtractor_CustomKeyword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keyword = "Bearer"
	extractor := NewExtractor(cfg)

	cred, err := extractor.Extract(newRequest("bearer xyz", nil))
	require.NoError(t, err)
	assert.Equal(t, &RawCredential{Value: "xyz", Source: SourceHeader}, cred)

	cred, err = extractor.Extract(newRequest("Token xyz", nil))
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestExtractor_CookieFallback(t *testing.T) {
	cfg := DefaultConfig()
	extractor := NewExtractor(cfg)

	t.Run("cookie used when no header", func(t *testing.T) {
		cred, err := extractor.Extract(newRequest("", &http.Cookie{Name: cfg.CookieName, Value: "from-cookie"}))
		require.NoError(t, err)
		assert.Equal(t, &RawCredential{Value: "from-cookie", Source: SourceCookie}, cred)
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		cred, err := extractor.Extract(newRequest("Token from-header", &http.Cookie{Name: cfg.CookieName, Value: "from-cookie"}))
		require.NoError(t, err)
		assert.Equal(t, SourceHeader, cred.Source)
		assert.Equal(t, "from-header", cred.Value)
	})

	t.Run("foreign scheme does not fall back to cookie", func(t *testing.T) {
		cred, err := extractor.Extract(newRequest("Basic dXNlcjpwYXNz", &http.Cookie{Name: cfg.CookieName, Value: "from-cookie"}))
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("empty cookie is anonymous", func(t *testing.T) {
		cred, err := extractor.Extract(newRequest("", &http.Cookie{Name: cfg.CookieName, Value: ""}))
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("other cookie names are ignored", func(t *testing.T) {
		cred, err := extractor.Extract(newRequest("", &http.Cookie{Name: "sessionid", Value: "x"}))
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("whitespace-only header falls back", func(t *testing.T) {
		req := newRequest("", &http.Cookie{Name: cfg.CookieName, Value: "from-cookie"})
		req.Header.Set("Authorization", "   ")
		cred, err := extractor.Extract(req)
		require.NoError(t, err)
		assert.Equal(t, SourceCookie, cred.Source)
	})
}

func TestChain_StopsAtFirstClaim(t *testing.T) {
	var calls []string
	source := func(name string, claim bool) ExtractFunc {
		return func(r *http.Request) (*RawCredential, bool, error) {
			calls = append(calls, name)
			if claim {
				return &RawCredential{Value: name}, true, nil
			}
			return nil, false, nil
		}
	}

	cred, err := Chain{source("a", false), source("b", true), source("c", true)}.Extract(newRequest("", nil))
	require.NoError(t, err)
	assert.Equal(t, "b", cred.Value)
	assert.Equal(t, []string{"a", "b"}, calls)
}
