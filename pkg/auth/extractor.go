package auth

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

// Extractor reads a raw credential from a request.
//
// Return values:
//   - (cred, nil): a credential is present
//   - (nil, nil): no credential, the request is anonymous
//   - (nil, err): a credential was offered but is malformed
type Extractor interface {
	Extract(r *http.Request) (*RawCredential, error)
}

// ExtractFunc is one credential source. claimed reports whether the source was
// present on the request; once a source claims a request no later source is tried.
type ExtractFunc func(r *http.Request) (cred *RawCredential, claimed bool, err error)

// Chain tries each source in order and stops at the first one that claims the request
type Chain []ExtractFunc

// Extract implements Extractor
func (c Chain) Extract(r *http.Request) (*RawCredential, error) {
	for _, source := range c {
		cred, claimed, err := source(r)
		if err != nil {
			return nil, err
		}
		if claimed {
			return cred, nil
		}
	}
	return nil, nil
}

// NewExtractor returns the header-then-cookie extractor described by cfg
func NewExtractor(cfg Config) Chain {
	return Chain{HeaderSource(cfg.Keyword), CookieSource(cfg.CookieName)}
}

// HeaderSource reads "Authorization: <keyword> <token>".
// A header using another scheme is claimed but yields no credential, so the
// cookie is never consulted when an Authorization header is sent.
func HeaderSource(keyword string) ExtractFunc {
	return func(r *http.Request) (*RawCredential, bool, error) {
		fields := strings.Fields(r.Header.Get("Authorization"))
		if len(fields) == 0 {
			return nil, false, nil
		}

		if !strings.EqualFold(fields[0], keyword) {
			return nil, true, nil
		}

		switch {
		case len(fields) == 1:
			return nil, true, malformed(MsgNoCredentials)
		case len(fields) > 2:
			return nil, true, malformed(MsgTokenHasSpaces)
		}

		value := fields[1]
		if !utf8.ValidString(value) {
			return nil, true, malformed(MsgInvalidCharacters)
		}

		return &RawCredential{Value: value, Source: SourceHeader}, true, nil
	}
}

// CookieSource reads the token from the named cookie. A missing or empty
// cookie does not claim the request.
func CookieSource(name string) ExtractFunc {
	return func(r *http.Request) (*RawCredential, bool, error) {
		cookie, err := r.Cookie(name)
		if err != nil || cookie.Value == "" {
			return nil, false, nil
		}
		return &RawCredential{Value: cookie.Value, Source: SourceCookie}, true, nil
	}
}
