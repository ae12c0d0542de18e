package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	// csrfSecretLength is the number of random bytes in a CSRF secret
	csrfSecretLength = 32
)

// CSRF failure reasons
const (
	ReasonNoCSRFCookie     = "CSRF cookie not set."
	ReasonCSRFTokenMissing = "CSRF token missing."
	ReasonBadCSRFToken     = "CSRF token incorrect."
	reasonBadOrigin        = "Origin checking failed - %s does not match any trusted origins."

	ReasonNoReferer        = "Referer checking failed - no Referer."
	ReasonMalformedReferer = "Referer checking failed - Referer is malformed."
	ReasonInsecureReferer  = "Referer checking failed - Referer is insecure while host is secure."
	reasonBadReferer       = "Referer checking failed - %s does not match any trusted origins."
)

// CSRFChecker verifies that a request carries proof of same-origin intent
type CSRFChecker interface {
	// Check returns a non-empty reason when the request must be rejected
	Check(r *http.Request) (reason string)
}

// CSRFProtector mints and verifies double-submit CSRF tokens.
//
// The cookie holds a hex secret. Clients echo a token in the CSRF header; a
// token is mask||(secret XOR mask), so every mint produces a different token for
// the same secret.
type CSRFProtector struct {
	cookieName     string
	headerName     string
	cookiePath     string
	cookieDomain   string
	secure         bool
	sameSite       http.SameSite
	trustedOrigins map[string]struct{}
}

// NewCSRFProtector creates a CSRF protector from the auth configuration
func NewCSRFProtector(cfg Config) *CSRFProtector {
	trusted := make(map[string]struct{}, len(cfg.TrustedOrigins))
	for _, origin := range cfg.TrustedOrigins {
		trusted[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}
	return &CSRFProtector{
		cookieName:     cfg.CSRFCookieName,
		headerName:     cfg.CSRFHeaderName,
		cookiePath:     cfg.CookiePath,
		cookieDomain:   cfg.CookieDomain,
		secure:         cfg.CookieSecure,
		sameSite:       cfg.CookieSameSite,
		trustedOrigins: trusted,
	}
}

// HeaderName returns the request/response header carrying the token
func (p *CSRFProtector) HeaderName() string {
	return p.headerName
}

// Check implements CSRFChecker
func (p *CSRFProtector) Check(r *http.Request) string {
	if isSafeMethod(r.Method) {
		return ""
	}

	if origin := r.Header.Get("Origin"); origin != "" {
		if !p.originAllowed(r, origin) {
			return fmt.Sprintf(reasonBadOrigin, origin)
		}
	} else if requestScheme(r) == "https" {
		if reason := p.checkReferer(r); reason != "" {
			return reason
		}
	}

	secret, ok := p.cookieSecret(r)
	if !ok {
		return ReasonNoCSRFCookie
	}

	token := r.Header.Get(p.headerName)
	if token == "" {
		return ReasonCSRFTokenMissing
	}

	unmasked, err := unmaskToken(token)
	if err != nil {
		return ReasonBadCSRFToken
	}
	if subtle.ConstantTimeCompare(unmasked, secret) != 1 {
		return ReasonBadCSRFToken
	}

	return ""
}

// Mint issues a CSRF token for the response. The secret in the request cookie
// is reused when valid, otherwise a new secret is generated and set as a cookie.
func (p *CSRFProtector) Mint(w http.ResponseWriter, r *http.Request) (string, error) {
	secret, ok := p.cookieSecret(r)
	if !ok {
		secret = make([]byte, csrfSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return "", fmt.Errorf("failed to generate csrf secret: %w", err)
		}
	}

	// Always (re)set the cookie so its lifetime follows the login
	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    hex.EncodeToString(secret),
		Path:     p.cookiePath,
		Domain:   p.cookieDomain,
		Secure:   p.secure,
		HttpOnly: false, // must be readable by the client to echo it
		SameSite: p.sameSite,
		MaxAge:   60 * 60 * 24 * 365,
	})

	token, err := maskSecret(secret)
	if err != nil {
		return "", err
	}
	w.Header().Set(p.headerName, token)
	return token, nil
}

func (p *CSRFProtector) cookieSecret(r *http.Request) ([]byte, bool) {
	cookie, err := r.Cookie(p.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	secret, err := hex.DecodeString(cookie.Value)
	if err != nil || len(secret) != csrfSecretLength {
		return nil, false
	}
	return secret, true
}

func (p *CSRFProtector) originAllowed(r *http.Request, origin string) bool {
	origin = strings.ToLower(strings.TrimRight(origin, "/"))
	if _, ok := p.trustedOrigins[origin]; ok {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	return u.Scheme == requestScheme(r) && strings.EqualFold(u.Host, r.Host)
}

// checkReferer guards secure requests that carry no Origin: the Referer must
// be an https URL on this host or a trusted origin
func (p *CSRFProtector) checkReferer(r *http.Request) string {
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ReasonNoReferer
	}

	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ReasonMalformedReferer
	}
	if u.Scheme != "https" {
		return ReasonInsecureReferer
	}

	if strings.EqualFold(u.Host, r.Host) {
		return ""
	}
	if _, ok := p.trustedOrigins[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
		return ""
	}
	return fmt.Sprintf(reasonBadReferer, referer)
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return "https"
	}
	return "http"
}

func maskSecret(secret []byte) (string, error) {
	mask := make([]byte, len(secret))
	if _, err := rand.Read(mask); err != nil {
		return "", fmt.Errorf("failed to generate csrf mask: %w", err)
	}
	masked := make([]byte, len(secret))
	for i := range secret {
		masked[i] = secret[i] ^ mask[i]
	}
	return hex.EncodeToString(mask) + hex.EncodeToString(masked), nil
}

func unmaskToken(token string) ([]byte, error) {
	raw, err := hex.DecodeString(token)
	if err != nil {
		return nil, err
	}
	if len(raw) != 2*csrfSecretLength {
		return nil, fmt.Errorf("csrf token has length %d", len(raw))
	}
	mask, masked := raw[:csrfSecretLength], raw[csrfSecretLength:]
	secret := make([]byte, csrfSecretLength)
	for i := range secret {
		secret[i] = masked[i] ^ mask[i]
	}
	return secret, nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
