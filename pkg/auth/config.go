package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// Config holds the settings shared by the extractor, the authenticator and login issuance
type Config struct {
	// Keyword is the Authorization scheme, compared case-insensitively
	Keyword string

	// Auth cookie
	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite

	// CSRF double-submit settings
	CSRFCookieName string
	CSRFHeaderName string
	TrustedOrigins []string
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Keyword:        "Token",
		CookieName:     "auth_token",
		CookiePath:     "/",
		CookieSecure:   true,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		CSRFCookieName: "csrftoken",
		CSRFHeaderName: "X-CSRFToken",
	}
}

// Validate checks the configuration for unusable values
func (c Config) Validate() error {
	if c.Keyword == "" || strings.ContainsAny(c.Keyword, " \t") {
		return fmt.Errorf("auth keyword must be a single non-empty word")
	}
	if c.CookieName == "" {
		return fmt.Errorf("auth cookie name is required")
	}
	if c.CSRFCookieName == "" || c.CSRFHeaderName == "" {
		return fmt.Errorf("csrf cookie and header names are required")
	}
	if c.CookieSameSite == http.SameSiteNoneMode && !c.CookieSecure {
		return fmt.Errorf("SameSite=None requires a secure auth cookie")
	}
	return nil
}

// ParseSameSite converts a configuration string into an http.SameSite value
func ParseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(value) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("invalid SameSite value %q (must be Lax, Strict or None)", value)
	}
}

// AuthCookie builds the cookie carrying the token value
func (c Config) AuthCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     c.CookieName,
		Value:    value,
		Path:     c.CookiePath,
		Domain:   c.CookieDomain,
		Secure:   c.CookieSecure,
		HttpOnly: c.CookieHTTPOnly,
		SameSite: c.CookieSameSite,
	}
}

// ExpiredAuthCookie builds a cookie that removes the auth cookie from the client
func (c Config) ExpiredAuthCookie() *http.Cookie {
	cookie := c.AuthCookie("")
	cookie.MaxAge = -1
	return cookie
}
