// Package middleware provides the authentication and rate limiting
// middleware of the pantry API.
//
// # Authentication
//
// AuthMiddleware runs the auth pipeline on every request:
//
//	authMW := middleware.NewAuthMiddleware(authenticator, cfg.Keyword, metrics)
//	router.Use(authMW.Handler)
//	protected.Use(middleware.RequireAuth(cfg.Keyword))
//
// Outcomes:
//
//   - no credential: the request continues anonymously
//   - malformed header or bad token: 401 with WWW-Authenticate
//   - cookie without CSRF proof: 403
//
// RequireAuth turns anonymous requests into a 401 on routes that need a user.
//
// # Rate Limiting
//
// RateLimiter keeps an in-process token bucket per key (x/time/rate behind an
// expirable LRU). DistributedRateLimiter counts fixed windows in Redis so
// several instances share one budget. Both plug into RateLimit:
//
//	login := middleware.RateLimit(limiter, "login", middleware.ClientIPKey(trustProxy), metrics)
//
// Limiter errors fail open.
//
// # Related Packages
//
//   - pkg/auth: credential extraction and verification
//   - pkg/httputil: error responses
package middleware
