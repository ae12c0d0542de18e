package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/platinummonkey/pantry/pkg/httputil"
	"github.com/platinummonkey/pantry/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize is how many requests may arrive at once; 0 means RequestsPerWindow
	BurstSize int
}

// LoginRateLimitConfig returns the default throttle for credential endpoints
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

// APIRateLimitConfig returns the default throttle for the rest of the API
func APIRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute,
		BurstSize:         60,
	}
}

func (c RateLimitConfig) burst() int {
	if c.BurstSize > 0 {
		return c.BurstSize
	}
	return c.RequestsPerWindow
}

// Limiter decides whether the caller identified by key may proceed.
// When it may not, retryAfter tells how long to wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimiter is an in-process token bucket per key. Idle keys are evicted
// from a bounded LRU.
type RateLimiter struct {
	config  RateLimitConfig
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a new rate limiter tracking at most maxKeys callers
func NewRateLimiter(config RateLimitConfig, maxKeys int) *RateLimiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &RateLimiter{
		config:  config,
		buckets: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, 2*config.WindowDuration),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	limiter, ok := rl.buckets.Get(key)
	if !ok {
		every := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)
		limiter = rate.NewLimiter(rate.Every(every), rl.config.burst())
		rl.buckets.Add(key, limiter)
	}
	return limiter
}

// Allow implements Limiter
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	reservation := rl.limiter(key).Reserve()
	if !reservation.OK() {
		return false, rl.config.WindowDuration, nil
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}

// Remaining returns the whole requests currently available for key
func (rl *RateLimiter) Remaining(key string) int {
	limiter, ok := rl.buckets.Peek(key)
	if !ok {
		return rl.config.burst()
	}
	return int(math.Floor(limiter.Tokens()))
}

// KeyFunc derives the rate limit key of a request
type KeyFunc func(r *http.Request) string

// ClientIPKey keys requests by client address. Forwarding headers are only
// trusted behind a known proxy.
func ClientIPKey(trustProxyHeaders bool) KeyFunc {
	return func(r *http.Request) string {
		return "ip:" + clientIP(r, trustProxyHeaders)
	}
}

// UserOrIPKey keys authenticated requests by user and the rest by address.
// It must run after AuthMiddleware.
func UserOrIPKey(trustProxyHeaders bool) KeyFunc {
	byIP := ClientIPKey(trustProxyHeaders)
	return func(r *http.Request) string {
		if authCtx := GetAuthContext(r); authCtx != nil {
			return fmt.Sprintf("user:%d", authCtx.UserID())
		}
		return byIP(r)
	}
}

// RateLimit throttles requests with limiter. name labels the limiter in
// metrics and logs. Limiter errors fail open.
func RateLimit(limiter Limiter, name string, key KeyFunc, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				observability.FromContext(r.Context()).
					WithError(err).
					WithField("limiter", name).
					Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				metrics.RecordRateLimited(name)
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				httputil.WriteTooManyRequests(w,
					fmt.Sprintf("Request was throttled. Expected available in %d seconds.", seconds))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustHeaders bool) string {
	if trustHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			return strings.TrimSpace(ips[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
