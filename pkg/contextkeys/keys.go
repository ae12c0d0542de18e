// Package contextkeys holds the request-scoped values shared between the
// middleware, the handlers and the logger.
//
// Keys are unexported; values go in and out through the helpers below so a
// producer and a consumer cannot disagree on the stored type.
//
//	ctx = contextkeys.WithAuth(ctx, authCtx)
//	authCtx, _ := contextkeys.Auth(ctx).(*auth.AuthContext)
package contextkeys

import "context"

type key int

const (
	// *auth.AuthContext, set by middleware.AuthMiddleware
	authKey key = iota
	// string, set by httputil.RequestIDMiddleware
	requestIDKey
	// int64, set by middleware.AuthMiddleware once a request authenticates
	userIDKey
	// *observability.Logger, set by httputil.LoggingMiddleware
	loggerKey
)

// WithAuth stores the authentication result. The value is untyped so this
// package does not depend on auth.
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, authKey, authCtx)
}

// Auth returns the value stored by WithAuth, or nil
func Auth(ctx context.Context) interface{} {
	return ctx.Value(authKey)
}

// WithRequestID stores the request id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request id, or "" outside a request
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// WithUserID stores the id of the authenticated user
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the authenticated user id; ok is false for anonymous
// requests
func GetUserID(ctx context.Context) (userID int64, ok bool) {
	userID, ok = ctx.Value(userIDKey).(int64)
	return userID, ok
}

// WithLogger stores a request logger
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the value stored by WithLogger, or nil
func Logger(ctx context.Context) interface{} {
	return ctx.Value(loggerKey)
}
