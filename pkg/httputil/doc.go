// Package httputil provides the JSON response helpers, request parsing and
// generic middleware shared by pantry's HTTP handlers.
//
// Every error answer has the shape {"error": "<message>"}, optionally with a
// "details" object naming invalid fields:
//
//	httputil.WriteErrorMessage(w, http.StatusBadRequest, "Unable to authenticate with provided credentials")
//	httputil.WriteValidationError(w, "invalid user", map[string]string{"password": "..."})
//
// Request parsing:
//
//	var req createRecipeRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	tagIDs, err := httputil.ParseQueryIDs(r, "tags") // ?tags=1,2
//
// Middleware, outermost first:
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware(origins),
//		httputil.TimeoutMiddleware(30*time.Second),
//		httputil.MaxBytesMiddleware(10<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: authentication and rate limiting
package httputil
