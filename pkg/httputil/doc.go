// Package httputil provides HTTP handler utilities: the JSON error
// envelope, request decoding, and the outermost middleware (request ids,
// logging, panic recovery, CORS).
//
// Every error response carries the same envelope so clients can branch on
// a stable machine-readable code:
//
//	{"error": {"code": "INVALID_CREDENTIALS", "message": "Invalid email or password"}}
//
// # Request Parsing
//
//	var req loginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and authorization middleware
package httputil
