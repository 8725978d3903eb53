// Package middleware guards HTTP routes with the token core.
//
// The Guard validates the access token (bearer header first, then the
// access_token cookie), maps core errors to stable response codes, and
// injects the verified claims into the request context for handlers:
//
//	TOKEN_EXPIRED, TOKEN_REVOKED, INVALID_TOKEN, MISSING_TOKEN -> 401
//	ADMIN_REQUIRED                                             -> 403
//	AUTH_BACKEND_UNAVAILABLE (revocation store down)           -> 503
//
// The 503 mapping is deliberate: when the revocation oracle cannot
// answer, the request is rejected without blaming the caller's token.
package middleware
