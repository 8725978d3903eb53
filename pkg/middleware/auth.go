package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/igmrrf/bugrelay-sub004/pkg/auth"
	"github.com/igmrrf/bugrelay-sub004/pkg/contextkeys"
	"github.com/igmrrf/bugrelay-sub004/pkg/httputil"
	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
	"github.com/igmrrf/bugrelay-sub004/pkg/revocation"
)

// AccessTokenCookie is the cookie the guard falls back to when no bearer
// header is present.
const AccessTokenCookie = "access_token"

// Guard authenticates requests against the token core and injects the
// verified claims into the request context.
type Guard struct {
	service *auth.Service
	logger  *observability.Logger
}

// NewGuard creates the request guard.
func NewGuard(service *auth.Service, logger *observability.Logger) *Guard {
	return &Guard{service: service, logger: logger}
}

// RequireAuth rejects requests without a valid access token. The token is
// taken from the Authorization header or, failing that, the access_token
// cookie. A revocation-store outage answers 503: the request is neither
// allowed through nor blamed on the caller's token.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, "MISSING_TOKEN", "Authorization token is required")
			return
		}

		claims, err := g.service.ValidateAccess(r.Context(), token)
		if err != nil {
			g.reject(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextkeys.WithClaims(r.Context(), claims)))
	})
}

// RequireAdmin is RequireAuth plus the admin gate.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || !claims.IsAdmin {
			httputil.WriteForbidden(w, "ADMIN_REQUIRED", "Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, revocation.ErrUnavailable):
		g.logger.WithError(err).WithField("path", r.URL.Path).Error("revocation store unavailable")
		httputil.WriteServiceUnavailable(w, "AUTH_BACKEND_UNAVAILABLE", "Authentication backend unavailable")
	case errors.Is(err, auth.ErrExpiredToken):
		httputil.WriteUnauthorized(w, "TOKEN_EXPIRED", "Token has expired")
	case errors.Is(err, auth.ErrTokenRevoked):
		httputil.WriteUnauthorized(w, "TOKEN_REVOKED", "Token has been revoked")
	default:
		httputil.WriteUnauthorized(w, "INVALID_TOKEN", "Invalid or malformed token")
	}
}

// ClaimsFromContext returns the verified claims the guard stored, or nil
// on an unguarded request.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(contextkeys.ClaimsKey).(*auth.Claims)
	return claims
}

func extractToken(r *http.Request) (string, bool) {
	if token, ok := httputil.BearerToken(r); ok {
		return token, true
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}
