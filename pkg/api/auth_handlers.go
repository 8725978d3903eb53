package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/igmrrf/bugrelay-sub004/pkg/auth"
	"github.com/igmrrf/bugrelay-sub004/pkg/httputil"
	"github.com/igmrrf/bugrelay-sub004/pkg/middleware"
	"github.com/igmrrf/bugrelay-sub004/pkg/revocation"
	"github.com/igmrrf/bugrelay-sub004/pkg/users"
)

// register handles POST /api/v1/auth/register.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.DisplayName == "" {
		httputil.WriteBadRequest(w, "INVALID_REQUEST", "email and display_name are required")
		return
	}

	if err := s.service.Passwords().CheckStrength(req.Password); err != nil {
		httputil.WriteBadRequest(w, "WEAK_PASSWORD", err.Error())
		return
	}

	hash, err := s.service.Passwords().Hash(req.Password)
	if err != nil {
		s.logger.WithError(err).Error("password hashing failed")
		httputil.WriteInternalError(w, "HASH_FAILED")
		return
	}

	user := users.NewUser(req.Email, req.DisplayName)
	user.PasswordHash = hash
	user.IsEmailVerified = true

	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			httputil.WriteConflict(w, "USER_EXISTS", "User with this email already exists")
			return
		}
		s.logger.WithError(err).Error("user creation failed")
		httputil.WriteInternalError(w, "USER_CREATION_FAILED")
		return
	}

	s.respondWithTokens(w, user, http.StatusCreated)
}

// login handles POST /api/v1/auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteUnauthorized(w, "INVALID_CREDENTIALS", "Invalid email or password")
			return
		}
		s.logger.WithError(err).Error("user lookup failed")
		httputil.WriteInternalError(w, "LOGIN_FAILED")
		return
	}

	if !user.HasPassword() {
		httputil.WriteUnauthorized(w, "INVALID_AUTH_METHOD", "This account uses a different authentication method")
		return
	}

	if err := s.service.Passwords().Verify(req.Password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			httputil.WriteUnauthorized(w, "INVALID_CREDENTIALS", "Invalid email or password")
			return
		}
		s.logger.WithError(err).WithField("user_id", user.ID).Error("credential verification failed")
		httputil.WriteInternalError(w, "LOGIN_FAILED")
		return
	}

	s.users.TouchLastLogin(r.Context(), user.ID)
	s.respondWithTokens(w, user, http.StatusOK)
}

// refresh handles POST /api/v1/auth/refresh.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "INVALID_REQUEST", "refresh_token is required")
		return
	}

	access, newRefresh, err := s.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, revocation.ErrUnavailable) {
			httputil.WriteServiceUnavailable(w, "AUTH_BACKEND_UNAVAILABLE", "Authentication backend unavailable")
			return
		}
		httputil.WriteUnauthorized(w, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  access,
		RefreshToken: newRefresh,
		ExpiresIn:    int64(s.service.Issuer().AccessTTL().Seconds()),
	})
}

// logout handles POST /api/v1/auth/logout: it revokes the presented
// access token. The route is unguarded; revoking is itself the proof of
// possession.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.BearerToken(r)
	if !ok {
		if cookie, err := r.Cookie(middleware.AccessTokenCookie); err == nil && cookie.Value != "" {
			token, ok = cookie.Value, true
		}
	}
	if !ok {
		httputil.WriteBadRequest(w, "MISSING_TOKEN", "Authorization token is required")
		return
	}

	if err := s.service.Revoke(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, revocation.ErrUnavailable):
			httputil.WriteServiceUnavailable(w, "AUTH_BACKEND_UNAVAILABLE", "Authentication backend unavailable")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
			httputil.WriteUnauthorized(w, "INVALID_TOKEN", "Invalid or expired token")
		default:
			s.logger.WithError(err).Error("logout failed")
			httputil.WriteInternalError(w, "LOGOUT_FAILED")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// logoutAll handles POST /api/v1/auth/logout-all. Every outstanding
// session dies, including the caller's; a fresh pair is minted afterwards
// so the caller stays signed in here.
func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	if err := s.service.RevokeAllForUser(r.Context(), claims.UserID); err != nil {
		if errors.Is(err, revocation.ErrUnavailable) {
			httputil.WriteServiceUnavailable(w, "AUTH_BACKEND_UNAVAILABLE", "Authentication backend unavailable")
			return
		}
		s.logger.WithError(err).Error("logout-all failed")
		httputil.WriteInternalError(w, "LOGOUT_ALL_FAILED")
		return
	}

	access, refresh, err := s.service.IssueForCredentials(claims.UserID, claims.Email, claims.IsAdmin)
	if err != nil {
		s.logger.WithError(err).Error("token issuance failed after logout-all")
		httputil.WriteInternalError(w, "TOKEN_GENERATION_FAILED")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged out from all devices",
		"data": tokenPairResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(s.service.Issuer().AccessTTL().Seconds()),
		},
	})
}

// me handles GET /api/v1/auth/me.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	user, err := s.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "USER_NOT_FOUND", "User no longer exists")
			return
		}
		s.logger.WithError(err).Error("user lookup failed")
		httputil.WriteInternalError(w, "PROFILE_LOOKUP_FAILED")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) respondWithTokens(w http.ResponseWriter, user *users.User, status int) {
	access, refresh, err := s.service.IssueForCredentials(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("token issuance failed")
		httputil.WriteInternalError(w, "TOKEN_GENERATION_FAILED")
		return
	}

	httputil.WriteJSON(w, status, authResponse{
		User: newUserResponse(user),
		tokenPairResponse: tokenPairResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(s.service.Issuer().AccessTTL().Seconds()),
		},
	})
}
