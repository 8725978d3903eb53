package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/igmrrf/bugrelay-sub004/pkg/httputil"
	"github.com/igmrrf/bugrelay-sub004/pkg/identity"
	"github.com/igmrrf/bugrelay-sub004/pkg/users"
)

// oauthStateCookie carries the CSRF state between initiation and callback.
const oauthStateCookie = "oauth_state"

const oauthStateMaxAge = 600 // seconds

// oauthInitiate handles GET /api/v1/auth/oauth/{provider}: it generates
// the state, stores it in a short-lived cookie and returns the provider's
// authorization URL.
func (s *Server) oauthInitiate(w http.ResponseWriter, r *http.Request) {
	provider, err := identity.ParseProvider(mux.Vars(r)["provider"])
	if err != nil {
		httputil.WriteBadRequest(w, "INVALID_PROVIDER", "Unsupported OAuth provider")
		return
	}

	state, err := s.linker.GenerateState()
	if err != nil {
		s.logger.WithError(err).Error("oauth state generation failed")
		httputil.WriteInternalError(w, "STATE_GENERATION_FAILED")
		return
	}

	authURL, err := s.linker.AuthorizationURL(provider, state)
	if err != nil {
		httputil.WriteBadRequest(w, "INVALID_PROVIDER", "Provider is not configured")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	httputil.WriteJSON(w, http.StatusOK, oauthInitiateResponse{
		AuthURL: authURL,
		State:   state,
	})
}

// oauthCallback handles GET /api/v1/auth/oauth/callback/{provider}: state
// check, code exchange, identity fetch, then find-or-create-and-link of
// the local user, and finally a token pair.
func (s *Server) oauthCallback(w http.ResponseWriter, r *http.Request) {
	provider, err := identity.ParseProvider(mux.Vars(r)["provider"])
	if err != nil {
		httputil.WriteBadRequest(w, "INVALID_PROVIDER", "Unsupported OAuth provider")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "MISSING_CODE", "Authorization code is required")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || s.linker.ValidateState(stateCookie.Value, r.URL.Query().Get("state")) != nil {
		httputil.WriteBadRequest(w, "INVALID_STATE", "Invalid state parameter")
		return
	}

	// State is single use
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	token, err := s.linker.ExchangeCode(r.Context(), provider, code)
	if err != nil {
		s.logger.WithError(err).WithField("provider", string(provider)).Warn("oauth exchange failed")
		httputil.WriteUnauthorized(w, "OAUTH_EXCHANGE_FAILED", "Authorization code could not be exchanged")
		return
	}

	ident, err := s.linker.FetchIdentity(r.Context(), provider, token)
	if err != nil {
		if errors.Is(err, identity.ErrNoVerifiedEmail) {
			httputil.WriteBadRequest(w, "NO_VERIFIED_EMAIL", "No verified email on the provider account")
			return
		}
		httputil.WriteError(w, http.StatusBadGateway, "OAUTH_PROVIDER_ERROR", "Provider did not return a usable profile")
		return
	}

	user, err := s.findOrCreateLinkedUser(r.Context(), ident)
	if err != nil {
		s.logger.WithError(err).WithField("provider", string(provider)).Error("oauth user resolution failed")
		httputil.WriteInternalError(w, "OAUTH_LOGIN_FAILED")
		return
	}

	s.users.TouchLastLogin(r.Context(), user.ID)
	s.respondWithTokens(w, user, http.StatusOK)
}

// findOrCreateLinkedUser resolves an external identity to a local user:
// an existing link wins, then an existing account with the same verified
// email gets linked, then a fresh account is created.
func (s *Server) findOrCreateLinkedUser(ctx context.Context, ident *identity.ExternalIdentity) (*users.User, error) {
	user, err := s.users.GetByProviderAccount(ctx, string(ident.Provider), ident.ProviderAccountID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	user, err = s.users.GetByEmail(ctx, ident.Email)
	switch {
	case err == nil:
		// Matching by email is only safe when the provider vouched for it
		if !ident.EmailVerified {
			return nil, identity.ErrNoVerifiedEmail
		}
	case errors.Is(err, users.ErrNotFound):
		user = users.NewUser(ident.Email, ident.Name)
		user.AvatarURL = ident.AvatarURL
		user.IsEmailVerified = ident.EmailVerified
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.users.LinkProviderAccount(ctx, user.ID, string(ident.Provider), ident.ProviderAccountID); err != nil {
		return nil, err
	}

	return user, nil
}
