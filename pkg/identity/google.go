package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/igmrrf/bugrelay-sub004/pkg/config"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleIssuerURL   = "https://accounts.google.com"
)

// googleProvider completes the Google flow. When an ID-token verifier is
// configured the identity comes from the verified id_token claims;
// otherwise it falls back to the userinfo endpoint.
type googleProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	userInfoURL  string
}

func newGoogleProvider(ctx context.Context, cfg config.OAuthConfig) (*googleProvider, error) {
	userInfoURL := googleUserInfoURL
	if cfg.GoogleUserInfoURL != "" {
		userInfoURL = cfg.GoogleUserInfoURL
	}

	p := &googleProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL + "/google",
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: userInfoURL,
	}

	if cfg.VerifyGoogleIDToken {
		oidcProvider, err := oidc.NewProvider(ctx, googleIssuerURL)
		if err != nil {
			return nil, fmt.Errorf("failed to discover google oidc provider: %w", err)
		}
		p.verifier = oidcProvider.Verifier(&oidc.Config{ClientID: cfg.GoogleClientID})
	}

	return p, nil
}

func (p *googleProvider) authCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *googleProvider) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth2Config.Exchange(ctx, code)
}

func (p *googleProvider) identity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	if p.verifier != nil {
		if ident, err := p.verifiedIdentity(ctx, token); err == nil {
			return ident, nil
		} else if _, ok := token.Extra("id_token").(string); ok {
			// An id_token that fails verification is a hard error, not a
			// reason to trust the unverified userinfo endpoint instead
			return nil, err
		}
	}

	client := p.oauth2Config.Client(ctx, token)
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info from google: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google userinfo returned status %d: %s", resp.StatusCode, string(body))
	}

	var user struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse google user info: %w", err)
	}

	return &ExternalIdentity{
		Provider:          ProviderGoogle,
		ProviderAccountID: user.ID,
		Email:             user.Email,
		Name:              user.Name,
		AvatarURL:         user.Picture,
		EmailVerified:     user.VerifiedEmail,
	}, nil
}

func (p *googleProvider) verifiedIdentity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify google id_token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token claims: %w", err)
	}

	return &ExternalIdentity{
		Provider:          ProviderGoogle,
		ProviderAccountID: idToken.Subject,
		Email:             claims.Email,
		Name:              claims.Name,
		AvatarURL:         claims.Picture,
		EmailVerified:     claims.EmailVerified,
	}, nil
}
