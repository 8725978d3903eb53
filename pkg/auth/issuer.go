package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "bugrelay"
	tokenAudience = "bugrelay-users"
)

// Issuer creates and verifies signed session tokens. The signing secret
// lives for the life of the process configuration; changing it invalidates
// every outstanding token.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates a token issuer. An empty secret is a fatal
// configuration error, not a recoverable one.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime. This is the
// longest any outstanding token can live, which makes it the validity
// window for user-wide revocation markers.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssuePair mints an access and a refresh token for the user. The two
// tokens are independently signed with distinct kinds, expiries and
// random identifiers.
func (i *Issuer) IssuePair(userID, email string, isAdmin bool) (accessToken, refreshToken string, err error) {
	accessToken, err = i.issue(userID, email, isAdmin, KindAccess, i.accessTTL)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue access token: %w", err)
	}

	refreshToken, err = i.issue(userID, email, isAdmin, KindRefresh, i.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

func (i *Issuer) issue(userID, email string, isAdmin bool, kind TokenKind, ttl time.Duration) (string, error) {
	now := i.now()

	claims := Claims{
		UserID:  userID,
		Email:   email,
		IsAdmin: isAdmin,
		Kind:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate verifies the signature and the validity window
// (not-before <= now <= expires-at; the expiry instant itself counts as
// expired). It distinguishes ErrExpiredToken from ErrInvalidToken so
// callers can attempt a refresh on the former and force re-login on the
// latter.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ExtractID returns the unique identifier (jti) of a token. It validates
// the token first, so it inherits Validate's error semantics.
func (i *Issuer) ExtractID(tokenString string) (string, error) {
	claims, err := i.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}
