package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes access tokens from refresh tokens. The kind is
// fixed at issuance and never changes.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	// ErrInvalidToken indicates a malformed token or a bad signature
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token past its expiry instant
	ErrExpiredToken = errors.New("token has expired")
	// ErrWrongKind indicates an access token presented where a refresh
	// token was expected, or vice versa
	ErrWrongKind = errors.New("wrong token kind")
	// ErrTokenRevoked indicates a token whose identifier has been burned
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Claims are the verified contents of a signed session token. They expose
// exactly what upstream authorization decisions need: user id, email,
// admin flag, kind and the unique identifier.
type Claims struct {
	UserID  string    `json:"user_id"`
	Email   string    `json:"email"`
	IsAdmin bool      `json:"is_admin"`
	Kind    TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}
