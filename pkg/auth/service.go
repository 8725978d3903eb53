package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
)

// RevocationLedger is the revocation store consumed by the Service. The
// concrete implementation lives in pkg/revocation; the interface keeps the
// token core testable without redis or postgres.
type RevocationLedger interface {
	// Revoke marks a token identifier as burned. Idempotent.
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
	// Burn marks a token identifier as burned exactly once; it reports
	// false when some other caller burned it first.
	Burn(ctx context.Context, jti, userID string, expiresAt time.Time) (bool, error)
	// IsRevoked reports whether a token identifier has been burned.
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeAllForUser records a user-wide revocation marker covering the
	// given validity window.
	RevokeAllForUser(ctx context.Context, userID string, window time.Duration) error
	// IsUserRevoked reports whether a token issued at issuedAt falls under
	// a user-wide revocation marker.
	IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// Service is the authentication façade: it issues token pairs, validates
// access tokens against signature and revocation state, rotates refresh
// tokens exactly once, and revokes sessions. It does not check passwords
// itself; credential verification happens before IssueForCredentials.
type Service struct {
	issuer  *Issuer
	hasher  *PasswordHasher
	ledger  RevocationLedger
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the authentication façade. metrics may be nil.
func NewService(issuer *Issuer, hasher *PasswordHasher, ledger RevocationLedger, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		issuer:  issuer,
		hasher:  hasher,
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
	}
}

// Issuer exposes the token issuer for collaborators that only need
// signature verification.
func (s *Service) Issuer() *Issuer { return s.issuer }

// Passwords exposes the password hasher.
func (s *Service) Passwords() *PasswordHasher { return s.hasher }

// IssueForCredentials mints a token pair for a user whose credentials have
// already been verified by the caller.
func (s *Service) IssueForCredentials(userID, email string, isAdmin bool) (accessToken, refreshToken string, err error) {
	accessToken, refreshToken, err = s.issuer.IssuePair(userID, email, isAdmin)
	if err != nil {
		return "", "", err
	}
	if s.metrics != nil {
		s.metrics.TokenPairsIssued.Inc()
	}
	return accessToken, refreshToken, nil
}

// ValidateAccess verifies an access token end to end: signature and
// expiry, kind, per-token revocation and the user-wide revocation marker.
// A revocation-store outage is returned as-is so the transport layer can
// answer 5xx instead of silently allowing the request.
func (s *Service) ValidateAccess(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.issuer.Validate(tokenString)
	if err != nil {
		s.countValidation(err)
		return nil, err
	}

	if claims.Kind != KindAccess {
		s.countValidation(ErrWrongKind)
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongKind, KindAccess, claims.Kind)
	}

	if err := s.checkRevocation(ctx, claims); err != nil {
		s.countValidation(err)
		return nil, err
	}

	s.countValidation(nil)
	return claims, nil
}

// Refresh rotates a refresh token: the presented token is burned before
// the new pair is minted, and the burn is conditional, so of two
// concurrent calls with the same token at most one succeeds. The loser
// observes ErrTokenRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (newAccess, newRefresh string, err error) {
	claims, err := s.issuer.Validate(refreshToken)
	if err != nil {
		s.countRotation("rejected")
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	if claims.Kind != KindRefresh {
		s.countRotation("rejected")
		return "", "", fmt.Errorf("%w: expected %s, got %s", ErrWrongKind, KindRefresh, claims.Kind)
	}

	revoked, err := s.ledger.IsUserRevoked(ctx, claims.UserID, claims.IssuedAt.Time)
	if err != nil {
		return "", "", fmt.Errorf("failed to check user revocation: %w", err)
	}
	if revoked {
		s.countRotation("rejected")
		return "", "", ErrTokenRevoked
	}

	won, err := s.ledger.Burn(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time)
	if err != nil {
		return "", "", fmt.Errorf("failed to burn refresh token: %w", err)
	}
	if !won {
		s.logger.WithFields(map[string]interface{}{
			"user_id": claims.UserID,
			"jti":     claims.ID,
		}).Warn("refresh token replay detected")
		s.countRotation("replayed")
		return "", "", ErrTokenRevoked
	}

	newAccess, newRefresh, err = s.issuer.IssuePair(claims.UserID, claims.Email, claims.IsAdmin)
	if err != nil {
		return "", "", err
	}
	if s.metrics != nil {
		s.metrics.TokenPairsIssued.Inc()
	}
	s.countRotation("ok")
	return newAccess, newRefresh, nil
}

// Revoke burns a single token (any kind) ahead of its natural expiry. The
// token must still parse and verify; revoking garbage is not meaningful.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.issuer.Validate(tokenString)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	if err := s.ledger.Revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RevocationsTotal.WithLabelValues("token").Inc()
	}
	return nil
}

// RevokeAllForUser burns every outstanding session of the user, including
// the one making the call. The marker window equals the refresh-token TTL,
// the longest any outstanding token can live.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := s.ledger.RevokeAllForUser(ctx, userID, s.issuer.RefreshTTL()); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RevocationsTotal.WithLabelValues("user").Inc()
	}
	s.logger.WithField("user_id", userID).Info("revoked all sessions for user")
	return nil
}

func (s *Service) checkRevocation(ctx context.Context, claims *Claims) error {
	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return ErrTokenRevoked
	}

	userRevoked, err := s.ledger.IsUserRevoked(ctx, claims.UserID, claims.IssuedAt.Time)
	if err != nil {
		return fmt.Errorf("failed to check user revocation: %w", err)
	}
	if userRevoked {
		return ErrTokenRevoked
	}

	return nil
}

func (s *Service) countValidation(err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrExpiredToken):
		outcome = "expired"
	case errors.Is(err, ErrWrongKind):
		outcome = "wrong_kind"
	case errors.Is(err, ErrTokenRevoked):
		outcome = "revoked"
	case errors.Is(err, ErrInvalidToken):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.metrics.TokenValidations.WithLabelValues(outcome).Inc()
}

func (s *Service) countRotation(outcome string) {
	if s.metrics != nil {
		s.metrics.RefreshRotations.WithLabelValues(outcome).Inc()
	}
}
