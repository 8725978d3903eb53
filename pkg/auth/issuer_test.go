package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret-key-for-auth-tests-0"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSecret, 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return issuer
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	_, err := NewIssuer("", time.Minute, time.Hour)
	if err == nil {
		t.Fatal("Expected error for empty secret")
	}
}

func TestIssuePair_DistinctTokens(t *testing.T) {
	issuer := newTestIssuer(t)

	access, refresh, err := issuer.IssuePair("u1", "user@example.com", false)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if access == refresh {
		t.Error("Access and refresh tokens should differ")
	}

	accessClaims, err := issuer.Validate(access)
	if err != nil {
		t.Fatalf("Validate(access) error = %v", err)
	}
	refreshClaims, err := issuer.Validate(refresh)
	if err != nil {
		t.Fatalf("Validate(refresh) error = %v", err)
	}

	if accessClaims.Kind != KindAccess {
		t.Errorf("access kind = %q, want %q", accessClaims.Kind, KindAccess)
	}
	if refreshClaims.Kind != KindRefresh {
		t.Errorf("refresh kind = %q, want %q", refreshClaims.Kind, KindRefresh)
	}
	if accessClaims.ID == refreshClaims.ID {
		t.Error("Access and refresh tokens must not share a jti")
	}
	if !refreshClaims.ExpiresAt.After(accessClaims.ExpiresAt.Time) {
		t.Error("Refresh token should outlive the access token")
	}
}

func TestIssuePair_ClaimsRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	access, _, err := issuer.IssuePair("u42", "admin@example.com", true)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	claims, err := issuer.Validate(access)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if claims.UserID != "u42" {
		t.Errorf("UserID = %q, want u42", claims.UserID)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("Email = %q, want admin@example.com", claims.Email)
	}
	if !claims.IsAdmin {
		t.Error("IsAdmin should be true")
	}
	if claims.Subject != "u42" {
		t.Errorf("Subject = %q, want u42", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("jti should be set")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		t.Error("expires-at must be after issued-at")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewIssuer("another-secret-entirely-32bytes!", 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	access, _, err := issuer.IssuePair("u1", "user@example.com", false)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	_, err = other.Validate(access)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidate_Garbage(t *testing.T) {
	issuer := newTestIssuer(t)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestValidate_Expired(t *testing.T) {
	issuer := newTestIssuer(t)
	issued := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return issued }

	access, _, err := issuer.IssuePair("u1", "user@example.com", false)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	issuer.now = time.Now
	_, err = issuer.Validate(access)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate() error = %v, want ErrExpiredToken", err)
	}
}

func TestValidate_ExpiryInstantIsExpired(t *testing.T) {
	issuer := newTestIssuer(t)
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	access, _, err := issuer.IssuePair("u1", "user@example.com", false)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	// One second before expiry: alive
	issuer.now = func() time.Time { return issued.Add(issuer.accessTTL - time.Second) }
	if _, err := issuer.Validate(access); err != nil {
		t.Errorf("Validate() just before expiry error = %v, want nil", err)
	}

	// Exactly at expiry: dead
	issuer.now = func() time.Time { return issued.Add(issuer.accessTTL) }
	if _, err := issuer.Validate(access); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate() at expiry error = %v, want ErrExpiredToken", err)
	}
}

func TestValidate_NotYetValid(t *testing.T) {
	issuer := newTestIssuer(t)
	issuer.now = func() time.Time { return time.Now().Add(time.Hour) }

	access, _, err := issuer.IssuePair("u1", "user@example.com", false)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	issuer.now = time.Now
	_, err = issuer.Validate(access)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() error = %v, want ErrInvalidToken for nbf in the future", err)
	}
}

func TestExtractID(t *testing.T) {
	issuer := newTestIssuer(t)

	access, _, err := issuer.IssuePair("u1", "user@example.com", false)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	claims, err := issuer.Validate(access)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	jti, err := issuer.ExtractID(access)
	if err != nil {
		t.Fatalf("ExtractID() error = %v", err)
	}
	if jti != claims.ID {
		t.Errorf("ExtractID() = %q, want %q", jti, claims.ID)
	}

	if _, err := issuer.ExtractID("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ExtractID(garbage) error = %v, want ErrInvalidToken", err)
	}
}

func TestIssuePair_UniqueJTIs(t *testing.T) {
	issuer := newTestIssuer(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		access, refresh, err := issuer.IssuePair("u1", "user@example.com", false)
		if err != nil {
			t.Fatalf("IssuePair() error = %v", err)
		}
		for _, token := range []string{access, refresh} {
			jti, err := issuer.ExtractID(token)
			if err != nil {
				t.Fatalf("ExtractID() error = %v", err)
			}
			if seen[jti] {
				t.Fatalf("Duplicate jti generated: %s", jti)
			}
			seen[jti] = true
		}
	}
}
